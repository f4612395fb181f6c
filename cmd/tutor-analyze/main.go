// Command tutor-analyze prints the tutor's ranked, explained moves for a
// position and the move a difficulty tier would play there.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/msgcat"
	"github.com/park285/cheese-chess-tutor/internal/obslog"
)

type options struct {
	FEN       string
	Moves     string
	Depth     int
	Limit     int
	Tier      string
	Seed      int64
	Geometric bool
	Static    bool
	MsgDir    string
	Timeout   time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.FEN, "fen", "", "position in FEN (standard start when empty)")
	flag.StringVar(&opts.Moves, "moves", "", "UCI moves played from the position, space or comma separated")
	flag.IntVar(&opts.Depth, "depth", 2, "search depth in plies")
	flag.IntVar(&opts.Limit, "limit", corechess.MaxAnalyses, "number of moves to list")
	flag.StringVar(&opts.Tier, "tier", "", "also show the move this difficulty picks")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed for the tier pick (0 = time based)")
	flag.BoolVar(&opts.Geometric, "geometric", false, "detect pins and skewers with ray tests")
	flag.BoolVar(&opts.Static, "static-terminals", false, "score mate and stalemate leaves with the evaluator only")
	flag.StringVar(&opts.MsgDir, "messages", os.Getenv("MSGCAT_DIR"), "directory with message overrides")
	flag.DurationVar(&opts.Timeout, "timeout", time.Minute, "give up after this long")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	logger := obslog.Named("analyze")
	defer func() { _ = obslog.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := analyze(ctx, opts, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = obslog.Close()
		os.Exit(1)
	}
}

func analyze(ctx context.Context, opts options, w io.Writer, logger *zap.Logger) error {
	game, moves, err := replay(opts.FEN, opts.Moves)
	if err != nil {
		return err
	}
	if game.Outcome() != nchess.NoOutcome {
		return fmt.Errorf("game is over: %s by %s", game.Outcome(), game.Method())
	}

	messages, err := msgcat.New(opts.MsgDir)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	engineOpts := []corechess.Option{
		corechess.WithLogger(logger),
		corechess.WithSearchOptions(corechess.SearchOptions{StaticTerminals: opts.Static}),
		corechess.WithClassifyOptions(corechess.ClassifyOptions{Geometric: opts.Geometric, Messages: messages}),
	}
	if opts.Seed != 0 {
		engineOpts = append(engineOpts, corechess.WithSeed(opts.Seed))
	}
	engine := corechess.NewEngine(engineOpts...)

	res, err := engine.Analyze(ctx, corechess.AnalyzeRequest{FEN: opts.FEN, Moves: moves, Depth: opts.Depth, Limit: opts.Limit})
	if err != nil {
		return err
	}

	position := game.Position()
	fmt.Fprintf(w, "%s to move, depth %d, %s\n\n", res.Turn, res.Depth, res.Duration.Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, mv := range res.Moves {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\t%s\n", i+1, sanOf(position, mv.Move.UCI()), formatScore(mv.Score), mv.Tier, mv.Technique)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for i, mv := range res.Moves {
		fmt.Fprintf(w, "\n%d. %s: %s", i+1, sanOf(position, mv.Move.UCI()), mv.Justification)
	}
	fmt.Fprintln(w)

	if strings.TrimSpace(opts.Tier) == "" {
		return nil
	}
	pick, err := engine.PickMove(ctx, corechess.PickRequest{Difficulty: opts.Tier, FEN: opts.FEN, Moves: moves})
	if err != nil {
		return err
	}
	note := ""
	if pick.Random {
		note = " (random)"
	}
	fmt.Fprintf(w, "\n%s (~%d) plays %s%s\n", pick.Preset.Name, pick.Preset.ApproxRating, sanOf(position, pick.Move.UCI()), note)
	return nil
}

// replay validates fen and moves with the rules library so errors name the
// offending input.
func replay(fen, rawMoves string) (*nchess.Game, []string, error) {
	var opts []func(*nchess.Game)
	if strings.TrimSpace(fen) != "" {
		fromFEN, err := nchess.FEN(strings.TrimSpace(fen))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid fen: %w", err)
		}
		opts = append(opts, fromFEN)
	}
	game := nchess.NewGame(opts...)

	moves := strings.FieldsFunc(strings.ToLower(rawMoves), func(r rune) bool { return r == ',' || r == ' ' })
	notation := nchess.UCINotation{}
	for i, text := range moves {
		mv, err := notation.Decode(game.Position(), text)
		if err != nil {
			return nil, nil, fmt.Errorf("move %d (%s): %w", i+1, text, err)
		}
		if err := game.Move(mv, nil); err != nil {
			return nil, nil, fmt.Errorf("move %d (%s): %w", i+1, text, err)
		}
	}
	if len(game.ValidMoves()) == 0 && game.Outcome() == nchess.NoOutcome {
		return nil, nil, errors.New("position has no legal moves")
	}
	return game, moves, nil
}

func sanOf(pos *nchess.Position, uci string) string {
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return uci
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}

func formatScore(s corechess.Score) string {
	const mateThreshold = corechess.MateScore - 100
	switch {
	case s >= mateThreshold:
		return "#+"
	case s <= -mateThreshold:
		return "#-"
	default:
		return fmt.Sprintf("%+.2f", float64(s)/100)
	}
}
