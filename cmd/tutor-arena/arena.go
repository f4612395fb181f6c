package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
)

type gameInfo struct {
	number  int
	opening []string
	aWhite  bool
}

type gameResult struct {
	info    gameInfo
	outcome nchess.Outcome
	method  string
	plies   int
}

// openings are short UCI lines so seeded games do not all repeat.
var openings = [][]string{
	{"e2e4", "e7e5"},
	{"d2d4", "d7d5"},
	{"e2e4", "c7c5"},
	{"c2c4", "e7e5"},
	{"g1f3", "d7d5"},
	{"e2e4", "e7e6"},
	{"d2d4", "g8f6", "c2c4", "e7e6"},
	{"e2e4", "c7c6"},
}

func run(ctx context.Context, opts options, logger *zap.Logger) (*score, error) {
	opts, err := validate(opts)
	if err != nil {
		return nil, err
	}
	logger.Info("arena_started",
		zap.String("a", opts.TierA),
		zap.String("b", opts.TierB),
		zap.Int("games", opts.Games),
		zap.Int("concurrency", opts.Concurrency),
	)

	g, ctx := errgroup.WithContext(ctx)
	infos := make(chan gameInfo)
	results := make(chan gameResult)

	g.Go(func() error {
		defer close(infos)
		for i := 0; i < opts.Games; i++ {
			info := gameInfo{number: i + 1, opening: openings[(i/2)%len(openings)], aWhite: i%2 == 0}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case infos <- info:
			}
		}
		return nil
	})

	total := &score{a: opts.TierA, b: opts.TierB}
	g.Go(func() error {
		for res := range results {
			total.add(res)
			logger.Info("arena_game",
				zap.Int("game", res.info.number),
				zap.Bool("a_white", res.info.aWhite),
				zap.String("outcome", res.outcome.String()),
				zap.String("method", res.method),
				zap.Int("plies", res.plies),
			)
		}
		return nil
	})

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		seed := opts.Seed + int64(w)
		g.Go(func() error {
			defer wg.Done()
			engine := corechess.NewEngine(corechess.WithSeed(seed), corechess.WithLogger(logger.Named("engine")))
			for info := range infos {
				res, err := playGame(ctx, engine, opts, info)
				if err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case results <- res:
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

// playGame plays one game from its opening line. Repetition and fifty-move
// draws are claimed as soon as they are available.
func playGame(ctx context.Context, engine *corechess.Engine, opts options, info gameInfo) (gameResult, error) {
	game := nchess.NewGame()
	moves := make([]string, 0, opts.MaxPlies)
	notation := nchess.UCINotation{}
	apply := func(uci string) error {
		mv, err := notation.Decode(game.Position(), uci)
		if err != nil {
			return fmt.Errorf("game %d: decode %s: %w", info.number, uci, err)
		}
		if err := game.Move(mv, nil); err != nil {
			return fmt.Errorf("game %d: apply %s: %w", info.number, uci, err)
		}
		moves = append(moves, uci)
		return nil
	}
	for _, uci := range info.opening {
		if err := apply(uci); err != nil {
			return gameResult{}, err
		}
	}

	for game.Outcome() == nchess.NoOutcome && len(moves) < opts.MaxPlies {
		if claimDraw(game) {
			break
		}
		tier := opts.TierB
		if (game.Position().Turn() == nchess.White) == info.aWhite {
			tier = opts.TierA
		}
		pick, err := engine.PickMove(ctx, corechess.PickRequest{Difficulty: tier, Moves: slices.Clone(moves)})
		if err != nil {
			return gameResult{}, fmt.Errorf("game %d ply %d: %w", info.number, len(moves)+1, err)
		}
		if err := apply(pick.Move.UCI()); err != nil {
			return gameResult{}, err
		}
	}

	res := gameResult{info: info, outcome: game.Outcome(), plies: len(moves)}
	switch {
	case res.outcome == nchess.NoOutcome:
		res.outcome = nchess.Draw
		res.method = "move limit"
	default:
		res.method = svc.MethodName(game.Method())
	}
	return res, nil
}

func claimDraw(game *nchess.Game) bool {
	for _, m := range game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return game.Draw(m) == nil
		}
	}
	return false
}

type score struct {
	a, b                string
	wins, losses, draws int
}

// add records res from the first tier's point of view.
func (s *score) add(res gameResult) {
	switch res.outcome {
	case nchess.Draw:
		s.draws++
	case nchess.WhiteWon:
		if res.info.aWhite {
			s.wins++
		} else {
			s.losses++
		}
	case nchess.BlackWon:
		if res.info.aWhite {
			s.losses++
		} else {
			s.wins++
		}
	}
}

func (s *score) points() float64 {
	return float64(s.wins) + 0.5*float64(s.draws)
}

func (s *score) String() string {
	games := s.wins + s.losses + s.draws
	return fmt.Sprintf("%s vs %s: +%d =%d -%d (%.1f/%d)", s.a, s.b, s.wins, s.draws, s.losses, s.points(), games)
}
