package chess

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine is the concurrency-safe entry point used by the service. It owns
// only a seeded random source; every call works on its own position copy.
type Engine struct {
	randMu sync.Mutex
	rand   *rand.Rand

	logger   *zap.Logger
	search   SearchOptions
	classify ClassifyOptions
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithSearchOptions(opts SearchOptions) Option {
	return func(e *Engine) { e.search = opts }
}

func WithClassifyOptions(opts ClassifyOptions) Option {
	return func(e *Engine) { e.classify = opts }
}

func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rand = rand.New(rand.NewSource(seed)) }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PickRequest describes a position as a starting FEN plus UCI moves.
type PickRequest struct {
	Difficulty string
	FEN        string
	Moves      []string
}

type PickResult struct {
	Preset   DifficultyPreset
	Move     Move
	Score    Score
	Random   bool
	Duration time.Duration
}

func (e *Engine) PickMove(ctx context.Context, req PickRequest) (PickResult, error) {
	start := time.Now()
	preset, err := GetPreset(req.Difficulty)
	if err != nil {
		return PickResult{}, err
	}
	pos, err := PositionFromMoves(req.FEN, req.Moves)
	if err != nil {
		return PickResult{}, err
	}

	sel, ok, err := SelectMove(ctx, pos, preset, e.random(), e.search)
	if err != nil {
		e.logger.Warn("pick_move_failed", zap.String("difficulty", preset.Name), zap.Error(err))
		return PickResult{}, err
	}
	if !ok {
		return PickResult{}, ErrNoLegalMoves
	}
	res := PickResult{
		Preset:   preset,
		Move:     sel.Move,
		Score:    sel.Score,
		Random:   sel.Random,
		Duration: time.Since(start),
	}
	e.logger.Debug("pick_move",
		zap.String("difficulty", preset.Name),
		zap.String("move", res.Move.UCI()),
		zap.Bool("random", res.Random),
		zap.Int("score", int(res.Score)),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

type AnalyzeRequest struct {
	FEN   string
	Moves []string
	Depth int
	Limit int
}

type AnalyzeResult struct {
	Turn     Color
	Depth    int
	Moves    []MoveAnalysis
	Duration time.Duration
}

func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	start := time.Now()
	pos, err := PositionFromMoves(req.FEN, req.Moves)
	if err != nil {
		return AnalyzeResult{}, err
	}
	list, err := AnalyzeContext(ctx, pos, req.Depth, AnalyzeOptions{
		Search:   e.search,
		Classify: e.classify,
		Limit:    req.Limit,
	})
	if err != nil {
		e.logger.Warn("analyze_failed", zap.Int("depth", req.Depth), zap.Error(err))
		return AnalyzeResult{}, err
	}
	if len(list) == 0 {
		return AnalyzeResult{}, ErrNoLegalMoves
	}
	res := AnalyzeResult{Turn: pos.Turn(), Depth: req.Depth, Moves: list, Duration: time.Since(start)}
	e.logger.Debug("analyze",
		zap.Int("depth", req.Depth),
		zap.String("best", list[0].Move.UCI()),
		zap.String("technique", list[0].Technique.String()),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

// Classify labels a single move that was already played from FEN+Moves,
// scoring it at depth first.
func (e *Engine) Classify(ctx context.Context, req AnalyzeRequest, uci string) (MoveAnalysis, error) {
	pos, err := PositionFromMoves(req.FEN, req.Moves)
	if err != nil {
		return MoveAnalysis{}, err
	}
	m, err := pos.MoveFromUCI(uci)
	if err != nil {
		return MoveAnalysis{}, err
	}
	depth := req.Depth
	if depth < 1 {
		depth = 1
	}
	if depth > MaxSearchDepth {
		return MoveAnalysis{}, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	s := newSearcher(ctx, e.search)
	score, err := s.rootScore(pos, m, depth)
	if err != nil {
		return MoveAnalysis{}, err
	}
	return ClassifyMove(pos, m, score, e.classify)
}

// PositionFromMoves parses fen (the standard start when blank) and replays
// moves in UCI notation.
func PositionFromMoves(fen string, moves []string) (*Position, error) {
	var pos *Position
	if strings.TrimSpace(fen) == "" {
		pos = StartPosition()
	} else {
		p, err := ParsePosition(fen)
		if err != nil {
			return nil, err
		}
		pos = p
	}
	for i, text := range moves {
		m, err := pos.MoveFromUCI(text)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		if _, err := pos.Apply(m); err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return pos, nil
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

// IsCanceled reports whether err came from an expired or canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
