package chess

import (
	"context"
	"math/rand"
	"time"
)

// Selection is the outcome of a difficulty-driven move choice.
type Selection struct {
	Move     Move
	Score    Score
	Random   bool
	Searched bool
}

// PickMove chooses a move for the side to move according to tier. ok is false
// when the position has no legal move.
func PickMove(pos *Position, tier string, rng *rand.Rand) (Move, bool, error) {
	p, err := GetPreset(tier)
	if err != nil {
		return Move{}, false, err
	}
	sel, ok, err := SelectMove(context.Background(), pos, p, rng, SearchOptions{})
	return sel.Move, ok, err
}

// SelectMove rolls the preset's random rate first and only searches when the
// roll asks for a real move. Searching tiers keep the first best move found.
func SelectMove(ctx context.Context, pos *Position, p DifficultyPreset, rng *rand.Rand, opts SearchOptions) (Selection, bool, error) {
	if err := ValidatePreset(p); err != nil {
		return Selection{}, false, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	work := pos.Clone()
	moves := work.LegalMoves()
	if len(moves) == 0 {
		return Selection{}, false, nil
	}
	if rollRandom(p, rng) {
		return Selection{Move: moves[rng.Intn(len(moves))], Random: true}, true, nil
	}

	s := newSearcher(ctx, opts)
	best, score, ok, err := s.bestMove(work, p.Depth)
	if err != nil || !ok {
		return Selection{}, ok, err
	}
	return Selection{Move: best, Score: score, Searched: true}, true, nil
}

func rollRandom(p DifficultyPreset, rng *rand.Rand) bool {
	switch {
	case p.Depth == 0 || p.RandomRate >= 1:
		return true
	case p.RandomRate <= 0:
		return false
	default:
		return rng.Float64() < p.RandomRate
	}
}
