package chess

import (
	"context"
	"fmt"
	"sort"
)

// MaxAnalyses caps the number of candidates an analysis reports.
const MaxAnalyses = 5

type AnalyzeOptions struct {
	Search   SearchOptions
	Classify ClassifyOptions
	// Limit trims the report; values outside 1..MaxAnalyses mean MaxAnalyses.
	Limit int
}

// Analyze scores and classifies every legal move of pos at depth and returns
// the best few for the side to move. An empty result means no legal move.
func Analyze(pos *Position, depth int) ([]MoveAnalysis, error) {
	return AnalyzeContext(context.Background(), pos, depth, AnalyzeOptions{})
}

func AnalyzeContext(ctx context.Context, pos *Position, depth int, opts AnalyzeOptions) ([]MoveAnalysis, error) {
	if depth < 1 || depth > MaxSearchDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	work := pos.Clone()
	moves := work.LegalMoves()
	if len(moves) == 0 {
		return []MoveAnalysis{}, nil
	}

	s := newSearcher(ctx, opts.Search)
	out := make([]MoveAnalysis, 0, len(moves))
	for _, m := range moves {
		score, err := s.rootScore(work, m, depth)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", m.UCI(), err)
		}
		a, err := ClassifyMove(work, m, score, opts.Classify)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", m.UCI(), err)
		}
		out = append(out, a)
	}
	return RankAnalyses(out, work.Turn(), opts.Limit), nil
}

// RankAnalyses orders analyses best-first for side and keeps at most limit.
// Equal scores keep their input order.
func RankAnalyses(list []MoveAnalysis, side Color, limit int) []MoveAnalysis {
	if limit <= 0 || limit > MaxAnalyses {
		limit = MaxAnalyses
	}
	sort.SliceStable(list, func(i, j int) bool {
		if side == White {
			return list[i].Score > list[j].Score
		}
		return list[i].Score < list[j].Score
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}
