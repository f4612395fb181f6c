package chess

import (
	"context"
	"errors"
	"fmt"

	"github.com/dylhunn/dragontoothmg"
)

const (
	Infinity  Score = 1 << 30
	MateScore Score = 1_000_000

	MaxSearchDepth    = 6
	nodeCheckInterval = 1024
)

var ErrInvalidDepth = errors.New("invalid search depth")

type SearchOptions struct {
	// StaticTerminals scores positions without legal moves with the
	// evaluator alone, so mate and stalemate look like any other leaf.
	StaticTerminals bool
}

// Search returns the minimax value of pos searched to depth plies with
// alpha-beta pruning. pos is left untouched.
func Search(pos *Position, depth int, alpha, beta Score, maximizing bool) Score {
	score, _ := SearchContext(context.Background(), pos, depth, alpha, beta, maximizing, SearchOptions{})
	return score
}

// SearchContext is Search with cooperative cancellation: ctx is polled on the
// first node and then every nodeCheckInterval nodes; its error aborts the
// search.
func SearchContext(ctx context.Context, pos *Position, depth int, alpha, beta Score, maximizing bool, opts SearchOptions) (Score, error) {
	if depth < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	s := newSearcher(ctx, opts)
	return s.search(pos.Clone(), depth, alpha, beta, maximizing)
}

type searcher struct {
	ctx   context.Context
	opts  SearchOptions
	nodes int
}

func newSearcher(ctx context.Context, opts SearchOptions) *searcher {
	if ctx == nil {
		ctx = context.Background()
	}
	return &searcher{ctx: ctx, opts: opts}
}

func (s *searcher) search(pos *Position, depth int, alpha, beta Score, maximizing bool) (Score, error) {
	s.nodes++
	if s.nodes%nodeCheckInterval == 1 {
		if err := s.ctx.Err(); err != nil {
			return 0, err
		}
	}
	if depth <= 0 && s.opts.StaticTerminals {
		return Evaluate(pos), nil
	}

	moves := pos.board.GenerateLegalMoves()
	if len(moves) == 0 {
		return s.terminal(pos, depth), nil
	}
	if depth <= 0 {
		return Evaluate(pos), nil
	}

	best := Infinity
	if maximizing {
		best = -Infinity
	}
	for i := range moves {
		score, err := s.child(pos, moves[i], depth, alpha, beta, maximizing)
		if err != nil {
			return 0, err
		}
		if maximizing {
			if score > best {
				best = score
			}
			if best > alpha {
				alpha = best
			}
		} else {
			if score < best {
				best = score
			}
			if best < beta {
				beta = best
			}
		}
		if beta <= alpha {
			break
		}
	}
	return best, nil
}

func (s *searcher) child(pos *Position, m dragontoothmg.Move, depth int, alpha, beta Score, maximizing bool) (Score, error) {
	undo := pos.board.Apply(m)
	defer undo()
	return s.search(pos, depth-1, alpha, beta, !maximizing)
}

// terminal scores a node without legal moves. A mate found with more depth
// left is closer to the root and scores larger.
func (s *searcher) terminal(pos *Position, depth int) Score {
	if s.opts.StaticTerminals {
		return Evaluate(pos)
	}
	if !pos.board.OurKingInCheck() {
		return 0
	}
	if pos.Turn() == White {
		return -(MateScore + Score(depth))
	}
	return MateScore + Score(depth)
}

// rootScore applies m and searches the reply tree with a fresh window.
func (s *searcher) rootScore(pos *Position, m Move, depth int) (Score, error) {
	undo, err := pos.Apply(m)
	if err != nil {
		return 0, err
	}
	defer undo()
	return s.search(pos, depth-1, -Infinity, Infinity, pos.Turn() == White)
}

// bestMove scores every legal move and keeps the first one with the best
// score for the side to move.
func (s *searcher) bestMove(pos *Position, depth int) (Move, Score, bool, error) {
	if depth < 1 || depth > MaxSearchDepth {
		return Move{}, 0, false, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return Move{}, 0, false, nil
	}
	maximizing := pos.Turn() == White
	best := moves[0]
	bestScore := Infinity
	if maximizing {
		bestScore = -Infinity
	}
	for _, m := range moves {
		score, err := s.rootScore(pos, m, depth)
		if err != nil {
			return Move{}, 0, false, err
		}
		if (maximizing && score > bestScore) || (!maximizing && score < bestScore) {
			best, bestScore = m, score
		}
	}
	return best, bestScore, true, nil
}

// BestMove searches pos to depth and returns the best move for the side to
// move. ok is false when there is no legal move.
func BestMove(ctx context.Context, pos *Position, depth int, opts SearchOptions) (move Move, score Score, ok bool, err error) {
	s := newSearcher(ctx, opts)
	return s.bestMove(pos.Clone(), depth)
}
