package chess

import (
	"context"
	"errors"
	"testing"
)

// minimax is the unpruned reference search.
func minimax(pos *Position, depth int, maximizing bool, opts SearchOptions) Score {
	ref := &searcher{ctx: context.Background(), opts: opts}
	if depth <= 0 && opts.StaticTerminals {
		return Evaluate(pos)
	}
	moves := pos.board.GenerateLegalMoves()
	if len(moves) == 0 {
		return ref.terminal(pos, depth)
	}
	if depth <= 0 {
		return Evaluate(pos)
	}
	best := Infinity
	if maximizing {
		best = -Infinity
	}
	for i := range moves {
		undo := pos.board.Apply(moves[i])
		score := minimax(pos, depth-1, !maximizing, opts)
		undo()
		if maximizing && score > best {
			best = score
		}
		if !maximizing && score < best {
			best = score
		}
	}
	return best
}

var smallPositions = []string{
	"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1",
	"6k1/5ppp/8/3q4/8/8/5PPP/3R2K1 w - - 0 1",
	"6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1",
	"r3k3/8/8/1N6/8/8/8/4K3 w - - 0 1",
	"8/8/4k3/3p4/4P3/3K4/8/8 b - - 0 1",
	"7k/5Q2/8/6K1/8/8/8/8 w - - 0 1",
}

func TestAlphaBetaMatchesMinimax(t *testing.T) {
	for _, opts := range []SearchOptions{{}, {StaticTerminals: true}} {
		for _, fen := range smallPositions {
			pos := mustPosition(t, fen)
			maximizing := pos.Turn() == White
			for depth := 0; depth <= 3; depth++ {
				got, err := SearchContext(context.Background(), pos, depth, -Infinity, Infinity, maximizing, opts)
				if err != nil {
					t.Fatalf("%s depth %d: %v", fen, depth, err)
				}
				want := minimax(pos.Clone(), depth, maximizing, opts)
				if got != want {
					t.Fatalf("%s depth %d static=%v: alpha-beta %d, minimax %d", fen, depth, opts.StaticTerminals, got, want)
				}
			}
		}
	}
}

func TestSearchRootEqualsBestChild(t *testing.T) {
	pos := mustPosition(t, "6k1/5ppp/8/3q4/8/8/5PPP/3R2K1 w - - 0 1")
	root := Search(pos, 2, -Infinity, Infinity, true)
	best := -Infinity
	for _, m := range pos.LegalMoves() {
		child := pos.Clone()
		if _, err := child.Apply(m); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if s := Search(child, 1, -Infinity, Infinity, false); s > best {
			best = s
		}
	}
	if root != best {
		t.Fatalf("root %d, best child %d", root, best)
	}
}

func TestSearchScoresMateAndStalemate(t *testing.T) {
	mated := mustPosition(t, "4R1k1/5ppp/8/8/8/8/5PPP/6K1 b - - 1 1")
	if got := Search(mated, 2, -Infinity, Infinity, false); got != MateScore+2 {
		t.Fatalf("expected %d for black mated, got %d", MateScore+2, got)
	}
	static, err := SearchContext(context.Background(), mated, 2, -Infinity, Infinity, false, SearchOptions{StaticTerminals: true})
	if err != nil {
		t.Fatalf("SearchContext: %v", err)
	}
	if static != Evaluate(mated) {
		t.Fatalf("static terminal: expected %d, got %d", Evaluate(mated), static)
	}

	stale := mustPosition(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if got := Search(stale, 3, -Infinity, Infinity, false); got != 0 {
		t.Fatalf("expected 0 for stalemate, got %d", got)
	}
}

func TestSearchPrefersFasterMate(t *testing.T) {
	// Qg7 mates at once; slower mates score lower.
	pos := mustPosition(t, "7k/8/5KQ1/8/8/8/8/8 w - - 0 1")
	m, score, ok, err := BestMove(context.Background(), pos, 3, SearchOptions{})
	if err != nil || !ok {
		t.Fatalf("BestMove: ok=%v err=%v", ok, err)
	}
	after := pos.Clone()
	if _, err := after.Apply(m); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !after.IsCheckmate() {
		t.Fatalf("expected an immediate mate, got %s (score %d)", m.UCI(), score)
	}
	if score != MateScore+2 {
		t.Fatalf("expected score %d, got %d", MateScore+2, score)
	}
}

func TestSearchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pos := StartPosition()
	before := pos.Clone()
	if _, err := SearchContext(ctx, pos, 3, -Infinity, Infinity, true, SearchOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, _, _, err := BestMove(ctx, pos, 3, SearchOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from BestMove, got %v", err)
	}
	if !pos.Equal(before) {
		t.Fatalf("canceled search leaked a mutation")
	}
}

func TestSearchRejectsBadDepth(t *testing.T) {
	if _, err := SearchContext(context.Background(), StartPosition(), -1, -Infinity, Infinity, true, SearchOptions{}); !errors.Is(err, ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}
	if _, _, _, err := BestMove(context.Background(), StartPosition(), 0, SearchOptions{}); !errors.Is(err, ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}
}

func TestBestMoveKeepsFirstOnTies(t *testing.T) {
	// Bare kings: every move evaluates by placement only, ties resolve to the
	// earliest generated move among the best.
	pos := mustPosition(t, "4k3/8/8/8/8/8/8/K7 w - - 0 1")
	m, score, ok, err := BestMove(context.Background(), pos, 1, SearchOptions{})
	if err != nil || !ok {
		t.Fatalf("BestMove: ok=%v err=%v", ok, err)
	}
	for _, cand := range pos.LegalMoves() {
		child := pos.Clone()
		if _, err := child.Apply(cand); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		s := Evaluate(child)
		if s > score {
			t.Fatalf("%s scores %d above chosen %s (%d)", cand.UCI(), s, m.UCI(), score)
		}
		if s == score {
			if cand.UCI() != m.UCI() {
				t.Fatalf("tie not broken by generation order: first best %s, chosen %s", cand.UCI(), m.UCI())
			}
			break
		}
	}
}
