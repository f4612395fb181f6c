package chess

import (
	"context"
	"math/rand"
	"testing"
)

const hangingQueenFEN = "6k1/5ppp/8/3q4/8/8/5PPP/3R2K1 w - - 0 1"

func TestEasyPicksUniformly(t *testing.T) {
	pos := mustPosition(t, "k7/8/8/8/8/8/8/K7 w - - 0 1")
	moves := pos.LegalMoves()
	if len(moves) != 3 {
		t.Fatalf("expected 3 legal moves, got %d", len(moves))
	}
	rng := rand.New(rand.NewSource(7))
	counts := map[string]int{}
	const samples = 3000
	for i := 0; i < samples; i++ {
		m, ok, err := PickMove(pos, DifficultyEasy, rng)
		if err != nil || !ok {
			t.Fatalf("PickMove: ok=%v err=%v", ok, err)
		}
		counts[m.UCI()]++
	}
	expected := samples / len(moves)
	for _, m := range moves {
		got := counts[m.UCI()]
		if got < expected*8/10 || got > expected*12/10 {
			t.Fatalf("move %s picked %d times, expected about %d (%v)", m.UCI(), got, expected, counts)
		}
	}
}

func TestDepthTwoTakesHangingQueen(t *testing.T) {
	pos := mustPosition(t, hangingQueenFEN)
	p := DifficultyPreset{Name: "depth2", Depth: 2}
	sel, ok, err := SelectMove(context.Background(), pos, p, rand.New(rand.NewSource(1)), SearchOptions{})
	if err != nil || !ok {
		t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
	}
	if sel.Move.UCI() != "d1d5" || sel.Random || !sel.Searched {
		t.Fatalf("expected searched d1d5, got %+v", sel)
	}
}

func TestExpertTakesHangingQueen(t *testing.T) {
	pos := mustPosition(t, hangingQueenFEN)
	m, ok, err := PickMove(pos, DifficultyExpert, rand.New(rand.NewSource(1)))
	if err != nil || !ok {
		t.Fatalf("PickMove: ok=%v err=%v", ok, err)
	}
	if m.UCI() != "d1d5" {
		t.Fatalf("expected d1d5, got %s", m.UCI())
	}
}

func TestMediumMixesRandomAndSearch(t *testing.T) {
	pos := mustPosition(t, hangingQueenFEN)
	preset, err := GetPreset(DifficultyMedium)
	if err != nil {
		t.Fatalf("GetPreset: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	random, searched := 0, 0
	for i := 0; i < 200; i++ {
		sel, ok, err := SelectMove(context.Background(), pos, preset, rng, SearchOptions{})
		if err != nil || !ok {
			t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
		}
		if sel.Random {
			random++
			continue
		}
		searched++
		if sel.Move.UCI() != "d1d5" {
			t.Fatalf("searched medium move should take the queen, got %s", sel.Move.UCI())
		}
	}
	if random < 60 || searched < 60 {
		t.Fatalf("expected a mix, got random=%d searched=%d", random, searched)
	}
}

func TestPickMoveWithoutLegalMoves(t *testing.T) {
	mated := mustPosition(t, "4R1k1/5ppp/8/8/8/8/5PPP/6K1 b - - 1 1")
	for _, tier := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert} {
		_, ok, err := PickMove(mated, tier, rand.New(rand.NewSource(3)))
		if err != nil || ok {
			t.Fatalf("%s: expected no move, got ok=%v err=%v", tier, ok, err)
		}
	}
}

func TestPickMoveLeavesPositionUntouched(t *testing.T) {
	pos := mustPosition(t, "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4")
	before := pos.Clone()
	rng := rand.New(rand.NewSource(5))
	for _, tier := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if _, _, err := PickMove(pos, tier, rng); err != nil {
			t.Fatalf("%s: %v", tier, err)
		}
		if !pos.Equal(before) {
			t.Fatalf("%s: position mutated to %s", tier, pos.FEN())
		}
	}
}
