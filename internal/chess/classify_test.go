package chess

import (
	"strings"
	"testing"
)

func classify(t *testing.T, fen, uci string, score Score, opts ClassifyOptions) MoveAnalysis {
	t.Helper()
	pos := mustPosition(t, fen)
	before := pos.Clone()
	a, err := ClassifyMove(pos, mustMove(t, pos, uci), score, opts)
	if err != nil {
		t.Fatalf("ClassifyMove(%s): %v", uci, err)
	}
	if !pos.Equal(before) {
		t.Fatalf("ClassifyMove(%s) mutated the position", uci)
	}
	if strings.TrimSpace(a.Justification) == "" {
		t.Fatalf("ClassifyMove(%s) returned an empty justification", uci)
	}
	return a
}

func TestClassifyDecisionOrder(t *testing.T) {
	geometric := ClassifyOptions{Geometric: true}
	cases := []struct {
		name      string
		fen       string
		move      string
		opts      ClassifyOptions
		technique Technique
		tier      Tier
	}{
		{"checkmate", "6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1", "e1e8", ClassifyOptions{}, TechniqueCheckmate, TierWinning},
		{"check", "4k3/8/8/8/8/8/8/R3K3 w - - 0 1", "a1a8", ClassifyOptions{}, TechniqueCheck, TierExcellent},
		{"queen capture", hangingQueenFEN, "d1d5", ClassifyOptions{}, TechniqueMaterialGain, TierExcellent},
		{"knight capture", "4k3/8/8/3n4/8/8/8/3RK3 w - - 0 1", "d1d5", ClassifyOptions{}, TechniqueMinorPieceCapture, TierVeryGood},
		{"pawn capture", "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1", "e4d5", ClassifyOptions{}, TechniquePawnCapture, TierGood},
		{"en passant counts as capture", "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1", "e5d6", ClassifyOptions{}, TechniquePawnCapture, TierGood},
		{"castling", "4k3/8/8/8/8/8/8/4K2R w K - 0 1", "e1g1", ClassifyOptions{}, TechniqueCastling, TierGood},
		{"promotion", "8/P7/7k/8/8/8/8/4K3 w - - 0 1", "a7a8q", ClassifyOptions{}, TechniquePawnPromotion, TierExcellent},
		{"fork", "7k/2r1q3/8/8/8/2N5/8/6K1 w - - 0 1", "c3d5", ClassifyOptions{}, TechniqueFork, TierExcellent},
		{"center", StartFEN, "e2e4", geometric, TechniqueCenterControl, TierGood},
		{"development", StartFEN, "g1f3", geometric, TechniquePieceDevelopment, TierGood},
		{"king safety", "4k3/8/8/8/8/8/8/4K3 w - - 0 1", "e1e2", geometric, TechniqueKingSafety, TierDecent},
		{"pawn structure", StartFEN, "a2a3", geometric, TechniquePawnStructure, TierDecent},
	}
	for _, tc := range cases {
		a := classify(t, tc.fen, tc.move, 0, tc.opts)
		if a.Technique != tc.technique || a.Tier != tc.tier {
			t.Fatalf("%s: got %s/%s want %s/%s (%q)", tc.name, a.Technique, a.Tier, tc.technique, tc.tier, a.Justification)
		}
	}
}

func TestClassifyForkNamesBothPieces(t *testing.T) {
	a := classify(t, "7k/2r1q3/8/8/8/2N5/8/6K1 w - - 0 1", "c3d5", 0, ClassifyOptions{})
	if a.Technique != TechniqueFork {
		t.Fatalf("expected Fork, got %s", a.Technique)
	}
	text := a.Justification
	if !strings.Contains(text, "Queen will likely be saved") || !strings.Contains(text, "Rook is lost") {
		t.Fatalf("unexpected fork justification: %q", text)
	}
}

func TestClassifyForkNeedsNewTargets(t *testing.T) {
	// The queen already hit the a8 rook from a1; only the knight is new.
	a := classify(t, "r6k/8/8/8/4n3/8/8/Q5K1 w - - 0 1", "a1a4", 0, ClassifyOptions{})
	if a.Technique == TechniqueFork || a.Technique == TechniqueSkewer {
		t.Fatalf("expected no fork, got %s %q", a.Technique, a.Justification)
	}
}

func TestClassifyRoyalForkIsCheck(t *testing.T) {
	// Knight forks king and rook. Check outranks the fork, so the move is
	// tagged Check and the forked rook is named in the text.
	a := classify(t, "r3k3/8/8/1N6/8/8/8/4K3 w - - 0 1", "b5c7", 0, ClassifyOptions{})
	if a.Technique != TechniqueCheck {
		t.Fatalf("expected Check, got %s", a.Technique)
	}
	if !strings.Contains(a.Justification, "Rook") {
		t.Fatalf("expected the forked rook to be named: %q", a.Justification)
	}
}

func TestClassifyPinHeuristicAndGeometric(t *testing.T) {
	const fen = "4k3/8/4n3/8/8/8/R7/6K1 w - - 0 1"
	heuristic := classify(t, fen, "a2e2", 0, ClassifyOptions{})
	if heuristic.Technique != TechniquePin || !strings.Contains(heuristic.Justification, "Knight") {
		t.Fatalf("heuristic: got %s %q", heuristic.Technique, heuristic.Justification)
	}
	ray := classify(t, fen, "a2e2", 0, ClassifyOptions{Geometric: true})
	if ray.Technique != TechniquePin || !strings.Contains(ray.Justification, "against the King") {
		t.Fatalf("geometric: got %s %q", ray.Technique, ray.Justification)
	}
}

func TestClassifyHeuristicPinCountsKing(t *testing.T) {
	a := classify(t, "7k/6pp/8/8/8/8/8/K7 w - - 0 1", "a1b1", 0, ClassifyOptions{})
	if a.Technique != TechniquePin || !strings.Contains(a.Justification, "King on h8") {
		t.Fatalf("expected heuristic pin on the h8 king, got %s %q", a.Technique, a.Justification)
	}
}

func TestFirstPieceOfSkipsOwnPieces(t *testing.T) {
	pos := mustPosition(t, "4k3/8/8/8/8/8/8/N1P1r1K1 w - - 0 1")
	east := direction{1, 0}
	sq, pc, ok := pos.firstOccupied(NewSquare(0, 0), east)
	if !ok || sq != NewSquare(2, 0) || pc.Kind != Pawn {
		t.Fatalf("firstOccupied: got %s %v %v", sq, pc, ok)
	}
	sq, pc, ok = pos.firstPieceOf(NewSquare(0, 0), east, Black)
	if !ok || sq != NewSquare(4, 0) || pc.Kind != Rook {
		t.Fatalf("firstPieceOf: got %s %v %v", sq, pc, ok)
	}
	if _, _, ok := pos.firstPieceOf(NewSquare(4, 0), east, Black); ok {
		t.Fatalf("firstPieceOf should find no black piece east of e1")
	}
}

func TestClassifyHeuristicPinFalsePositive(t *testing.T) {
	// The cornered a8 rook has no moves and reads as pinned.
	a := classify(t, StartFEN, "g1f3", 0, ClassifyOptions{})
	if a.Technique != TechniquePin || !strings.Contains(a.Justification, "a8") {
		t.Fatalf("expected heuristic pin on a8, got %s %q", a.Technique, a.Justification)
	}
}

func TestClassifyGeometricSkewer(t *testing.T) {
	a := classify(t, "4r1k1/8/8/8/4q3/8/8/R5K1 w - - 0 1", "a1e1", 0, ClassifyOptions{Geometric: true})
	if a.Technique != TechniqueSkewer {
		t.Fatalf("expected Skewer, got %s %q", a.Technique, a.Justification)
	}
	if !strings.Contains(a.Justification, "Queen") || !strings.Contains(a.Justification, "Rook") {
		t.Fatalf("unexpected skewer justification: %q", a.Justification)
	}
}

func TestClassifyDiscoveredAttack(t *testing.T) {
	a := classify(t, "r5k1/8/8/8/N7/8/8/R5K1 w - - 0 1", "a4c5", 0, ClassifyOptions{})
	if a.Technique != TechniqueDiscoveredAttack {
		t.Fatalf("expected Discovered Attack, got %s %q", a.Technique, a.Justification)
	}
}

func TestDeflectionAndDecoyDetectors(t *testing.T) {
	pos := mustPosition(t, "4k3/8/8/3q4/4P3/8/8/4K3 w - - 0 1")
	newContext := func(uci string) *tacticContext {
		m := mustMove(t, pos, uci)
		after := pos.Clone()
		if _, err := after.Apply(m); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		return &tacticContext{before: pos.Clone(), after: after, move: m, mover: White}
	}

	capture := newContext("e4d5")
	if _, ok := capture.detectDeflection(); !ok {
		t.Fatalf("capture should count as deflection")
	}
	if f, ok := capture.detectDecoy(); !ok || f.technique != TechniqueDecoy {
		t.Fatalf("pawn takes queen should count as decoy")
	}

	quiet := newContext("e1f1")
	if _, ok := quiet.detectDeflection(); ok {
		t.Fatalf("quiet king move is not a deflection")
	}
	if _, ok := quiet.detectDecoy(); ok {
		t.Fatalf("quiet king move is not a decoy")
	}
}

func TestClassifyGenericBands(t *testing.T) {
	const fen = "4k3/8/8/8/8/8/8/R3K3 w - - 0 1"
	cases := []struct {
		score Score
		tier  Tier
	}{
		{950, TierExcellent},
		{-600, TierVeryGood},
		{300, TierGood},
		{1, TierDecent},
		{0, TierNeutral},
	}
	for _, tc := range cases {
		a := classify(t, fen, "a1a2", tc.score, ClassifyOptions{Geometric: true})
		if a.Technique != TechniqueNone || a.Tier != tc.tier {
			t.Fatalf("score %d: got %s/%s want none/%s", tc.score, a.Technique, a.Tier, tc.tier)
		}
	}
}

type stubRenderer struct{ keys []string }

func (s *stubRenderer) Render(key string, data any) (string, error) {
	s.keys = append(s.keys, key)
	return "stub:" + key, nil
}

func TestClassifyUsesInjectedMessages(t *testing.T) {
	r := &stubRenderer{}
	a := classify(t, hangingQueenFEN, "d1d5", 0, ClassifyOptions{Messages: r})
	if a.Justification != "stub:analysis.capture_major" {
		t.Fatalf("unexpected justification %q", a.Justification)
	}
}
