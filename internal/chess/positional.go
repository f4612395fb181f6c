package chess

var centerSquares = map[Square]bool{
	NewSquare(3, 3): true, // d4
	NewSquare(3, 4): true, // d5
	NewSquare(4, 3): true, // e4
	NewSquare(4, 4): true, // e5
}

func backRank(c Color) int {
	if c == White {
		return 0
	}
	return 7
}

func (tc *tacticContext) detectCenterControl() (finding, bool) {
	if !centerSquares[tc.move.To] {
		return finding{}, false
	}
	return tc.found(TechniqueCenterControl, TierGood, "analysis.center", nil), true
}

func (tc *tacticContext) detectDevelopment() (finding, bool) {
	switch tc.move.Piece {
	case Knight, Bishop, Queen:
	default:
		return finding{}, false
	}
	home := backRank(tc.mover)
	if tc.move.From.Rank() != home || tc.move.To.Rank() == home {
		return finding{}, false
	}
	return tc.found(TechniquePieceDevelopment, TierGood, "analysis.development", nil), true
}

func (tc *tacticContext) detectKingSafety() (finding, bool) {
	m := tc.move
	if !m.IsCastle() {
		if m.Piece != King {
			return finding{}, false
		}
		df, dr := m.To.File()-m.From.File(), m.To.Rank()-m.From.Rank()
		if df < -1 || df > 1 || dr < -1 || dr > 1 {
			return finding{}, false
		}
	}
	return tc.found(TechniqueKingSafety, TierDecent, "analysis.king_safety", nil), true
}

func (tc *tacticContext) detectPawnStructure() (finding, bool) {
	if tc.move.Piece != Pawn || tc.move.IsCapture() {
		return finding{}, false
	}
	return tc.found(TechniquePawnStructure, TierDecent, "analysis.pawn_structure", nil), true
}
