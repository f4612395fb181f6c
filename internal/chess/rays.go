package chess

type direction struct{ df, dr int }

var (
	orthogonals = []direction{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
	diagonals   = []direction{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
)

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// moveDirection reduces a move to one of the eight compass steps. Knight
// jumps collapse onto the nearest diagonal.
func moveDirection(m Move) direction {
	return direction{sign(m.To.File() - m.From.File()), sign(m.To.Rank() - m.From.Rank())}
}

func (d direction) step(sq Square) (Square, bool) {
	f, r := sq.File()+d.df, sq.Rank()+d.dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return 0, false
	}
	return NewSquare(f, r), true
}

// firstOccupied walks from sq (exclusive) along d and returns the first
// occupied square.
func (p *Position) firstOccupied(sq Square, d direction) (Square, Piece, bool) {
	if d.df == 0 && d.dr == 0 {
		return 0, Piece{}, false
	}
	for {
		next, ok := d.step(sq)
		if !ok {
			return 0, Piece{}, false
		}
		if pc, occupied := p.PieceAt(next); occupied {
			return next, pc, true
		}
		sq = next
	}
}

// firstPieceOf walks from sq (exclusive) along d, stepping over pieces of the
// other color, and returns the first piece of color c.
func (p *Position) firstPieceOf(sq Square, d direction, c Color) (Square, Piece, bool) {
	for {
		next, pc, ok := p.firstOccupied(sq, d)
		if !ok {
			return 0, Piece{}, false
		}
		if pc.Color == c {
			return next, pc, true
		}
		sq = next
	}
}

func slidingDirections(kind PieceKind) []direction {
	switch kind {
	case Bishop:
		return diagonals
	case Rook:
		return orthogonals
	case Queen:
		out := make([]direction, 0, 8)
		out = append(out, orthogonals...)
		return append(out, diagonals...)
	}
	return nil
}

// rayPair is a line of two enemy pieces seen from a slider: front is the
// first piece hit, back the one directly behind it.
type rayPair struct {
	frontSq, backSq Square
	front, back     Piece
}

func (p *Position) enemyRayPairs(from Square, kind PieceKind, enemy Color) []rayPair {
	var out []rayPair
	for _, d := range slidingDirections(kind) {
		frontSq, front, ok := p.firstOccupied(from, d)
		if !ok || front.Color != enemy {
			continue
		}
		backSq, back, ok := p.firstOccupied(frontSq, d)
		if !ok || back.Color != enemy {
			continue
		}
		out = append(out, rayPair{frontSq: frontSq, backSq: backSq, front: front, back: back})
	}
	return out
}

// pieceMoveCount counts the legal moves of the piece on sq for the side to
// move.
func (p *Position) pieceMoveCount(sq Square) int {
	raw := p.board.GenerateLegalMoves()
	n := 0
	for i := range raw {
		if Square(raw[i].From()) == sq {
			n++
		}
	}
	return n
}

func (p *Position) kingSquare(c Color) (Square, bool) {
	for sq := Square(0); sq < 64; sq++ {
		if pc, ok := p.PieceAt(sq); ok && pc.Kind == King && pc.Color == c {
			return sq, true
		}
	}
	return 0, false
}

// attacks reports whether the piece on from hits to, ignoring pins and
// whose turn it is.
func (p *Position) attacks(from, to Square) bool {
	pc, ok := p.PieceAt(from)
	if !ok || from == to {
		return false
	}
	df, dr := to.File()-from.File(), to.Rank()-from.Rank()
	adf, adr := df, dr
	if adf < 0 {
		adf = -adf
	}
	if adr < 0 {
		adr = -adr
	}
	switch pc.Kind {
	case Pawn:
		forward := 1
		if pc.Color == Black {
			forward = -1
		}
		return adf == 1 && dr == forward
	case Knight:
		return (adf == 1 && adr == 2) || (adf == 2 && adr == 1)
	case King:
		return adf <= 1 && adr <= 1
	}
	d := direction{sign(df), sign(dr)}
	straight := adf == 0 || adr == 0
	diagonal := adf == adr
	switch {
	case pc.Kind == Rook && !straight, pc.Kind == Bishop && !diagonal, pc.Kind == Queen && !straight && !diagonal:
		return false
	}
	hit, _, found := p.firstOccupied(from, d)
	return found && hit == to
}
