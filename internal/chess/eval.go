package chess

import (
	"math/bits"

	"github.com/dylhunn/dragontoothmg"
)

// Score is a White-positive centipawn score.
type Score int

// Piece-square tables, written as seen from White with row 0 = rank 8.
var (
	pawnTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	knightTable = [64]int{
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	}
	bishopTable = [64]int{
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	}
	rookTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	}
	queenTable = [64]int{
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	}
	kingTable = [64]int{
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	}
)

// PlacementBonus returns the piece-square bonus of kind on sq for color.
// Black reads the table mirrored across the horizontal axis.
func PlacementBonus(kind PieceKind, color Color, sq Square) int {
	table := tableFor(kind)
	if table == nil {
		return 0
	}
	row := 7 - sq.Rank()
	if color == Black {
		row = sq.Rank()
	}
	return table[row*8+sq.File()]
}

func tableFor(kind PieceKind) *[64]int {
	switch kind {
	case Pawn:
		return &pawnTable
	case Knight:
		return &knightTable
	case Bishop:
		return &bishopTable
	case Rook:
		return &rookTable
	case Queen:
		return &queenTable
	case King:
		return &kingTable
	default:
		return nil
	}
}

// Evaluate sums material and placement, White minus Black. Terminal states
// get no special treatment.
func Evaluate(pos *Position) Score {
	return Score(sideScore(&pos.board.White, White) - sideScore(&pos.board.Black, Black))
}

func sideScore(bb *dragontoothmg.Bitboards, color Color) int {
	return kindScore(bb.Pawns, Pawn, color) +
		kindScore(bb.Knights, Knight, color) +
		kindScore(bb.Bishops, Bishop, color) +
		kindScore(bb.Rooks, Rook, color) +
		kindScore(bb.Queens, Queen, color) +
		kindScore(bb.Kings, King, color)
}

func kindScore(set uint64, kind PieceKind, color Color) int {
	total := 0
	value := kind.Value()
	for set != 0 {
		sq := Square(bits.TrailingZeros64(set))
		set &= set - 1
		total += value + PlacementBonus(kind, color, sq)
	}
	return total
}
