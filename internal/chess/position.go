package chess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrInvalidFEN   = errors.New("invalid fen")
	ErrIllegalMove  = errors.New("illegal move")
	ErrNoLegalMoves = errors.New("no legal moves")
)

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceKindNames = [...]string{"", "pawn", "knight", "bishop", "rook", "queen", "king"}

func (k PieceKind) String() string {
	if int(k) < len(pieceKindNames) {
		return pieceKindNames[k]
	}
	return ""
}

// Value is the material value used by the evaluator and the classifier.
func (k PieceKind) Value() int {
	switch k {
	case Pawn:
		return 100
	case Knight:
		return 320
	case Bishop:
		return 330
	case Rook:
		return 500
	case Queen:
		return 900
	case King:
		return 20000
	default:
		return 0
	}
}

type Piece struct {
	Kind  PieceKind
	Color Color
}

// Square indexes the board from a1 (0) to h8 (63).
type Square uint8

func NewSquare(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) String() string {
	if s > 63 {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

func ParseSquare(text string) (Square, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) != 2 || t[0] < 'a' || t[0] > 'h' || t[1] < '1' || t[1] > '8' {
		return 0, fmt.Errorf("invalid square: %q", text)
	}
	return NewSquare(int(t[0]-'a'), int(t[1]-'1')), nil
}

type MoveFlag uint8

const (
	FlagCapture MoveFlag = 1 << iota
	FlagCastleKingside
	FlagCastleQueenside
	FlagEnPassant
	FlagPromotion
)

// Move is a legal move annotated with the pieces involved.
type Move struct {
	From      Square
	To        Square
	Piece     PieceKind
	Captured  PieceKind
	Promotion PieceKind
	Flags     MoveFlag

	raw dragontoothmg.Move
}

func (m Move) Has(f MoveFlag) bool { return m.Flags&f != 0 }
func (m Move) IsCapture() bool     { return m.Has(FlagCapture) }
func (m Move) IsCastle() bool      { return m.Has(FlagCastleKingside | FlagCastleQueenside) }

func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	switch m.Promotion {
	case Queen:
		s += "q"
	case Rook:
		s += "r"
	case Bishop:
		s += "b"
	case Knight:
		s += "n"
	}
	return s
}

func (m Move) String() string { return m.UCI() }

// Position is a board state backed by dragontoothmg. It is a plain value:
// copying it copies the whole board.
type Position struct {
	board dragontoothmg.Board
}

func StartPosition() *Position {
	return &Position{board: dragontoothmg.ParseFen(StartFEN)}
}

// ParsePosition validates the piece placement before handing the FEN to the
// move generator, which assumes one king per side.
func ParsePosition(fen string) (pos *Position, err error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fmt.Errorf("%w: expected 4 to 6 fields, got %d", ErrInvalidFEN, len(fields))
	}
	for len(fields) < 6 {
		if len(fields) == 4 {
			fields = append(fields, "0")
		} else {
			fields = append(fields, "1")
		}
	}
	if err := validatePlacement(fields[0]); err != nil {
		return nil, err
	}
	if fields[1] != "w" && fields[1] != "b" {
		return nil, fmt.Errorf("%w: side to move %q", ErrInvalidFEN, fields[1])
	}
	if fields[3] != "-" {
		if _, err := ParseSquare(fields[3]); err != nil {
			return nil, fmt.Errorf("%w: en passant square %q", ErrInvalidFEN, fields[3])
		}
	}

	defer func() {
		if r := recover(); r != nil {
			pos = nil
			err = fmt.Errorf("%w: %v", ErrInvalidFEN, r)
		}
	}()
	board := dragontoothmg.ParseFen(strings.Join(fields, " "))
	return &Position{board: board}, nil
}

func validatePlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	kings := map[rune]int{}
	for i, rank := range ranks {
		width := 0
		for _, r := range rank {
			switch {
			case r >= '1' && r <= '8':
				width += int(r - '0')
			case strings.ContainsRune("pnbrqkPNBRQK", r):
				if (r == 'p' || r == 'P') && (i == 0 || i == 7) {
					return fmt.Errorf("%w: pawn on back rank", ErrInvalidFEN)
				}
				if r == 'k' || r == 'K' {
					kings[r]++
				}
				width++
			default:
				return fmt.Errorf("%w: unexpected %q in placement", ErrInvalidFEN, r)
			}
		}
		if width != 8 {
			return fmt.Errorf("%w: rank %d has %d squares", ErrInvalidFEN, 8-i, width)
		}
	}
	if kings['K'] != 1 || kings['k'] != 1 {
		return fmt.Errorf("%w: each side needs exactly one king", ErrInvalidFEN)
	}
	return nil
}

func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// Equal reports whether both positions have identical board state, side to
// move, rights and counters.
func (p *Position) Equal(o *Position) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.board == o.board
}

func (p *Position) FEN() string { return p.board.ToFen() }

func (p *Position) Turn() Color {
	if p.board.Wtomove {
		return White
	}
	return Black
}

func (p *Position) InCheck() bool { return p.board.OurKingInCheck() }

func (p *Position) IsCheckmate() bool {
	return p.board.OurKingInCheck() && len(p.board.GenerateLegalMoves()) == 0
}

func (p *Position) IsStalemate() bool {
	return !p.board.OurKingInCheck() && len(p.board.GenerateLegalMoves()) == 0
}

func (p *Position) PieceAt(sq Square) (Piece, bool) {
	if sq > 63 {
		return Piece{}, false
	}
	if kind := kindOn(&p.board.White, uint8(sq)); kind != NoPiece {
		return Piece{Kind: kind, Color: White}, true
	}
	if kind := kindOn(&p.board.Black, uint8(sq)); kind != NoPiece {
		return Piece{Kind: kind, Color: Black}, true
	}
	return Piece{}, false
}

func kindOn(bb *dragontoothmg.Bitboards, sq uint8) PieceKind {
	mask := uint64(1) << sq
	switch {
	case bb.All&mask == 0:
		return NoPiece
	case bb.Pawns&mask != 0:
		return Pawn
	case bb.Knights&mask != 0:
		return Knight
	case bb.Bishops&mask != 0:
		return Bishop
	case bb.Rooks&mask != 0:
		return Rook
	case bb.Queens&mask != 0:
		return Queen
	case bb.Kings&mask != 0:
		return King
	}
	return NoPiece
}

func (p *Position) sides() (own, enemy *dragontoothmg.Bitboards) {
	if p.board.Wtomove {
		return &p.board.White, &p.board.Black
	}
	return &p.board.Black, &p.board.White
}

// LegalMoves returns the legal moves in generation order.
func (p *Position) LegalMoves() []Move {
	raw := p.board.GenerateLegalMoves()
	moves := make([]Move, 0, len(raw))
	for i := range raw {
		moves = append(moves, p.describe(raw[i]))
	}
	return moves
}

func (p *Position) describe(raw dragontoothmg.Move) Move {
	own, enemy := p.sides()
	from, to := raw.From(), raw.To()
	m := Move{
		From:  Square(from),
		To:    Square(to),
		Piece: kindOn(own, from),
		raw:   raw,
	}
	if captured := kindOn(enemy, to); captured != NoPiece {
		m.Captured = captured
		m.Flags |= FlagCapture
	}
	switch m.Piece {
	case Pawn:
		if m.Captured == NoPiece && m.From.File() != m.To.File() {
			m.Captured = Pawn
			m.Flags |= FlagCapture | FlagEnPassant
		}
	case King:
		switch m.To.File() - m.From.File() {
		case 2:
			m.Flags |= FlagCastleKingside
		case -2:
			m.Flags |= FlagCastleQueenside
		}
	}
	if promo := fromEnginePiece(raw.Promote()); promo != NoPiece {
		m.Promotion = promo
		m.Flags |= FlagPromotion
	}
	return m
}

func fromEnginePiece(p dragontoothmg.Piece) PieceKind {
	switch p {
	case dragontoothmg.Pawn:
		return Pawn
	case dragontoothmg.Knight:
		return Knight
	case dragontoothmg.Bishop:
		return Bishop
	case dragontoothmg.Rook:
		return Rook
	case dragontoothmg.Queen:
		return Queen
	case dragontoothmg.King:
		return King
	default:
		return NoPiece
	}
}

// MoveFromUCI resolves a UCI string against the legal moves of the position.
func (p *Position) MoveFromUCI(text string) (Move, error) {
	want := strings.ToLower(strings.TrimSpace(text))
	for _, m := range p.LegalMoves() {
		if m.UCI() == want {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, text)
}

// Apply plays m and returns the closure that restores the previous state.
func (p *Position) Apply(m Move) (func(), error) {
	own, _ := p.sides()
	if m.raw == 0 || own.All&(uint64(1)<<uint8(m.From)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
	}
	return p.board.Apply(m.raw), nil
}

// withMoverToMove returns a copy with the side to move flipped, used to ask
// what the side that just moved could do next.
func (p *Position) withMoverToMove() *Position {
	c := p.Clone()
	c.board.Wtomove = !c.board.Wtomove
	return c
}

// captureTargets lists the squares of enemy pieces the side to move can
// legally capture, keyed by origin square.
func (p *Position) captureTargets() map[Square][]Square {
	_, enemy := p.sides()
	out := map[Square][]Square{}
	raw := p.board.GenerateLegalMoves()
	for i := range raw {
		to := raw[i].To()
		if enemy.All&(uint64(1)<<to) == 0 {
			continue
		}
		from := Square(raw[i].From())
		if containsSquare(out[from], Square(to)) {
			continue
		}
		out[from] = append(out[from], Square(to))
	}
	return out
}

func containsSquare(list []Square, sq Square) bool {
	for _, s := range list {
		if s == sq {
			return true
		}
	}
	return false
}
