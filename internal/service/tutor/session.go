package tutor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/domain"
	"go.uber.org/zap"
)

const (
	playerLabelRuneLimit  = 24
	defaultHUDPlayerLabel = "Player"
)

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

type sessionPayload struct {
	SessionUUID     string    `json:"session_uuid"`
	PlayerHash      string    `json:"player_hash"`
	RoomHash        string    `json:"room_hash"`
	PlayerName      string    `json:"player_name,omitempty"`
	Difficulty      string    `json:"difficulty"`
	Moves           []string  `json:"moves"`
	AutoAdvice      bool      `json:"auto_advice,omitempty"`
	HintsUsed       int       `json:"hints_used,omitempty"`
	Blunders        int       `json:"blunders,omitempty"`
	Undos           int       `json:"undos,omitempty"`
	EngineLatencyMS int64     `json:"engine_latency_ms,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (p *sessionPayload) clone() *sessionPayload {
	c := *p
	c.Moves = append([]string(nil), p.Moves...)
	return &c
}

type SessionState struct {
	SessionUUID   string
	PlayerName    string
	Difficulty    string
	Moves         []string
	MovesSAN      []string
	FEN           string
	BoardImage    []byte
	Turn          string
	MoveCount     int
	Outcome       nchess.Outcome
	OutcomeMethod nchess.Method
	StartedAt     time.Time
	UpdatedAt     time.Time
	RatingDelta   int
	Profile       *domain.TutorProfile
	Material      MaterialScore
	AutoAdvice    bool
	HintsUsed     int
	Blunders      int
}

type MoveSummary struct {
	State        *SessionState
	PlayerSAN    string
	PlayerUCI    string
	PlayerReview *corechess.MoveAnalysis
	BlunderLoss  corechess.Score
	EngineSAN    string
	EngineUCI    string
	EngineScore  corechess.Score
	EngineRandom bool
	Finished     bool
	GameID       int64
	Profile      *domain.TutorProfile
	RatingDelta  int
	Material     MaterialScore

	// Advice is set when auto-analysis ran inline; AdvicePending when it was
	// handed to the debouncer and will arrive through the notifier.
	Advice        *Advice
	AdvicePending bool

	engineHighlight *MoveHighlight
}

// MaterialScore sums pawn units left on the board per side.
type MaterialScore struct {
	White int
	Black int
}

func (m MaterialScore) Diff() int {
	return m.White - m.Black
}

func replaySession(payload *sessionPayload) (*nchess.Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, mv := range payload.Moves {
		move, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func sanMoves(game *nchess.Game) []string {
	positions := game.Positions()
	moves := game.Moves()
	out := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, notation.Encode(positions[i], mv))
	}
	return out
}

func (s *Service) stateFromGame(payload *sessionPayload, game *nchess.Game) *SessionState {
	return &SessionState{
		SessionUUID:   payload.SessionUUID,
		PlayerName:    payload.PlayerName,
		Difficulty:    payload.Difficulty,
		Moves:         append([]string(nil), payload.Moves...),
		MovesSAN:      sanMoves(game),
		FEN:           game.FEN(),
		Turn:          colorName(game.Position().Turn()),
		MoveCount:     len(game.Moves()),
		Outcome:       game.Outcome(),
		OutcomeMethod: game.Method(),
		StartedAt:     payload.StartedAt,
		UpdatedAt:     payload.UpdatedAt,
		Material:      computeMaterial(game.Position()),
		AutoAdvice:    payload.AutoAdvice,
		HintsUsed:     payload.HintsUsed,
		Blunders:      payload.Blunders,
	}
}

// MethodName renders how a game ended in lower-case words, e.g.
// "threefold repetition".
func MethodName(m nchess.Method) string {
	raw := m.String()
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

func computeMaterial(position *nchess.Position) MaterialScore {
	var score MaterialScore
	if position == nil {
		return score
	}
	for _, piece := range position.Board().SquareMap() {
		switch piece.Color() {
		case nchess.White:
			score.White += pieceValues[piece.Type()]
		case nchess.Black:
			score.Black += pieceValues[piece.Type()]
		}
	}
	return score
}

func normalizeHUDPlayerLabel(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return ""
	}
	runes := []rune(cleaned)
	if len(runes) <= playerLabelRuneLimit {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:playerLabelRuneLimit])) + "..."
}

func (s *Service) applyPlayerName(state *SessionState, payload *sessionPayload, meta SessionMeta) {
	label := normalizeHUDPlayerLabel(payload.PlayerName)
	if label == "" {
		label = normalizeHUDPlayerLabel(meta.Sender)
	}
	if label == "" {
		label = defaultHUDPlayerLabel
	}
	state.PlayerName = label
	payload.PlayerName = label
}

func (s *Service) attachBoardImage(ctx context.Context, state *SessionState, position *nchess.Position, opts RenderOptions) {
	if state == nil || position == nil {
		return
	}
	moveNumber := state.MoveCount/2 + 1
	opts.Material = state.Material
	opts.HUDHeader = fmt.Sprintf("%s vs Tutor (%s)", state.PlayerName, state.Difficulty)
	opts.HUDTurn = fmt.Sprintf("Move %d", moveNumber)
	switch state.Turn {
	case "white":
		opts.HUDTurn = fmt.Sprintf("White to move - %d", moveNumber)
	case "black":
		opts.HUDTurn = fmt.Sprintf("Black to move - %d", moveNumber)
	}
	if state.Outcome != nchess.NoOutcome {
		opts.HUDTurn = fmt.Sprintf("%s (%s)", state.Outcome, MethodName(state.OutcomeMethod))
	}
	data, err := s.renderer.RenderPNG(ctx, position.Board(), opts)
	if err != nil {
		s.logger.Warn("tutor_board_render_failed", zap.Error(err))
		return
	}
	state.BoardImage = data
}

func pieceMatchesColor(position *nchess.Position, square nchess.Square, color nchess.Color) bool {
	if position == nil {
		return false
	}
	piece := position.Board().Piece(square)
	return piece != nchess.NoPiece && piece.Color() == color
}

var ecoBook = sync.OnceValue(opening.NewBookECO)

// openingLabel names the deepest ECO opening matching the game so far.
func openingLabel(game *nchess.Game) string {
	if game == nil {
		return ""
	}
	book := ecoBook()
	if book == nil {
		return ""
	}
	eco := book.Find(game.Moves())
	if eco == nil {
		return ""
	}
	return eco.Code() + " " + eco.Title()
}

func (s *Service) logOpeningLabel(game *nchess.Game, moveUCI, difficulty string) {
	if len(game.Moves()) > 24 {
		return
	}
	s.logger.Debug("tutor_opening_label",
		zap.String("eco", openingLabel(game)),
		zap.String("difficulty", difficulty),
		zap.Int("ply", len(game.Moves())+1),
		zap.String("move_uci", moveUCI),
	)
}
