package main

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-tutor/internal/adapter/tutorpresenter"
	"github.com/park285/cheese-chess-tutor/internal/domain"
	"github.com/park285/cheese-chess-tutor/internal/irisfast"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
)

const commandTimeout = 30 * time.Second

var movePattern = regexp.MustCompile(`^(?:[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=?[QRBNqrbn])?|[Oo0]-[Oo0](?:-[Oo0])?|[a-h][1-8][a-h][1-8][qrbn]?)[+#]?[!?]*$`)

// tutorService is the part of the tutor service the chat commands drive.
type tutorService interface {
	StartSession(ctx context.Context, meta svc.SessionMeta, difficulty string, autoAdvice bool) (*svc.SessionState, error)
	Status(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	Play(ctx context.Context, meta svc.SessionMeta, moveInput string) (*svc.MoveSummary, error)
	Advise(ctx context.Context, meta svc.SessionMeta, depth int) (*svc.Advice, error)
	Undo(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	Resign(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	History(ctx context.Context, meta svc.SessionMeta, limit int) ([]*domain.TutorGame, error)
	Game(ctx context.Context, meta svc.SessionMeta, id int64) (*domain.TutorGame, error)
	Profile(ctx context.Context, meta svc.SessionMeta) (*domain.TutorProfile, error)
	UpdatePreferredDifficulty(ctx context.Context, meta svc.SessionMeta, difficulty string) (*domain.TutorProfile, error)
}

type prefixProvider struct{ prefix string }

func (p prefixProvider) Prefix() string { return p.prefix }

type handler struct {
	prefix    string
	tutor     tutorService
	presenter *tutorpresenter.Presenter
	formatter *tutorpresenter.Formatter
	logger    *zap.Logger
}

func newHandler(prefix string, tutor tutorService, egress irisfast.Egress, formatter *tutorpresenter.Formatter, logger *zap.Logger) *handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	presenter := tutorpresenter.NewPresenter(
		func(room, message string) error { return egress.SendText(context.Background(), room, message) },
		func(room, imageBase64 string) error { return egress.SendImage(context.Background(), room, imageBase64) },
	)
	return &handler{prefix: prefix, tutor: tutor, presenter: presenter, formatter: formatter, logger: logger}
}

// accepts reports whether text is addressed to the bot.
func (h *handler) accepts(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, h.prefix) {
		return false
	}
	rest := text[len(h.prefix):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// notifyAdvice delivers debounced auto-analysis to the player's room.
func (h *handler) notifyAdvice(meta svc.SessionMeta, advice *svc.Advice) {
	dto := tutorpresenter.ToDTOAdvice(advice)
	if err := h.presenter.Advice(meta.Room, h.formatter.Advice(dto), dto); err != nil {
		h.logger.Warn("auto_advice_send_failed", zap.Error(err), zap.String("room", meta.Room))
	}
}

func (h *handler) handle(ctx context.Context, msg *irisfast.Message) {
	if msg == nil || !h.accepts(msg.Msg) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), h.prefix))
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		h.text(msg.Room, h.formatter.Help())
		return
	}
	token := fields[0]
	args := fields[1:]
	meta := svc.SessionMeta{
		SessionID: sessionIDFor(msg),
		Room:      msg.Room,
		Sender:    msg.SenderName(),
	}
	start := time.Now()
	cmd := strings.ToLower(token)
	err := h.dispatch(ctx, meta, token, args)
	if err != nil {
		derr := tutorpresenter.ToDomainError(err)
		if derr.Code == "internal" {
			h.logger.Error("command_failed", zap.String("cmd", cmd), zap.String("room", msg.Room), zap.Error(err))
		} else {
			h.logger.Debug("command_rejected", zap.String("cmd", cmd), zap.String("code", derr.Code))
		}
		h.text(msg.Room, h.formatter.Error(derr))
		return
	}
	h.logger.Debug("command_done", zap.String("cmd", cmd), zap.Duration("took", time.Since(start)))
}

func (h *handler) dispatch(ctx context.Context, meta svc.SessionMeta, token string, args []string) error {
	room := meta.Room
	switch strings.ToLower(token) {
	case "help":
		h.text(room, h.formatter.Help())
	case "start", "new":
		difficulty, auto := parseStartArgs(args)
		state, err := h.tutor.StartSession(ctx, meta, difficulty, auto)
		resumed := errors.Is(err, svc.ErrSessionInProgress) && state != nil
		if err != nil && !resumed {
			return err
		}
		dto := tutorpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Start(dto, resumed), dto)
	case "move", "m":
		if len(args) == 0 {
			return svc.ErrInvalidMove
		}
		return h.play(ctx, meta, args[0])
	case "hint", "advice":
		depth := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return svc.ErrInvalidDepth
			}
			depth = n
		}
		advice, err := h.tutor.Advise(ctx, meta, depth)
		if err != nil {
			return err
		}
		dto := tutorpresenter.ToDTOAdvice(advice)
		return h.presenter.Advice(room, h.formatter.Advice(dto), dto)
	case "undo":
		state, err := h.tutor.Undo(ctx, meta)
		if err != nil {
			return err
		}
		dto := tutorpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Undo(dto), dto)
	case "resign":
		state, err := h.tutor.Resign(ctx, meta)
		if err != nil {
			return err
		}
		dto := tutorpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Resign(dto), dto)
	case "status":
		state, err := h.tutor.Status(ctx, meta)
		if err != nil {
			return err
		}
		dto := tutorpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Status(dto), dto)
	case "history":
		limit := 0
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				limit = n
			}
		}
		games, err := h.tutor.History(ctx, meta, limit)
		if err != nil {
			return err
		}
		h.text(room, h.formatter.History(tutorpresenter.ToDTOGames(games)))
	case "game":
		if len(args) == 0 {
			h.text(room, h.formatter.BadGameID())
			return nil
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil || id <= 0 {
			h.text(room, h.formatter.BadGameID())
			return nil
		}
		game, err := h.tutor.Game(ctx, meta, id)
		if err != nil {
			return err
		}
		h.text(room, h.formatter.Game(tutorpresenter.ToDTOGame(game)))
	case "profile":
		profile, err := h.tutor.Profile(ctx, meta)
		if err != nil {
			return err
		}
		h.text(room, h.formatter.Profile(tutorpresenter.ToDTOProfile(profile)))
	case "difficulty", "level":
		if len(args) == 0 {
			h.text(room, h.formatter.Help())
			return nil
		}
		profile, err := h.tutor.UpdatePreferredDifficulty(ctx, meta, args[0])
		if err != nil {
			return err
		}
		h.text(room, h.formatter.PreferredDifficultyUpdated(tutorpresenter.ToDTOProfile(profile)))
	default:
		// A bare move works without the "move" keyword.
		if !movePattern.MatchString(token) {
			h.text(room, h.formatter.UnknownCommand())
			return nil
		}
		return h.play(ctx, meta, token)
	}
	return nil
}

func (h *handler) play(ctx context.Context, meta svc.SessionMeta, input string) error {
	summary, err := h.tutor.Play(ctx, meta, input)
	if err != nil {
		return err
	}
	dto := tutorpresenter.ToDTOMoveSummary(summary)
	if err := h.presenter.Board(meta.Room, h.formatter.Move(dto), dto.State); err != nil {
		return err
	}
	if dto.AdvicePending {
		h.text(meta.Room, h.formatter.AdvicePending())
	}
	return nil
}

func (h *handler) text(room, message string) {
	if err := h.presenter.Text(room, message); err != nil {
		h.logger.Warn("reply_failed", zap.String("room", room), zap.Error(err))
	}
}

func parseStartArgs(args []string) (difficulty string, auto bool) {
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "auto", "coach":
			auto = true
		default:
			if difficulty == "" {
				difficulty = arg
			}
		}
	}
	return difficulty, auto
}

// sessionIDFor keys a game by room and player so each player has one game
// per room.
func sessionIDFor(msg *irisfast.Message) string {
	user := msg.UserID()
	if user == "" {
		user = msg.SenderName()
	}
	return msg.Room + ":" + user
}
