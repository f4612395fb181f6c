package tutor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/cheese-chess-tutor/internal/advisor"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound   = errors.New("tutor session not found")
	ErrSessionInProgress = errors.New("tutor session already in progress")
	ErrGameFinished      = errors.New("tutor game already finished")
	ErrInvalidMove       = errors.New("invalid chess move")
	ErrGameNotFound      = errors.New("tutor game not found")
	ErrProfileNotFound   = errors.New("tutor profile not found")
	ErrUndoNotAvailable  = errors.New("no moves available to undo")
	ErrEngineUnavailable = errors.New("tutor engine unavailable")
	ErrEngineTimeout     = errors.New("tutor engine timeout")
	ErrRoomNotAllowed    = errors.New("tutor room not allowed")
	ErrInvalidDepth      = errors.New("analysis depth out of range")
)

const (
	defaultPlayerRating  = 1200
	kFactor              = 24
	profileCacheTTL      = 6 * time.Hour
	maxHistoryLimit      = 50
	defaultHistoryLimit  = 10
	defaultAnalysisDepth = 2
	defaultEngineTimeout = 15 * time.Second
	blunderMargin        = corechess.Score(300)

	// MaxAdviceDepth caps interactive analysis; deeper searches are too slow
	// for a chat reply.
	MaxAdviceDepth = 4
)

// Engine is the subset of the tutor engine the service drives.
type Engine interface {
	PickMove(ctx context.Context, req corechess.PickRequest) (corechess.PickResult, error)
	Analyze(ctx context.Context, req corechess.AnalyzeRequest) (corechess.AnalyzeResult, error)
	Classify(ctx context.Context, req corechess.AnalyzeRequest, uci string) (corechess.MoveAnalysis, error)
}

// AdviceNotifier receives auto-analysis results that survived debouncing.
type AdviceNotifier func(meta SessionMeta, advice *Advice)

type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type sessionIdentity struct {
	SessionID  string
	RoomHash   string
	PlayerHash string
}

type Config struct {
	DefaultDifficulty string
	SessionTTL        time.Duration
	HistoryLimit      int
	AllowedRooms      []string
	AnalysisDepth     int
	EngineTimeout     time.Duration
}

type Service struct {
	engine       Engine
	store        *Store
	renderer     BoardRenderer
	repo         Repository
	cfg          Config
	allowedRooms map[string]struct{}
	logger       *zap.Logger

	advice *advisor.Debouncer[*Advice]
	notify AdviceNotifier
}

func NewService(engine Engine, store *Store, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("tutor engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("tutor repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	difficulty := strings.TrimSpace(cfg.DefaultDifficulty)
	if difficulty == "" {
		difficulty = corechess.DifficultyMedium
	}
	preset, err := corechess.GetPreset(difficulty)
	if err != nil {
		return nil, fmt.Errorf("default difficulty validation failed: %w", err)
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.AnalysisDepth == 0 {
		cfg.AnalysisDepth = defaultAnalysisDepth
	}
	if cfg.AnalysisDepth < 1 || cfg.AnalysisDepth > MaxAdviceDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, cfg.AnalysisDepth)
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = defaultEngineTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		if normalized := strings.ToLower(strings.TrimSpace(room)); normalized != "" {
			allowedRooms[normalized] = struct{}{}
		}
	}

	cfg.DefaultDifficulty = preset.Name
	cfg.AllowedRooms = append([]string(nil), cfg.AllowedRooms...)
	return &Service{
		engine:       engine,
		store:        store,
		renderer:     renderer,
		repo:         repo,
		cfg:          cfg,
		allowedRooms: allowedRooms,
		logger:       logger,
	}, nil
}

// EnableAutoAdvice routes auto-analysis through d; results are handed to
// notify instead of being attached to the move summary.
func (s *Service) EnableAutoAdvice(d *advisor.Debouncer[*Advice], notify AdviceNotifier) {
	s.advice = d
	s.notify = notify
}

func (s *Service) StartSession(ctx context.Context, meta SessionMeta, difficulty string, autoAdvice bool) (*SessionState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)

	existing, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if autoAdvice && !existing.AutoAdvice {
			existing.AutoAdvice = true
			if err := s.saveSession(ctx, identity.SessionID, existing); err != nil {
				s.logger.Warn("tutor_auto_advice_flag_save_failed",
					zap.Error(err),
					zap.String("session_id", identity.SessionID),
				)
			}
		}
		game, err := replaySession(existing)
		if err != nil {
			return nil, err
		}
		return s.present(ctx, meta, identity, existing, game, RenderOptions{}, true), ErrSessionInProgress
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	chosen := strings.TrimSpace(difficulty)
	if chosen == "" {
		if profile != nil && profile.PreferredDifficulty != "" {
			chosen = profile.PreferredDifficulty
		} else {
			chosen = s.cfg.DefaultDifficulty
		}
	}
	preset, err := corechess.GetPreset(chosen)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payload := &sessionPayload{
		SessionUUID: uuid.NewString(),
		PlayerHash:  identity.PlayerHash,
		RoomHash:    identity.RoomHash,
		PlayerName:  normalizeHUDPlayerLabel(meta.Sender),
		Difficulty:  preset.Name,
		Moves:       []string{},
		StartedAt:   now,
		UpdatedAt:   now,
		AutoAdvice:  autoAdvice,
	}
	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}
	s.logger.Info("tutor_session_started",
		zap.String("session_uuid", payload.SessionUUID),
		zap.String("difficulty", preset.Name),
		zap.Bool("auto_advice", autoAdvice),
	)

	state := s.present(ctx, meta, identity, payload, nchess.NewGame(), RenderOptions{}, false)
	state.Profile = profile
	return state, nil
}

func (s *Service) Status(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity, payload, game, err := s.openSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, meta, identity, payload, game, RenderOptions{}, true), nil
}

// Play applies the player's move (SAN or UCI), reviews it, then answers
// with the engine's move for the session difficulty.
func (s *Service) Play(ctx context.Context, meta SessionMeta, moveInput string) (*MoveSummary, error) {
	identity, payload, game, err := s.openSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	moveText := strings.TrimSpace(moveInput)
	if moveText == "" {
		return nil, ErrInvalidMove
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, ErrGameFinished
	}

	san := nchess.AlgebraicNotation{}
	uci := nchess.UCINotation{}
	posBefore := game.Position()
	move, err := san.Decode(posBefore, moveText)
	if err != nil {
		move, err = uci.Decode(posBefore, strings.ToLower(moveText))
		if err != nil {
			return nil, ErrInvalidMove
		}
	}
	if err := game.Move(move, nil); err != nil {
		return nil, ErrInvalidMove
	}

	previous := append([]string(nil), payload.Moves...)
	summary := &MoveSummary{
		PlayerSAN: san.Encode(posBefore, move),
		PlayerUCI: strings.ToLower(uci.Encode(posBefore, move)),
	}
	payload.Moves = append(payload.Moves, summary.PlayerUCI)
	s.reviewPlayerMove(ctx, payload, previous, summary)
	marker := &PlayerMarker{Square: move.S2()}

	if game.Outcome() == nchess.NoOutcome {
		if err := s.replyWithEngine(ctx, identity, payload, game, summary); err != nil {
			return nil, err
		}
	}

	opts := RenderOptions{Highlight: summary.engineHighlight}
	if pieceMatchesColor(game.Position(), marker.Square, nchess.White) {
		opts.Player = marker
	}
	state := s.present(ctx, meta, identity, payload, game, opts, false)
	summary.State = state
	summary.Finished = state.Outcome != nchess.NoOutcome
	summary.Material = state.Material

	if err := s.finishIfNeeded(ctx, identity, payload, game, summary); err != nil {
		return nil, err
	}
	s.scheduleAutoAdvice(ctx, meta, identity, payload, game, summary)
	return summary, nil
}

func (s *Service) replyWithEngine(ctx context.Context, identity sessionIdentity, payload *sessionPayload, game *nchess.Game, summary *MoveSummary) error {
	engineCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	result, err := s.engine.PickMove(engineCtx, corechess.PickRequest{
		Difficulty: payload.Difficulty,
		Moves:      payload.Moves,
	})
	if err != nil {
		s.logger.Warn("tutor_engine_pick_failed",
			zap.Error(err),
			zap.String("session_id", identity.SessionID),
			zap.String("difficulty", payload.Difficulty),
			zap.Int("move_count", len(payload.Moves)),
			zap.Duration("timeout", s.cfg.EngineTimeout),
		)
		return mapEngineError(err)
	}

	engineUCI := result.Move.UCI()
	s.logOpeningLabel(game, engineUCI, payload.Difficulty)

	posBefore := game.Position()
	move, err := nchess.UCINotation{}.Decode(posBefore, engineUCI)
	if err != nil {
		return fmt.Errorf("decode engine move %s: %w", engineUCI, err)
	}
	if err := game.Move(move, nil); err != nil {
		return fmt.Errorf("apply engine move %s: %w", engineUCI, err)
	}

	payload.Moves = append(payload.Moves, engineUCI)
	payload.EngineLatencyMS += result.Duration.Milliseconds()
	summary.EngineUCI = engineUCI
	summary.EngineSAN = nchess.AlgebraicNotation{}.Encode(posBefore, move)
	summary.EngineRandom = result.Random
	summary.EngineScore = result.Score
	summary.engineHighlight = &MoveHighlight{From: move.S1(), To: move.S2()}
	return nil
}

// reviewPlayerMove classifies the move just played and flags it as a blunder
// when its searched score falls blunderMargin below the static evaluation of
// the position before it. Failures only cost the review, never the move.
func (s *Service) reviewPlayerMove(ctx context.Context, payload *sessionPayload, previous []string, summary *MoveSummary) {
	reviewCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	analysis, err := s.engine.Classify(reviewCtx, corechess.AnalyzeRequest{
		Moves: previous,
		Depth: s.cfg.AnalysisDepth,
	}, summary.PlayerUCI)
	if err != nil {
		s.logger.Warn("tutor_review_failed", zap.Error(err), zap.String("move", summary.PlayerUCI))
		return
	}
	summary.PlayerReview = &analysis

	before, err := corechess.PositionFromMoves("", previous)
	if err != nil {
		return
	}
	if loss := corechess.Evaluate(before) - analysis.Score; loss >= blunderMargin {
		payload.Blunders++
		summary.BlunderLoss = loss
	}
}

func mapEngineError(err error) error {
	if corechess.IsCanceled(err) {
		return ErrEngineTimeout
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}

func (s *Service) finishIfNeeded(ctx context.Context, identity sessionIdentity, payload *sessionPayload, game *nchess.Game, summary *MoveSummary) error {
	if !summary.Finished {
		return s.saveSession(ctx, identity.SessionID, payload)
	}
	gameID, profile, delta, err := s.persistFinishedGame(ctx, identity, payload, game)
	if err != nil {
		return err
	}
	summary.GameID = gameID
	summary.Profile = profile
	summary.RatingDelta = delta
	summary.State.Profile = profile
	summary.State.RatingDelta = delta
	s.closeSession(ctx, identity)
	return nil
}

func (s *Service) Resign(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity, payload, game, err := s.openSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	game.Resign(nchess.White)

	state := s.present(ctx, meta, identity, payload, game, RenderOptions{}, false)
	gameID, profile, delta, err := s.persistFinishedGame(ctx, identity, payload, game)
	if err != nil {
		return nil, err
	}
	state.Profile = profile
	state.RatingDelta = delta
	s.closeSession(ctx, identity)
	s.logger.Info("tutor_resigned", zap.Int64("game_id", gameID), zap.Int("moves", len(payload.Moves)))
	return state, nil
}

// Undo takes back the last player move together with the engine reply.
func (s *Service) Undo(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity, payload, _, err := s.openSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	if len(payload.Moves) < 2 {
		return nil, ErrUndoNotAvailable
	}
	payload.Moves = append([]string(nil), payload.Moves[:len(payload.Moves)-2]...)
	payload.Undos++

	game, err := replaySession(payload)
	if err != nil {
		return nil, err
	}
	if s.advice != nil {
		s.advice.Cancel(identity.SessionID)
	}
	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	return s.present(ctx, meta, identity, payload, game, RenderOptions{}, true), nil
}

func (s *Service) History(ctx context.Context, meta SessionMeta, limit int) ([]*domain.TutorGame, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.GetRecentGames(ctx, deriveIdentity(meta).PlayerHash, limit)
}

func (s *Service) Game(ctx context.Context, meta SessionMeta, id int64) (*domain.TutorGame, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	game, err := s.repo.GetGame(ctx, id, deriveIdentity(meta).PlayerHash)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

func (s *Service) Profile(ctx context.Context, meta SessionMeta) (*domain.TutorProfile, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	return s.fetchProfile(ctx, deriveIdentity(meta), true)
}

func (s *Service) UpdatePreferredDifficulty(ctx context.Context, meta SessionMeta, difficulty string) (*domain.TutorProfile, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	preset, err := corechess.GetPreset(difficulty)
	if err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)
	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	now := time.Now()
	if profile == nil {
		profile = newProfile(identity, now)
	}
	profile.PreferredDifficulty = preset.Name
	profile.UpdatedAt = now

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, identity, profile)
	return profile, nil
}

// Close stops pending auto-analysis runs.
func (s *Service) Close() {
	if s.advice != nil {
		s.advice.Close()
	}
}

func (s *Service) openSession(ctx context.Context, meta SessionMeta) (sessionIdentity, *sessionPayload, *nchess.Game, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return sessionIdentity{}, nil, nil, err
	}
	identity := deriveIdentity(meta)
	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return identity, nil, nil, err
	}
	if payload == nil {
		return identity, nil, nil, ErrSessionNotFound
	}
	game, err := replaySession(payload)
	if err != nil {
		return identity, nil, nil, err
	}
	return identity, payload, game, nil
}

// present builds the reply state for game with its board image, attaching the
// cached profile when withProfile is set.
func (s *Service) present(ctx context.Context, meta SessionMeta, identity sessionIdentity, payload *sessionPayload, game *nchess.Game, opts RenderOptions, withProfile bool) *SessionState {
	state := s.stateFromGame(payload, game)
	if withProfile {
		if profile, err := s.fetchProfile(ctx, identity, true); err == nil {
			state.Profile = profile
		}
	}
	s.applyPlayerName(state, payload, meta)
	s.attachBoardImage(ctx, state, game.Position(), opts)
	return state
}

func (s *Service) ensureRoomAllowed(meta SessionMeta) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if _, ok := s.allowedRooms[room]; ok {
		return nil
	}
	s.logger.Info("tutor_room_denied",
		zap.String("room", room),
		zap.String("sender", strings.TrimSpace(meta.Sender)),
	)
	return ErrRoomNotAllowed
}

func sessionKey(sessionID string) string {
	return "tutor:sessions:" + hashString(strings.TrimSpace(sessionID))
}

func profileCacheKey(identity sessionIdentity) string {
	return "tutor:profile:" + identity.PlayerHash + ":" + identity.RoomHash
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*sessionPayload, error) {
	payload := &sessionPayload{}
	ok, err := s.store.Get(ctx, sessionKey(sessionID), payload)
	if err != nil || !ok {
		return nil, err
	}
	return payload, nil
}

func (s *Service) saveSession(ctx context.Context, sessionID string, payload *sessionPayload) error {
	payload.UpdatedAt = time.Now()
	return s.store.Set(ctx, sessionKey(sessionID), payload, s.cfg.SessionTTL)
}

func (s *Service) closeSession(ctx context.Context, identity sessionIdentity) {
	if s.advice != nil {
		s.advice.Cancel(identity.SessionID)
	}
	if err := s.store.Del(ctx, sessionKey(identity.SessionID)); err != nil {
		s.logger.Warn("tutor_session_delete_failed", zap.Error(err))
	}
}

func deriveIdentity(meta SessionMeta) sessionIdentity {
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))
	return sessionIdentity{
		SessionID:  strings.ToLower(strings.TrimSpace(meta.SessionID)),
		RoomHash:   hashString(room),
		PlayerHash: hashString(room + ":" + sender),
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
