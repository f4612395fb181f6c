package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-chess-tutor/internal/advisor"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
)

type recordingRenderer struct {
	mu    sync.Mutex
	calls []RenderOptions
}

func (r *recordingRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opts)
	return []byte("png"), nil
}

func (r *recordingRenderer) last() RenderOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return RenderOptions{}
	}
	return r.calls[len(r.calls)-1]
}

// scriptedEngine answers with fixed replies and defers analysis to the real
// engine.
type scriptedEngine struct {
	*corechess.Engine
	mu      sync.Mutex
	replies []string
}

func (e *scriptedEngine) PickMove(ctx context.Context, req corechess.PickRequest) (corechess.PickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.replies) == 0 {
		return corechess.PickResult{}, errors.New("script exhausted")
	}
	pos, err := corechess.PositionFromMoves(req.FEN, req.Moves)
	if err != nil {
		return corechess.PickResult{}, err
	}
	m, err := pos.MoveFromUCI(e.replies[0])
	if err != nil {
		return corechess.PickResult{}, err
	}
	e.replies = e.replies[1:]
	return corechess.PickResult{Move: m}, nil
}

type fixture struct {
	svc      *Service
	repo     Repository
	renderer *recordingRenderer
}

func newFixture(t *testing.T, engine Engine, cfg Config) *fixture {
	t.Helper()
	store, _ := newTestStore(t)
	if engine == nil {
		engine = corechess.NewEngine(corechess.WithSeed(7))
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	repo := NewMemoryRepository()
	renderer := &recordingRenderer{}
	svc, err := NewService(engine, store, repo, renderer, cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, repo: repo, renderer: renderer}
}

var alice = SessionMeta{SessionID: "room-1:alice", Room: "room-1", Sender: "Alice"}

func TestNewServiceValidation(t *testing.T) {
	store, _ := newTestStore(t)
	engine := corechess.NewEngine()
	repo := NewMemoryRepository()
	renderer := &recordingRenderer{}
	if _, err := NewService(nil, store, repo, renderer, Config{SessionTTL: time.Hour}, nil); err == nil {
		t.Fatalf("expected engine error")
	}
	if _, err := NewService(engine, store, repo, renderer, Config{}, nil); err == nil {
		t.Fatalf("expected ttl error")
	}
	if _, err := NewService(engine, store, repo, renderer, Config{SessionTTL: time.Hour, DefaultDifficulty: "godlike"}, nil); !errors.Is(err, corechess.ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
	if _, err := NewService(engine, store, repo, renderer, Config{SessionTTL: time.Hour, AnalysisDepth: 9}, nil); !errors.Is(err, ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}
}

func TestStartSessionAndResume(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	state, err := f.svc.StartSession(ctx, alice, "", false)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if state.Difficulty != corechess.DifficultyMedium || state.MoveCount != 0 || state.Turn != "white" {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.PlayerName != "Alice" || len(state.BoardImage) == 0 {
		t.Fatalf("expected player label and board image, got %q", state.PlayerName)
	}

	again, err := f.svc.StartSession(ctx, alice, "hard", true)
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	if again.SessionUUID != state.SessionUUID || !again.AutoAdvice || again.Difficulty != corechess.DifficultyMedium {
		t.Fatalf("resume should keep the session and turn on auto advice: %+v", again)
	}
}

func TestPlayAppliesPlayerAndEngineMoves(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	summary, err := f.svc.Play(ctx, alice, "e4")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if summary.PlayerSAN != "e4" || summary.PlayerUCI != "e2e4" {
		t.Fatalf("unexpected player move %s/%s", summary.PlayerSAN, summary.PlayerUCI)
	}
	if summary.EngineUCI == "" || summary.EngineSAN == "" || !summary.EngineRandom {
		t.Fatalf("expected a random engine reply, got %+v", summary)
	}
	if summary.PlayerReview == nil || summary.PlayerReview.Justification == "" {
		t.Fatalf("expected a review of the player move")
	}
	if summary.State.MoveCount != 2 || summary.State.Turn != "white" || summary.Finished {
		t.Fatalf("unexpected state after play: %+v", summary.State)
	}
	if f.renderer.last().Highlight == nil {
		t.Fatalf("engine move should be highlighted")
	}

	summary, err = f.svc.Play(ctx, alice, "g1f3")
	if err != nil {
		t.Fatalf("Play uci: %v", err)
	}
	if summary.PlayerSAN != "Nf3" || summary.State.MoveCount != 4 {
		t.Fatalf("unexpected second move %s (%d)", summary.PlayerSAN, summary.State.MoveCount)
	}

	status, err := f.svc.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Moves) != 4 || len(status.MovesSAN) != 4 || status.MovesSAN[0] != "e4" {
		t.Fatalf("status lost moves: %+v", status.MovesSAN)
	}
}

func TestPlayRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.Play(ctx, alice, "e4"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.svc.StartSession(ctx, alice, "easy", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for _, input := range []string{"", "e5", "e2e5", "Qh5"} {
		if _, err := f.svc.Play(ctx, alice, input); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("%q: expected ErrInvalidMove, got %v", input, err)
		}
	}
}

func TestUndoRemovesMovePair(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := f.svc.Undo(ctx, alice); !errors.Is(err, ErrUndoNotAvailable) {
		t.Fatalf("expected ErrUndoNotAvailable, got %v", err)
	}
	if _, err := f.svc.Play(ctx, alice, "d4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	state, err := f.svc.Undo(ctx, alice)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if state.MoveCount != 0 || state.FEN != nchess.NewGame().FEN() {
		t.Fatalf("undo should restore the start position, got %s", state.FEN)
	}
}

func TestAdviseRanksMovesAndCountsHints(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := f.svc.Advise(ctx, alice, MaxAdviceDepth+1); !errors.Is(err, ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}

	advice, err := f.svc.Advise(ctx, alice, 1)
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if len(advice.Moves) == 0 || len(advice.Moves) > corechess.MaxAnalyses || advice.Turn != "white" {
		t.Fatalf("unexpected advice %+v", advice)
	}
	for i, mv := range advice.Moves {
		if mv.SAN == "" || mv.SAN == mv.UCI {
			t.Fatalf("move %d missing SAN: %+v", i, mv)
		}
		if i > 0 && mv.Analysis.Score > advice.Moves[i-1].Analysis.Score {
			t.Fatalf("advice not sorted for white at %d", i)
		}
	}
	best, _ := advice.Best()
	arrow := f.renderer.last().Arrow
	if arrow == nil || len(advice.BoardImage) == 0 {
		t.Fatalf("expected an arrow for %s", best.UCI)
	}

	status, err := f.svc.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.HintsUsed != 1 {
		t.Fatalf("expected 1 hint used, got %d", status.HintsUsed)
	}
}

func TestCheckmateFinishesAndPersists(t *testing.T) {
	engine := &scriptedEngine{
		Engine:  corechess.NewEngine(corechess.WithSeed(1)),
		replies: []string{"e7e5", "b8c6", "g8f6"},
	}
	f := newFixture(t, engine, Config{})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "hard", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for _, mv := range []string{"e4", "Bc4", "Qh5"} {
		if _, err := f.svc.Play(ctx, alice, mv); err != nil {
			t.Fatalf("Play %s: %v", mv, err)
		}
	}
	summary, err := f.svc.Play(ctx, alice, "h5f7")
	if err != nil {
		t.Fatalf("Play mate: %v", err)
	}
	if !summary.Finished || summary.GameID == 0 || summary.EngineUCI != "" {
		t.Fatalf("expected finished game, got %+v", summary)
	}
	if summary.PlayerReview == nil || summary.PlayerReview.Technique != corechess.TechniqueCheckmate {
		t.Fatalf("mate should be reviewed as checkmate, got %+v", summary.PlayerReview)
	}
	if summary.Profile == nil || summary.Profile.Wins != 1 || summary.RatingDelta <= 0 {
		t.Fatalf("expected a win on the profile, got %+v delta=%d", summary.Profile, summary.RatingDelta)
	}

	if _, err := f.svc.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("finished session should be cleared, got %v", err)
	}
	game, err := f.svc.Game(ctx, alice, summary.GameID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if game.Result != "win" || game.ResultMethod != "checkmate" || len(game.MovesUCI) != 7 || game.Difficulty != corechess.DifficultyHard {
		t.Fatalf("unexpected stored game %+v", game)
	}
	if game.MovesSAN[6] != "Qxf7#" || game.PGN == "" {
		t.Fatalf("unexpected SAN/PGN: %v", game.MovesSAN)
	}
}

func TestResignRecordsLoss(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "medium", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := f.svc.Profile(ctx, alice); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	state, err := f.svc.Resign(ctx, alice)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if state.Profile == nil || state.Profile.Losses != 1 || state.Profile.Rating != 1180 || state.RatingDelta != -20 {
		t.Fatalf("unexpected profile after resign: %+v delta=%d", state.Profile, state.RatingDelta)
	}

	history, err := f.svc.History(ctx, alice, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Result != "loss" || history[0].ResultMethod != "resignation" {
		t.Fatalf("unexpected history %+v", history)
	}
	if _, err := f.svc.Game(ctx, alice, history[0].ID+100); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
	bob := SessionMeta{SessionID: "room-1:bob", Room: "room-1", Sender: "Bob"}
	if _, err := f.svc.Game(ctx, bob, history[0].ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("other players must not see the game, got %v", err)
	}
	profile, err := f.svc.Profile(ctx, alice)
	if err != nil || profile.GamesPlayed != 1 || profile.StreakType != "loss" {
		t.Fatalf("Profile: %+v err=%v", profile, err)
	}
}

func TestPreferredDifficultyIsUsedOnStart(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()
	if _, err := f.svc.UpdatePreferredDifficulty(ctx, alice, "godlike"); !errors.Is(err, corechess.ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
	profile, err := f.svc.UpdatePreferredDifficulty(ctx, alice, "master")
	if err != nil {
		t.Fatalf("UpdatePreferredDifficulty: %v", err)
	}
	if profile.PreferredDifficulty != corechess.DifficultyExpert || profile.Rating != defaultPlayerRating {
		t.Fatalf("unexpected profile %+v", profile)
	}
	state, err := f.svc.StartSession(ctx, alice, "", false)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if state.Difficulty != corechess.DifficultyExpert {
		t.Fatalf("expected preferred difficulty, got %s", state.Difficulty)
	}
}

func TestRoomAllowList(t *testing.T) {
	f := newFixture(t, nil, Config{AllowedRooms: []string{" Room-1 "}})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", false); err != nil {
		t.Fatalf("allowed room rejected: %v", err)
	}
	outsider := SessionMeta{SessionID: "x", Room: "elsewhere", Sender: "Eve"}
	if _, err := f.svc.StartSession(ctx, outsider, "easy", false); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("expected ErrRoomNotAllowed, got %v", err)
	}
	if _, err := f.svc.History(ctx, outsider, 5); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("expected ErrRoomNotAllowed, got %v", err)
	}
}

func TestAutoAdviceInline(t *testing.T) {
	f := newFixture(t, nil, Config{AnalysisDepth: 1})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", true); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	summary, err := f.svc.Play(ctx, alice, "e4")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if summary.Advice == nil || summary.AdvicePending || len(summary.Advice.Moves) == 0 {
		t.Fatalf("expected inline advice, got %+v", summary.Advice)
	}
}

func TestAutoAdviceDebounced(t *testing.T) {
	f := newFixture(t, nil, Config{AnalysisDepth: 1})
	delivered := make(chan *Advice, 4)
	f.svc.EnableAutoAdvice(advisor.New[*Advice](advisor.WithDelay(10*time.Millisecond)), func(meta SessionMeta, advice *Advice) {
		delivered <- advice
	})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "easy", true); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	summary, err := f.svc.Play(ctx, alice, "e4")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !summary.AdvicePending || summary.Advice != nil {
		t.Fatalf("expected pending advice")
	}
	select {
	case advice := <-delivered:
		if advice.MoveCount != 2 || len(advice.Moves) == 0 || len(advice.BoardImage) == 0 {
			t.Fatalf("unexpected delivered advice %+v", advice)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("advice was not delivered")
	}
}

func TestApplyGameResult(t *testing.T) {
	id := sessionIdentity{PlayerHash: "p", RoomHash: "r"}
	now := time.Now()

	profile, delta := applyGameResult(nil, id, corechess.DifficultyHard, nchess.Draw, now)
	if profile.Draws != 1 || profile.Rating != defaultPlayerRating || delta != 0 || profile.StreakType != "draw" {
		t.Fatalf("draw against an equal rating should not move it: %+v delta=%d", profile, delta)
	}
	profile, delta = applyGameResult(profile, id, corechess.DifficultyExpert, nchess.WhiteWon, now)
	if profile.Wins != 1 || delta <= 12 || profile.Streak != 1 || profile.StreakType != "win" {
		t.Fatalf("beating a stronger tier should gain more than half K: %+v delta=%d", profile, delta)
	}
	profile, _ = applyGameResult(profile, id, corechess.DifficultyExpert, nchess.WhiteWon, now)
	if profile.Streak != 2 || profile.GamesPlayed != 3 || profile.LastDifficulty != corechess.DifficultyExpert {
		t.Fatalf("unexpected streak bookkeeping %+v", profile)
	}
}

func TestDeriveIdentityIsCaseInsensitive(t *testing.T) {
	a := deriveIdentity(SessionMeta{SessionID: "S", Room: "Room", Sender: "Alice "})
	b := deriveIdentity(SessionMeta{SessionID: "s", Room: " room", Sender: "alice"})
	if a != b {
		t.Fatalf("identities differ: %+v vs %+v", a, b)
	}
	if sessionKey("s") == sessionKey("t") {
		t.Fatalf("session keys collide")
	}
}

func TestPlayCountsBlunders(t *testing.T) {
	engine := &scriptedEngine{
		Engine:  corechess.NewEngine(corechess.WithSeed(3)),
		replies: []string{"d7d6", "c8g4"},
	}
	f := newFixture(t, engine, Config{AnalysisDepth: 2})
	ctx := context.Background()
	if _, err := f.svc.StartSession(ctx, alice, "hard", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	summary, err := f.svc.Play(ctx, alice, "e4")
	if err != nil {
		t.Fatalf("Play e4: %v", err)
	}
	if summary.BlunderLoss != 0 {
		t.Fatalf("e4 is not a blunder, loss %d", summary.BlunderLoss)
	}

	// Qg4 walks into Bxg4.
	summary, err = f.svc.Play(ctx, alice, "Qg4")
	if err != nil {
		t.Fatalf("Play Qg4: %v", err)
	}
	if summary.BlunderLoss < 300 {
		t.Fatalf("expected a blunder, loss %d", summary.BlunderLoss)
	}

	state, err := f.svc.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state.Blunders != 1 {
		t.Fatalf("blunders = %d, want 1", state.Blunders)
	}
}
