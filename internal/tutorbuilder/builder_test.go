package tutorbuilder

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/cheese-chess-tutor/internal/config"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		TutorDefaultDifficulty: "hard",
		TutorSessionTTL:        time.Hour,
		TutorHistoryLimit:      5,
		TutorAnalysisDepth:     1,
		TutorAdviceDebounce:    10 * time.Millisecond,
		TutorEngineTimeout:     5 * time.Second,
	}
}

func TestNewFallsBackToEmbeddedStores(t *testing.T) {
	deps, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()

	meta := svc.SessionMeta{SessionID: "room:alice", Room: "room", Sender: "Alice"}
	state, err := deps.Service.StartSession(context.Background(), meta, "", false)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if state.Difficulty != "hard" {
		t.Fatalf("difficulty = %q, want hard", state.Difficulty)
	}
	if !deps.Messages.Has("bot.help.body") {
		t.Fatalf("catalog not loaded")
	}
}

func TestNewUsesRedisURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	deps, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()

	meta := svc.SessionMeta{SessionID: "room:bob", Room: "room", Sender: "Bob"}
	if _, err := deps.Service.StartSession(context.Background(), meta, "easy", false); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if len(mr.Keys()) == 0 {
		t.Fatalf("session not written to the configured redis")
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "mysql://nope"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected redis url error")
	}

	cfg = testConfig()
	cfg.TutorDefaultDifficulty = "grandmaster"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected difficulty error")
	}
}

func TestServiceConfigCopiesRooms(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedRooms = []string{"a"}
	sc := ServiceConfig(cfg)
	cfg.AllowedRooms[0] = "b"
	if sc.AllowedRooms[0] != "a" || sc.AnalysisDepth != 1 || sc.HistoryLimit != 5 {
		t.Fatalf("unexpected service config %+v", sc)
	}
}
