package tutorpresenter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/msgcat"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
	"github.com/park285/cheese-chess-tutor/internal/util"
	"github.com/park285/cheese-chess-tutor/pkg/tutordto"
)

type staticPrefix string

func (p staticPrefix) Prefix() string { return string(p) }

func newTestFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.Default()
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewFormatter(staticPrefix("!t"), cat)
}

func TestMoveMentionsReviewReplyAndOutcome(t *testing.T) {
	f := newTestFormatter(t)
	summary := &tutordto.MoveSummary{
		State:     &tutordto.SessionState{Outcome: "win", OutcomeMethod: "checkmate"},
		PlayerSAN: "Qxf7#",
		Review: &tutordto.MoveReview{
			Tier:          "Winning",
			Justification: "Queen to f7 is checkmate.",
		},
		Finished:    true,
		GameID:      7,
		Profile:     &tutordto.TutorProfile{Rating: 1212, Wins: 1, GamesPlayed: 1},
		RatingDelta: 12,
	}
	text := f.Move(summary)
	for _, want := range []string{
		"Your move Qxf7#: Queen to f7 is checkmate. [Winning]",
		"You won by checkmate",
		"Rating: 1212 (▲12)",
		"1W 0L 0D (1 games)",
		"Game ID: #7",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestMoveWarnsAboutBlunders(t *testing.T) {
	f := newTestFormatter(t)
	text := f.Move(&tutordto.MoveSummary{PlayerSAN: "Qh5", BlunderCP: 850, EngineSAN: "Nxh5", EngineRandom: true})
	if !strings.Contains(text, "about 8.5 pawns") || !strings.Contains(text, "Tutor replies Nxh5 without much thought.") {
		t.Fatalf("unexpected text:\n%s", text)
	}
}

func TestAdviceListsRankedMoves(t *testing.T) {
	f := newTestFormatter(t)
	advice := &tutordto.Advice{
		Depth: 2,
		Turn:  "white",
		Moves: []tutordto.AdvisedMove{
			{Rank: 1, SAN: "Re8#", Review: tutordto.MoveReview{ScoreCP: int(corechess.MateScore - 1), Mate: true, Tier: "Winning", Technique: "Checkmate", Justification: "mate"}},
			{Rank: 2, SAN: "h3", Review: tutordto.MoveReview{ScoreCP: 35, Tier: "Decent", Justification: "quiet"}},
		},
	}
	text := f.Advice(advice)
	if !strings.HasPrefix(text, "💡 Best moves for white (depth 2)") {
		t.Fatalf("unexpected header:\n%s", text)
	}
	if !strings.Contains(text, "1. Re8# #+ Winning · Checkmate") || !strings.Contains(text, "2. h3 +0.35 Decent\n") {
		t.Fatalf("unexpected items:\n%s", text)
	}
	if f.Advice(nil) != "The tutor found no move to suggest." {
		t.Fatalf("empty advice text wrong")
	}
}

func TestErrorMessages(t *testing.T) {
	f := newTestFormatter(t)
	cases := []struct {
		err  error
		want string
	}{
		{svc.ErrSessionNotFound, "Start one with `!t start`"},
		{fmt.Errorf("%w: 9", svc.ErrInvalidDepth), "between 1 and 4"},
		{fmt.Errorf("%w: godlike", corechess.ErrUnknownDifficulty), "easy, medium, hard, expert"},
		{fmt.Errorf("%w: boom", svc.ErrEngineUnavailable), "unavailable"},
		{errors.New("disk on fire"), "Something went wrong"},
	}
	for _, tc := range cases {
		derr := ToDomainError(tc.err)
		if got := f.Error(derr); !strings.Contains(got, tc.want) {
			t.Fatalf("%v: got %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
	if !ToDomainError(svc.ErrEngineTimeout).Retryable {
		t.Fatalf("timeouts should be retryable")
	}
}

func TestHistoryAndProfileFoldBehindSeeMore(t *testing.T) {
	f := newTestFormatter(t)
	history := f.History([]*tutordto.TutorGame{{
		ID: 3, Result: "loss", Difficulty: "hard", MovesSAN: []string{"e4", "e5"},
		EndedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Opening: "C20 King's Pawn Game",
	}})
	if !strings.HasPrefix(history, "♜ Recent games"+util.KakaoZeroWidthSpace) {
		t.Fatalf("history should start with the padded header")
	}
	if !strings.Contains(history, "• #3 ❌ loss 2024-01-01 09:00 hard (2 moves) C20 King's Pawn Game") {
		t.Fatalf("unexpected history:\n%s", history)
	}
	if f.History(nil) != "No finished games yet." {
		t.Fatalf("empty history text wrong")
	}

	profile := f.Profile(&tutordto.TutorProfile{Rating: 1180, Losses: 3, GamesPlayed: 3, Streak: 3, StreakType: "loss", PreferredDifficulty: "easy"})
	if !strings.Contains(profile, "Streak: 3 losses in a row") || !strings.Contains(profile, "Preferred difficulty: easy") {
		t.Fatalf("unexpected profile:\n%s", profile)
	}
}

func TestHelpListsCommands(t *testing.T) {
	help := newTestFormatter(t).Help()
	for _, want := range []string{"!t start [easy|medium|hard|expert] [auto]", "!t hint [depth]", "(depth 1-4)", "!t difficulty <level>"} {
		if !strings.Contains(help, want) {
			t.Fatalf("help missing %q", want)
		}
	}
}

func TestFormatterWithoutCatalogFallsBackToKeys(t *testing.T) {
	f := NewFormatter(nil, nil)
	if got := f.UnknownCommand(); got != "errors.unknown_command" {
		t.Fatalf("fallback = %q", got)
	}
}
