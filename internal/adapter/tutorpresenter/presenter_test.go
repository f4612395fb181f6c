package tutorpresenter

import (
	"encoding/base64"
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
	"github.com/park285/cheese-chess-tutor/pkg/tutordto"
)

type sent struct {
	kind, room, data string
}

func TestPresenterSendsTextThenImage(t *testing.T) {
	var out []sent
	p := NewPresenter(
		func(room, message string) error { out = append(out, sent{"text", room, message}); return nil },
		func(room, img string) error { out = append(out, sent{"image", room, img}); return nil },
	)
	if err := p.Board("r1", "hello", &tutordto.SessionState{BoardImage: []byte("png")}); err != nil {
		t.Fatalf("Board: %v", err)
	}
	if err := p.Board("r1", "  ", &tutordto.SessionState{}); err != nil {
		t.Fatalf("Board blank: %v", err)
	}
	if len(out) != 2 || out[0].kind != "text" || out[1].data != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("unexpected sends %+v", out)
	}
}

func TestPresenterStopsOnTextFailure(t *testing.T) {
	images := 0
	p := NewPresenter(
		func(string, string) error { return errors.New("down") },
		func(string, string) error { images++; return nil },
	)
	if err := p.Advice("r1", "ideas", &tutordto.Advice{BoardImage: []byte("png")}); err == nil {
		t.Fatalf("expected error")
	}
	if images != 0 {
		t.Fatalf("image sent after text failure")
	}
}

func TestToDTOStateMapsOutcome(t *testing.T) {
	state := ToDTOState(&svc.SessionState{
		Difficulty:    "hard",
		Moves:         []string{"e2e4"},
		Outcome:       nchess.BlackWon,
		OutcomeMethod: nchess.Resignation,
		Material:      svc.MaterialScore{White: 39, Black: 38},
	})
	if state.Outcome != "loss" || state.OutcomeMethod != "resignation" || state.Material.Black != 38 || state.MovesUCI[0] != "e2e4" {
		t.Fatalf("unexpected dto %+v", state)
	}
	if ToDTOState(&svc.SessionState{Outcome: nchess.NoOutcome}).OutcomeMethod != "" {
		t.Fatalf("running games have no method")
	}
}

func TestToDTOAdviceRanksAndFlagsMate(t *testing.T) {
	pos, err := corechess.ParsePosition("6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1")
	if err != nil {
		t.Fatalf("ParsePosition: %v", err)
	}
	mv, err := pos.MoveFromUCI("e1e8")
	if err != nil {
		t.Fatalf("MoveFromUCI: %v", err)
	}
	advice := ToDTOAdvice(&svc.Advice{
		Depth: 1,
		Turn:  "white",
		Moves: []svc.AdvisedMove{
			{UCI: "e1e8", SAN: "Re8#", Analysis: corechess.MoveAnalysis{Move: mv, Score: corechess.MateScore - 1, Tier: corechess.TierWinning, Technique: corechess.TechniqueCheckmate}},
		},
	})
	if len(advice.Moves) != 1 || advice.Moves[0].Rank != 1 {
		t.Fatalf("unexpected advice %+v", advice)
	}
	r := advice.Moves[0].Review
	if !r.Mate || r.MoveUCI != "e1e8" || r.Technique != "Checkmate" || FormatScore(r) != "#+" {
		t.Fatalf("unexpected review %+v", r)
	}
}
