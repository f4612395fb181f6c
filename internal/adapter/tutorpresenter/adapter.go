package tutorpresenter

import (
	"errors"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/domain"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
	"github.com/park285/cheese-chess-tutor/pkg/tutordto"
)

// mateThreshold separates forced-mate scores from material ones; search
// shortens MateScore by the ply count.
const mateThreshold = corechess.MateScore - 100

func ToDTOState(s *svc.SessionState) *tutordto.SessionState {
	if s == nil {
		return nil
	}
	state := &tutordto.SessionState{
		SessionUUID: s.SessionUUID,
		PlayerName:  s.PlayerName,
		Difficulty:  s.Difficulty,
		MovesSAN:    append([]string(nil), s.MovesSAN...),
		MovesUCI:    append([]string(nil), s.Moves...),
		FEN:         s.FEN,
		BoardImage:  append([]byte(nil), s.BoardImage...),
		Turn:        s.Turn,
		MoveCount:   s.MoveCount,
		Material:    tutordto.MaterialScore{White: s.Material.White, Black: s.Material.Black},
		AutoAdvice:  s.AutoAdvice,
		HintsUsed:   s.HintsUsed,
		Blunders:    s.Blunders,
		Profile:     ToDTOProfile(s.Profile),
		RatingDelta: s.RatingDelta,
		Outcome:     outcomeForPlayer(s.Outcome),
	}
	if s.Outcome != nchess.NoOutcome {
		state.OutcomeMethod = svc.MethodName(s.OutcomeMethod)
	}
	return state
}

func ToDTOMoveSummary(m *svc.MoveSummary) *tutordto.MoveSummary {
	if m == nil {
		return nil
	}
	return &tutordto.MoveSummary{
		State:         ToDTOState(m.State),
		PlayerSAN:     m.PlayerSAN,
		PlayerUCI:     m.PlayerUCI,
		Review:        ToDTOReview(m.PlayerReview),
		BlunderCP:     int(m.BlunderLoss),
		EngineSAN:     m.EngineSAN,
		EngineUCI:     m.EngineUCI,
		EngineRandom:  m.EngineRandom,
		Finished:      m.Finished,
		GameID:        m.GameID,
		Profile:       ToDTOProfile(m.Profile),
		RatingDelta:   m.RatingDelta,
		Advice:        ToDTOAdvice(m.Advice),
		AdvicePending: m.AdvicePending,
	}
}

func ToDTOReview(a *corechess.MoveAnalysis) *tutordto.MoveReview {
	if a == nil {
		return nil
	}
	review := toReview(*a)
	return &review
}

func toReview(a corechess.MoveAnalysis) tutordto.MoveReview {
	return tutordto.MoveReview{
		MoveUCI:       a.Move.UCI(),
		ScoreCP:       int(a.Score),
		Mate:          a.Score >= mateThreshold || a.Score <= -mateThreshold,
		Tier:          a.Tier.String(),
		Technique:     a.Technique.String(),
		Justification: a.Justification,
	}
}

func ToDTOAdvice(a *svc.Advice) *tutordto.Advice {
	if a == nil {
		return nil
	}
	out := &tutordto.Advice{
		Depth:      a.Depth,
		Turn:       a.Turn,
		MoveCount:  a.MoveCount,
		Moves:      make([]tutordto.AdvisedMove, 0, len(a.Moves)),
		BoardImage: append([]byte(nil), a.BoardImage...),
		Duration:   a.Duration,
	}
	for i, mv := range a.Moves {
		out.Moves = append(out.Moves, tutordto.AdvisedMove{
			Rank:   i + 1,
			SAN:    mv.SAN,
			Review: toReview(mv.Analysis),
		})
	}
	return out
}

func ToDTOProfile(p *domain.TutorProfile) *tutordto.TutorProfile {
	if p == nil {
		return nil
	}
	return &tutordto.TutorProfile{
		PreferredDifficulty: p.PreferredDifficulty,
		Rating:              p.Rating,
		GamesPlayed:         p.GamesPlayed,
		Wins:                p.Wins,
		Losses:              p.Losses,
		Draws:               p.Draws,
		Streak:              p.Streak,
		StreakType:          p.StreakType,
		LastDifficulty:      p.LastDifficulty,
		LastPlayedAt:        p.LastPlayedAt,
		UpdatedAt:           p.UpdatedAt,
		CreatedAt:           p.CreatedAt,
	}
}

func ToDTOGame(g *domain.TutorGame) *tutordto.TutorGame {
	if g == nil {
		return nil
	}
	return &tutordto.TutorGame{
		ID:            g.ID,
		SessionUUID:   g.SessionUUID,
		Difficulty:    g.Difficulty,
		Result:        g.Result,
		ResultMethod:  g.ResultMethod,
		MovesUCI:      append([]string(nil), g.MovesUCI...),
		MovesSAN:      append([]string(nil), g.MovesSAN...),
		PGN:           g.PGN,
		Opening:       g.Opening,
		StartedAt:     g.StartedAt,
		EndedAt:       g.EndedAt,
		Duration:      g.Duration,
		HintsUsed:     g.HintsUsed,
		Blunders:      g.Blunders,
		EngineLatency: g.EngineLatency,
	}
}

func ToDTOGames(list []*domain.TutorGame) []*tutordto.TutorGame {
	out := make([]*tutordto.TutorGame, 0, len(list))
	for _, g := range list {
		if dto := ToDTOGame(g); dto != nil {
			out = append(out, dto)
		}
	}
	return out
}

// ToDomainError maps service failures to message codes. Unknown errors become
// "internal".
func ToDomainError(err error) tutordto.DomainError {
	codes := []struct {
		target    error
		code      string
		retryable bool
	}{
		{svc.ErrSessionNotFound, "no_session", false},
		{svc.ErrInvalidMove, "invalid_move", false},
		{svc.ErrGameFinished, "game_finished", false},
		{svc.ErrUndoNotAvailable, "undo_unavailable", false},
		{svc.ErrEngineTimeout, "engine_timeout", true},
		{svc.ErrEngineUnavailable, "engine_unavailable", true},
		{svc.ErrRoomNotAllowed, "room_not_allowed", false},
		{svc.ErrInvalidDepth, "invalid_depth", false},
		{corechess.ErrUnknownDifficulty, "unknown_difficulty", false},
		{svc.ErrGameNotFound, "game_not_found", false},
		{svc.ErrProfileNotFound, "profile_not_found", false},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return tutordto.DomainError{Code: c.code, Message: err.Error(), Retryable: c.retryable}
		}
	}
	msg := "internal"
	if err != nil {
		msg = err.Error()
	}
	return tutordto.DomainError{Code: "internal", Message: msg}
}

func outcomeForPlayer(o nchess.Outcome) string {
	switch o {
	case nchess.WhiteWon:
		return "win"
	case nchess.BlackWon:
		return "loss"
	case nchess.Draw:
		return "draw"
	default:
		return ""
	}
}
