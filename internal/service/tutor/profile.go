package tutor

import (
	"context"
	"errors"
	"math"
	"time"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/domain"
	"go.uber.org/zap"
)

func (s *Service) persistFinishedGame(ctx context.Context, identity sessionIdentity, payload *sessionPayload, game *nchess.Game) (int64, *domain.TutorProfile, int, error) {
	now := time.Now()
	record := &domain.TutorGame{
		SessionUUID:   payload.SessionUUID,
		PlayerHash:    identity.PlayerHash,
		RoomHash:      identity.RoomHash,
		Difficulty:    payload.Difficulty,
		Result:        resultFromOutcome(game.Outcome()),
		ResultMethod:  MethodName(game.Method()),
		MovesUCI:      append([]string(nil), payload.Moves...),
		MovesSAN:      sanMoves(game),
		PGN:           game.String(),
		Opening:       openingLabel(game),
		StartedAt:     payload.StartedAt,
		EndedAt:       now,
		Duration:      now.Sub(payload.StartedAt),
		HintsUsed:     payload.HintsUsed,
		Blunders:      payload.Blunders,
		EngineLatency: time.Duration(payload.EngineLatencyMS) * time.Millisecond,
	}

	gameID, err := s.repo.InsertGame(ctx, record)
	if errors.Is(err, ErrDuplicateGame) {
		existing, fetchErr := s.repo.GetGameBySession(ctx, payload.SessionUUID, identity.PlayerHash)
		if fetchErr != nil || existing == nil {
			return 0, nil, 0, err
		}
		profile, profErr := s.fetchProfile(ctx, identity, true)
		if profErr != nil && !errors.Is(profErr, ErrProfileNotFound) {
			return existing.ID, nil, 0, profErr
		}
		return existing.ID, profile, 0, nil
	}
	if err != nil {
		return 0, nil, 0, err
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return gameID, nil, 0, err
	}
	profile, delta := applyGameResult(profile, identity, payload.Difficulty, game.Outcome(), now)
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return gameID, nil, 0, err
	}
	s.cacheProfile(ctx, identity, profile)

	s.logger.Info("tutor_game_finished",
		zap.Int64("game_id", gameID),
		zap.String("result", record.Result),
		zap.String("method", record.ResultMethod),
		zap.String("difficulty", record.Difficulty),
		zap.String("opening", record.Opening),
		zap.Int("rating_delta", delta),
	)
	return gameID, profile, delta, nil
}

// fetchProfile loads the profile, from the Redis cache when allowCache is
// set. A missing profile is ErrProfileNotFound.
func (s *Service) fetchProfile(ctx context.Context, identity sessionIdentity, allowCache bool) (*domain.TutorProfile, error) {
	if allowCache {
		cached := &domain.TutorProfile{}
		ok, err := s.store.Get(ctx, profileCacheKey(identity), cached)
		if err != nil {
			s.logger.Warn("tutor_profile_cache_read_failed", zap.Error(err))
		}
		if ok && cached.PlayerHash != "" {
			return cached, nil
		}
	}
	profile, err := s.repo.GetProfile(ctx, identity.PlayerHash, identity.RoomHash)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	s.cacheProfile(ctx, identity, profile)
	return profile, nil
}

func (s *Service) cacheProfile(ctx context.Context, identity sessionIdentity, profile *domain.TutorProfile) {
	if err := s.store.Set(ctx, profileCacheKey(identity), profile, profileCacheTTL); err != nil {
		s.logger.Warn("tutor_profile_cache_write_failed", zap.Error(err))
	}
}

func newProfile(identity sessionIdentity, now time.Time) *domain.TutorProfile {
	return &domain.TutorProfile{
		PlayerHash: identity.PlayerHash,
		RoomHash:   identity.RoomHash,
		Rating:     defaultPlayerRating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func resultFromOutcome(outcome nchess.Outcome) string {
	switch outcome {
	case nchess.WhiteWon:
		return "win"
	case nchess.BlackWon:
		return "loss"
	case nchess.Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// applyGameResult updates counters and the Elo-style rating. The player is
// always White and the opponent is rated at the difficulty's approximate
// strength.
func applyGameResult(profile *domain.TutorProfile, identity sessionIdentity, difficulty string, outcome nchess.Outcome, endedAt time.Time) (*domain.TutorProfile, int) {
	if profile == nil {
		profile = newProfile(identity, endedAt)
	}
	previous := profile.Rating

	profile.GamesPlayed++
	profile.LastDifficulty = difficulty
	profile.LastPlayedAt = endedAt
	profile.UpdatedAt = endedAt

	result := resultFromOutcome(outcome)
	var score float64
	switch result {
	case "win":
		profile.Wins++
		score = 1
	case "loss":
		profile.Losses++
	default:
		profile.Draws++
		result = "draw"
		score = 0.5
	}
	if profile.StreakType == result {
		profile.Streak++
	} else {
		profile.Streak = 1
		profile.StreakType = result
	}

	opponent := difficultyRating(difficulty)
	expected := 1 / (1 + math.Pow(10, float64(opponent-profile.Rating)/400))
	profile.Rating = int(math.Round(float64(profile.Rating) + kFactor*(score-expected)))
	return profile, profile.Rating - previous
}

func difficultyRating(difficulty string) int {
	preset, err := corechess.GetPreset(difficulty)
	if err != nil || preset.ApproxRating <= 0 {
		return defaultPlayerRating
	}
	return preset.ApproxRating
}
