package tutor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-tutor/internal/domain"

	_ "github.com/lib/pq"
)

var ErrDuplicateGame = errors.New("tutor game already exists")

type Repository interface {
	InsertGame(ctx context.Context, game *domain.TutorGame) (int64, error)
	GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.TutorGame, error)
	GetGame(ctx context.Context, id int64, playerHash string) (*domain.TutorGame, error)
	GetGameBySession(ctx context.Context, sessionUUID string, playerHash string) (*domain.TutorGame, error)
	GetProfile(ctx context.Context, playerHash string, roomHash string) (*domain.TutorProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.TutorProfile) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tutor_games (
	id                BIGSERIAL PRIMARY KEY,
	session_uuid      TEXT NOT NULL UNIQUE,
	player_hash       TEXT NOT NULL,
	room_hash         TEXT NOT NULL,
	difficulty        TEXT NOT NULL,
	result            TEXT NOT NULL,
	result_method     TEXT NOT NULL,
	moves_uci         JSONB NOT NULL DEFAULT '[]'::jsonb,
	moves_san         JSONB NOT NULL DEFAULT '[]'::jsonb,
	pgn               TEXT NOT NULL DEFAULT '',
	opening           TEXT NOT NULL DEFAULT '',
	started_at        TIMESTAMPTZ NOT NULL,
	ended_at          TIMESTAMPTZ NOT NULL,
	duration_ms       BIGINT,
	hints_used        INTEGER NOT NULL DEFAULT 0,
	blunders          INTEGER NOT NULL DEFAULT 0,
	engine_latency_ms BIGINT
);
CREATE INDEX IF NOT EXISTS tutor_games_player_ended ON tutor_games (player_hash, ended_at DESC);
CREATE TABLE IF NOT EXISTS tutor_profiles (
	player_hash          TEXT NOT NULL,
	room_hash            TEXT NOT NULL,
	preferred_difficulty TEXT NOT NULL DEFAULT '',
	rating               INTEGER NOT NULL,
	games_played         INTEGER NOT NULL DEFAULT 0,
	wins                 INTEGER NOT NULL DEFAULT 0,
	losses               INTEGER NOT NULL DEFAULT 0,
	draws                INTEGER NOT NULL DEFAULT 0,
	streak               INTEGER NOT NULL DEFAULT 0,
	streak_type          TEXT NOT NULL DEFAULT '',
	last_difficulty      TEXT NOT NULL DEFAULT '',
	last_played_at       TIMESTAMPTZ,
	updated_at           TIMESTAMPTZ NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (player_hash, room_hash)
);`

const gameColumns = `
	id, session_uuid, player_hash, room_hash, difficulty, result, result_method,
	moves_uci, moves_san, pgn, opening, started_at, ended_at, duration_ms,
	hints_used, blunders, engine_latency_ms`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// OpenRepository connects to Postgres and creates the tutor tables if needed.
func OpenRepository(ctx context.Context, databaseURL string) (Repository, func() error, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure tutor schema: %w", err)
	}
	return &repository{db: db}, db.Close, nil
}

func (r *repository) InsertGame(ctx context.Context, game *domain.TutorGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil tutor game payload")
	}
	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO tutor_games (
			session_uuid, player_hash, room_hash, difficulty, result, result_method,
			moves_uci, moves_san, pgn, opening, started_at, ended_at, duration_ms,
			hints_used, blunders, engine_latency_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(ctx, query,
		game.SessionUUID,
		game.PlayerHash,
		game.RoomHash,
		game.Difficulty,
		game.Result,
		game.ResultMethod,
		movesUCI,
		movesSAN,
		game.PGN,
		game.Opening,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
		game.HintsUsed,
		game.Blunders,
		game.EngineLatency.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert tutor game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.TutorGame, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + gameColumns + ` FROM tutor_games WHERE player_hash = $1 ORDER BY ended_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select tutor games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.TutorGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (r *repository) GetGame(ctx context.Context, id int64, playerHash string) (*domain.TutorGame, error) {
	query := `SELECT ` + gameColumns + ` FROM tutor_games WHERE id = $1 AND player_hash = $2`
	game, err := scanGame(r.db.QueryRowContext(ctx, query, id, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

func (r *repository) GetGameBySession(ctx context.Context, sessionUUID string, playerHash string) (*domain.TutorGame, error) {
	query := `SELECT ` + gameColumns + ` FROM tutor_games WHERE session_uuid = $1 AND player_hash = $2 LIMIT 1`
	game, err := scanGame(r.db.QueryRowContext(ctx, query, sessionUUID, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.TutorGame, error) {
	var (
		game         domain.TutorGame
		movesUCIJSON []byte
		movesSANJSON []byte
		durationMS   sql.NullInt64
		latencyMS    sql.NullInt64
	)
	err := row.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.PlayerHash,
		&game.RoomHash,
		&game.Difficulty,
		&game.Result,
		&game.ResultMethod,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.Opening,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
		&game.HintsUsed,
		&game.Blunders,
		&latencyMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan tutor game: %w", err)
	}
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if latencyMS.Valid {
		game.EngineLatency = time.Duration(latencyMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func (r *repository) GetProfile(ctx context.Context, playerHash string, roomHash string) (*domain.TutorProfile, error) {
	const query = `
		SELECT
			player_hash, room_hash, preferred_difficulty, rating, games_played,
			wins, losses, draws, streak, streak_type, last_difficulty,
			last_played_at, updated_at, created_at
		FROM tutor_profiles
		WHERE player_hash = $1 AND room_hash = $2`

	var (
		profile    domain.TutorProfile
		lastPlayed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, playerHash, roomHash).Scan(
		&profile.PlayerHash,
		&profile.RoomHash,
		&profile.PreferredDifficulty,
		&profile.Rating,
		&profile.GamesPlayed,
		&profile.Wins,
		&profile.Losses,
		&profile.Draws,
		&profile.Streak,
		&profile.StreakType,
		&profile.LastDifficulty,
		&lastPlayed,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select tutor profile: %w", err)
	}
	if lastPlayed.Valid {
		profile.LastPlayedAt = lastPlayed.Time
	}
	return &profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.TutorProfile) error {
	if profile == nil {
		return fmt.Errorf("nil tutor profile payload")
	}
	const query = `
		INSERT INTO tutor_profiles (
			player_hash, room_hash, preferred_difficulty, rating, games_played,
			wins, losses, draws, streak, streak_type, last_difficulty,
			last_played_at, updated_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (player_hash, room_hash)
		DO UPDATE SET
			preferred_difficulty = EXCLUDED.preferred_difficulty,
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			last_difficulty = EXCLUDED.last_difficulty,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	var lastPlayed sql.NullTime
	if !profile.LastPlayedAt.IsZero() {
		lastPlayed = sql.NullTime{Time: profile.LastPlayedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		profile.PlayerHash,
		profile.RoomHash,
		profile.PreferredDifficulty,
		profile.Rating,
		profile.GamesPlayed,
		profile.Wins,
		profile.Losses,
		profile.Draws,
		profile.Streak,
		profile.StreakType,
		profile.LastDifficulty,
		lastPlayed,
	)
	if err != nil {
		return fmt.Errorf("upsert tutor profile: %w", err)
	}
	return nil
}
