package domain

import "time"

// TutorGame is a finished game against the tutor engine.
type TutorGame struct {
	ID            int64
	SessionUUID   string
	PlayerHash    string
	RoomHash      string
	Difficulty    string
	Result        string
	ResultMethod  string
	MovesUCI      []string
	MovesSAN      []string
	PGN           string
	Opening       string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	HintsUsed     int
	Blunders      int
	EngineLatency time.Duration
}

type TutorProfile struct {
	PlayerHash          string
	RoomHash            string
	PreferredDifficulty string
	Rating              int
	GamesPlayed         int
	Wins                int
	Losses              int
	Draws               int
	Streak              int
	StreakType          string
	LastDifficulty      string
	LastPlayedAt        time.Time
	UpdatedAt           time.Time
	CreatedAt           time.Time
}
