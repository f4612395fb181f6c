package tutordto

import "time"

type TutorProfile struct {
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
