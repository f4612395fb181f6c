package tutordto

import "time"

type TutorGame struct {
	ID            int64
	SessionUUID   string
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
