package tutordto

import "time"

// MoveReview is the tutor's verdict on one move.
type MoveReview struct {
	MoveUCI       string
	ScoreCP       int
	Mate          bool
	Tier          string
	Technique     string
	Justification string
}

type MoveSummary struct {
	State        *SessionState
	PlayerSAN    string
	PlayerUCI    string
	Review       *MoveReview
	BlunderCP    int
	EngineSAN    string
	EngineUCI    string
	EngineRandom bool
	Finished     bool
	GameID       int64
	Profile      *TutorProfile
	RatingDelta  int

	Advice        *Advice
	AdvicePending bool
}

type AdvisedMove struct {
	Rank   int
	SAN    string
	Review MoveReview
}

// Advice lists the best candidate moves, strongest first.
type Advice struct {
	Depth      int
	Turn       string
	MoveCount  int
	Moves      []AdvisedMove
	BoardImage []byte
	Duration   time.Duration
}
