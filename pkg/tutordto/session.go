package tutordto

type MaterialScore struct {
	White int
	Black int
}

type SessionState struct {
	SessionUUID string
	PlayerName  string
	Difficulty  string
	MovesSAN    []string
	MovesUCI    []string
	FEN         string
	BoardImage  []byte
	Turn        string
	MoveCount   int
	Material    MaterialScore
	AutoAdvice  bool
	HintsUsed   int
	Blunders    int
	Profile     *TutorProfile
	RatingDelta int

	// Outcome is "win", "loss" or "draw" from the player's side, empty while
	// the game runs.
	Outcome       string
	OutcomeMethod string
}
