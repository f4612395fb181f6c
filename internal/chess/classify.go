package chess

import (
	"strings"
)

// Tier grades a candidate move for display.
type Tier uint8

const (
	TierNeutral Tier = iota
	TierDecent
	TierGood
	TierVeryGood
	TierExcellent
	TierWinning
)

var tierNames = [...]string{"Neutral", "Decent", "Good", "Very Good", "Excellent", "Winning"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "Neutral"
}

type Technique uint8

const (
	TechniqueNone Technique = iota
	TechniqueCheckmate
	TechniqueCheck
	TechniqueMaterialGain
	TechniqueMinorPieceCapture
	TechniquePawnCapture
	TechniqueCastling
	TechniqueEnPassant
	TechniquePawnPromotion
	TechniqueFork
	TechniquePin
	TechniqueSkewer
	TechniqueDiscoveredAttack
	TechniqueDeflection
	TechniqueDecoy
	TechniqueCenterControl
	TechniquePieceDevelopment
	TechniqueKingSafety
	TechniquePawnStructure
)

var techniqueNames = [...]string{
	"",
	"Checkmate",
	"Check",
	"Material Gain",
	"Minor Piece Capture",
	"Pawn Capture",
	"Castling",
	"En Passant",
	"Pawn Promotion",
	"Fork",
	"Pin",
	"Skewer",
	"Discovered Attack",
	"Deflection",
	"Decoy",
	"Center Control",
	"Piece Development",
	"King Safety",
	"Pawn Structure",
}

func (t Technique) String() string {
	if int(t) < len(techniqueNames) {
		return techniqueNames[t]
	}
	return ""
}

// MoveAnalysis is the classified view of one candidate move.
type MoveAnalysis struct {
	Move          Move
	Score         Score
	Tier          Tier
	Technique     Technique
	Justification string
}

// Renderer turns a message key and its data into text. *msgcat.Catalog
// satisfies it.
type Renderer interface {
	Render(key string, data any) (string, error)
}

type ClassifyOptions struct {
	// Geometric replaces the mobility-based pin and the fork-based skewer with
	// ray tests from the moved slider.
	Geometric bool
	// Messages renders justifications; the embedded catalog is used when nil.
	Messages Renderer
}

// finding is a matched classification rule waiting to be rendered.
type finding struct {
	technique Technique
	tier      Tier
	key       string
	data      map[string]any
}

// ClassifyMove labels m, played from pos, with the first matching rule.
// score is the search score already computed for m; it only matters when no
// named rule applies. pos is not modified.
func ClassifyMove(pos *Position, m Move, score Score, opts ClassifyOptions) (MoveAnalysis, error) {
	before := pos.Clone()
	after := pos.Clone()
	if _, err := after.Apply(m); err != nil {
		return MoveAnalysis{}, err
	}
	tc := &tacticContext{before: before, after: after, move: m, mover: before.Turn(), opts: opts}
	f := tc.classify(score)
	return MoveAnalysis{
		Move:          m,
		Score:         score,
		Tier:          f.tier,
		Technique:     f.technique,
		Justification: render(opts.Messages, f),
	}, nil
}

func (tc *tacticContext) classify(score Score) finding {
	m := tc.move
	switch {
	case tc.after.IsCheckmate():
		return tc.found(TechniqueCheckmate, TierWinning, "analysis.checkmate", nil)
	case tc.after.InCheck():
		return tc.checkFinding()
	case m.IsCapture():
		return tc.captureFinding()
	case m.IsCastle():
		return tc.found(TechniqueCastling, TierGood, "analysis.castling", map[string]any{"Side": castleSide(m)})
	case m.Has(FlagEnPassant):
		return tc.found(TechniqueEnPassant, TierGood, "analysis.en_passant", nil)
	case m.Has(FlagPromotion):
		return tc.found(TechniquePawnPromotion, TierExcellent, "analysis.promotion", map[string]any{"Promotion": title(m.Promotion)})
	}
	for _, detect := range tc.tacticDetectors() {
		if f, ok := detect(); ok {
			return f
		}
	}
	for _, detect := range []func() (finding, bool){
		tc.detectCenterControl,
		tc.detectDevelopment,
		tc.detectKingSafety,
		tc.detectPawnStructure,
	} {
		if f, ok := detect(); ok {
			return f
		}
	}
	return tc.genericFinding(score)
}

func (tc *tacticContext) checkFinding() finding {
	if targets := tc.royalForkTargets(); len(targets) > 0 {
		return tc.found(TechniqueCheck, TierExcellent, "analysis.check_fork", map[string]any{"Target": title(targets[0].Kind)})
	}
	return tc.found(TechniqueCheck, TierExcellent, "analysis.check", nil)
}

func (tc *tacticContext) captureFinding() finding {
	data := map[string]any{"Captured": tc.move.Captured.String()}
	switch v := tc.move.Captured.Value(); {
	case v >= 500:
		return tc.found(TechniqueMaterialGain, TierExcellent, "analysis.capture_major", data)
	case v >= 300:
		return tc.found(TechniqueMinorPieceCapture, TierVeryGood, "analysis.capture_minor", data)
	default:
		return tc.found(TechniquePawnCapture, TierGood, "analysis.capture_pawn", data)
	}
}

func (tc *tacticContext) genericFinding(score Score) finding {
	abs := score
	if abs < 0 {
		abs = -abs
	}
	var tier Tier
	switch {
	case abs > 900:
		tier = TierExcellent
	case abs > 500:
		tier = TierVeryGood
	case abs > 200:
		tier = TierGood
	case abs > 0:
		tier = TierDecent
	default:
		tier = TierNeutral
	}
	return tc.found(TechniqueNone, tier, "analysis.generic", map[string]any{"Tier": tier.String()})
}

func (tc *tacticContext) found(t Technique, tier Tier, key string, extra map[string]any) finding {
	m := tc.move
	data := map[string]any{
		"Piece": title(m.Piece),
		"From":  m.From.String(),
		"To":    m.To.String(),
		"Move":  m.UCI(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return finding{technique: t, tier: tier, key: key, data: data}
}

func castleSide(m Move) string {
	if m.Has(FlagCastleQueenside) {
		return "queenside"
	}
	return "kingside"
}

func title(k PieceKind) string {
	s := k.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
