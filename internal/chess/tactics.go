package chess

import "sort"

type tacticContext struct {
	before *Position
	after  *Position
	move   Move
	mover  Color
	opts   ClassifyOptions
}

func (tc *tacticContext) tacticDetectors() []func() (finding, bool) {
	return []func() (finding, bool){
		tc.detectFork,
		tc.detectPin,
		tc.detectSkewer,
		tc.detectDiscoveredAttack,
		tc.detectDeflection,
		tc.detectDecoy,
	}
}

// forkTargets lists the enemy pieces the moved piece could legally take on
// the mover's next turn but could not take from its origin square, most
// valuable first.
func (tc *tacticContext) forkTargets() []Piece {
	mover := tc.after.withMoverToMove()
	targets := mover.captureTargets()[tc.move.To]
	already := tc.before.captureTargets()[tc.move.From]
	out := make([]Piece, 0, len(targets))
	for _, sq := range targets {
		if containsSquare(already, sq) {
			continue
		}
		if pc, ok := tc.after.PieceAt(sq); ok && pc.Kind != King {
			out = append(out, pc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind.Value() > out[j].Kind.Value() })
	return out
}

// royalForkTargets returns the other pieces hit by a checking piece.
func (tc *tacticContext) royalForkTargets() []Piece {
	king, ok := tc.after.kingSquare(tc.mover.Other())
	if !ok || !tc.after.attacks(tc.move.To, king) {
		return nil
	}
	return tc.forkTargets()
}

func (tc *tacticContext) forkData() (map[string]any, bool) {
	targets := tc.forkTargets()
	if len(targets) < 2 {
		return nil, false
	}
	return map[string]any{
		"Saved": title(targets[0].Kind),
		"Lost":  title(targets[1].Kind),
		"Count": len(targets),
	}, true
}

func (tc *tacticContext) detectFork() (finding, bool) {
	data, ok := tc.forkData()
	if !ok {
		return finding{}, false
	}
	return tc.found(TechniqueFork, TierExcellent, "analysis.fork", data), true
}

func (tc *tacticContext) detectPin() (finding, bool) {
	if tc.opts.Geometric {
		return tc.detectRayPin()
	}
	enemy := tc.mover.Other()
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			pc, ok := tc.after.PieceAt(sq)
			if !ok || pc.Color != enemy {
				continue
			}
			if tc.after.pieceMoveCount(sq) > 2 {
				continue
			}
			data := map[string]any{"Pinned": title(pc.Kind), "PinnedSquare": sq.String(), "Behind": ""}
			if _, behind, ok := tc.after.firstPieceOf(sq, moveDirection(tc.move), enemy); ok {
				data["Behind"] = title(behind.Kind)
			}
			return tc.found(TechniquePin, TierVeryGood, "analysis.pin", data), true
		}
	}
	return finding{}, false
}

func (tc *tacticContext) detectRayPin() (finding, bool) {
	for _, pair := range tc.after.enemyRayPairs(tc.move.To, tc.move.Piece, tc.mover.Other()) {
		if pair.front.Kind == King {
			continue
		}
		if pair.back.Kind == King || pair.back.Kind.Value() > pair.front.Kind.Value() {
			return tc.found(TechniquePin, TierVeryGood, "analysis.pin", map[string]any{
				"Pinned":       title(pair.front.Kind),
				"PinnedSquare": pair.frontSq.String(),
				"Behind":       title(pair.back.Kind),
			}), true
		}
	}
	return finding{}, false
}

func (tc *tacticContext) detectSkewer() (finding, bool) {
	if tc.opts.Geometric {
		return tc.detectRaySkewer()
	}
	data, ok := tc.forkData()
	if !ok {
		return finding{}, false
	}
	return tc.found(TechniqueSkewer, TierExcellent, "analysis.skewer", map[string]any{
		"Front": data["Saved"],
		"Back":  data["Lost"],
	}), true
}

func (tc *tacticContext) detectRaySkewer() (finding, bool) {
	for _, pair := range tc.after.enemyRayPairs(tc.move.To, tc.move.Piece, tc.mover.Other()) {
		if pair.back.Kind == King {
			continue
		}
		if pair.front.Kind == King || pair.front.Kind.Value() > pair.back.Kind.Value() {
			return tc.found(TechniqueSkewer, TierExcellent, "analysis.skewer", map[string]any{
				"Front": title(pair.front.Kind),
				"Back":  title(pair.back.Kind),
			}), true
		}
	}
	return finding{}, false
}

// detectDiscoveredAttack looks for a capture that another piece of the mover
// gained because this piece moved out of the way.
func (tc *tacticContext) detectDiscoveredAttack() (finding, bool) {
	before := tc.before.captureTargets()
	after := tc.after.withMoverToMove().captureTargets()
	for origin := Square(0); origin < 64; origin++ {
		if origin == tc.move.From || origin == tc.move.To {
			continue
		}
		for _, target := range after[origin] {
			if containsSquare(before[origin], target) {
				continue
			}
			attacker, _ := tc.after.PieceAt(origin)
			victim, _ := tc.after.PieceAt(target)
			return tc.found(TechniqueDiscoveredAttack, TierVeryGood, "analysis.discovered", map[string]any{
				"Attacker": title(attacker.Kind),
				"Target":   title(victim.Kind),
			}), true
		}
	}
	return finding{}, false
}

func (tc *tacticContext) detectDeflection() (finding, bool) {
	if !tc.after.InCheck() && !tc.move.IsCapture() {
		return finding{}, false
	}
	return tc.found(TechniqueDeflection, TierGood, "analysis.deflection", nil), true
}

func (tc *tacticContext) detectDecoy() (finding, bool) {
	if !tc.move.IsCapture() || tc.move.Captured.Value() <= tc.move.Piece.Value() {
		return finding{}, false
	}
	return tc.found(TechniqueDecoy, TierGood, "analysis.decoy", map[string]any{"Captured": title(tc.move.Captured)}), true
}
