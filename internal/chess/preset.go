package chess

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// DifficultyPreset maps a difficulty name to a search policy. A zero Depth
// means the tier never searches.
type DifficultyPreset struct {
	Name         string
	Depth        int
	RandomRate   float64
	ApproxRating int
	Description  string
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyExpert = "expert"
)

var presetMu sync.RWMutex

var DefaultPresets = map[string]DifficultyPreset{
	DifficultyEasy: {
		Name:         DifficultyEasy,
		Depth:        0,
		RandomRate:   1,
		ApproxRating: 600,
		Description:  "Random moves - Great for beginners",
	},
	DifficultyMedium: {
		Name:         DifficultyMedium,
		Depth:        2,
		RandomRate:   0.5,
		ApproxRating: 900,
		Description:  "Makes some mistakes - Good for learning",
	},
	DifficultyHard: {
		Name:         DifficultyHard,
		Depth:        3,
		RandomRate:   0,
		ApproxRating: 1200,
		Description:  "Strong player - Challenging",
	},
	DifficultyExpert: {
		Name:         DifficultyExpert,
		Depth:        4,
		RandomRate:   0,
		ApproxRating: 1500,
		Description:  "Very strong - Expert level",
	},
}

var presetAliases = map[string]string{
	"beginner":     DifficultyEasy,
	"1":            DifficultyEasy,
	"intermediate": DifficultyMedium,
	"normal":       DifficultyMedium,
	"2":            DifficultyMedium,
	"advanced":     DifficultyHard,
	"3":            DifficultyHard,
	"master":       DifficultyExpert,
	"4":            DifficultyExpert,
}

func GetPreset(name string) (DifficultyPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := presetAliases[key]; ok {
		key = alias
	}
	presetMu.RLock()
	p, ok := DefaultPresets[key]
	presetMu.RUnlock()
	if !ok {
		return DifficultyPreset{}, fmt.Errorf("%w: %s", ErrUnknownDifficulty, name)
	}
	return p, nil
}

// PresetNames lists the configured difficulties from weakest to strongest.
func PresetNames() []string {
	presetMu.RLock()
	presets := make([]DifficultyPreset, 0, len(DefaultPresets))
	for _, p := range DefaultPresets {
		presets = append(presets, p)
	}
	presetMu.RUnlock()
	sort.Slice(presets, func(i, j int) bool {
		if presets[i].ApproxRating != presets[j].ApproxRating {
			return presets[i].ApproxRating < presets[j].ApproxRating
		}
		return presets[i].Name < presets[j].Name
	})
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// SetPreset registers or replaces a difficulty after validating it.
func SetPreset(p DifficultyPreset) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if err := ValidatePreset(p); err != nil {
		return err
	}
	presetMu.Lock()
	DefaultPresets[p.Name] = p
	presetMu.Unlock()
	return nil
}

func ValidatePreset(p DifficultyPreset) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name required")
	}
	if p.RandomRate < 0 || p.RandomRate > 1 {
		return fmt.Errorf("preset %s: random rate %.2f out of range", p.Name, p.RandomRate)
	}
	if p.Depth < 0 || p.Depth > MaxSearchDepth {
		return fmt.Errorf("preset %s: depth %d out of range", p.Name, p.Depth)
	}
	if p.Depth == 0 && p.RandomRate < 1 {
		return fmt.Errorf("preset %s: searching tier needs a depth", p.Name)
	}
	return nil
}
