package chess

import (
	"github.com/park285/cheese-chess-tutor/internal/msgcat"
)

func render(r Renderer, f finding) string {
	if r == nil {
		if c, err := msgcat.Default(); err == nil {
			r = c
		}
	}
	if r != nil {
		if text, err := r.Render(f.key, f.data); err == nil {
			return text
		}
	}
	// Catalog missing or broken: fall back to the bare label.
	if f.technique == TechniqueNone {
		return f.tier.String()
	}
	return f.technique.String()
}
