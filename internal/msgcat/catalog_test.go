package msgcat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"
)

func TestDefaultRendersAnalysisTemplates(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	text, err := c.Render("analysis.fork", map[string]any{
		"Piece": "Knight", "To": "c7", "Count": 2, "Saved": "queen", "Lost": "rook",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(text, "Knight to c7 attacks 2 pieces") || !strings.Contains(text, "the rook is lost") {
		t.Fatalf("unexpected text %q", text)
	}
	if _, err := c.Render("analysis.fork", map[string]any{"Piece": "Knight"}); err == nil {
		t.Fatalf("missing data should fail")
	}
	if _, err := c.Render("analysis.nope", nil); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("unknown key should fail")
	}
}

func TestEmbeddedTemplatesParse(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"analysis.checkmate", "bot.help.body", "bot.errors.no_session", "bot.advice.item"} {
		if !c.Has(key) {
			t.Fatalf("missing key %s", key)
		}
	}
	for key, text := range c.data {
		if _, err := template.New(key).Parse(text); err != nil {
			t.Fatalf("template %s does not parse: %v", key, err)
		}
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "bot:\n  undo:\n    done: \"Undone.\"\n")
	write("ignored.txt", "bot: [")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if text, _ := c.Render("bot.undo.done", nil); text != "Undone." {
		t.Fatalf("override not applied: %q", text)
	}
	if text, _ := c.Render("bot.outcome.over", nil); text != "The game is over." {
		t.Fatalf("defaults lost: %q", text)
	}

	write("b.yml", "bot:\n  undo:\n    done: \"Again.\"\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestOverrideRejectsLists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("bot:\n  help:\n    - one\n    - two\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "bot.help") {
		t.Fatalf("expected error naming bot.help, got %v", err)
	}
	if _, err := New(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for a missing dir")
	}
}
