package tutorpresenter

import (
	"fmt"
	"strings"
	"time"

	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/msgcat"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
	"github.com/park285/cheese-chess-tutor/internal/util"
	"github.com/park285/cheese-chess-tutor/pkg/tutordto"
)

const recentMovesShown = 4

// PrefixProvider exposes the command prefix shown in usage hints.
type PrefixProvider interface {
	Prefix() string
}

// Formatter renders tutor DTOs into chat text using the message catalog.
type Formatter struct {
	prefixProvider PrefixProvider
	messages       *msgcat.Catalog
}

func NewFormatter(provider PrefixProvider, messages *msgcat.Catalog) *Formatter {
	return &Formatter{prefixProvider: provider, messages: messages}
}

// Prefix returns the command prefix followed by one space, ready to be
// joined with a subcommand.
func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	prefix := strings.TrimSpace(f.prefixProvider.Prefix())
	if prefix == "" {
		return ""
	}
	return prefix + " "
}

// render falls back to the key so a broken template is visible, not silent.
func (f *Formatter) render(key string, data map[string]any) string {
	if f.messages == nil {
		return key
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.Prefix()
	}
	text, err := f.messages.Render("bot."+key, data)
	if err != nil {
		return key
	}
	return text
}

func (f *Formatter) Start(state *tutordto.SessionState, resumed bool) string {
	if state == nil {
		return f.render("errors.internal", nil)
	}
	lines := make([]string, 0, 6)
	if resumed {
		lines = append(lines, f.render("start.resumed", map[string]any{
			"Difficulty": state.Difficulty,
			"MoveNumber": state.MoveCount/2 + 1,
		}))
	} else {
		lines = append(lines, f.render("start.new", map[string]any{"Difficulty": state.Difficulty}))
	}
	lines = append(lines, f.profileLines(state.Profile, state.RatingDelta)...)
	if state.AutoAdvice {
		lines = append(lines, f.render("start.auto", nil))
	}
	lines = append(lines, "", f.render("start.usage", nil))
	return strings.Join(lines, "\n")
}

// Move describes the player's move, the tutor's reply and, once the game is
// over, the result with the rating change.
func (f *Formatter) Move(summary *tutordto.MoveSummary) string {
	if summary == nil {
		return ""
	}
	var lines []string
	if r := summary.Review; r != nil {
		lines = append(lines, f.render("move.review", map[string]any{
			"SAN":           summary.PlayerSAN,
			"Justification": r.Justification,
			"Tier":          r.Tier,
		}))
	}
	if summary.BlunderCP > 0 {
		lines = append(lines, f.render("move.blunder", map[string]any{
			"Loss": fmt.Sprintf("%.1f", float64(summary.BlunderCP)/100),
		}))
	}
	if summary.EngineSAN != "" {
		key := "move.reply"
		if summary.EngineRandom {
			key = "move.reply_random"
		}
		lines = append(lines, f.render(key, map[string]any{"SAN": summary.EngineSAN}))
	}
	if summary.Finished && summary.State != nil {
		lines = append(lines, "", f.outcome(summary.State.Outcome, summary.State.OutcomeMethod))
		lines = append(lines, f.profileLines(summary.Profile, summary.RatingDelta)...)
		if summary.GameID > 0 {
			lines = append(lines, f.render("outcome.game_id", map[string]any{"ID": summary.GameID}))
		}
	}
	if summary.Advice != nil {
		lines = append(lines, "", f.Advice(summary.Advice))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Advice(advice *tutordto.Advice) string {
	if advice == nil || len(advice.Moves) == 0 {
		return f.render("advice.empty", nil)
	}
	lines := []string{f.render("advice.header", map[string]any{
		"Turn":  advice.Turn,
		"Depth": advice.Depth,
	})}
	for _, mv := range advice.Moves {
		lines = append(lines, f.render("advice.item", map[string]any{
			"Rank":          mv.Rank,
			"SAN":           mv.SAN,
			"Score":         FormatScore(mv.Review),
			"Tier":          mv.Review.Tier,
			"Technique":     mv.Review.Technique,
			"Justification": mv.Review.Justification,
		}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) AdvicePending() string {
	return f.render("advice.pending", nil)
}

func (f *Formatter) Status(state *tutordto.SessionState) string {
	if state == nil {
		return f.Help()
	}
	lines := []string{
		f.render("status.header", nil),
		f.render("status.difficulty", map[string]any{"Difficulty": state.Difficulty}),
		f.render("status.moves", map[string]any{
			"MoveCount": state.MoveCount,
			"Recent":    recentMoves(state.MovesSAN),
		}),
		f.render("status.material", map[string]any{
			"White": state.Material.White,
			"Black": state.Material.Black,
		}),
	}
	if state.HintsUsed > 0 || state.Blunders > 0 {
		lines = append(lines, f.render("status.coaching", map[string]any{
			"Hints":    state.HintsUsed,
			"Blunders": state.Blunders,
		}))
	}
	lines = append(lines, f.profileLines(state.Profile, 0)...)
	return strings.Join(lines, "\n")
}

func (f *Formatter) Undo(state *tutordto.SessionState) string {
	lines := []string{f.render("undo.done", nil)}
	if state != nil {
		lines = append(lines, f.render("status.moves", map[string]any{
			"MoveCount": state.MoveCount,
			"Recent":    recentMoves(state.MovesSAN),
		}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Resign(state *tutordto.SessionState) string {
	lines := []string{f.render("outcome.resigned", nil)}
	if state != nil {
		lines = append(lines, f.profileLines(state.Profile, state.RatingDelta)...)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Help() string {
	header := f.render("help.header", nil)
	body := f.render("help.body", map[string]any{
		"Difficulties": strings.Join(corechess.PresetNames(), "|"),
		"MaxDepth":     svc.MaxAdviceDepth,
	})
	return util.ApplyKakaoSeeMorePadding(body, header)
}

func (f *Formatter) History(games []*tutordto.TutorGame) string {
	if len(games) == 0 {
		return f.render("history.empty", nil)
	}
	header := f.render("history.header", nil)
	lines := []string{header}
	for _, g := range games {
		moves := len(g.MovesSAN)
		if moves == 0 {
			moves = len(g.MovesUCI)
		}
		lines = append(lines, f.render("history.item", map[string]any{
			"ID":         g.ID,
			"Result":     resultBadge(g.Result),
			"When":       shortTime(g.EndedAt),
			"Difficulty": g.Difficulty,
			"Moves":      moves,
			"Opening":    g.Opening,
		}))
	}
	lines = append(lines, "", f.render("history.footer", nil))
	return util.ApplySeeMoreWithHeader(strings.Join(lines, "\n"), header, "", "")
}

func (f *Formatter) Game(game *tutordto.TutorGame) string {
	if game == nil {
		return f.render("errors.game_not_found", nil)
	}
	lines := []string{
		f.render("game.header", map[string]any{"ID": game.ID}),
		f.render("game.result", map[string]any{
			"Result": resultBadge(game.Result),
			"Method": game.ResultMethod,
		}),
		f.render("game.difficulty", map[string]any{"Difficulty": game.Difficulty}),
	}
	if game.Opening != "" {
		lines = append(lines, f.render("game.opening", map[string]any{"Opening": game.Opening}))
	}
	if !game.StartedAt.IsZero() {
		lines = append(lines, f.render("game.timing", map[string]any{
			"Started":  shortTime(game.StartedAt),
			"Duration": gameDuration(game.Duration),
		}))
	}
	lines = append(lines, f.render("game.coaching", map[string]any{
		"Hints":    game.HintsUsed,
		"Blunders": game.Blunders,
	}))
	if pgn := strings.TrimSpace(game.PGN); pgn != "" {
		lines = append(lines, "", pgn)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Profile(profile *tutordto.TutorProfile) string {
	if profile == nil {
		return f.render("profile.missing", nil)
	}
	header := f.render("profile.header", nil)
	lines := append([]string{header}, f.profileLines(profile, 0)...)
	if profile.Streak > 1 {
		lines = append(lines, f.render("profile.streak", map[string]any{
			"Count": profile.Streak,
			"Kind":  streakKind(profile.StreakType),
		}))
	}
	if !profile.LastPlayedAt.IsZero() {
		lines = append(lines, f.render("profile.last_played", map[string]any{"When": shortTime(profile.LastPlayedAt)}))
	}
	return util.ApplySeeMoreWithHeader(strings.Join(lines, "\n"), header, "", "")
}

func (f *Formatter) PreferredDifficultyUpdated(profile *tutordto.TutorProfile) string {
	if profile == nil {
		return f.render("errors.internal", nil)
	}
	return f.render("profile.updated", map[string]any{"Difficulty": profile.PreferredDifficulty})
}

// Error turns a mapped service error into the user-facing message.
func (f *Formatter) Error(derr tutordto.DomainError) string {
	return f.render("errors."+derr.Code, map[string]any{
		"MaxDepth":     svc.MaxAdviceDepth,
		"Difficulties": strings.Join(corechess.PresetNames(), ", "),
	})
}

func (f *Formatter) UnknownCommand() string {
	return f.render("errors.unknown_command", nil)
}

func (f *Formatter) BadGameID() string {
	return f.render("errors.bad_id", nil)
}

func (f *Formatter) outcome(result, method string) string {
	data := map[string]any{"Method": method}
	switch result {
	case "win":
		return f.render("outcome.win", data)
	case "loss":
		if method == "resignation" {
			return f.render("outcome.resigned", nil)
		}
		return f.render("outcome.loss", data)
	case "draw":
		return f.render("outcome.draw", data)
	default:
		return f.render("outcome.over", nil)
	}
}

func (f *Formatter) profileLines(profile *tutordto.TutorProfile, delta int) []string {
	if profile == nil {
		return nil
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	lines := []string{
		f.render("profile.rating", map[string]any{"Rating": profile.Rating, "Delta": delta, "Abs": abs}),
		f.render("profile.record", map[string]any{
			"Wins":   profile.Wins,
			"Losses": profile.Losses,
			"Draws":  profile.Draws,
			"Games":  profile.GamesPlayed,
		}),
	}
	if profile.PreferredDifficulty != "" {
		lines = append(lines, f.render("profile.preferred", map[string]any{"Difficulty": profile.PreferredDifficulty}))
	}
	return lines
}

// FormatScore shows centipawns as signed pawns; forced mates read #+ or #-.
func FormatScore(r tutordto.MoveReview) string {
	if r.Mate {
		if r.ScoreCP > 0 {
			return "#+"
		}
		return "#-"
	}
	return fmt.Sprintf("%+.2f", float64(r.ScoreCP)/100)
}

func recentMoves(moves []string) string {
	if len(moves) <= recentMovesShown {
		return strings.Join(moves, " ")
	}
	return "... " + strings.Join(moves[len(moves)-recentMovesShown:], " ")
}

func resultBadge(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win":
		return "✅ win"
	case "loss":
		return "❌ loss"
	case "draw":
		return "🤝 draw"
	default:
		return "▫️ " + result
	}
}

func streakKind(streakType string) string {
	switch streakType {
	case "win":
		return "wins"
	case "loss":
		return "losses"
	case "draw":
		return "draws"
	default:
		return "games"
	}
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return util.FormatKST(t, "2006-01-02 15:04")
}

func gameDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
