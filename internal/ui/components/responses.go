package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/ui/theme"
)

// ResponseTable renders one row per response: number, answer, score and
// review state. maxScores maps question id to max score.
func ResponseTable(responses []model.Response, maxScores map[string]float64) string {
	header := fmt.Sprintf("%-4s  %-24s  %-9s  %-12s  %s", "#", "Answer", "Score", "Review", "Comment")
	lines := []string{theme.Title.Render(header), theme.Muted.Render(strings.Repeat("─", lipgloss.Width(header)+8))}

	for _, r := range responses {
		score := "—"
		style := theme.Muted
		switch {
		case !r.AppliesToStudent:
			score = "n/a"
		case r.Score != nil:
			score = fmt.Sprintf("%g/%g", *r.Score, maxScores[r.QuestionID])
			style = theme.Incorrect
			if r.IsCorrect != nil && *r.IsCorrect {
				style = theme.Correct
			}
		default:
			style = theme.Caution
		}

		lines = append(lines, fmt.Sprintf("%-4s  %-24s  %s  %-12s  %s",
			r.QuestionNumber,
			clip(r.StudentAnswer, 24),
			style.Render(fmt.Sprintf("%-9s", score)),
			r.ReviewStatus,
			theme.Muted.Render(clip(r.Comments, 48)),
		))
	}
	return strings.Join(lines, "\n")
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
