package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/gradekit/internal/ui/theme"
)

// ScoreBar displays earned points against the maximum as a horizontal bar.
type ScoreBar struct {
	Label  string
	Earned float64
	Max    float64
	Width  int
}

// NewScoreBar creates a new score bar.
func NewScoreBar(label string, earned, maxScore float64, width int) ScoreBar {
	return ScoreBar{
		Label:  label,
		Earned: earned,
		Max:    maxScore,
		Width:  width,
	}
}

// Percent is Earned/Max clamped to [0, 1]. A zero Max yields 0.
func (s ScoreBar) Percent() float64 {
	if s.Max <= 0 {
		return 0
	}
	return min(max(s.Earned/s.Max, 0), 1)
}

// View renders the score bar.
func (s ScoreBar) View() string {
	var result string

	if s.Label != "" {
		result += theme.Body.Render(s.Label) + "  "
	}

	scoreText := fmt.Sprintf("  %g/%g", s.Earned, s.Max)
	barWidth := s.Width - lipgloss.Width(result) - len(scoreText)
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * s.Percent())
	empty := barWidth - filled

	result += lipgloss.NewStyle().Background(theme.Bar).Render(strings.Repeat(" ", filled))
	result += lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", empty))
	result += theme.Muted.Render(scoreText)
	return result
}
