package components

import (
	"strings"

	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/ui/theme"
)

// StepList renders a pipeline step log, one line per step.
func StepList(steps []model.PipelineStep) string {
	if len(steps) == 0 {
		return theme.Hint.Render("no pipeline events")
	}

	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(stepIcon(s.Status))
		b.WriteString(" ")
		b.WriteString(theme.Body.Render(s.Name))
		if s.Detail != "" {
			b.WriteString("  ")
			b.WriteString(theme.Muted.Render(s.Detail))
		}
	}
	return b.String()
}

func stepIcon(status model.StepStatus) string {
	switch status {
	case model.StepSuccess:
		return theme.Correct.Render("✓")
	case model.StepWarning:
		return theme.Caution.Render("!")
	default:
		return theme.Incorrect.Render("✗")
	}
}
