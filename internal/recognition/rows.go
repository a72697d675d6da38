package recognition

import (
	"regexp"
	"strings"

	"github.com/abhisek/gradekit/internal/model"
)

// Line is one line of OCR output with its confidence in [0, 1].
type Line struct {
	Text       string
	Confidence float64
}

// questionLine matches "12. answer", "12) answer", "12：answer" or "12 answer".
var questionLine = regexp.MustCompile(`^(\d{1,3})\s*[).:：]?\s*(.*)$`)

// markOnly matches lines made up entirely of check or cross glyphs.
var markOnly = regexp.MustCompile(`^[✔✘×√对错]+$`)

var annotationTokens = map[string]bool{
	"✔": true, "✘": true, "×": true, "√": true,
	"对": true, "错": true, "圈": true, "○": true,
	"X": true, "V": true,
}

func isAnnotation(text string) bool {
	return annotationTokens[text] || markOnly.MatchString(text)
}

// AssembleRows groups OCR lines, already in reading order, into question
// rows. A numbered line opens a row. A standalone mark attaches to the open
// row and raises its confidence to the higher of the two. Any other line
// continues the open row's text and averages the confidence. Text before
// the first numbered line is dropped.
func AssembleRows(lines []Line) []model.RecognizedRow {
	var (
		rows    []model.RecognizedRow
		current = -1
	)

	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		conf := model.ClampConfidence(l.Confidence)

		if current >= 0 && isAnnotation(text) {
			row := &rows[current]
			row.Annotation = text
			row.Confidence = max(row.Confidence, conf)
			continue
		}

		if m := questionLine.FindStringSubmatch(text); m != nil {
			rows = append(rows, model.RecognizedRow{
				QuestionNumber: m[1],
				RawText:        strings.TrimSpace(m[2]),
				Confidence:     conf,
			})
			current = len(rows) - 1
			continue
		}

		if current >= 0 {
			row := &rows[current]
			row.RawText = strings.TrimSpace(row.RawText + " " + text)
			row.Confidence = (row.Confidence + conf) / 2
		}
	}

	return rows
}
