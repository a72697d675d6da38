package model

// RecognizedRow is one question's worth of recognized text from a scan.
type RecognizedRow struct {
	QuestionNumber string  `json:"question_number"`
	RawText        string  `json:"raw_text"`
	Annotation     string  `json:"annotation,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// HasAnnotation reports whether a teacher mark was recognized.
func (r *RecognizedRow) HasAnnotation() bool { return r.Annotation != "" }

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
