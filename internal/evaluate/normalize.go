package evaluate

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// fold maps full-width forms (Ｂ, ３, ／, ，) to their ASCII counterparts.
// Handwriting recognized from Chinese sheets mixes both freely.
func fold(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// normalizeOption is the canonical form of a multiple-choice answer.
func normalizeOption(s string) string {
	return strings.ToUpper(fold(s))
}

// normalizeText is the canonical form for non-numeric blank matching.
func normalizeText(s string) string {
	return strings.ToLower(fold(s))
}

// parseNumber reads a decimal, ignoring thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(fold(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp bounds v to [0, hi].
func clamp(v, hi float64) float64 {
	return math.Max(0, math.Min(v, hi))
}

const scoreEpsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= scoreEpsilon
}
