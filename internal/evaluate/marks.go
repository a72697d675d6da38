package evaluate

import (
	"strings"
)

var (
	positiveMarks = []string{"✔", "✓", "√", "对", "V"}
	negativeMarks = []string{"✘", "✗", "×", "错", "X"}
)

// ScoreFromMark derives a score from a teacher's handwritten mark.
//
// A check yields maxScore and a cross yields zero. "earned/total" yields
// the proportional score rounded to two decimals and requires
// 0 <= earned <= total with total > 0. A bare number between zero and
// maxScore is taken as the score itself. Anything else is unparseable and
// reports false.
func ScoreFromMark(mark string, maxScore float64) (float64, bool) {
	mark = strings.ToUpper(fold(mark))
	if mark == "" {
		return 0, false
	}

	if containsAny(mark, positiveMarks) {
		return maxScore, true
	}
	if containsAny(mark, negativeMarks) {
		return 0, true
	}

	if earnedStr, totalStr, ok := strings.Cut(mark, "/"); ok {
		earned, ok1 := parseNumber(earnedStr)
		total, ok2 := parseNumber(totalStr)
		if !ok1 || !ok2 || total <= 0 || earned < 0 || earned > total {
			return 0, false
		}
		return round2(earned / total * maxScore), true
	}

	if v, ok := parseNumber(mark); ok && v >= 0 && v <= maxScore {
		return v, true
	}
	return 0, false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
