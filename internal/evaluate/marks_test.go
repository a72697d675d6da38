package evaluate

import "testing"

func TestScoreFromMark(t *testing.T) {
	tests := []struct {
		mark  string
		max   float64
		want  float64
		valid bool
	}{
		{"✔", 5, 5, true},
		{"√", 5, 5, true},
		{"对", 4, 4, true},
		{"v", 4, 4, true},
		{"✘", 5, 0, true},
		{"×", 5, 0, true},
		{"错", 5, 0, true},
		{"x", 5, 0, true},
		{"3/5", 10, 6, true},
		{"2/3", 5, 3.33, true},
		{"０/４", 8, 0, true},
		{" 4 / 4 ", 3, 3, true},
		{"6/5", 10, 0, false},
		{"-1/5", 10, 0, false},
		{"3/0", 10, 0, false},
		{"a/b", 10, 0, false},
		{"4", 5, 4, true},
		{"４.5", 5, 4.5, true},
		{"7", 5, 0, false},
		{"-1", 5, 0, false},
		{"NaN", 5, 0, false},
		{"great", 5, 0, false},
		{"", 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.mark, func(t *testing.T) {
			got, ok := ScoreFromMark(tt.mark, tt.max)
			if ok != tt.valid {
				t.Fatalf("ScoreFromMark(%q, %v) ok = %v, want %v", tt.mark, tt.max, ok, tt.valid)
			}
			if ok && got != tt.want {
				t.Errorf("ScoreFromMark(%q, %v) = %v, want %v", tt.mark, tt.max, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,000", 1000, true},
		{" 3.14 ", 3.14, true},
		{"１２", 12, true},
		{"-2", -2, true},
		{"six", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
