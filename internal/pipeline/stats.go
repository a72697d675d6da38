package pipeline

import (
	"slices"

	"github.com/abhisek/gradekit/internal/model"
)

// Stats summarizes the scored, applicable responses of a submission.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Max     float64 `json:"max"`
}

// Statistics computes Stats over responses. All fields are zero when
// nothing is scored.
func Statistics(responses []model.Response) Stats {
	var scores []float64
	for _, r := range responses {
		if r.AppliesToStudent && r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}
	if len(scores) == 0 {
		return Stats{}
	}

	slices.Sort(scores)
	var sum float64
	for _, s := range scores {
		sum += s
	}

	n := len(scores)
	median := scores[n/2]
	if n%2 == 0 {
		median = (scores[n/2-1] + scores[n/2]) / 2
	}
	return Stats{
		Count:   n,
		Average: sum / float64(n),
		Median:  median,
		Max:     scores[n-1],
	}
}
