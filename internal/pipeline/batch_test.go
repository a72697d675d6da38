package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradekit/internal/ledger"
	"github.com/abhisek/gradekit/internal/model"
)

func TestGradeBatch(t *testing.T) {
	repo := ledger.NewMemoryRepo()
	p := newPipeline(fixedScorer(5), repo)

	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{
			Submission: submission(fmt.Sprintf("sub-%d", i)),
			Rows:       []model.RecognizedRow{{QuestionNumber: "1", RawText: "A", Confidence: 0.9}},
		}
	}
	jobs[5].Rows = nil

	results, err := p.GradeBatch(context.Background(), testExam(), jobs, 3)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, r := range results[:5] {
		require.NoError(t, r.Err, "job %d", i)
		assert.Equal(t, fmt.Sprintf("sub-%d", i), r.Artifacts.Submission.ID)
	}
	assert.Error(t, results[5].Err, "job without rows or recognizer fails alone")

	m, err := repo.Get(context.Background(), "stu-1", "q1")
	require.NoError(t, err)
	assert.Equal(t, 5, m.ErrorCount)
	assert.Equal(t, 1, repo.Len())
}

func TestGradeBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Submission: submission("sub-1"), Rows: []model.RecognizedRow{{QuestionNumber: "1", RawText: "C"}}}}
	results, err := newPipeline(nil, nil).GradeBatch(ctx, testExam(), jobs, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
