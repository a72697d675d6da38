package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradekit/internal/ledger"
	"github.com/abhisek/gradekit/internal/model"
)

func TestApplyOverride(t *testing.T) {
	repo := ledger.NewMemoryRepo()
	p := newPipeline(nil, repo)
	ctx := context.Background()
	exam := testExam()

	arts, err := p.Grade(ctx, exam, submission("sub-1"), []model.RecognizedRow{
		{QuestionNumber: "1", RawText: "C", Confidence: 0.9},
		{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
		{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
	})
	require.NoError(t, err)
	sub := arts.Submission
	require.Equal(t, model.SubmissionNeedsReview, sub.Status)

	q3 := sub.Responses[2]
	m, err := p.ApplyOverride(ctx, exam, sub, Override{ResponseID: q3.ID, Score: 3, Comment: "Partially explains scattering."})
	require.NoError(t, err)

	got := sub.Responses[2]
	assert.Equal(t, 3.0, *got.Score)
	assert.False(t, *got.IsCorrect)
	assert.Equal(t, model.ReviewConfirmed, got.ReviewStatus)
	assert.Equal(t, "Partially explains scattering.", got.Comments)
	assert.Equal(t, 8.0, sub.TotalScore)
	assert.Equal(t, model.SubmissionGraded, sub.Status)

	require.NotNil(t, m)
	assert.Equal(t, 1, m.ErrorCount)
	assert.Equal(t, 1, repo.Len())

	regraded, err := p.Grade(ctx, exam, sub, []model.RecognizedRow{{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, *regraded.Responses[2].Score, "confirmed override survives re-grade")
}

func TestApplyOverrideKeepsGraded(t *testing.T) {
	p := newPipeline(fixedScorer(5), nil)
	ctx := context.Background()
	exam := testExam()

	arts, err := p.Grade(ctx, exam, submission("sub-1"), []model.RecognizedRow{
		{QuestionNumber: "1", RawText: "C", Confidence: 0.9},
		{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
		{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
	})
	require.NoError(t, err)
	sub := arts.Submission
	require.Equal(t, model.SubmissionGraded, sub.Status)

	m, err := p.ApplyOverride(ctx, exam, sub, Override{ResponseID: sub.Responses[0].ID, Score: 0})
	require.NoError(t, err)
	assert.Nil(t, m, "no ledger configured")
	assert.Equal(t, model.SubmissionGraded, sub.Status)
	assert.Equal(t, 8.0, sub.TotalScore)
}

func TestApplyOverrideRejects(t *testing.T) {
	p := newPipeline(nil, nil)
	ctx := context.Background()
	exam := testExam()

	arts, err := p.Grade(ctx, exam, submission("sub-1"), []model.RecognizedRow{{QuestionNumber: "1", RawText: "C", Confidence: 0.9}})
	require.NoError(t, err)
	sub := arts.Submission

	_, err = p.ApplyOverride(ctx, exam, sub, Override{ResponseID: "missing", Score: 1})
	assert.ErrorIs(t, err, ErrResponseNotFound)

	_, err = p.ApplyOverride(ctx, exam, sub, Override{ResponseID: sub.Responses[3].ID, Score: 1})
	assert.ErrorIs(t, err, ErrNotApplicable)

	_, err = p.ApplyOverride(ctx, exam, sub, Override{ResponseID: sub.Responses[0].ID, Score: 2.5})
	assert.Error(t, err)
	assert.Equal(t, 2.0, *sub.Responses[0].Score, "rejected override leaves response unchanged")
}
