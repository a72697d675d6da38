package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradekit/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.pragma).Scan(&got), tt.pragma)
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSequenceIsMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.seq.Next(ctx)
	require.NoError(t, err)
	b, err := s.seq.reserve(ctx, 3)
	require.NoError(t, err)
	c, err := s.seq.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, a+1, b)
	assert.Equal(t, b+3, c)
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "qwen3-vl-plus", Model: "qwen3-vl-plus", Purpose: "vision-recognition", InputTokens: 900, OutputTokens: 120, LatencyMs: 800, Success: true, RequestBody: "[user]\n<image>", ResponseBody: `{"rows":[]}`},
		{Provider: "qwen-max", Model: "qwen-max", Purpose: "subjective-scoring", InputTokens: 200, OutputTokens: 40, LatencyMs: 300, Success: true},
		{Provider: "qwen-max", Model: "qwen-max", Purpose: "subjective-scoring", InputTokens: 100, OutputTokens: 0, LatencyMs: 100, Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "rate limited", all[0].ErrorMessage, "newest first")
	assert.Greater(t, all[0].Sequence, all[1].Sequence)

	scoring, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "subjective-scoring", Limit: 1})
	require.NoError(t, err)
	require.Len(t, scoring, 1)
	assert.False(t, scoring[0].Success)

	got, err := repo.GetLLMEvent(ctx, all[2].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"rows":[]}`, got.ResponseBody)
	assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, PurposeUsage{Purpose: "subjective-scoring", Calls: 2, InputTokens: 300, OutputTokens: 40, AvgLatencyMs: 200}, byPurpose[0])

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "qwen-max", byModel[0].Model)
	assert.Equal(t, 2, byModel[0].Calls)
}

func TestMistakeUpsert(t *testing.T) {
	s := openTestStore(t)
	repo := s.MistakeRepo()
	ctx := context.Background()

	m, err := repo.Get(ctx, "stu-1", "q-1")
	require.NoError(t, err)
	assert.Nil(t, m)

	created := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &model.Mistake{
		ID: "m-1", StudentID: "stu-1", QuestionID: "q-1",
		SubmissionID: "sub-1", ResponseID: "r-1",
		KnowledgeTags: []string{"fractions"}, ErrorCount: 1,
		CreatedAt: created, LastSeenAt: created,
	}))

	// A second save for the same key must update in place, keeping the
	// original ID and creation time.
	later := created.Add(48 * time.Hour)
	cause := "repeated-error"
	require.NoError(t, repo.Save(ctx, &model.Mistake{
		ID: "m-ignored", StudentID: "stu-1", QuestionID: "q-1",
		SubmissionID: "sub-2", ResponseID: "r-2",
		KnowledgeTags: []string{"fractions", "division"}, ErrorCount: 2,
		CreatedAt: later, LastSeenAt: later, RootCause: &cause,
		ResolutionNotes: "Mastered on latest attempt", ResolvedSubmissionID: "sub-3",
	}))

	m, err = repo.Get(ctx, "stu-1", "q-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "m-1", m.ID)
	assert.True(t, m.CreatedAt.Equal(created))
	assert.True(t, m.LastSeenAt.Equal(later))
	assert.Equal(t, 2, m.ErrorCount)
	assert.Equal(t, "sub-2", m.SubmissionID)
	assert.Equal(t, []string{"fractions", "division"}, m.KnowledgeTags)
	require.NotNil(t, m.RootCause)
	assert.Equal(t, "repeated-error", *m.RootCause)
	assert.Equal(t, "sub-3", m.ResolvedSubmissionID)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM mistakes`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMistakeListByStudent(t *testing.T) {
	s := openTestStore(t)
	repo := s.MistakeRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, q := range []string{"q-1", "q-2"} {
		require.NoError(t, repo.Save(ctx, &model.Mistake{
			ID: "m-" + q, StudentID: "stu-1", QuestionID: q,
			SubmissionID: "sub-1", ResponseID: "r-" + q, ErrorCount: 1,
			CreatedAt: now, LastSeenAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	resolved, err := repo.Get(ctx, "stu-1", "q-1")
	require.NoError(t, err)
	resolved.ResolutionNotes = "Mastered on latest attempt"
	require.NoError(t, repo.Save(ctx, resolved))

	open, err := repo.ListByStudent(ctx, "stu-1", false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "q-2", open[0].QuestionID)

	all, err := repo.ListByStudent(ctx, "stu-1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "q-2", all[0].QuestionID, "most recently seen first")
}

func TestSubmissionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.SubmissionRepo()
	ctx := context.Background()

	sub := &model.Submission{
		ID: "sub-1", ExamID: "exam-1", StudentID: "stu-1",
		SubmittedAt: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		TotalScore:  2, Status: model.SubmissionNeedsReview,
		Responses: []model.Response{
			{
				ID: "r-1", SubmissionID: "sub-1", QuestionID: "q-1", QuestionNumber: "1",
				StudentAnswer: "b", NormalizedAnswer: "B",
				Score: model.Float(2), IsCorrect: model.Bool(true),
				RecognitionConfidence: model.Float(0.93), AppliesToStudent: true,
				ReviewStatus: model.ReviewPending,
			},
			{
				ID: "r-2", SubmissionID: "sub-1", QuestionID: "q-2", QuestionNumber: "2",
				StudentAnswer: "photosynthesis makes sugar", AppliesToStudent: true,
				ReviewStatus: model.ReviewNeedsReview, TeacherAnnotation: map[string]string{"raw": "?"},
				Comments: "scorer unavailable",
			},
		},
	}
	steps := []model.PipelineStep{
		{Name: "vision-recognition", Status: model.StepSuccess, Detail: "2 rows"},
		{Name: "subjective-scoring", Status: model.StepWarning, Detail: "question 2: not configured"},
	}
	require.NoError(t, repo.Save(ctx, sub, steps))

	got, err := repo.Get(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.SubmissionNeedsReview, got.Status)
	require.Len(t, got.Responses, 2)

	first := got.Responses[0]
	assert.Equal(t, "q-1", first.QuestionID)
	require.NotNil(t, first.Score)
	assert.Equal(t, 2.0, *first.Score)
	require.NotNil(t, first.IsCorrect)
	assert.True(t, *first.IsCorrect)
	assert.InDelta(t, 0.93, *first.RecognitionConfidence, 1e-9)

	second := got.Responses[1]
	assert.Nil(t, second.Score)
	assert.Nil(t, second.IsCorrect)
	assert.Nil(t, second.RecognitionConfidence)
	assert.Equal(t, "?", second.TeacherAnnotation["raw"])

	// Re-saving replaces responses and appends to the trail.
	sub.Responses[1].Score = model.Float(3)
	sub.Responses[1].ReviewStatus = model.ReviewConfirmed
	sub.TotalScore = 5
	sub.Status = model.SubmissionGraded
	require.NoError(t, repo.Save(ctx, sub, []model.PipelineStep{
		{Name: "manual-override", Status: model.StepSuccess, Detail: "question 2 scored 3"},
	}))

	got, err = repo.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionGraded, got.Status)
	assert.Equal(t, 5.0, got.TotalScore)
	assert.Equal(t, model.ReviewConfirmed, got.Responses[1].ReviewStatus)

	trail, err := repo.Steps(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "vision-recognition", trail[0].Name)
	assert.Equal(t, "manual-override", trail[2].Name)
	assert.Less(t, trail[1].Sequence, trail[2].Sequence)

	listed, err := repo.ListByExam(ctx, "exam-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Responses)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
