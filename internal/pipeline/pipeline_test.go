package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradekit/internal/evaluate"
	"github.com/abhisek/gradekit/internal/ledger"
	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/recognition"
)

func testExam() *model.Exam {
	return &model.Exam{
		ID:    "exam-1",
		Title: "Unit 3 quiz",
		Questions: []model.Question{
			{ID: "q1", Number: "1", Type: model.QuestionMultipleChoice, MaxScore: 2,
				KnowledgeTags: []string{"ratios"}, Key: &model.MultipleChoiceKey{Correct: "C"}},
			{ID: "q2", Number: "2", Type: model.QuestionFillInBlank, MaxScore: 3,
				Key: &model.FillInBlankKey{AcceptableAnswers: []string{"6"}, Numeric: true, NumericTolerance: 0.01}},
			{ID: "q3", Number: "3", Type: model.QuestionSubjective, MaxScore: 5,
				Prompt: "Why is the sky blue?", Key: &model.SubjectiveKey{Rubric: "scattering"}},
			{ID: "q4", Number: "4", Type: model.QuestionMultipleChoice, MaxScore: 1,
				Key: &model.MultipleChoiceKey{Correct: "A"}, TargetStudentIDs: []string{"stu-9"}},
		},
	}
}

func submission(id string) *model.Submission {
	return &model.Submission{ID: id, ExamID: "exam-1", StudentID: "stu-1", Status: model.SubmissionPending}
}

func fixedScorer(score float64) evaluate.Scorer {
	return evaluate.ScorerFunc(func(context.Context, evaluate.ScoreRequest) (evaluate.ScoreResult, error) {
		return evaluate.ScoreResult{Score: score, Explanation: "Mentions Rayleigh scattering."}, nil
	})
}

func newPipeline(scorer evaluate.Scorer, repo ledger.Repo, opts ...Option) *Pipeline {
	var l *ledger.Ledger
	if repo != nil {
		l = ledger.New(repo)
	}
	return New(evaluate.New(scorer, nil), l, opts...)
}

func stepNames(steps []model.PipelineStep) []string {
	var out []string
	for _, s := range steps {
		out = append(out, s.Name+":"+string(s.Status))
	}
	return out
}

func TestGradeMultipleChoiceEndToEnd(t *testing.T) {
	exam := &model.Exam{ID: "exam-mc", Questions: []model.Question{
		{ID: "q1", Number: "1", Type: model.QuestionMultipleChoice, MaxScore: 4, Key: &model.MultipleChoiceKey{Correct: "C"}},
	}}
	sub := submission("sub-1")

	arts, err := newPipeline(nil, ledger.NewMemoryRepo()).Grade(context.Background(), exam, sub,
		[]model.RecognizedRow{{QuestionNumber: "1", RawText: "C", Confidence: 0.95}})
	require.NoError(t, err)

	require.Len(t, arts.Responses, 1)
	resp := arts.Responses[0]
	require.NotNil(t, resp.Score)
	assert.Equal(t, 4.0, *resp.Score)
	assert.True(t, *resp.IsCorrect)
	assert.Equal(t, model.ReviewPending, resp.ReviewStatus)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, model.SubmissionGraded, arts.Submission.Status)
	assert.Equal(t, 4.0, arts.Submission.TotalScore)
	assert.Empty(t, arts.Steps)
	assert.Empty(t, arts.Mistakes)

	assert.Equal(t, model.SubmissionPending, sub.Status, "input submission must not change")
}

func TestGradeDuplicateQuestionNumbersUseLastRow(t *testing.T) {
	exam := &model.Exam{ID: "exam-mc", Questions: []model.Question{
		{ID: "q1", Number: "1", Type: model.QuestionMultipleChoice, MaxScore: 2, Key: &model.MultipleChoiceKey{Correct: "C"}},
	}}

	arts, err := newPipeline(nil, nil).Grade(context.Background(), exam, submission("sub-1"),
		[]model.RecognizedRow{
			{QuestionNumber: "1", RawText: "A", Confidence: 0.9},
			{QuestionNumber: " 1", RawText: "C", Confidence: 0.8},
		})
	require.NoError(t, err)

	require.Len(t, arts.Responses, 1)
	assert.Equal(t, "C", arts.Responses[0].StudentAnswer)
	assert.True(t, *arts.Responses[0].IsCorrect)
	assert.Equal(t, 0.8, *arts.Responses[0].RecognitionConfidence)
}

func TestGradeSubjectiveScorerNotConfigured(t *testing.T) {
	arts, err := newPipeline(nil, nil).Grade(context.Background(), testExam(), submission("sub-1"),
		[]model.RecognizedRow{
			{QuestionNumber: "1", RawText: "C", Confidence: 0.9},
			{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
			{QuestionNumber: "3", RawText: "Light scatters off air molecules.", Confidence: 0.8},
		})
	require.NoError(t, err)

	q3 := arts.Responses[2]
	assert.Nil(t, q3.Score)
	assert.Nil(t, q3.IsCorrect)
	assert.Equal(t, model.ReviewNeedsReview, q3.ReviewStatus)
	assert.Equal(t, []string{"subjective-scoring:warning"}, stepNames(arts.Steps))
	assert.Equal(t, model.SubmissionNeedsReview, arts.Submission.Status)
	assert.Equal(t, 5.0, arts.Submission.TotalScore)
}

func TestGradeTargetingGate(t *testing.T) {
	repo := ledger.NewMemoryRepo()
	arts, err := newPipeline(fixedScorer(5), repo).Grade(context.Background(), testExam(), submission("sub-1"),
		[]model.RecognizedRow{
			{QuestionNumber: "1", RawText: "C", Confidence: 0.9},
			{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
			{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
			{QuestionNumber: "4", RawText: "D", Annotation: "✘", Confidence: 0.9},
		})
	require.NoError(t, err)

	q4 := arts.Responses[3]
	assert.False(t, q4.AppliesToStudent)
	assert.Nil(t, q4.Score)
	assert.Nil(t, q4.IsCorrect)
	assert.Equal(t, TargetedOutComment, q4.Comments)

	assert.Equal(t, model.SubmissionGraded, arts.Submission.Status)
	assert.Equal(t, 10.0, arts.Submission.TotalScore)
	assert.Equal(t, 0, repo.Len(), "targeted question must not reach the ledger")
}

func TestGradeNoRows(t *testing.T) {
	arts, err := newPipeline(nil, nil).Grade(context.Background(), testExam(), submission("sub-1"), nil)
	assert.ErrorIs(t, err, model.ErrRecognitionFailed)
	assert.Nil(t, arts)
}

func TestGradeMissingRowAndMalformedKey(t *testing.T) {
	exam := testExam()
	exam.Questions[1].Key = &model.FillInBlankKey{Numeric: true}

	arts, err := newPipeline(fixedScorer(4), nil).Grade(context.Background(), exam, submission("sub-1"),
		[]model.RecognizedRow{
			{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
			{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
		})
	require.NoError(t, err)

	q1 := arts.Responses[0]
	assert.Nil(t, q1.Score)
	assert.Equal(t, "No answer recognized.", q1.Comments)
	assert.Nil(t, q1.RecognitionConfidence)

	q2 := arts.Responses[1]
	assert.Nil(t, q2.Score)
	assert.Contains(t, q2.Comments, "Answer key problem")

	q3 := arts.Responses[2]
	require.NotNil(t, q3.Score)
	assert.Equal(t, 4.0, *q3.Score)
	assert.True(t, *q3.IsCorrect)

	assert.Equal(t, []string{"answer-key:error", "subjective-scoring:success"}, stepNames(arts.Steps))
	assert.Equal(t, model.SubmissionNeedsReview, arts.Submission.Status)
}

func TestGradeScorerInvocationError(t *testing.T) {
	scorer := evaluate.ScorerFunc(func(context.Context, evaluate.ScoreRequest) (evaluate.ScoreResult, error) {
		return evaluate.ScoreResult{}, &model.AdapterInvocationError{Adapter: "subjective-scoring", Err: errors.New("timeout")}
	})
	arts, err := newPipeline(scorer, nil).Grade(context.Background(), testExam(), submission("sub-1"),
		[]model.RecognizedRow{{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9}})
	require.NoError(t, err)

	assert.Contains(t, stepNames(arts.Steps), "subjective-scoring:error")
	assert.Nil(t, arts.Responses[2].Score)
	assert.Equal(t, model.SubmissionNeedsReview, arts.Submission.Status)
}

func TestGradeUpdatesLedgerIdempotently(t *testing.T) {
	repo := ledger.NewMemoryRepo()
	p := newPipeline(nil, repo)
	rows := []model.RecognizedRow{{QuestionNumber: "1", RawText: "B", Confidence: 0.9}}
	ctx := context.Background()

	first, err := p.Grade(ctx, testExam(), submission("sub-1"), rows)
	require.NoError(t, err)
	require.Len(t, first.Mistakes, 1)
	assert.Equal(t, []string{"ratios"}, first.Mistakes[0].KnowledgeTags)

	again, err := p.Grade(ctx, testExam(), first.Submission, rows)
	require.NoError(t, err)
	require.Len(t, again.Mistakes, 1)
	assert.Equal(t, 1, again.Mistakes[0].ErrorCount)
	assert.Equal(t, first.Responses[0].ID, again.Responses[0].ID, "re-grade keeps response ids")
	assert.Equal(t, 1, repo.Len())

	fixed, err := p.Grade(ctx, testExam(), submission("sub-2"),
		[]model.RecognizedRow{{QuestionNumber: "1", RawText: "c", Confidence: 0.9}})
	require.NoError(t, err)
	require.Len(t, fixed.Mistakes, 1)
	assert.Equal(t, ledger.ResolutionMastered, fixed.Mistakes[0].ResolutionNotes)
	assert.Equal(t, 1, repo.Len())
}

type brokenRepo struct{}

func (brokenRepo) Get(context.Context, string, string) (*model.Mistake, error) {
	return nil, errors.New("database is locked")
}

func (brokenRepo) Save(context.Context, *model.Mistake) error { return nil }

func TestGradeLedgerFailureIsRecorded(t *testing.T) {
	arts, err := newPipeline(nil, brokenRepo{}).Grade(context.Background(), testExam(), submission("sub-1"),
		[]model.RecognizedRow{
			{QuestionNumber: "1", RawText: "B", Confidence: 0.9},
			{QuestionNumber: "2", RawText: "6", Confidence: 0.9},
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"mistake-ledger:error"}, stepNames(arts.Steps[:1]))
	q1 := arts.Responses[0]
	require.NotNil(t, q1.Score)
	assert.Equal(t, 0.0, *q1.Score)
	assert.Equal(t, model.ReviewNeedsReview, q1.ReviewStatus)
	assert.Equal(t, model.SubmissionNeedsReview, arts.Submission.Status)
}

func TestGradePreservesConfirmedResponses(t *testing.T) {
	sub := submission("sub-1")
	sub.Responses = []model.Response{
		{ID: "r-1", SubmissionID: "sub-1", QuestionID: "q1", QuestionNumber: "1", StudentAnswer: "B",
			Score: model.Float(2), IsCorrect: model.Bool(true), AppliesToStudent: true,
			ReviewStatus: model.ReviewConfirmed, Comments: "Accepted alternative reading."},
		{ID: "r-2", SubmissionID: "sub-1", QuestionID: "q2", QuestionNumber: "2", AppliesToStudent: true,
			ReviewStatus: model.ReviewNeedsReview},
	}

	arts, err := newPipeline(fixedScorer(5), nil).Grade(context.Background(), testExam(), sub,
		[]model.RecognizedRow{
			{QuestionNumber: "1", RawText: "B", Confidence: 0.9},
			{QuestionNumber: "2", RawText: "6.01", Confidence: 0.9},
			{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
		})
	require.NoError(t, err)

	assert.Equal(t, sub.Responses[0], arts.Responses[0])
	assert.Equal(t, "r-2", arts.Responses[1].ID)
	assert.True(t, *arts.Responses[1].IsCorrect)
	assert.Equal(t, 10.0, arts.Submission.TotalScore)
	assert.Equal(t, model.SubmissionGraded, arts.Submission.Status)
}

func TestGradeLowConfidenceFlagsResponse(t *testing.T) {
	arts, err := newPipeline(nil, nil, WithLowConfidence(0.6)).Grade(context.Background(), testExam(), submission("sub-1"),
		[]model.RecognizedRow{{QuestionNumber: "1", RawText: "C", Annotation: "✔", Confidence: 0.55}})
	require.NoError(t, err)

	q1 := arts.Responses[0]
	assert.True(t, *q1.IsCorrect)
	assert.Equal(t, model.ReviewNeedsReview, q1.ReviewStatus)
	assert.Equal(t, map[string]string{"raw": "✔"}, q1.TeacherAnnotation)
}

func TestGradeSummary(t *testing.T) {
	rows := []model.RecognizedRow{
		{QuestionNumber: "1", RawText: "C", Confidence: 0.9},
		{QuestionNumber: "2", RawText: "7", Confidence: 0.9},
		{QuestionNumber: "3", RawText: "scattering", Confidence: 0.9},
	}

	t.Run("success", func(t *testing.T) {
		var got []SummaryRow
		s := SummarizerFunc(func(_ context.Context, rows []SummaryRow) (string, error) {
			got = rows
			return "  Solid work; review decimals.  ", nil
		})
		arts, err := newPipeline(fixedScorer(5), nil, WithSummarizer(s)).Grade(context.Background(), testExam(), submission("sub-1"), rows)
		require.NoError(t, err)

		assert.Equal(t, "Solid work; review decimals.", arts.Summary)
		assert.Equal(t, []string{"subjective-scoring:success", "summary:success"}, stepNames(arts.Steps))
		require.Len(t, got, 3, "targeted question excluded from summary")
		assert.Equal(t, 3.0, got[1].MaxScore)
		assert.Equal(t, "Expected one of: 6", got[1].Feedback)
	})

	t.Run("not configured", func(t *testing.T) {
		arts, err := newPipeline(fixedScorer(5), nil, WithSummarizer(NewLLMSummarizer(nil))).
			Grade(context.Background(), testExam(), submission("sub-1"), rows)
		require.NoError(t, err)
		assert.Empty(t, arts.Summary)
		assert.Equal(t, "summary:warning", stepNames(arts.Steps)[1])
		assert.Equal(t, model.SubmissionGraded, arts.Submission.Status)
	})

	t.Run("failure keeps scores", func(t *testing.T) {
		s := SummarizerFunc(func(context.Context, []SummaryRow) (string, error) {
			return "", &model.AdapterInvocationError{Adapter: "summary", Err: errors.New("503")}
		})
		arts, err := newPipeline(fixedScorer(5), nil, WithSummarizer(s)).Grade(context.Background(), testExam(), submission("sub-1"), rows)
		require.NoError(t, err)
		assert.Equal(t, "summary:error", stepNames(arts.Steps)[1])
		assert.Equal(t, 7.0, arts.Submission.TotalScore)
	})
}

func TestGradeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := ledger.NewMemoryRepo()
	_, err := newPipeline(nil, repo).Grade(ctx, testExam(), submission("sub-1"),
		[]model.RecognizedRow{{QuestionNumber: "1", RawText: "B", Confidence: 0.9}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.Len())
}

type stubRecognizer struct {
	name string
	rows []model.RecognizedRow
	err  error
}

func (s *stubRecognizer) Name() string { return s.name }

func (s *stubRecognizer) Recognize(context.Context, recognition.Scan) ([]model.RecognizedRow, error) {
	return s.rows, s.err
}

func TestProcess(t *testing.T) {
	primary := &stubRecognizer{name: "vision-recognition", err: model.ErrAdapterNotConfigured}
	fallback := &stubRecognizer{name: "local-ocr", rows: []model.RecognizedRow{
		{QuestionNumber: "1", RawText: "C", Confidence: 0.8},
		{QuestionNumber: "3", RawText: "scattering", Confidence: 0.7},
	}}
	orch := recognition.NewOrchestrator(primary, fallback, nil)

	arts, err := newPipeline(fixedScorer(3), nil, WithRecognizer(orch)).
		Process(context.Background(), testExam(), submission("sub-1"), recognition.Scan{Data: []byte("img")})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"vision-recognition:warning",
		"local-ocr:success",
		"subjective-scoring:success",
	}, stepNames(arts.Steps))
	assert.Equal(t, 5.0, arts.Submission.TotalScore)
}

func TestProcessRecognitionFailed(t *testing.T) {
	orch := recognition.NewOrchestrator(
		&stubRecognizer{name: "vision-recognition", err: model.ErrAdapterNotConfigured},
		&stubRecognizer{name: "local-ocr"},
		nil,
	)
	arts, err := newPipeline(nil, nil, WithRecognizer(orch)).
		Process(context.Background(), testExam(), submission("sub-1"), recognition.Scan{})
	assert.ErrorIs(t, err, model.ErrRecognitionFailed)
	require.NotNil(t, arts)
	assert.Empty(t, arts.Responses)
	assert.Equal(t, []string{"vision-recognition:warning", "local-ocr:error"}, stepNames(arts.Steps))
}
