package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gradekit/internal/model"
)

const (
	submissionsTable = "submissions"
	responsesTable   = "responses"
	stepsTable       = "pipeline_steps"
)

var submissionColumns = []string{
	"id", "exam_id", "student_id", "submitted_at", "total_score", "status",
}

var responseColumns = []string{
	"id", "submission_id", "position", "question_id", "question_number",
	"student_answer", "normalized_answer", "score", "is_correct",
	"recognition_confidence", "applies_to_student", "review_status",
	"teacher_annotation", "comments",
}

// StoredStep is a pipeline step as recorded for a submission.
type StoredStep struct {
	Sequence  int64
	Timestamp time.Time
	model.PipelineStep
}

// SubmissionRepo persists graded submissions, their responses and the
// step log of every grading run.
type SubmissionRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

// Save writes the submission and replaces its responses in one
// transaction. Steps are appended to the submission's audit trail.
func (r *SubmissionRepo) Save(ctx context.Context, sub *model.Submission, steps []model.PipelineStep) (err error) {
	var firstSeq int64
	if len(steps) > 0 {
		if firstSeq, err = r.seq.reserve(ctx, len(steps)); err != nil {
			return err
		}
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	b := entsql.Dialect(dialect.SQLite)

	query, args := b.Insert(submissionsTable).
		Columns(submissionColumns...).
		Values(sub.ID, sub.ExamID, sub.StudentID, sub.SubmittedAt.UTC(), sub.TotalScore, string(sub.Status)).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err = tx.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}

	query, args = b.Delete(responsesTable).Where(entsql.EQ("submission_id", sub.ID)).Query()
	if err = tx.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("clear responses: %w", err)
	}

	if len(sub.Responses) > 0 {
		ins := b.Insert(responsesTable).Columns(responseColumns...)
		for i := range sub.Responses {
			resp := &sub.Responses[i]
			annotation, merr := json.Marshal(resp.TeacherAnnotation)
			if merr != nil {
				err = fmt.Errorf("encode annotation for %s: %w", resp.QuestionNumber, merr)
				return err
			}
			ins.Values(
				resp.ID, sub.ID, i, resp.QuestionID, resp.QuestionNumber,
				resp.StudentAnswer, resp.NormalizedAnswer, nullFloat(resp.Score), nullBool(resp.IsCorrect),
				nullFloat(resp.RecognitionConfidence), resp.AppliesToStudent, string(resp.ReviewStatus),
				string(annotation), resp.Comments,
			)
		}
		query, args = ins.Query()
		if err = tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("save responses: %w", err)
		}
	}

	if len(steps) > 0 {
		now := time.Now().UTC()
		ins := b.Insert(stepsTable).Columns("sequence", "submission_id", "name", "status", "detail", "timestamp")
		for i, st := range steps {
			ins.Values(firstSeq+int64(i), sub.ID, st.Name, string(st.Status), st.Detail, now)
		}
		query, args = ins.Query()
		if err = tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("save steps: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get loads a submission with its responses in exam order, or nil if it
// does not exist.
func (r *SubmissionRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	subs, err := r.querySubmissions(ctx, entsql.EQ("id", id))
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	sub := &subs[0]

	sub.Responses, err = r.responses(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListByExam returns every submission for an exam without responses.
func (r *SubmissionRepo) ListByExam(ctx context.Context, examID string) ([]model.Submission, error) {
	return r.querySubmissions(ctx, entsql.EQ("exam_id", examID))
}

// Steps returns the recorded audit trail for a submission in order.
func (r *SubmissionRepo) Steps(ctx context.Context, submissionID string) ([]StoredStep, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("sequence", "timestamp", "name", "status", "detail").
		From(entsql.Table(stepsTable)).
		Where(entsql.EQ("submission_id", submissionID)).
		OrderBy("sequence").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []StoredStep
	for rows.Next() {
		var (
			st     StoredStep
			status string
		)
		if err := rows.Scan(&st.Sequence, &st.Timestamp, &st.Name, &status, &st.Detail); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Status = model.StepStatus(status)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *SubmissionRepo) querySubmissions(ctx context.Context, where *entsql.Predicate) ([]model.Submission, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(submissionColumns...).
		From(entsql.Table(submissionsTable)).
		Where(where).
		OrderBy("submitted_at", "id").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var (
			s      model.Submission
			status string
		)
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.SubmittedAt, &s.TotalScore, &status); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		s.Status = model.SubmissionStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubmissionRepo) responses(ctx context.Context, submissionID string) ([]model.Response, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(responseColumns...).
		From(entsql.Table(responsesTable)).
		Where(entsql.EQ("submission_id", submissionID)).
		OrderBy("position").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		var (
			resp                   model.Response
			position               int
			score, confidence      sql.NullFloat64
			isCorrect              sql.NullBool
			reviewStatus, annotate string
		)
		err := rows.Scan(
			&resp.ID, &resp.SubmissionID, &position, &resp.QuestionID, &resp.QuestionNumber,
			&resp.StudentAnswer, &resp.NormalizedAnswer, &score, &isCorrect,
			&confidence, &resp.AppliesToStudent, &reviewStatus,
			&annotate, &resp.Comments,
		)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if score.Valid {
			resp.Score = model.Float(score.Float64)
		}
		if confidence.Valid {
			resp.RecognitionConfidence = model.Float(confidence.Float64)
		}
		if isCorrect.Valid {
			resp.IsCorrect = model.Bool(isCorrect.Bool)
		}
		resp.ReviewStatus = model.ReviewStatus(reviewStatus)
		if err := json.Unmarshal([]byte(annotate), &resp.TeacherAnnotation); err != nil {
			return nil, fmt.Errorf("decode annotation: %w", err)
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
