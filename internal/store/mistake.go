package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gradekit/internal/model"
)

const mistakesTable = "mistakes"

var mistakeColumns = []string{
	"id", "student_id", "question_id", "submission_id", "response_id",
	"knowledge_tags", "error_count", "created_at", "last_seen_at",
	"resolution_notes", "root_cause", "resolved_submission_id",
}

// MistakeRepo persists the mistake ledger. There is at most one row per
// (student, question), enforced by a unique index.
type MistakeRepo struct {
	drv *entsql.Driver
}

// Get returns the live mistake for the key, or nil if none exists.
func (r *MistakeRepo) Get(ctx context.Context, studentID, questionID string) (*model.Mistake, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(mistakeColumns...).
		From(entsql.Table(mistakesTable)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("question_id", questionID),
		)).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("get mistake: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMistake(&rows)
}

// Save inserts the mistake or, when the (student, question) row already
// exists, overwrites its mutable fields. ID and CreatedAt of the existing
// row are kept.
func (r *MistakeRepo) Save(ctx context.Context, m *model.Mistake) error {
	tags, err := json.Marshal(nonNilTags(m.KnowledgeTags))
	if err != nil {
		return fmt.Errorf("encode knowledge tags: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(mistakesTable).
		Columns(mistakeColumns...).
		Values(
			m.ID, m.StudentID, m.QuestionID, m.SubmissionID, m.ResponseID,
			string(tags), m.ErrorCount, m.CreatedAt.UTC(), m.LastSeenAt.UTC(),
			m.ResolutionNotes, nullString(m.RootCause), m.ResolvedSubmissionID,
		).
		OnConflict(
			entsql.ConflictColumns("student_id", "question_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("submission_id")
				u.SetExcluded("response_id")
				u.SetExcluded("knowledge_tags")
				u.SetExcluded("error_count")
				u.SetExcluded("last_seen_at")
				u.SetExcluded("resolution_notes")
				u.SetExcluded("root_cause")
				u.SetExcluded("resolved_submission_id")
			}),
		).
		Query()

	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save mistake: %w", err)
	}
	return nil
}

// ListByStudent returns a student's mistakes, most recently seen first.
// Resolved mistakes are included only when includeResolved is set.
func (r *MistakeRepo) ListByStudent(ctx context.Context, studentID string, includeResolved bool) ([]model.Mistake, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select(mistakeColumns...).
		From(entsql.Table(mistakesTable)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy(entsql.Desc("last_seen_at"), "question_id")
	if !includeResolved {
		sel.Where(entsql.EQ("resolution_notes", ""))
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	defer rows.Close()

	var out []model.Mistake
	for rows.Next() {
		m, err := scanMistake(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMistake(rows *entsql.Rows) (*model.Mistake, error) {
	var (
		m         model.Mistake
		tags      string
		rootCause sql.NullString
	)
	err := rows.Scan(
		&m.ID, &m.StudentID, &m.QuestionID, &m.SubmissionID, &m.ResponseID,
		&tags, &m.ErrorCount, &m.CreatedAt, &m.LastSeenAt,
		&m.ResolutionNotes, &rootCause, &m.ResolvedSubmissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan mistake: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &m.KnowledgeTags); err != nil {
		return nil, fmt.Errorf("decode knowledge tags: %w", err)
	}
	if rootCause.Valid {
		m.RootCause = &rootCause.String
	}
	return &m, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
