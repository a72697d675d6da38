package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// Tables are created with raw DDL. Timestamps are declared DATETIME so the
// driver scans them back into time.Time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL UNIQUE,
		timestamp DATETIME NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		total_score REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS submissions_exam ON submissions (exam_id)`,

	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL REFERENCES submissions (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		question_number TEXT NOT NULL,
		student_answer TEXT NOT NULL DEFAULT '',
		normalized_answer TEXT NOT NULL DEFAULT '',
		score REAL,
		is_correct BOOLEAN,
		recognition_confidence REAL,
		applies_to_student BOOLEAN NOT NULL,
		review_status TEXT NOT NULL,
		teacher_annotation TEXT NOT NULL DEFAULT '{}',
		comments TEXT NOT NULL DEFAULT '',
		UNIQUE (submission_id, question_id)
	)`,

	`CREATE TABLE IF NOT EXISTS pipeline_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL UNIQUE,
		submission_id TEXT NOT NULL REFERENCES submissions (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_steps_submission ON pipeline_steps (submission_id)`,

	`CREATE TABLE IF NOT EXISTS mistakes (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		submission_id TEXT NOT NULL,
		response_id TEXT NOT NULL,
		knowledge_tags TEXT NOT NULL DEFAULT '[]',
		error_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		resolution_notes TEXT NOT NULL DEFAULT '',
		root_cause TEXT,
		resolved_submission_id TEXT NOT NULL DEFAULT '',
		UNIQUE (student_id, question_id)
	)`,
}

func migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range schema {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}
