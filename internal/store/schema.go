package store

import (
	"context"
	"fmt"
)

// Table provisioning is owned by deployment tooling in production; Migrate
// exists for tests and local bootstrap. The DDL is written to the dialect
// subset SQLite and PostgreSQL share.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS content_loaded_event (
		user_uuid_hash TEXT NOT NULL,
		course_id INTEGER NOT NULL,
		impression_id TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		content_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (impression_id, content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS input_submitted_event (
		user_uuid_hash TEXT NOT NULL,
		course_id INTEGER NOT NULL,
		impression_id TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		content_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		input_content_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (impression_id, input_content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pset_problem_attempted_event (
		user_uuid_hash TEXT NOT NULL,
		course_id INTEGER NOT NULL,
		impression_id TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		content_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		pset_content_id TEXT NOT NULL,
		pset_problem_content_id TEXT NOT NULL,
		problem_type TEXT NOT NULL,
		correct BOOLEAN NOT NULL,
		attempt INTEGER NOT NULL,
		final_attempt BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (impression_id, pset_problem_content_id, attempt)
	)`,
	`CREATE TABLE IF NOT EXISTS course (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		term TEXT NOT NULL,
		district TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS event_user_enrollment (
		user_uuid_hash TEXT NOT NULL,
		course_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_uuid_hash, course_id)
	)`,
	`CREATE TABLE IF NOT EXISTS course_activity_stat (
		course_id INTEGER NOT NULL,
		date DATE NOT NULL,
		enrolled_students INTEGER NOT NULL,
		weekly_active_users INTEGER NOT NULL,
		daily_active_users INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (course_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS course_quiz_stat (
		course_id INTEGER NOT NULL,
		date DATE NOT NULL,
		quiz_name TEXT NOT NULL,
		quiz_attempts INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (course_id, date, quiz_name)
	)`,
	`CREATE TABLE IF NOT EXISTS course_content (
		content_id TEXT NOT NULL,
		term TEXT NOT NULL,
		section TEXT NOT NULL,
		activity_name TEXT NOT NULL,
		lesson_page TEXT NOT NULL,
		visible BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (term, content_id)
	)`,
}

// Migrate creates all pipeline tables if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: failed to apply schema: %w", err)
		}
	}
	return nil
}
