package store

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/classtrack/classtrack/internal/errors"
)

// Outcome is the tagged result of an idempotent insert. A Conflict means
// the row's uniqueness key already exists: expected under at-least-once
// redelivery and treated as success by every caller.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeConflict
)

func (o Outcome) String() string {
	if o == OutcomeConflict {
		return "conflict"
	}
	return "inserted"
}

// Writer persists pipeline rows through a DBTX. Event and membership rows
// use insert-or-ignore semantics (a uniqueness violation is a no-op);
// aggregate rows use insert-or-replace so recomputation converges.
type Writer struct {
	db DBTX
}

// NewWriter creates a writer over the given handle or transaction.
func NewWriter(db DBTX) *Writer {
	return &Writer{db: db}
}

// isUniqueViolation reports whether err is a uniqueness-constraint
// violation from either supported driver. Any other driver error is left
// for the caller to propagate as fatal.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// insertIgnoringConflict runs a plain INSERT and classifies the result.
func (w *Writer) insertIgnoringConflict(ctx context.Context, query string, args ...any) (Outcome, error) {
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return OutcomeConflict, nil
		}
		return 0, errors.NewStoreError(errors.CodeWriteFailed, "insert failed", err)
	}
	return OutcomeInserted, nil
}

// InsertContentLoadedEvent persists a content-load row.
func (w *Writer) InsertContentLoadedEvent(ctx context.Context, row *ContentLoadedEvent) (Outcome, error) {
	return w.insertIgnoringConflict(ctx, `
		INSERT INTO content_loaded_event (
			user_uuid_hash, course_id, impression_id, occurred_at, content_id, variant
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		row.UserUUIDHash, row.CourseID, row.ImpressionID, row.OccurredAt,
		row.ContentID, row.Variant)
}

// InsertInputSubmittedEvent persists an input-submission row.
func (w *Writer) InsertInputSubmittedEvent(ctx context.Context, row *InputSubmittedEvent) (Outcome, error) {
	return w.insertIgnoringConflict(ctx, `
		INSERT INTO input_submitted_event (
			user_uuid_hash, course_id, impression_id, occurred_at, content_id, variant,
			input_content_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.UserUUIDHash, row.CourseID, row.ImpressionID, row.OccurredAt,
		row.ContentID, row.Variant, row.InputContentID)
}

// InsertPsetProblemAttemptedEvent persists a problem-attempt row.
func (w *Writer) InsertPsetProblemAttemptedEvent(ctx context.Context, row *PsetProblemAttemptedEvent) (Outcome, error) {
	return w.insertIgnoringConflict(ctx, `
		INSERT INTO pset_problem_attempted_event (
			user_uuid_hash, course_id, impression_id, occurred_at, content_id, variant,
			pset_content_id, pset_problem_content_id, problem_type, correct, attempt, final_attempt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		row.UserUUIDHash, row.CourseID, row.ImpressionID, row.OccurredAt,
		row.ContentID, row.Variant, row.PsetContentID, row.PsetProblemContentID,
		row.ProblemType, row.Correct, row.Attempt, row.FinalAttempt)
}

// InsertCourse records a course if it is not already known. Name and term
// are never overwritten through this path.
func (w *Writer) InsertCourse(ctx context.Context, row *Course) (Outcome, error) {
	return w.insertIgnoringConflict(ctx, `
		INSERT INTO course (id, name, term) VALUES ($1, $2, $3)`,
		row.ID, row.Name, row.Term)
}

// InsertEventUserEnrollment records a (user, course) membership. The role
// is fixed by the first insert and never changed here.
func (w *Writer) InsertEventUserEnrollment(ctx context.Context, row *EventUserEnrollment) (Outcome, error) {
	return w.insertIgnoringConflict(ctx, `
		INSERT INTO event_user_enrollment (user_uuid_hash, course_id, role)
		VALUES ($1, $2, $3)`,
		row.UserUUIDHash, row.CourseID, row.Role)
}

// UpsertCourseActivityStat inserts or fully replaces the activity counts
// for (course, date), so re-processing a snapshot converges.
func (w *Writer) UpsertCourseActivityStat(ctx context.Context, row *CourseActivityStat) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO course_activity_stat (
			course_id, date, enrolled_students, weekly_active_users, daily_active_users
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, date) DO UPDATE SET
			enrolled_students = excluded.enrolled_students,
			weekly_active_users = excluded.weekly_active_users,
			daily_active_users = excluded.daily_active_users,
			updated_at = CURRENT_TIMESTAMP`,
		row.CourseID, row.Date, row.EnrolledStudents,
		row.WeeklyActiveUsers, row.DailyActiveUsers)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "activity stat upsert failed", err)
	}
	return nil
}

// UpsertCourseQuizStat inserts or replaces the attempt count for
// (course, date, quiz). The count is set, not incremented: each snapshot
// carries the complete history for its day.
func (w *Writer) UpsertCourseQuizStat(ctx context.Context, row *CourseQuizStat) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO course_quiz_stat (course_id, date, quiz_name, quiz_attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (course_id, date, quiz_name) DO UPDATE SET
			quiz_attempts = excluded.quiz_attempts,
			updated_at = CURRENT_TIMESTAMP`,
		row.CourseID, row.Date, row.QuizName, row.QuizAttempts)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "quiz stat upsert failed", err)
	}
	return nil
}

// UpsertCourseContent inserts or refreshes a course content row for
// (term, content_id).
func (w *Writer) UpsertCourseContent(ctx context.Context, row *CourseContent) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO course_content (content_id, term, section, activity_name, lesson_page, visible)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (term, content_id) DO UPDATE SET
			section = excluded.section,
			activity_name = excluded.activity_name,
			lesson_page = excluded.lesson_page,
			visible = excluded.visible,
			updated_at = CURRENT_TIMESTAMP`,
		row.ContentID, row.Term, row.Section, row.ActivityName,
		row.LessonPage, row.Visible)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "course content upsert failed", err)
	}
	return nil
}

// EnrollmentUserHashes returns the pseudonymized identifiers already
// enrolled in the course, so snapshot processing can skip redundant insert
// attempts in the steady state.
func (w *Writer) EnrollmentUserHashes(ctx context.Context, courseID int64) (map[string]struct{}, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT user_uuid_hash FROM event_user_enrollment WHERE course_id = $1`,
		courseID)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "enrollment query failed", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "enrollment scan failed", err)
		}
		existing[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "enrollment iteration failed", err)
	}
	return existing, nil
}

// CoursesByTerm returns the courses recorded for a term.
func (w *Writer) CoursesByTerm(ctx context.Context, term string) ([]Course, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, name, term, district FROM course WHERE term = $1 ORDER BY id`,
		term)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "course query failed", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Term, &c.District); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "course scan failed", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "course iteration failed", err)
	}
	return courses, nil
}

// UpdateCourseDistrict sets the district label for a course. Name and term
// are left untouched.
func (w *Writer) UpdateCourseDistrict(ctx context.Context, courseID int64, district string) error {
	_, err := w.db.ExecContext(ctx, `
		UPDATE course SET district = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		district, courseID)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "district update failed", err)
	}
	return nil
}
