package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack/internal/errors"
)

func openTestStore(t *testing.T) *Writer {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return NewWriter(db)
}

func testEventBase() EventBase {
	return EventBase{
		UserUUIDHash: "5c81bea211a4b204e52e7b45454e4078",
		CourseID:     1,
		ImpressionID: uuid.MustParse("0ee17feb-1883-4889-9cd9-81ee541d28a9"),
		OccurredAt:   time.Date(2022, 12, 17, 19, 40, 33, 0, time.UTC),
		ContentID:    uuid.MustParse("c16c2d65-b03d-4769-bd57-aca27af11fc0"),
		Variant:      "main",
	}
}

func countRows(t *testing.T, w *Writer, table string) int {
	t.Helper()
	var n int
	err := w.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestInsertContentLoadedEvent_Idempotent(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	row := &ContentLoadedEvent{EventBase: testEventBase()}

	outcome, err := w.InsertContentLoadedEvent(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	// Redelivery of the same file replays the same row.
	outcome, err = w.InsertContentLoadedEvent(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	assert.Equal(t, 1, countRows(t, w, "content_loaded_event"))
}

func TestInsertInputSubmittedEvent_Idempotent(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	row := &InputSubmittedEvent{
		EventBase:      testEventBase(),
		InputContentID: uuid.MustParse("a823a8e6-0c2e-4dc4-9bb1-6a50d75c0b05"),
	}

	outcome, err := w.InsertInputSubmittedEvent(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	outcome, err = w.InsertInputSubmittedEvent(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	assert.Equal(t, 1, countRows(t, w, "input_submitted_event"))
}

func TestInsertPsetProblemAttemptedEvent_AttemptNumberInKey(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	first := &PsetProblemAttemptedEvent{
		EventBase:            testEventBase(),
		PsetContentID:        uuid.MustParse("28c399d1-2e27-4a67-b2a6-8e1f5a3c70de"),
		PsetProblemContentID: uuid.MustParse("d2cb2d10-1a12-4fca-a060-63b36647121c"),
		ProblemType:          "multiplechoice",
		Correct:              false,
		Attempt:              1,
		FinalAttempt:         false,
	}

	outcome, err := w.InsertPsetProblemAttemptedEvent(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	second := *first
	second.Attempt = 2
	second.Correct = true
	second.FinalAttempt = true

	outcome, err = w.InsertPsetProblemAttemptedEvent(ctx, &second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome, "a later attempt is a distinct row")

	// Replaying attempt 1 is still a no-op.
	outcome, err = w.InsertPsetProblemAttemptedEvent(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	assert.Equal(t, 2, countRows(t, w, "pset_problem_attempted_event"))
}

func TestInsertCourse_NeverOverwrites(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	outcome, err := w.InsertCourse(ctx, &Course{ID: 7, Name: "Algebra 1", Term: "ay2023"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	outcome, err = w.InsertCourse(ctx, &Course{ID: 7, Name: "Renamed", Term: "other"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	courses, err := w.CoursesByTerm(ctx, "ay2023")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Algebra 1", courses[0].Name)
	assert.Nil(t, courses[0].District)
}

func TestUpdateCourseDistrict(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	_, err := w.InsertCourse(ctx, &Course{ID: 7, Name: "Algebra 1", Term: "ay2023"})
	require.NoError(t, err)

	require.NoError(t, w.UpdateCourseDistrict(ctx, 7, "Northside ISD"))

	courses, err := w.CoursesByTerm(ctx, "ay2023")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.NotNil(t, courses[0].District)
	assert.Equal(t, "Northside ISD", *courses[0].District)
	assert.Equal(t, "Algebra 1", courses[0].Name, "district update leaves name alone")
}

func TestInsertEventUserEnrollment_RoleFixedByFirstWrite(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	row := &EventUserEnrollment{UserUUIDHash: "abc123", CourseID: 7, Role: "student"}

	outcome, err := w.InsertEventUserEnrollment(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	changed := *row
	changed.Role = "teacher"
	outcome, err = w.InsertEventUserEnrollment(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)

	var role string
	err = w.db.QueryRowContext(ctx, `
		SELECT role FROM event_user_enrollment WHERE user_uuid_hash = $1 AND course_id = $2`,
		"abc123", int64(7)).Scan(&role)
	require.NoError(t, err)
	assert.Equal(t, "student", role)
}

func TestEnrollmentUserHashes(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	for _, hash := range []string{"u1hash", "u2hash"} {
		_, err := w.InsertEventUserEnrollment(ctx, &EventUserEnrollment{
			UserUUIDHash: hash, CourseID: 7, Role: "student",
		})
		require.NoError(t, err)
	}
	_, err := w.InsertEventUserEnrollment(ctx, &EventUserEnrollment{
		UserUUIDHash: "u3hash", CourseID: 8, Role: "student",
	})
	require.NoError(t, err)

	existing, err := w.EnrollmentUserHashes(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, existing, 2)
	assert.Contains(t, existing, "u1hash")
	assert.Contains(t, existing, "u2hash")
	assert.NotContains(t, existing, "u3hash")
}

func TestUpsertCourseActivityStat_Overwrites(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	stat := &CourseActivityStat{
		CourseID: 7, Date: "2022-12-17",
		EnrolledStudents: 30, WeeklyActiveUsers: 12, DailyActiveUsers: 4,
	}
	require.NoError(t, w.UpsertCourseActivityStat(ctx, stat))

	stat.WeeklyActiveUsers = 15
	require.NoError(t, w.UpsertCourseActivityStat(ctx, stat))

	assert.Equal(t, 1, countRows(t, w, "course_activity_stat"))

	var weekly int
	err := w.db.QueryRowContext(ctx, `
		SELECT weekly_active_users FROM course_activity_stat
		WHERE course_id = $1 AND date = $2`, int64(7), "2022-12-17").Scan(&weekly)
	require.NoError(t, err)
	assert.Equal(t, 15, weekly)
}

func TestUpsertCourseQuizStat_ReplacesNotIncrements(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	stat := &CourseQuizStat{CourseID: 7, Date: "2022-12-17", QuizName: "Quiz 1", QuizAttempts: 2}
	require.NoError(t, w.UpsertCourseQuizStat(ctx, stat))
	require.NoError(t, w.UpsertCourseQuizStat(ctx, stat))

	var attempts int
	err := w.db.QueryRowContext(ctx, `
		SELECT quiz_attempts FROM course_quiz_stat
		WHERE course_id = $1 AND date = $2 AND quiz_name = $3`,
		int64(7), "2022-12-17", "Quiz 1").Scan(&attempts)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "re-processing must not accumulate")

	assert.Equal(t, 1, countRows(t, w, "course_quiz_stat"))
}

func TestUpsertCourseContent(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	row := &CourseContent{
		ContentID:    uuid.MustParse("3c7a6c1b-8f76-4f2d-9e41-24e3cbbf2f2c"),
		Term:         "ay2023",
		Section:      "Unit 1",
		ActivityName: "Lesson 1.1",
		LessonPage:   "intro",
		Visible:      true,
	}
	require.NoError(t, w.UpsertCourseContent(ctx, row))

	row.Section = "Unit 2"
	row.Visible = false
	require.NoError(t, w.UpsertCourseContent(ctx, row))

	assert.Equal(t, 1, countRows(t, w, "course_content"))

	var section string
	var visible bool
	err := w.db.QueryRowContext(ctx, `
		SELECT section, visible FROM course_content WHERE term = $1 AND content_id = $2`,
		"ay2023", row.ContentID).Scan(&section, &visible)
	require.NoError(t, err)
	assert.Equal(t, "Unit 2", section)
	assert.False(t, visible)
}

func TestInsert_NonConflictErrorIsFatal(t *testing.T) {
	w := openTestStore(t)
	ctx := context.Background()

	// Unknown table is not a uniqueness violation and must surface.
	_, err := w.insertIgnoringConflict(ctx, `INSERT INTO missing_table (x) VALUES ($1)`, 1)
	require.Error(t, err)
	assert.False(t, errors.IsProcessingFailure(err))
	assert.Equal(t, errors.CodeWriteFailed, errors.GetCode(err))
}
