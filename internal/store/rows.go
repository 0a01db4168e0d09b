package store

import (
	"time"

	"github.com/google/uuid"
)

// EventBase holds the fields shared by all normalized event rows.
type EventBase struct {
	UserUUIDHash string
	CourseID     int64
	ImpressionID uuid.UUID
	OccurredAt   time.Time
	ContentID    uuid.UUID
	Variant      string
}

// ContentLoadedEvent is one content-load impression.
// Unique per (impression_id, content_id).
type ContentLoadedEvent struct {
	EventBase
}

// InputSubmittedEvent is one input submission.
// Unique per (impression_id, input_content_id).
type InputSubmittedEvent struct {
	EventBase
	InputContentID uuid.UUID
}

// PsetProblemAttemptedEvent is one problem-set attempt.
// Unique per (impression_id, pset_problem_content_id, attempt).
type PsetProblemAttemptedEvent struct {
	EventBase
	PsetContentID        uuid.UUID
	PsetProblemContentID uuid.UUID
	ProblemType          string
	Correct              bool
	Attempt              int64
	FinalAttempt         bool
}

// Course is an externally-identified course. District is filled in later by
// the district loader; name and term are never overwritten by the pipeline.
type Course struct {
	ID       int64
	Name     string
	Term     string
	District *string
}

// EventUserEnrollment is an append-only (user, course) membership record.
type EventUserEnrollment struct {
	UserUUIDHash string
	CourseID     int64
	Role         string
}

// CourseActivityStat carries per-day enrollment and activity counts for a
// course. Unique per (course_id, date); re-processing overwrites.
type CourseActivityStat struct {
	CourseID          int64
	Date              string // DateLayout
	EnrolledStudents  int
	WeeklyActiveUsers int
	DailyActiveUsers  int
}

// CourseQuizStat carries the cumulative attempt count for one quiz on one
// day. Unique per (course_id, date, quiz_name); re-processing replaces the
// count rather than incrementing it.
type CourseQuizStat struct {
	CourseID     int64
	Date         string // DateLayout
	QuizName     string
	QuizAttempts int
}

// CourseContent is one row of the per-term course content catalog.
// Unique per (term, content_id).
type CourseContent struct {
	ContentID    uuid.UUID
	Term         string
	Section      string
	ActivityName string
	LessonPage   string
	Visible      bool
}
