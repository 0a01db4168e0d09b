// Package snapshot aggregates full roster and grades documents into
// derived per-course statistics. Each document is a complete picture as
// of one instant, so every aggregate is recomputed from scratch and
// written with replacement semantics; reprocessing the same document
// converges to the same rows.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/events"
	"github.com/classtrack/classtrack/internal/store"
)

// RosterUser is one enrollment entry in a roster snapshot.
type RosterUser struct {
	// UUID is absent in legacy documents and null for users who have
	// never generated events.
	UUID             *string          `json:"uuid"`
	LastCourseAccess int64            `json:"lastcourseaccess"`
	Roles            []Role           `json:"roles"`
	EnrolledCourses  []EnrolledCourse `json:"enrolledcourses"`
}

// Role is a named platform role. The first role listed for a user is
// treated as their role in the course.
type Role struct {
	ShortName string `json:"shortname"`
}

// EnrolledCourse is one entry in a user's enrollment list.
type EnrolledCourse struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullname"`
}

// GradesDocument is a grades snapshot. Legacy documents carry neither
// quizzes nor attempts; those aggregate to nothing.
type GradesDocument struct {
	Quizzes  []Quiz                             `json:"quizzes"`
	Attempts map[string]map[string]AttemptGroup `json:"attempts"`
}

// Quiz maps a quiz id to its display name.
type Quiz struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AttemptGroup is a leaf of the attempts structure. The grouping keys
// above it are irrelevant to aggregation.
type AttemptGroup struct {
	Summaries []AttemptSummary `json:"summaries"`
}

// AttemptSummary names a quiz and the epoch second the attempt finished.
type AttemptSummary struct {
	Quiz       int64 `json:"quiz"`
	TimeFinish int64 `json:"timefinish"`
}

// Aggregator turns snapshot documents into stat rows. It owns the
// database handle so grades writes can run in one transaction.
type Aggregator struct {
	db     *sql.DB
	writer *store.Writer
}

func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db, writer: store.NewWriter(db)}
}

// ProcessRoster aggregates one roster document for the given course.
// asOf is the document's last-modified instant and stands in for the
// snapshot's logical capture time.
func (a *Aggregator) ProcessRoster(ctx context.Context, courseID int64, term string, doc []byte, asOf time.Time) error {
	var users []RosterUser
	if err := json.Unmarshal(doc, &users); err != nil {
		return errors.NewSnapshotError(errors.CodeBadDocument, "roster document is not a user list", err)
	}

	courseName, err := courseNameFor(courseID, users)
	if err != nil {
		return err
	}

	stat := &store.CourseActivityStat{
		CourseID: courseID,
		Date:     asOf.UTC().Format(store.DateLayout),
	}
	for _, user := range users {
		if len(user.Roles) > 0 && user.Roles[0].ShortName == "student" {
			stat.EnrolledStudents++
		}
		// A zero last access reads as the epoch, which lands the user
		// far outside both windows.
		elapsed := asOf.Sub(time.Unix(user.LastCourseAccess, 0))
		if elapsed < 7*24*time.Hour {
			stat.WeeklyActiveUsers++
		}
		if elapsed < 24*time.Hour {
			stat.DailyActiveUsers++
		}
	}

	if err := a.writer.UpsertCourseActivityStat(ctx, stat); err != nil {
		return err
	}
	if _, err := a.writer.InsertCourse(ctx, &store.Course{
		ID:   courseID,
		Name: courseName,
		Term: term,
	}); err != nil {
		return err
	}

	// Enrollment rows are cumulative, so filter against what is already
	// recorded and only attempt the remainder. This loads the full
	// enrollment set per snapshot; fine at current roster sizes.
	existing, err := a.writer.EnrollmentUserHashes(ctx, courseID)
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.UUID == nil || len(user.Roles) == 0 {
			continue
		}
		hash := events.Pseudonymize(*user.UUID)
		if _, ok := existing[hash]; ok {
			continue
		}
		if _, err := a.writer.InsertEventUserEnrollment(ctx, &store.EventUserEnrollment{
			UserUUIDHash: hash,
			CourseID:     courseID,
			Role:         user.Roles[0].ShortName,
		}); err != nil {
			return err
		}
	}
	return nil
}

// courseNameFor reads the course display name out of the first user's
// enrollment list. Any user would do; the first is as good as any.
func courseNameFor(courseID int64, users []RosterUser) (string, error) {
	if len(users) > 0 {
		for _, course := range users[0].EnrolledCourses {
			if course.ID == courseID {
				return course.FullName, nil
			}
		}
	}
	return "", errors.NewSnapshotError(
		errors.CodeCourseNotFound,
		fmt.Sprintf("could not find course name for %d in roster", courseID),
		nil,
	)
}

// ProcessGrades aggregates one grades document into per-day, per-quiz
// attempt counts. Counts are set, not incremented: the document carries
// the complete attempt history, so each run replaces the prior value.
func (a *Aggregator) ProcessGrades(ctx context.Context, courseID int64, doc []byte) error {
	var grades GradesDocument
	if err := json.Unmarshal(doc, &grades); err != nil {
		return errors.NewSnapshotError(errors.CodeBadDocument, "grades document is not an object", err)
	}
	// Legacy grades documents predate the quiz and attempt exports.
	if grades.Quizzes == nil || grades.Attempts == nil {
		return nil
	}

	quizNameByID := make(map[int64]string, len(grades.Quizzes))
	for _, quiz := range grades.Quizzes {
		quizNameByID[quiz.ID] = quiz.Name
	}

	type statKey struct {
		date string
		quiz string
	}
	attempts := make(map[statKey]int)
	for _, userAttempts := range grades.Attempts {
		for _, group := range userAttempts {
			for _, attempt := range group.Summaries {
				name, ok := quizNameByID[attempt.Quiz]
				if !ok {
					return errors.NewSnapshotError(
						errors.CodeBadDocument,
						fmt.Sprintf("attempt references unknown quiz %d", attempt.Quiz),
						nil,
					)
				}
				date := time.Unix(attempt.TimeFinish, 0).UTC().Format(store.DateLayout)
				attempts[statKey{date: date, quiz: name}]++
			}
		}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "failed to begin grades transaction", err)
	}
	defer tx.Rollback()

	writer := store.NewWriter(tx)
	for key, count := range attempts {
		err := writer.UpsertCourseQuizStat(ctx, &store.CourseQuizStat{
			CourseID:     courseID,
			Date:         key.date,
			QuizName:     key.quiz,
			QuizAttempts: count,
		})
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "failed to commit grades transaction", err)
	}
	return nil
}
