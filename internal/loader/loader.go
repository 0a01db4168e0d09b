// Package loader imports CSV reference data into the relational store:
// course content metadata and district assignments. Loaders run as one-shot
// commands against a single CSV object, not as queue consumers.
package loader

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/classtrack/classtrack/internal/errors"
	"github.com/classtrack/classtrack/internal/notification"
	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/store"
)

// Loader reads CSV objects from the store and applies them to the database.
type Loader struct {
	objects objectstore.ObjectStore
	db      *sql.DB
}

func New(objects objectstore.ObjectStore, db *sql.DB) *Loader {
	return &Loader{objects: objects, db: db}
}

// readCSV fetches the object at key and returns its rows as column-name
// keyed maps, like the header-driven readers the exports were built for.
func (l *Loader) readCSV(ctx context.Context, bucket, key string) ([]map[string]string, error) {
	obj, err := l.objects.Fetch(ctx, bucket, key, "")
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed,
			fmt.Sprintf("failed to fetch s3://%s/%s", bucket, key), err)
	}

	reader := csv.NewReader(strings.NewReader(string(obj.Body)))
	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewInternalError("csv object has no header row", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInternalError("failed to read csv row", err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCourseContent imports the course content CSV at key, upserting each
// (term, content id) pair in a single transaction. The term comes from the
// key layout.
func (l *Loader) LoadCourseContent(ctx context.Context, bucket, key string) error {
	term, err := notification.TermFromCSVKey(key)
	if err != nil {
		return err
	}
	rows, err := l.readCSV(ctx, bucket, key)
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "failed to begin content transaction", err)
	}
	defer tx.Rollback()

	writer := store.NewWriter(tx)
	for _, row := range rows {
		contentID, err := uuid.Parse(row["content_id"])
		if err != nil {
			return errors.NewInternalError(
				fmt.Sprintf("csv row has invalid content_id %q", row["content_id"]), err)
		}
		err = writer.UpsertCourseContent(ctx, &store.CourseContent{
			ContentID:    contentID,
			Term:         term,
			Section:      row["section"],
			ActivityName: row["activity_name"],
			LessonPage:   row["lesson_page"],
			Visible:      row["visible"] == "1",
		})
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "failed to commit content transaction", err)
	}
	log.Printf("loader: loaded %d content rows for term %s", len(rows), term)
	return nil
}

// LoadDistricts imports the (course_id, district) CSV at key and updates
// the district for existing courses of the term, only where it differs.
// Course name and term are never touched; unknown course ids are skipped.
func (l *Loader) LoadDistricts(ctx context.Context, bucket, key string) error {
	term, err := notification.TermFromCSVKey(key)
	if err != nil {
		return err
	}
	rows, err := l.readCSV(ctx, bucket, key)
	if err != nil {
		return err
	}

	districtByCourse := make(map[int64]string, len(rows))
	for _, row := range rows {
		courseID, err := strconv.ParseInt(row["course_id"], 10, 64)
		if err != nil {
			return errors.NewInternalError(
				fmt.Sprintf("csv row has invalid course_id %q", row["course_id"]), err)
		}
		districtByCourse[courseID] = row["district"]
	}

	writer := store.NewWriter(l.db)
	courses, err := writer.CoursesByTerm(ctx, term)
	if err != nil {
		return err
	}

	updated := 0
	for _, course := range courses {
		district, ok := districtByCourse[course.ID]
		if !ok {
			continue
		}
		if course.District != nil && *course.District == district {
			continue
		}
		if err := writer.UpdateCourseDistrict(ctx, course.ID, district); err != nil {
			return err
		}
		updated++
	}
	log.Printf("loader: updated district for %d of %d courses in term %s", updated, len(courses), term)
	return nil
}
