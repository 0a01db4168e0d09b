package loader

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack/internal/objectstore"
	"github.com/classtrack/classtrack/internal/store"
)

func setup(t *testing.T) (*Loader, *sql.DB, *objectstore.LocalStore) {
	t.Helper()
	db, err := store.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	objects, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return New(objects, db), db, objects
}

const contentCSV = "content_id,section,activity_name,lesson_page,visible\n" +
	"a40f26e7-d373-43a3-9b43-230ba82839e3,Unit 1,Reading,1.1,1\n" +
	"f46104d8-0a34-44d8-bd17-b1ab1a2d0cf3,Unit 1,Quiz,1.2,0\n"

func TestLoadCourseContent(t *testing.T) {
	l, db, objects := setup(t)
	ctx := context.Background()

	const key = "exports/spring-2023/course-content.csv"
	require.NoError(t, objects.Put(ctx, "data", key, []byte(contentCSV)))
	require.NoError(t, l.LoadCourseContent(ctx, "data", key))

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM course_content WHERE term = 'spring-2023'`).Scan(&count))
	assert.Equal(t, 2, count)

	var visible bool
	require.NoError(t, db.QueryRow(
		`SELECT visible FROM course_content WHERE content_id = 'f46104d8-0a34-44d8-bd17-b1ab1a2d0cf3'`,
	).Scan(&visible))
	assert.False(t, visible, `only "1" reads as visible`)
}

func TestLoadCourseContentReplaces(t *testing.T) {
	l, db, objects := setup(t)
	ctx := context.Background()

	const key = "exports/spring-2023/course-content.csv"
	require.NoError(t, objects.Put(ctx, "data", key, []byte(contentCSV)))
	require.NoError(t, l.LoadCourseContent(ctx, "data", key))

	revised := "content_id,section,activity_name,lesson_page,visible\n" +
		"a40f26e7-d373-43a3-9b43-230ba82839e3,Unit 2,Reading,2.1,1\n"
	require.NoError(t, objects.Put(ctx, "data", key, []byte(revised)))
	require.NoError(t, l.LoadCourseContent(ctx, "data", key))

	var section string
	require.NoError(t, db.QueryRow(
		`SELECT section FROM course_content WHERE content_id = 'a40f26e7-d373-43a3-9b43-230ba82839e3'`,
	).Scan(&section))
	assert.Equal(t, "Unit 2", section)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM course_content`).Scan(&count))
	assert.Equal(t, 2, count, "reload upserts rather than duplicating")
}

func TestLoadCourseContentBadKey(t *testing.T) {
	l, _, _ := setup(t)
	err := l.LoadCourseContent(context.Background(), "data", "flat-key.csv")
	require.Error(t, err)
}

func seedCourse(t *testing.T, db *sql.DB, id int64, name, term string) {
	t.Helper()
	_, err := store.NewWriter(db).InsertCourse(context.Background(), &store.Course{
		ID: id, Name: name, Term: term,
	})
	require.NoError(t, err)
}

func district(t *testing.T, db *sql.DB, id int64) *string {
	t.Helper()
	var d *string
	require.NoError(t, db.QueryRow(`SELECT district FROM course WHERE id = $1`, id).Scan(&d))
	return d
}

func TestLoadDistricts(t *testing.T) {
	l, db, objects := setup(t)
	ctx := context.Background()

	seedCourse(t, db, 1, "Algebra 1", "spring-2023")
	seedCourse(t, db, 2, "Chemistry", "spring-2023")
	seedCourse(t, db, 3, "Physics", "fall-2022")

	const key = "exports/spring-2023/districts.csv"
	csv := "course_id,district\n1,Northside ISD\n2,Eastside ISD\n3,Westside ISD\n"
	require.NoError(t, objects.Put(ctx, "data", key, []byte(csv)))
	require.NoError(t, l.LoadDistricts(ctx, "data", key))

	require.NotNil(t, district(t, db, 1))
	assert.Equal(t, "Northside ISD", *district(t, db, 1))
	assert.Nil(t, district(t, db, 3), "courses outside the term are untouched")

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM course WHERE id = 1`).Scan(&name))
	assert.Equal(t, "Algebra 1", name)
}

func TestLoadDistrictsOnlyWhenChanged(t *testing.T) {
	l, db, objects := setup(t)
	ctx := context.Background()

	seedCourse(t, db, 1, "Algebra 1", "spring-2023")

	const key = "exports/spring-2023/districts.csv"
	csv := "course_id,district\n1,Northside ISD\n"
	require.NoError(t, objects.Put(ctx, "data", key, []byte(csv)))
	require.NoError(t, l.LoadDistricts(ctx, "data", key))
	// A second run with the same data finds nothing to update.
	require.NoError(t, l.LoadDistricts(ctx, "data", key))

	require.NotNil(t, district(t, db, 1))
	assert.Equal(t, "Northside ISD", *district(t, db, 1))
}
