package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osei-labs/schoolmate-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestResultUpsertInsertsNewRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, is_published, published_date, created_at FROM results").
		WithArgs("stu1", "sub1", "term1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO results").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result := &models.Result{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   80,
		ExamScore:    70,
		Score:        floatPtr(73),
		Grade:        "B",
		GradePoint:   3.0,
		UploadedBy:   "tch1",
	}
	created, err := repo.Upsert(context.Background(), result)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultUpsertUpdatesAndPreservesPublication(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	publishedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	createdAt := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "is_published", "published_date", "created_at"}).
		AddRow("r1", true, publishedAt, createdAt)
	mock.ExpectQuery("SELECT id, is_published, published_date, created_at FROM results").
		WithArgs("stu1", "sub1", "term1").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE results SET class_score").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result := &models.Result{
		StudentID:  "stu1",
		SubjectID:  "sub1",
		TermID:     "term1",
		Score:      floatPtr(88),
		Grade:      "A",
		GradePoint: 4.0,
		UploadedBy: "tch1",
	}
	created, err := repo.Upsert(context.Background(), result)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r1", result.ID)
	assert.True(t, result.IsPublished)
	require.NotNil(t, result.PublishedDate)
	assert.Equal(t, publishedAt, *result.PublishedDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultSetPublishedStampsDateOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE results SET is_published = TRUE, published_date = COALESCE(published_date, $1), updated_at = $1 WHERE id IN ($2,$3)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	affected, err := repo.SetPublished(context.Background(), []string{"r1", "r2"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultSetPublishedUnpublishKeepsDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE results SET is_published = FALSE, updated_at = $1 WHERE id IN ($2)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.SetPublished(context.Background(), []string{"r1"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultSetPublishedEmptyIDs(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	affected, err := repo.SetPublished(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestResultFilterOwnedIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("r1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM results WHERE id IN ($1,$2) AND uploaded_by = $3")).
		WithArgs("r1", "r2", "tch1").
		WillReturnRows(rows)

	owned, err := repo.FilterOwnedIDs(context.Background(), []string{"r1", "r2"}, "tch1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, owned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultDeleteReportsMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"total", "published", "average", "highest", "lowest"}).
		AddRow(10, 7, 72.5, 95.0, 41.0)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("cls1", "term1").
		WillReturnRows(rows)

	analysis, err := repo.Summary(context.Background(), models.AnalysisFilter{ClassLevelID: "cls1", TermID: "term1"})
	require.NoError(t, err)
	assert.Equal(t, 10, analysis.TotalResults)
	assert.Equal(t, 7, analysis.PublishedCount)
	require.NotNil(t, analysis.AverageScore)
	assert.Equal(t, 72.5, *analysis.AverageScore)
	assert.Equal(t, "cls1", analysis.ClassLevelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultListClampsPageSize(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM results r.+LIMIT 20 OFFSET 0`).
		WithArgs("term1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("term1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(500))

	_, total, err := repo.List(context.Background(), models.ResultFilter{TermID: "term1", PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 500, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultListForExportSkipsPageCap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM results r.+LIMIT 5000 OFFSET 0`).
		WithArgs("term1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("term1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(500))

	_, total, err := repo.ListForExport(context.Background(), models.ResultFilter{TermID: "term1"}, 5000)
	require.NoError(t, err)
	assert.Equal(t, 500, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
