package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osei-labs/schoolmate-api/internal/models"
)

func TestAcademicYearSetCurrentSwapsFlag(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "y2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_current = TRUE, updated_at = $2 WHERE id = $1")).
		WithArgs("y2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetCurrent(context.Background(), "y2")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearFindCurrent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "is_current", "created_at", "updated_at"}).
		AddRow("y1", "2025/2026", now, now, true, now, now)
	mock.ExpectQuery("SELECT (.+) FROM academic_years WHERE is_current").
		WillReturnRows(rows)

	year, err := repo.FindCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025/2026", year.Name)
	assert.True(t, year.IsCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearFindCurrentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM academic_years WHERE is_current").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	mock.ExpectExec("INSERT INTO academic_years").WillReturnResult(sqlmock.NewResult(1, 1))

	year := &models.AcademicYear{
		Name:      "2025/2026",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), year)
	require.NoError(t, err)
	assert.NotEmpty(t, year.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearCountTerms(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicYearRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM terms WHERE academic_year_id = $1")).
		WithArgs("y1").
		WillReturnRows(rows)

	count, err := repo.CountTerms(context.Background(), "y1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
