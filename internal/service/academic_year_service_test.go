package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type mockYearRepo struct {
	years      map[string]*models.AcademicYear
	nextID     int
	termCounts map[string]int
}

func (m *mockYearRepo) List(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error) {
	var rows []models.AcademicYear
	for _, y := range m.years {
		if filter.IsCurrent != nil && *filter.IsCurrent != y.IsCurrent {
			continue
		}
		rows = append(rows, *y)
	}
	return rows, len(rows), nil
}

func (m *mockYearRepo) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := m.years[id]; ok {
		copied := *y
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockYearRepo) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	for _, y := range m.years {
		if y.IsCurrent {
			copied := *y
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockYearRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, y := range m.years {
		if y.ID != excludeID && y.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockYearRepo) Create(ctx context.Context, year *models.AcademicYear) error {
	if m.years == nil {
		m.years = make(map[string]*models.AcademicYear)
	}
	m.nextID++
	year.ID = string(rune('0' + m.nextID))
	stored := *year
	m.years[year.ID] = &stored
	return nil
}

func (m *mockYearRepo) Update(ctx context.Context, year *models.AcademicYear) error {
	if _, ok := m.years[year.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *year
	m.years[year.ID] = &stored
	return nil
}

func (m *mockYearRepo) SetCurrent(ctx context.Context, id string) error {
	for _, y := range m.years {
		y.IsCurrent = y.ID == id
	}
	return nil
}

func (m *mockYearRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.years[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.years, id)
	return nil
}

func (m *mockYearRepo) CountTerms(ctx context.Context, id string) (int, error) {
	return m.termCounts[id], nil
}

func newYearFixture() (*AcademicYearService, *mockYearRepo) {
	repo := &mockYearRepo{years: make(map[string]*models.AcademicYear), termCounts: map[string]int{}}
	svc := NewAcademicYearService(repo, validator.New(), zap.NewNop())
	return svc, repo
}

func TestAcademicYearServiceCreate(t *testing.T) {
	svc, repo := newYearFixture()

	year, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025/2026",
		StartDate: date(2025, 9, 1),
		EndDate:   date(2026, 7, 31),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, year.ID)
	assert.Len(t, repo.years, 1)

	_, err = svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025/2026",
		StartDate: date(2025, 9, 1),
		EndDate:   date(2026, 7, 31),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAcademicYearServiceCreateRejectsInvertedDates(t *testing.T) {
	svc, _ := newYearFixture()

	_, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025/2026",
		StartDate: date(2026, 7, 31),
		EndDate:   date(2025, 9, 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAcademicYearServiceSetCurrentDemotesOthers(t *testing.T) {
	svc, repo := newYearFixture()

	repo.years["y1"] = &models.AcademicYear{ID: "y1", Name: "2024/2025", IsCurrent: true}
	repo.years["y2"] = &models.AcademicYear{ID: "y2", Name: "2025/2026"}

	year, err := svc.SetCurrent(context.Background(), "y2")
	require.NoError(t, err)
	assert.True(t, year.IsCurrent)
	assert.False(t, repo.years["y1"].IsCurrent)
	assert.True(t, repo.years["y2"].IsCurrent)
}

func TestAcademicYearServiceDeleteGuards(t *testing.T) {
	svc, repo := newYearFixture()

	repo.years["y1"] = &models.AcademicYear{ID: "y1", Name: "2024/2025", IsCurrent: true}
	repo.years["y2"] = &models.AcademicYear{ID: "y2", Name: "2025/2026"}
	repo.years["y3"] = &models.AcademicYear{ID: "y3", Name: "2026/2027"}
	repo.termCounts["y2"] = 3

	err := svc.Delete(context.Background(), "y1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current academic year")

	err = svc.Delete(context.Background(), "y2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has terms")

	err = svc.Delete(context.Background(), "y3")
	require.NoError(t, err)
	assert.Len(t, repo.years, 2)

	err = svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAcademicYearServiceGetCurrent(t *testing.T) {
	svc, repo := newYearFixture()

	_, err := svc.GetCurrent(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	repo.years["y1"] = &models.AcademicYear{ID: "y1", Name: "2025/2026", IsCurrent: true}
	year, err := svc.GetCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "y1", year.ID)
}
