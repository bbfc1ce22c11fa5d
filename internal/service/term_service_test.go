package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type mockTermRepo struct {
	terms        map[string]*models.Term
	nextID       int
	resultCounts map[string]int
	currentSet   []string
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	var rows []models.Term
	for _, t := range m.terms {
		if filter.AcademicYearID != "" && filter.AcademicYearID != t.AcademicYearID {
			continue
		}
		rows = append(rows, *t)
	}
	return rows, len(rows), nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) FindCurrent(ctx context.Context, academicYearID string) (*models.Term, error) {
	for _, t := range m.terms {
		if t.AcademicYearID == academicYearID && t.IsCurrent {
			copied := *t
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ListByAcademicYear(ctx context.Context, academicYearID string) ([]models.Term, error) {
	var rows []models.Term
	for _, t := range m.terms {
		if t.AcademicYearID == academicYearID {
			rows = append(rows, *t)
		}
	}
	return rows, nil
}

func (m *mockTermRepo) ExistsByNameAndYear(ctx context.Context, name, academicYearID, excludeID string) (bool, error) {
	for _, t := range m.terms {
		if t.ID == excludeID {
			continue
		}
		if t.Name == name && t.AcademicYearID == academicYearID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if m.terms == nil {
		m.terms = make(map[string]*models.Term)
	}
	m.nextID++
	term.ID = string(rune('0' + m.nextID))
	stored := *term
	m.terms[term.ID] = &stored
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	if _, ok := m.terms[term.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *term
	m.terms[term.ID] = &stored
	return nil
}

func (m *mockTermRepo) SetCurrent(ctx context.Context, id, academicYearID string) error {
	m.currentSet = append(m.currentSet, id)
	for _, t := range m.terms {
		if t.AcademicYearID == academicYearID {
			t.IsCurrent = t.ID == id
		}
	}
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.terms[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.terms, id)
	return nil
}

func (m *mockTermRepo) CountResults(ctx context.Context, id string) (int, error) {
	return m.resultCounts[id], nil
}

type mockYearReader struct {
	years map[string]*models.AcademicYear
}

func (m *mockYearReader) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := m.years[id]; ok {
		return y, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockYearReader) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	for _, y := range m.years {
		if y.IsCurrent {
			return y, nil
		}
	}
	return nil, sql.ErrNoRows
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newTermFixture() (*TermService, *mockTermRepo, *mockYearReader) {
	repo := &mockTermRepo{terms: make(map[string]*models.Term), resultCounts: map[string]int{}}
	years := &mockYearReader{years: map[string]*models.AcademicYear{
		"year1": {ID: "year1", Name: "2025/2026", StartDate: date(2025, 9, 1), EndDate: date(2026, 7, 31), IsCurrent: true},
	}}
	svc := NewTermService(repo, years, validator.New(), zap.NewNop())
	return svc, repo, years
}

func TestTermServiceCreate(t *testing.T) {
	svc, repo, _ := newTermFixture()

	term, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "1st Term",
		AcademicYearID: "year1",
		StartDate:      date(2025, 9, 1),
		EndDate:        date(2025, 12, 15),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, term.ID)
	assert.Len(t, repo.terms, 1)
}

func TestTermServiceCreateRejectsUnknownName(t *testing.T) {
	svc, _, _ := newTermFixture()

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "Summer Term",
		AcademicYearID: "year1",
		StartDate:      date(2025, 9, 1),
		EndDate:        date(2025, 12, 15),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateRejectsShortDuration(t *testing.T) {
	svc, _, _ := newTermFixture()

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "1st Term",
		AcademicYearID: "year1",
		StartDate:      date(2025, 9, 1),
		EndDate:        date(2025, 9, 4),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 7 days")
}

func TestTermServiceCreateRejectsDatesOutsideYear(t *testing.T) {
	svc, _, _ := newTermFixture()

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "1st Term",
		AcademicYearID: "year1",
		StartDate:      date(2025, 8, 1),
		EndDate:        date(2025, 12, 15),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "within the academic year")
}

func TestTermServiceCreateRejectsOverlap(t *testing.T) {
	svc, repo, _ := newTermFixture()

	repo.terms["t1"] = &models.Term{
		ID: "t1", Name: "1st Term", AcademicYearID: "year1",
		StartDate: date(2025, 9, 1), EndDate: date(2025, 12, 15),
	}

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "2nd Term",
		AcademicYearID: "year1",
		StartDate:      date(2025, 12, 1),
		EndDate:        date(2026, 3, 31),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")

	term, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "2nd Term",
		AcademicYearID: "year1",
		StartDate:      date(2026, 1, 5),
		EndDate:        date(2026, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, "2nd Term", term.Name)
}

func TestTermServiceCreateRejectsDuplicateName(t *testing.T) {
	svc, repo, _ := newTermFixture()

	repo.terms["t1"] = &models.Term{
		ID: "t1", Name: "1st Term", AcademicYearID: "year1",
		StartDate: date(2025, 9, 1), EndDate: date(2025, 12, 15),
	}

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:           "1st Term",
		AcademicYearID: "year1",
		StartDate:      date(2026, 1, 5),
		EndDate:        date(2026, 3, 31),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTermServiceSetCurrentDemotesSiblings(t *testing.T) {
	svc, repo, _ := newTermFixture()

	repo.terms["t1"] = &models.Term{ID: "t1", Name: "1st Term", AcademicYearID: "year1", IsCurrent: true}
	repo.terms["t2"] = &models.Term{ID: "t2", Name: "2nd Term", AcademicYearID: "year1"}

	term, err := svc.SetCurrent(context.Background(), "t2")
	require.NoError(t, err)
	assert.True(t, term.IsCurrent)
	assert.False(t, repo.terms["t1"].IsCurrent)
	assert.True(t, repo.terms["t2"].IsCurrent)
}

func TestTermServiceGetCurrent(t *testing.T) {
	svc, repo, years := newTermFixture()

	repo.terms["t1"] = &models.Term{ID: "t1", Name: "2nd Term", AcademicYearID: "year1", IsCurrent: true}
	repo.terms["t2"] = &models.Term{ID: "t2", Name: "1st Term", AcademicYearID: "year2", IsCurrent: true}

	term, err := svc.GetCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", term.ID)

	years.years["year1"].IsCurrent = false
	_, err = svc.GetCurrent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no current academic year")
}

func TestTermServiceDeleteGuards(t *testing.T) {
	svc, repo, _ := newTermFixture()

	repo.terms["t1"] = &models.Term{ID: "t1", Name: "1st Term", AcademicYearID: "year1", IsCurrent: true}
	repo.terms["t2"] = &models.Term{ID: "t2", Name: "2nd Term", AcademicYearID: "year1"}
	repo.terms["t3"] = &models.Term{ID: "t3", Name: "3rd Term", AcademicYearID: "year1"}
	repo.resultCounts["t2"] = 4

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current term")

	err = svc.Delete(context.Background(), "t2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has results")

	err = svc.Delete(context.Background(), "t3")
	require.NoError(t, err)
	assert.Len(t, repo.terms, 2)
}
