package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects     map[string]*models.Subject
	resultCounts map[string]int
	nextID       int
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var rows []models.Subject
	for _, s := range m.subjects {
		rows = append(rows, *s)
	}
	return rows, len(rows), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for _, s := range m.subjects {
		if s.ID != excludeID && strings.EqualFold(s.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	m.nextID++
	subject.ID = string(rune('0' + m.nextID))
	stored := *subject
	m.subjects[subject.ID] = &stored
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	if _, ok := m.subjects[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *subject
	m.subjects[subject.ID] = &stored
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.subjects, id)
	return nil
}

func (m *mockSubjectRepo) CountResults(ctx context.Context, id string) (int, error) {
	return m.resultCounts[id], nil
}

func newSubjectFixture() (*SubjectService, *mockSubjectRepo) {
	repo := &mockSubjectRepo{
		subjects:     make(map[string]*models.Subject),
		resultCounts: make(map[string]int),
	}
	return NewSubjectService(repo, validator.New(), zap.NewNop()), repo
}

func TestSubjectServiceCreate(t *testing.T) {
	svc, _ := newSubjectFixture()

	subject, err := svc.Create(context.Background(), CreateSubjectRequest{
		Name:     "Mathematics",
		Code:     "MATH",
		Category: models.SubjectCore,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, subject.ID)
	assert.True(t, subject.Active)

	_, err = svc.Create(context.Background(), CreateSubjectRequest{
		Name:     "Math Extended",
		Code:     "math",
		Category: models.SubjectElective,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateRejectsBadCategory(t *testing.T) {
	svc, _ := newSubjectFixture()

	_, err := svc.Create(context.Background(), CreateSubjectRequest{
		Name:     "Woodwork",
		Code:     "WOOD",
		Category: "vocational",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceUpdateAllowsOwnCode(t *testing.T) {
	svc, _ := newSubjectFixture()
	created, err := svc.Create(context.Background(), CreateSubjectRequest{
		Name:     "Science",
		Code:     "SCI",
		Category: models.SubjectCore,
	})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), created.ID, UpdateSubjectRequest{
		Name:     "Integrated Science",
		Code:     "SCI",
		Category: models.SubjectCore,
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Integrated Science", updated.Name)
	assert.False(t, updated.Active)
}

func TestSubjectServiceDeleteGuardsResults(t *testing.T) {
	svc, repo := newSubjectFixture()
	created, err := svc.Create(context.Background(), CreateSubjectRequest{
		Name:     "English Language",
		Code:     "ENG",
		Category: models.SubjectCore,
	})
	require.NoError(t, err)

	repo.resultCounts[created.ID] = 3
	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has results")

	repo.resultCounts[created.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), created.ID))

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
