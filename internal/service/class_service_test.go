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

type mockClassRepo struct {
	classes       map[string]*models.ClassLevel
	studentCounts map[string]int
	nextID        int
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassLevelFilter) ([]models.ClassLevel, int, error) {
	var rows []models.ClassLevel
	for _, c := range m.classes {
		rows = append(rows, *c)
	}
	return rows, len(rows), nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.ClassLevel, error) {
	if c, ok := m.classes[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, c := range m.classes {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.ClassLevel) error {
	m.nextID++
	class.ID = string(rune('0' + m.nextID))
	stored := *class
	m.classes[class.ID] = &stored
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.ClassLevel) error {
	if _, ok := m.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *class
	m.classes[class.ID] = &stored
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.classes, id)
	return nil
}

func (m *mockClassRepo) CountStudents(ctx context.Context, id string) (int, error) {
	return m.studentCounts[id], nil
}

func newClassFixture() (*ClassService, *mockClassRepo) {
	repo := &mockClassRepo{
		classes:       make(map[string]*models.ClassLevel),
		studentCounts: make(map[string]int),
	}
	return NewClassService(repo, validator.New(), zap.NewNop()), repo
}

func TestClassServiceCreate(t *testing.T) {
	svc, _ := newClassFixture()

	class, err := svc.Create(context.Background(), CreateClassLevelRequest{
		Name:         "JHS 1",
		Code:         strPtr("J1"),
		Capacity:     40,
		DisplayOrder: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, class.ID)
	assert.True(t, class.Active)

	_, err = svc.Create(context.Background(), CreateClassLevelRequest{Name: "jhs 1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClassServiceCreateRejectsNegativeCapacity(t *testing.T) {
	svc, _ := newClassFixture()

	_, err := svc.Create(context.Background(), CreateClassLevelRequest{
		Name:     "JHS 2",
		Capacity: -1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceUpdate(t *testing.T) {
	svc, _ := newClassFixture()
	created, err := svc.Create(context.Background(), CreateClassLevelRequest{Name: "SHS 1", Capacity: 35})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), created.ID, UpdateClassLevelRequest{
		Name:          "SHS 1",
		Capacity:      45,
		FormTeacherID: strPtr("tch1"),
		Active:        &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, 45, updated.Capacity)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.FormTeacherID)
	assert.Equal(t, "tch1", *updated.FormTeacherID)

	_, err = svc.Update(context.Background(), "missing", UpdateClassLevelRequest{Name: "SHS 2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceDeleteGuardsStudents(t *testing.T) {
	svc, repo := newClassFixture()
	created, err := svc.Create(context.Background(), CreateClassLevelRequest{Name: "JHS 3"})
	require.NoError(t, err)

	repo.studentCounts[created.ID] = 12
	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "students enrolled")

	repo.studentCounts[created.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), created.ID))
}
