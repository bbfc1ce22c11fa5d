package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassLevelFilter) ([]models.ClassLevel, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassLevel, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.ClassLevel) error
	Update(ctx context.Context, class *models.ClassLevel) error
	Delete(ctx context.Context, id string) error
	CountStudents(ctx context.Context, id string) (int, error)
}

// CreateClassLevelRequest describes payload for creating class levels.
type CreateClassLevelRequest struct {
	Name          string  `json:"name" validate:"required"`
	Code          *string `json:"code"`
	Description   *string `json:"description"`
	Capacity      int     `json:"capacity" validate:"gte=0"`
	DisplayOrder  int     `json:"display_order" validate:"gte=0"`
	FormTeacherID *string `json:"form_teacher_id"`
}

// UpdateClassLevelRequest updates mutable fields on a class level.
type UpdateClassLevelRequest struct {
	Name          string  `json:"name" validate:"required"`
	Code          *string `json:"code"`
	Description   *string `json:"description"`
	Capacity      int     `json:"capacity" validate:"gte=0"`
	DisplayOrder  int     `json:"display_order" validate:"gte=0"`
	FormTeacherID *string `json:"form_teacher_id"`
	Active        *bool   `json:"active"`
}

// ClassService orchestrates class level workflows.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService creates a new class service instance.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated class levels.
func (s *ClassService) List(ctx context.Context, filter models.ClassLevelFilter) ([]models.ClassLevel, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class levels")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	}
	return classes, pagination, nil
}

// Get returns a class level by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassLevel, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class level not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class level")
	}
	return class, nil
}

// Create adds a new class level enforcing name uniqueness.
func (s *ClassService) Create(ctx context.Context, req CreateClassLevelRequest) (*models.ClassLevel, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class level payload")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class level name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class level with this name already exists")
	}

	class := &models.ClassLevel{
		Name:          req.Name,
		Code:          req.Code,
		Description:   req.Description,
		Capacity:      req.Capacity,
		DisplayOrder:  req.DisplayOrder,
		FormTeacherID: req.FormTeacherID,
		Active:        true,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class level")
	}
	return class, nil
}

// Update modifies a class level record.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassLevelRequest) (*models.ClassLevel, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class level payload")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class level not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class level")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class level name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class level with this name already exists")
	}

	class.Name = req.Name
	class.Code = req.Code
	class.Description = req.Description
	class.Capacity = req.Capacity
	class.DisplayOrder = req.DisplayOrder
	class.FormTeacherID = req.FormTeacherID
	if req.Active != nil {
		class.Active = *req.Active
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class level")
	}
	return class, nil
}

// Delete removes a class level with no enrolled students.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class level dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class level has students enrolled")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class level")
	}
	return nil
}
