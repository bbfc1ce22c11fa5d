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

type classSubjectRepository interface {
	ListByClass(ctx context.Context, classLevelID, academicYearID string) ([]models.ClassSubjectDetail, error)
	ListByTeacher(ctx context.Context, teacherID, academicYearID string) ([]models.ClassSubjectDetail, error)
	Exists(ctx context.Context, classLevelID, subjectID, academicYearID string) (bool, error)
	Create(ctx context.Context, assignment *models.ClassSubject) error
	SetTeacher(ctx context.Context, assignmentID string, teacherID *string) error
	Delete(ctx context.Context, id string) error
}

type assignmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignSubjectRequest links a subject to a class level for an academic year.
type AssignSubjectRequest struct {
	ClassLevelID   string  `json:"class_level_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	TeacherID      *string `json:"teacher_id"`
}

// SetTeacherRequest assigns or clears the teacher on an assignment.
type SetTeacherRequest struct {
	TeacherID *string `json:"teacher_id"`
}

// ClassSubjectService manages subject assignments per class and year.
type ClassSubjectService struct {
	repo      classSubjectRepository
	users     assignmentUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassSubjectService creates a new class subject service instance.
func NewClassSubjectService(repo classSubjectRepository, users assignmentUserRepository, validate *validator.Validate, logger *zap.Logger) *ClassSubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassSubjectService{repo: repo, users: users, validator: validate, logger: logger}
}

// ListByClass returns assignments of one class level for an academic year.
func (s *ClassSubjectService) ListByClass(ctx context.Context, classLevelID, academicYearID string) ([]models.ClassSubjectDetail, error) {
	assignments, err := s.repo.ListByClass(ctx, classLevelID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class subjects")
	}
	return assignments, nil
}

// ListByTeacher returns everything a teacher is assigned to teach.
func (s *ClassSubjectService) ListByTeacher(ctx context.Context, teacherID, academicYearID string) ([]models.ClassSubjectDetail, error) {
	assignments, err := s.repo.ListByTeacher(ctx, teacherID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher assignments")
	}
	return assignments, nil
}

// Assign creates a class-subject link, optionally with a teacher.
func (s *ClassSubjectService) Assign(ctx context.Context, req AssignSubjectRequest) (*models.ClassSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	exists, err := s.repo.Exists(ctx, req.ClassLevelID, req.SubjectID, req.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject is already assigned to this class for the academic year")
	}

	if req.TeacherID != nil && *req.TeacherID != "" {
		if err := s.checkTeacher(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
	}

	assignment := &models.ClassSubject{
		ClassLevelID:   req.ClassLevelID,
		SubjectID:      req.SubjectID,
		AcademicYearID: req.AcademicYearID,
		TeacherID:      req.TeacherID,
	}

	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// SetTeacher assigns or clears the teacher on an existing assignment.
func (s *ClassSubjectService) SetTeacher(ctx context.Context, assignmentID string, req SetTeacherRequest) error {
	if req.TeacherID != nil && *req.TeacherID != "" {
		if err := s.checkTeacher(ctx, *req.TeacherID); err != nil {
			return err
		}
	}

	if err := s.repo.SetTeacher(ctx, assignmentID, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set teacher")
	}
	return nil
}

// Delete removes an assignment.
func (s *ClassSubjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

func (s *ClassSubjectService) checkTeacher(ctx context.Context, teacherID string) error {
	user, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user must have the teacher role")
	}
	return nil
}
