package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

const (
	minTermDays = 7
	maxTermDays = 365
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context, academicYearID string) (*models.Term, error)
	ListByAcademicYear(ctx context.Context, academicYearID string) ([]models.Term, error)
	ExistsByNameAndYear(ctx context.Context, name, academicYearID, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	SetCurrent(ctx context.Context, id, academicYearID string) error
	Delete(ctx context.Context, id string) error
	CountResults(ctx context.Context, id string) (int, error)
}

type termYearRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
}

// CreateTermRequest describes payload for creating terms.
type CreateTermRequest struct {
	Name           string    `json:"name" validate:"required"`
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	IsCurrent      bool      `json:"is_current"`
}

// UpdateTermRequest updates mutable fields on a term.
type UpdateTermRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// TermService orchestrates term workflows within academic years.
type TermService struct {
	repo      termRepository
	years     termYearRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, years termYearRepository, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, years: years, validator: validate, logger: logger}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
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
	return terms, pagination, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// GetCurrent returns the current term of the current academic year.
func (s *TermService) GetCurrent(ctx context.Context) (*models.Term, error) {
	year, err := s.years.FindCurrent(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current academic year set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current academic year")
	}

	term, err := s.repo.FindCurrent(ctx, year.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}

// Create adds a new term after validating its name, duration, placement
// within the parent year and overlap against sibling terms.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !allowedTermName(req.Name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term name must be one of: 1st Term, 2nd Term, 3rd Term")
	}

	year, err := s.years.FindByID(ctx, req.AcademicYearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	if err := s.validateDates(req.StartDate, req.EndDate, year); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNameAndYear(ctx, req.Name, req.AcademicYearID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for this academic year")
	}

	if err := s.checkOverlap(ctx, req.AcademicYearID, "", req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	term := &models.Term{
		Name:           req.Name,
		AcademicYearID: req.AcademicYearID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}

	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}

	if req.IsCurrent {
		if err := s.repo.SetCurrent(ctx, term.ID, term.AcademicYearID); err != nil {
			s.logger.Error("failed to set current term after create", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark term current")
		}
		term.IsCurrent = true
	}

	return term, nil
}

// Update modifies name and dates of a term under the same validation rules
// as Create. The current flag is only changed through SetCurrent.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !allowedTermName(req.Name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term name must be one of: 1st Term, 2nd Term, 3rd Term")
	}

	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	year, err := s.years.FindByID(ctx, term.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	if err := s.validateDates(req.StartDate, req.EndDate, year); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNameAndYear(ctx, req.Name, term.AcademicYearID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for this academic year")
	}

	if err := s.checkOverlap(ctx, term.AcademicYearID, id, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}

	return term, nil
}

// SetCurrent designates a term as current within its academic year. Sibling
// terms of the same year are demoted in the same transaction.
func (s *TermService) SetCurrent(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if err := s.repo.SetCurrent(ctx, term.ID, term.AcademicYearID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark term current")
	}
	term.IsCurrent = true
	return term, nil
}

// Delete removes a term that is neither current nor has results.
func (s *TermService) Delete(ctx context.Context, id string) error {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if term.IsCurrent {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete the current term")
	}

	count, err := s.repo.CountResults(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "term has results associated")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}

func (s *TermService) validateDates(start, end time.Time, year *models.AcademicYear) error {
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	if start.Before(year.StartDate) || end.After(year.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "term dates must fall within the academic year")
	}

	days := int(end.Sub(start).Hours() / 24)
	if days < minTermDays {
		return appErrors.Clone(appErrors.ErrValidation, "term must last at least 7 days")
	}
	if days > maxTermDays {
		return appErrors.Clone(appErrors.ErrValidation, "term cannot last more than 365 days")
	}
	return nil
}

func (s *TermService) checkOverlap(ctx context.Context, academicYearID, excludeID string, start, end time.Time) error {
	siblings, err := s.repo.ListByAcademicYear(ctx, academicYearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sibling terms")
	}
	for _, sibling := range siblings {
		if sibling.ID == excludeID {
			continue
		}
		if start.Before(sibling.EndDate) && sibling.StartDate.Before(end) {
			return appErrors.Clone(appErrors.ErrValidation, "term dates overlap with "+sibling.Name)
		}
	}
	return nil
}

func allowedTermName(name string) bool {
	for _, allowed := range models.AllowedTermNames {
		if name == allowed {
			return true
		}
	}
	return false
}
