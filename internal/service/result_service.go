package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/grading"
	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

const analyticsCachePattern = "analytics:*"

type resultRepository interface {
	FindByID(ctx context.Context, id string) (*models.Result, error)
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error)
	Upsert(ctx context.Context, result *models.Result) (bool, error)
	SetPublished(ctx context.Context, ids []string, publish bool) (int64, error)
	FilterOwnedIDs(ctx context.Context, ids []string, uploaderID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type resultTermRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type resultAssignmentRepository interface {
	IsTeacherAssigned(ctx context.Context, teacherID, classLevelID, subjectID, academicYearID string) (bool, error)
}

type resultStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type resultAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type resultCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// UploadResultRequest carries one student score entry for upsert.
type UploadResultRequest struct {
	StudentID    string           `json:"student_id" validate:"required"`
	SubjectID    string           `json:"subject_id" validate:"required"`
	ClassLevelID string           `json:"class_level_id" validate:"required"`
	TermID       string           `json:"term_id" validate:"required"`
	ClassScore   *float64         `json:"class_score"`
	ExamScore    *float64         `json:"exam_score"`
	Score        *float64         `json:"score"`
	Mode         models.ScoreMode `json:"mode"`
	Remarks      *string          `json:"remarks"`
}

// BulkUploadRequest groups entries sharing a subject, class and term.
type BulkUploadRequest struct {
	SubjectID    string            `json:"subject_id" validate:"required"`
	ClassLevelID string            `json:"class_level_id" validate:"required"`
	TermID       string            `json:"term_id" validate:"required"`
	Mode         models.ScoreMode  `json:"mode"`
	Entries      []BulkUploadEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkUploadEntry is one student's scores within a bulk upload.
type BulkUploadEntry struct {
	StudentID  string   `json:"student_id" validate:"required"`
	ClassScore *float64 `json:"class_score"`
	ExamScore  *float64 `json:"exam_score"`
	Score      *float64 `json:"score"`
	Remarks    *string  `json:"remarks"`
}

// BulkPublishRequest toggles publication on a batch of results.
type BulkPublishRequest struct {
	ResultIDs []string `json:"result_ids" validate:"required,min=1"`
}

// ResultService orchestrates score upload, derivation and publication.
type ResultService struct {
	repo        resultRepository
	terms       resultTermRepository
	assignments resultAssignmentRepository
	students    resultStudentRepository
	auditor     resultAuditor
	cache       resultCacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewResultService creates a new result service instance. The auditor,
// cache and metrics are optional.
func NewResultService(
	repo resultRepository,
	terms resultTermRepository,
	assignments resultAssignmentRepository,
	students resultStudentRepository,
	auditor resultAuditor,
	cache resultCacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		repo:        repo,
		terms:       terms,
		assignments: assignments,
		students:    students,
		auditor:     auditor,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns paginated result rows with descriptive names.
func (s *ResultService) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, *models.Pagination, error) {
	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
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
	return results, pagination, nil
}

// ListForStudent returns only the student's own published results.
func (s *ResultService) ListForStudent(ctx context.Context, studentID string, filter models.ResultFilter) ([]models.ResultDetail, *models.Pagination, error) {
	published := true
	filter.StudentID = studentID
	filter.IsPublished = &published
	return s.List(ctx, filter)
}

// Get returns a result by ID. Students may only read their own published
// rows; other callers see everything.
func (s *ResultService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Result, error) {
	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if claims != nil && claims.Role == models.RoleStudent {
		if result.StudentID != claims.UserID || !result.IsPublished {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
	}
	return result, nil
}

// Upload validates, derives and upserts one result. The outcome reports
// whether a row was created or an existing one updated; publication state
// of updated rows is preserved.
func (s *ResultService) Upload(ctx context.Context, req UploadResultRequest, claims *models.JWTClaims) (*models.UploadOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	term, err := s.loadTerm(ctx, req.TermID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeUpload(ctx, claims, req.ClassLevelID, req.SubjectID, term.AcademicYearID); err != nil {
		return nil, err
	}
	if err := s.checkStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	result, err := s.buildResult(req, claims.UserID)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Upsert(ctx, result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result")
	}

	s.metrics.RecordUpload(created)
	s.invalidateAnalytics(ctx)
	return &models.UploadOutcome{Result: result, Created: created}, nil
}

// BulkUpload upserts a batch of entries for one subject, class and term.
// All entries are validated before any write; a bad entry fails the batch.
func (s *ResultService) BulkUpload(ctx context.Context, req BulkUploadRequest, claims *models.JWTClaims) (*models.BulkUploadSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk upload payload")
	}

	term, err := s.loadTerm(ctx, req.TermID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeUpload(ctx, claims, req.ClassLevelID, req.SubjectID, term.AcademicYearID); err != nil {
		return nil, err
	}

	results := make([]*models.Result, 0, len(req.Entries))
	for i, entry := range req.Entries {
		single := UploadResultRequest{
			StudentID:    entry.StudentID,
			SubjectID:    req.SubjectID,
			ClassLevelID: req.ClassLevelID,
			TermID:       req.TermID,
			ClassScore:   entry.ClassScore,
			ExamScore:    entry.ExamScore,
			Score:        entry.Score,
			Mode:         req.Mode,
			Remarks:      entry.Remarks,
		}
		result, err := s.buildResult(single, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("entry %d invalid", i+1))
		}
		results = append(results, result)
	}

	summary := &models.BulkUploadSummary{}
	for i, result := range results {
		created, err := s.repo.Upsert(ctx, result)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to save entry %d", i+1))
		}
		s.metrics.RecordUpload(created)
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	s.invalidateAnalytics(ctx)
	return summary, nil
}

// Publish marks a result as published. The first publication stamps
// published_date; republishing an already published row is a no-op and
// never moves the date.
func (s *ResultService) Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.Result, error) {
	return s.setPublication(ctx, id, claims, true)
}

// Unpublish withdraws a result from student view. The published_date is
// retained as a historical record of the first publication.
func (s *ResultService) Unpublish(ctx context.Context, id string, claims *models.JWTClaims) (*models.Result, error) {
	return s.setPublication(ctx, id, claims, false)
}

// BulkPublish transitions a batch of results. Non-admin callers are
// silently restricted to results they uploaded themselves; IDs outside
// their ownership are counted as skipped, not errored.
func (s *ResultService) BulkPublish(ctx context.Context, req BulkPublishRequest, claims *models.JWTClaims, publish bool) (*models.BulkPublishSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk publish payload")
	}

	ids := req.ResultIDs
	if claims.Role != models.RoleAdmin {
		owned, err := s.repo.FilterOwnedIDs(ctx, ids, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve result ownership")
		}
		ids = owned
	}

	var affected int64
	if len(ids) > 0 {
		var err error
		affected, err = s.repo.SetPublished(ctx, ids, publish)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication state")
		}
	}

	s.metrics.RecordPublication(publish, int(affected))
	s.audit(ctx, claims, publishAction(publish), "results", nil, map[string]interface{}{
		"requested": len(req.ResultIDs),
		"affected":  affected,
	})
	s.invalidateAnalytics(ctx)

	return &models.BulkPublishSummary{
		Requested: len(req.ResultIDs),
		Affected:  int(affected),
		Skipped:   len(req.ResultIDs) - len(ids),
	}, nil
}

// Delete removes a result. Teachers may only delete their own uploads.
func (s *ResultService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if claims.Role != models.RoleAdmin && result.UploadedBy != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete results you uploaded")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete result")
	}

	s.invalidateAnalytics(ctx)
	return nil
}

func (s *ResultService) setPublication(ctx context.Context, id string, claims *models.JWTClaims, publish bool) (*models.Result, error) {
	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if claims.Role != models.RoleAdmin && result.UploadedBy != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only publish results you uploaded")
	}

	affected, err := s.repo.SetPublished(ctx, []string{id}, publish)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication state")
	}
	s.metrics.RecordPublication(publish, int(affected))

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload result")
	}

	s.audit(ctx, claims, publishAction(publish), "result", &id, nil)
	s.invalidateAnalytics(ctx)
	return updated, nil
}

// buildResult derives the total, grade and grade point for one entry.
// System mode weights the components; manual mode takes the supplied total.
func (s *ResultService) buildResult(req UploadResultRequest, uploaderID string) (*models.Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.ScoreModeSystem
	}

	var total float64
	switch mode {
	case models.ScoreModeSystem:
		t, err := grading.ComputeTotal(req.ClassScore, req.ExamScore)
		if err != nil {
			return nil, err
		}
		total = t
	case models.ScoreModeManual:
		if req.Score == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "score is required in manual mode")
		}
		if err := grading.ValidateScore("score", *req.Score); err != nil {
			return nil, err
		}
		if req.ClassScore != nil {
			if err := grading.ValidateScore("class_score", *req.ClassScore); err != nil {
				return nil, err
			}
		}
		if req.ExamScore != nil {
			if err := grading.ValidateScore("exam_score", *req.ExamScore); err != nil {
				return nil, err
			}
		}
		total = grading.Round2(*req.Score)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be system or manual")
	}

	letter, point := grading.GradeFor(total)

	classScore := 0.0
	if req.ClassScore != nil {
		classScore = *req.ClassScore
	}
	examScore := 0.0
	if req.ExamScore != nil {
		examScore = *req.ExamScore
	}

	return &models.Result{
		StudentID:    req.StudentID,
		SubjectID:    req.SubjectID,
		ClassLevelID: req.ClassLevelID,
		TermID:       req.TermID,
		ClassScore:   classScore,
		ExamScore:    examScore,
		Score:        &total,
		Grade:        letter,
		GradePoint:   point,
		Remarks:      req.Remarks,
		UploadedBy:   uploaderID,
	}, nil
}

func (s *ResultService) loadTerm(ctx context.Context, termID string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// authorizeUpload allows admins unconditionally; teachers must hold the
// class-subject assignment for the term's academic year.
func (s *ResultService) authorizeUpload(ctx context.Context, claims *models.JWTClaims, classLevelID, subjectID, academicYearID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if claims.Role == models.RoleAdmin {
		return nil
	}
	if claims.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers and admins can upload results")
	}

	assigned, err := s.assignments.IsTeacherAssigned(ctx, claims.UserID, classLevelID, subjectID, academicYearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this subject for this class")
	}
	return nil
}

func (s *ResultService) checkStudent(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "results can only be uploaded for student accounts")
	}
	return nil
}

func (s *ResultService) audit(ctx context.Context, claims *models.JWTClaims, action, resource string, resourceID *string, details map[string]interface{}) {
	if s.auditor == nil || claims == nil {
		return
	}
	var payload []byte
	if details != nil {
		payload, _ = json.Marshal(details)
	}
	entry := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		NewValues:  payload,
	}
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *ResultService) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, analyticsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}

func publishAction(publish bool) string {
	if publish {
		return models.AuditActionResultPublish
	}
	return models.AuditActionResultUnpub
}
