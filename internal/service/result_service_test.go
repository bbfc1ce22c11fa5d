package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

type mockResultRepo struct {
	results   map[string]*models.Result
	nextID    int
	published []string
}

func (m *mockResultRepo) FindByID(ctx context.Context, id string) (*models.Result, error) {
	if r, ok := m.results[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error) {
	var rows []models.ResultDetail
	for _, r := range m.results {
		if filter.StudentID != "" && filter.StudentID != r.StudentID {
			continue
		}
		if filter.IsPublished != nil && *filter.IsPublished != r.IsPublished {
			continue
		}
		rows = append(rows, models.ResultDetail{Result: *r})
	}
	return rows, len(rows), nil
}

func (m *mockResultRepo) Upsert(ctx context.Context, result *models.Result) (bool, error) {
	if m.results == nil {
		m.results = make(map[string]*models.Result)
	}
	for _, existing := range m.results {
		if existing.StudentID == result.StudentID && existing.SubjectID == result.SubjectID && existing.TermID == result.TermID {
			result.ID = existing.ID
			result.IsPublished = existing.IsPublished
			result.PublishedDate = existing.PublishedDate
			stored := *result
			m.results[existing.ID] = &stored
			return false, nil
		}
	}
	m.nextID++
	result.ID = string(rune('a' + m.nextID - 1))
	stored := *result
	m.results[result.ID] = &stored
	return true, nil
}

func (m *mockResultRepo) SetPublished(ctx context.Context, ids []string, publish bool) (int64, error) {
	m.published = append(m.published, ids...)
	var affected int64
	now := time.Now()
	for _, id := range ids {
		r, ok := m.results[id]
		if !ok {
			continue
		}
		r.IsPublished = publish
		if publish && r.PublishedDate == nil {
			r.PublishedDate = &now
		}
		affected++
	}
	return affected, nil
}

func (m *mockResultRepo) FilterOwnedIDs(ctx context.Context, ids []string, uploaderID string) ([]string, error) {
	var owned []string
	for _, id := range ids {
		if r, ok := m.results[id]; ok && r.UploadedBy == uploaderID {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

func (m *mockResultRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.results[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.results, id)
	return nil
}

type mockTermReader struct {
	terms map[string]*models.Term
}

func (m *mockTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type mockAssignmentChecker struct {
	assigned map[string]bool
}

func (m *mockAssignmentChecker) IsTeacherAssigned(ctx context.Context, teacherID, classLevelID, subjectID, academicYearID string) (bool, error) {
	return m.assigned[teacherID+classLevelID+subjectID], nil
}

type mockStudentReader struct {
	users map[string]*models.User
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditor struct {
	entries []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func ptrFloat(v float64) *float64 {
	return &v
}

func newResultFixture() (*ResultService, *mockResultRepo, *mockAssignmentChecker, *mockAuditor, *mockInvalidator) {
	repo := &mockResultRepo{results: make(map[string]*models.Result)}
	terms := &mockTermReader{terms: map[string]*models.Term{
		"term1": {ID: "term1", Name: "1st Term", AcademicYearID: "year1"},
	}}
	assignments := &mockAssignmentChecker{assigned: map[string]bool{}}
	students := &mockStudentReader{users: map[string]*models.User{
		"stu1": {ID: "stu1", Role: models.RoleStudent},
		"stu2": {ID: "stu2", Role: models.RoleStudent},
		"tch1": {ID: "tch1", Role: models.RoleTeacher},
	}}
	auditor := &mockAuditor{}
	cache := &mockInvalidator{}
	svc := NewResultService(repo, terms, assignments, students, auditor, cache, nil, validator.New(), zap.NewNop())
	return svc, repo, assignments, auditor, cache
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "adm1", Role: models.RoleAdmin}
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "tch1", Role: models.RoleTeacher}
}

func TestResultServiceUploadComputesGrade(t *testing.T) {
	svc, repo, _, _, cache := newResultFixture()

	outcome, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(80),
		ExamScore:    ptrFloat(70),
	}, adminClaims())
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	require.NotNil(t, outcome.Result.Score)
	assert.Equal(t, 73.0, *outcome.Result.Score)
	assert.Equal(t, "B", outcome.Result.Grade)
	assert.Equal(t, 3.0, outcome.Result.GradePoint)
	assert.Len(t, repo.results, 1)
	assert.Contains(t, cache.patterns, "analytics:*")
}

func TestResultServiceUploadManualMode(t *testing.T) {
	svc, _, _, _, _ := newResultFixture()

	outcome, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Score:        ptrFloat(91.456),
		Mode:         models.ScoreModeManual,
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 91.46, *outcome.Result.Score)
	assert.Equal(t, "A+", outcome.Result.Grade)
	assert.Equal(t, 4.0, outcome.Result.GradePoint)

	_, err = svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu2",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Mode:         models.ScoreModeManual,
	}, adminClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score is required")
}

func TestResultServiceUploadManualModeValidatesComponents(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	_, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Score:        ptrFloat(52),
		ClassScore:   ptrFloat(150),
		ExamScore:    ptrFloat(-30),
		Mode:         models.ScoreModeManual,
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "class_score")
	assert.Empty(t, repo.results)

	_, err = svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Score:        ptrFloat(52),
		ExamScore:    ptrFloat(101),
		Mode:         models.ScoreModeManual,
	}, adminClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exam_score")
	assert.Empty(t, repo.results)
}

func TestResultServiceUploadUpdatesExisting(t *testing.T) {
	svc, _, _, _, _ := newResultFixture()

	req := UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(50),
		ExamScore:    ptrFloat(50),
	}
	first, err := svc.Upload(context.Background(), req, adminClaims())
	require.NoError(t, err)
	assert.True(t, first.Created)

	req.ClassScore = ptrFloat(90)
	req.ExamScore = ptrFloat(90)
	second, err := svc.Upload(context.Background(), req, adminClaims())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Result.ID, second.Result.ID)
	assert.Equal(t, 90.0, *second.Result.Score)
}

func TestResultServiceUploadTeacherAssignment(t *testing.T) {
	svc, _, assignments, _, _ := newResultFixture()

	req := UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(60),
		ExamScore:    ptrFloat(60),
	}

	_, err := svc.Upload(context.Background(), req, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assignments.assigned["tch1cls1sub1"] = true
	outcome, err := svc.Upload(context.Background(), req, teacherClaims())
	require.NoError(t, err)
	assert.Equal(t, "tch1", outcome.Result.UploadedBy)
}

func TestResultServiceUploadRejectsStudents(t *testing.T) {
	svc, _, _, _, _ := newResultFixture()

	_, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(60),
		ExamScore:    ptrFloat(60),
	}, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResultServiceUploadNonStudentTarget(t *testing.T) {
	svc, _, _, _, _ := newResultFixture()

	_, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "tch1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(60),
		ExamScore:    ptrFloat(60),
	}, adminClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student accounts")
}

func TestResultServiceBulkUploadAllOrNothing(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	_, err := svc.BulkUpload(context.Background(), BulkUploadRequest{
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Entries: []BulkUploadEntry{
			{StudentID: "stu1", ClassScore: ptrFloat(70), ExamScore: ptrFloat(70)},
			{StudentID: "stu2", ClassScore: ptrFloat(120), ExamScore: ptrFloat(70)},
		},
	}, adminClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 2 invalid")
	assert.Empty(t, repo.results)

	summary, err := svc.BulkUpload(context.Background(), BulkUploadRequest{
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		Entries: []BulkUploadEntry{
			{StudentID: "stu1", ClassScore: ptrFloat(70), ExamScore: ptrFloat(70)},
			{StudentID: "stu2", ClassScore: ptrFloat(80), ExamScore: ptrFloat(90)},
		},
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Updated)
}

func TestResultServicePublishStampsDateOnce(t *testing.T) {
	svc, repo, _, auditor, _ := newResultFixture()

	outcome, err := svc.Upload(context.Background(), UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(80),
		ExamScore:    ptrFloat(80),
	}, adminClaims())
	require.NoError(t, err)
	id := outcome.Result.ID

	published, err := svc.Publish(context.Background(), id, adminClaims())
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedDate)
	firstDate := *published.PublishedDate

	unpublished, err := svc.Unpublish(context.Background(), id, adminClaims())
	require.NoError(t, err)
	assert.False(t, unpublished.IsPublished)
	require.NotNil(t, unpublished.PublishedDate)
	assert.Equal(t, firstDate, *unpublished.PublishedDate)

	republished, err := svc.Publish(context.Background(), id, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, firstDate, *republished.PublishedDate)

	assert.Len(t, auditor.entries, 3)
	assert.Equal(t, models.AuditActionResultPublish, auditor.entries[0].Action)
	assert.Equal(t, models.AuditActionResultUnpub, auditor.entries[1].Action)
	assert.Contains(t, repo.published, id)
}

func TestResultServicePublishOwnership(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", StudentID: "stu1", SubjectID: "sub1", TermID: "term1", UploadedBy: "other"}

	_, err := svc.Publish(context.Background(), "r1", teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	published, err := svc.Publish(context.Background(), "r1", adminClaims())
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
}

func TestResultServiceBulkPublishSkipsUnowned(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", StudentID: "stu1", UploadedBy: "tch1"}
	repo.results["r2"] = &models.Result{ID: "r2", StudentID: "stu2", UploadedBy: "other"}

	summary, err := svc.BulkPublish(context.Background(), BulkPublishRequest{ResultIDs: []string{"r1", "r2"}}, teacherClaims(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Requested)
	assert.Equal(t, 1, summary.Affected)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, repo.results["r1"].IsPublished)
	assert.False(t, repo.results["r2"].IsPublished)
}

func TestResultServiceBulkPublishAdminTouchesAll(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", UploadedBy: "tch1"}
	repo.results["r2"] = &models.Result{ID: "r2", UploadedBy: "other"}

	summary, err := svc.BulkPublish(context.Background(), BulkPublishRequest{ResultIDs: []string{"r1", "r2"}}, adminClaims(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Affected)
	assert.Equal(t, 0, summary.Skipped)
}

func TestResultServiceGetMasksUnpublishedFromStudents(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", StudentID: "stu1", IsPublished: false}
	repo.results["r2"] = &models.Result{ID: "r2", StudentID: "stu1", IsPublished: true}
	repo.results["r3"] = &models.Result{ID: "r3", StudentID: "stu2", IsPublished: true}

	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	_, err := svc.Get(context.Background(), "r1", student)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	result, err := svc.Get(context.Background(), "r2", student)
	require.NoError(t, err)
	assert.Equal(t, "r2", result.ID)

	_, err = svc.Get(context.Background(), "r3", student)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	result, err = svc.Get(context.Background(), "r1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "r1", result.ID)
}

func TestResultServiceListForStudentForcesPublished(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", StudentID: "stu1", IsPublished: true}
	repo.results["r2"] = &models.Result{ID: "r2", StudentID: "stu1", IsPublished: false}
	repo.results["r3"] = &models.Result{ID: "r3", StudentID: "stu2", IsPublished: true}

	rows, pagination, err := svc.ListForStudent(context.Background(), "stu1", models.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestResultServiceDeleteOwnership(t *testing.T) {
	svc, repo, _, _, _ := newResultFixture()

	repo.results["r1"] = &models.Result{ID: "r1", UploadedBy: "other"}

	err := svc.Delete(context.Background(), "r1", teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "r1", adminClaims())
	require.NoError(t, err)
	assert.Empty(t, repo.results)
}

func TestResultServiceRecordsDomainMetrics(t *testing.T) {
	repo := &mockResultRepo{results: make(map[string]*models.Result)}
	terms := &mockTermReader{terms: map[string]*models.Term{
		"term1": {ID: "term1", Name: "1st Term", AcademicYearID: "year1"},
	}}
	assignments := &mockAssignmentChecker{assigned: map[string]bool{}}
	students := &mockStudentReader{users: map[string]*models.User{
		"stu1": {ID: "stu1", Role: models.RoleStudent},
	}}
	metrics := NewMetricsService()
	svc := NewResultService(repo, terms, assignments, students, &mockAuditor{}, &mockInvalidator{}, metrics, validator.New(), zap.NewNop())

	req := UploadResultRequest{
		StudentID:    "stu1",
		SubjectID:    "sub1",
		ClassLevelID: "cls1",
		TermID:       "term1",
		ClassScore:   ptrFloat(80),
		ExamScore:    ptrFloat(70),
	}
	outcome, err := svc.Upload(context.Background(), req, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resultUploads.WithLabelValues("created")))

	_, err = svc.Upload(context.Background(), req, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resultUploads.WithLabelValues("updated")))

	_, err = svc.Publish(context.Background(), outcome.Result.ID, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishTotal.WithLabelValues("publish")))

	_, err = svc.Unpublish(context.Background(), outcome.Result.ID, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishTotal.WithLabelValues("unpublish")))

	_, err = svc.BulkPublish(context.Background(), BulkPublishRequest{ResultIDs: []string{outcome.Result.ID}}, adminClaims(), true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.publishTotal.WithLabelValues("publish")))
}
