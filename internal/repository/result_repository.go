package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/osei-labs/schoolmate-api/internal/models"
)

// ResultRepository persists student results and their publication state.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `r.id, r.student_id, r.subject_id, r.class_level_id, r.term_id,
       r.class_score, r.exam_score, r.score, r.grade, r.grade_point, r.remarks,
       r.is_published, r.published_date, r.uploaded_by, r.created_at, r.updated_at`

// FindByID loads a single result.
func (r *ResultRepository) FindByID(ctx context.Context, id string) (*models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM results r WHERE r.id = $1", resultColumns)
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByTriple loads the result identified by (student, subject, term).
func (r *ResultRepository) FindByTriple(ctx context.Context, studentID, subjectID, termID string) (*models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM results r WHERE r.student_id = $1 AND r.subject_id = $2 AND r.term_id = $3", resultColumns)
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, studentID, subjectID, termID); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns enriched result rows matching the filter.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultDetail, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return r.listPage(ctx, filter, size, (page-1)*size)
}

// ListForExport returns up to limit matching rows in one page. Unlike List
// it is not subject to the pagination cap; exports need the full listing.
func (r *ResultRepository) ListForExport(ctx context.Context, filter models.ResultFilter, limit int) ([]models.ResultDetail, int, error) {
	if limit <= 0 {
		limit = 5000
	}
	return r.listPage(ctx, filter, limit, 0)
}

func (r *ResultRepository) listPage(ctx context.Context, filter models.ResultFilter, limit, offset int) ([]models.ResultDetail, int, error) {
	base := `FROM results r
        JOIN users u ON u.id = r.student_id
        JOIN subjects s ON s.id = r.subject_id
        JOIN class_levels c ON c.id = r.class_level_id
        JOIN terms t ON t.id = r.term_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, len(args)+1))
		args = append(args, value)
	}

	if filter.StudentID != "" {
		add("r.student_id = $%d", filter.StudentID)
	}
	if filter.SubjectID != "" {
		add("r.subject_id = $%d", filter.SubjectID)
	}
	if filter.ClassLevelID != "" {
		add("r.class_level_id = $%d", filter.ClassLevelID)
	}
	if filter.TermID != "" {
		add("r.term_id = $%d", filter.TermID)
	}
	if filter.UploadedBy != "" {
		add("r.uploaded_by = $%d", filter.UploadedBy)
	}
	if filter.IsPublished != nil {
		add("r.is_published = $%d", *filter.IsPublished)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"score":          "r.score",
		"grade":          "r.grade",
		"student_name":   "u.full_name",
		"subject_name":   "s.name",
		"published_date": "r.published_date",
		"created_at":     "r.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "u.full_name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s, u.full_name AS student_name, s.name AS subject_name, c.name AS class_name, t.name AS term_name %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		resultColumns, base, column, order, limit, offset)

	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	return results, total, nil
}

// Upsert writes a result keyed by (student, subject, term) inside one
// transaction. The existing row is locked before the decision so concurrent
// uploads for the same triple cannot both insert. Returns true when a new
// row was created.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.Result) (created bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing models.Result
	err = tx.GetContext(ctx, &existing,
		`SELECT id, is_published, published_date, created_at FROM results WHERE student_id = $1 AND subject_id = $2 AND term_id = $3 FOR UPDATE`,
		result.StudentID, result.SubjectID, result.TermID)

	now := time.Now().UTC()
	switch {
	case err == nil:
		result.ID = existing.ID
		result.IsPublished = existing.IsPublished
		result.PublishedDate = existing.PublishedDate
		result.CreatedAt = existing.CreatedAt
		result.UpdatedAt = now
		const update = `UPDATE results SET class_score = :class_score, exam_score = :exam_score, score = :score,
            grade = :grade, grade_point = :grade_point, remarks = :remarks, class_level_id = :class_level_id,
            uploaded_by = :uploaded_by, updated_at = :updated_at WHERE id = :id`
		if _, err = tx.NamedExecContext(ctx, update, result); err != nil {
			return false, fmt.Errorf("update result: %w", err)
		}
	case isNoRows(err):
		created = true
		if result.ID == "" {
			result.ID = uuid.NewString()
		}
		result.CreatedAt = now
		result.UpdatedAt = now
		const insert = `INSERT INTO results (id, student_id, subject_id, class_level_id, term_id, class_score, exam_score,
            score, grade, grade_point, remarks, is_published, published_date, uploaded_by, created_at, updated_at)
            VALUES (:id, :student_id, :subject_id, :class_level_id, :term_id, :class_score, :exam_score,
            :score, :grade, :grade_point, :remarks, :is_published, :published_date, :uploaded_by, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insert, result); err != nil {
			return false, fmt.Errorf("insert result: %w", err)
		}
		err = nil
	default:
		return false, fmt.Errorf("lock result row: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert tx: %w", err)
	}
	return created, nil
}

// SetPublished transitions the given result rows in one transaction.
// Publishing stamps published_date only where it is still unset; unpublishing
// clears the flag but keeps the first-publish timestamp.
func (r *ResultRepository) SetPublished(ctx context.Context, ids []string, publish bool) (affected int64, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	var query string
	if publish {
		query = fmt.Sprintf(`UPDATE results SET is_published = TRUE, published_date = COALESCE(published_date, $1), updated_at = $1 WHERE id IN (%s)`, strings.Join(placeholders, ","))
	} else {
		query = fmt.Sprintf(`UPDATE results SET is_published = FALSE, updated_at = $1 WHERE id IN (%s)`, strings.Join(placeholders, ","))
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set results published: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count published rows: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit publish tx: %w", err)
	}
	return affected, nil
}

// FilterOwnedIDs narrows a set of result IDs to those uploaded by the teacher.
func (r *ResultRepository) FilterOwnedIDs(ctx context.Context, ids []string, uploaderID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, uploaderID)
	query := fmt.Sprintf(`SELECT id FROM results WHERE id IN (%s) AND uploaded_by = $%d`, strings.Join(placeholders, ","), len(args))

	var owned []string
	if err := r.db.SelectContext(ctx, &owned, query, args...); err != nil {
		return nil, fmt.Errorf("filter owned results: %w", err)
	}
	return owned, nil
}

// Delete removes a result permanently.
func (r *ResultRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted result rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func analysisConditions(filter models.AnalysisFilter, args *[]interface{}) string {
	var conditions []string
	if filter.ClassLevelID != "" {
		conditions = append(conditions, fmt.Sprintf("r.class_level_id = $%d", len(*args)+1))
		*args = append(*args, filter.ClassLevelID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("r.subject_id = $%d", len(*args)+1))
		*args = append(*args, filter.SubjectID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("r.term_id = $%d", len(*args)+1))
		*args = append(*args, filter.TermID)
	}
	if len(conditions) == 0 {
		return ""
	}
	return " AND " + strings.Join(conditions, " AND ")
}

// Summary aggregates count, published count and score statistics for a scope.
func (r *ResultRepository) Summary(ctx context.Context, filter models.AnalysisFilter) (*models.ResultsAnalysis, error) {
	var args []interface{}
	where := analysisConditions(filter, &args)
	query := fmt.Sprintf(`SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE r.is_published) AS published,
        AVG(r.score) AS average, MAX(r.score) AS highest, MIN(r.score) AS lowest
        FROM results r WHERE 1=1%s`, where)

	row := struct {
		Total     int      `db:"total"`
		Published int      `db:"published"`
		Average   *float64 `db:"average"`
		Highest   *float64 `db:"highest"`
		Lowest    *float64 `db:"lowest"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("results summary: %w", err)
	}

	return &models.ResultsAnalysis{
		ClassLevelID:   filter.ClassLevelID,
		SubjectID:      filter.SubjectID,
		TermID:         filter.TermID,
		TotalResults:   row.Total,
		PublishedCount: row.Published,
		AverageScore:   row.Average,
		HighestScore:   row.Highest,
		LowestScore:    row.Lowest,
	}, nil
}

// GradeDistribution counts results per grade band within a scope.
func (r *ResultRepository) GradeDistribution(ctx context.Context, filter models.AnalysisFilter) ([]models.GradeBucket, error) {
	var args []interface{}
	where := analysisConditions(filter, &args)
	query := fmt.Sprintf(`SELECT r.grade, COUNT(*) AS count FROM results r
        WHERE r.grade <> ''%s GROUP BY r.grade ORDER BY MIN(r.grade_point) DESC, r.grade`, where)

	var buckets []models.GradeBucket
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("grade distribution: %w", err)
	}
	return buckets, nil
}

// TopPerformers ranks students by average score within a scope.
func (r *ResultRepository) TopPerformers(ctx context.Context, filter models.AnalysisFilter) ([]models.TopPerformer, error) {
	limit := filter.TopN
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var args []interface{}
	where := analysisConditions(filter, &args)
	query := fmt.Sprintf(`SELECT r.student_id, u.full_name AS student_name, AVG(r.score) AS average_score,
        RANK() OVER (ORDER BY AVG(r.score) DESC) AS rank
        FROM results r JOIN users u ON u.id = r.student_id
        WHERE r.score IS NOT NULL%s
        GROUP BY r.student_id, u.full_name
        ORDER BY rank, u.full_name LIMIT %d`, where, limit)

	var performers []models.TopPerformer
	if err := r.db.SelectContext(ctx, &performers, query, args...); err != nil {
		return nil, fmt.Errorf("top performers: %w", err)
	}
	return performers, nil
}
