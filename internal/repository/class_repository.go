package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/osei-labs/schoolmate-api/internal/models"
)

// ClassRepository handles persistence for class levels.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository instantiates a class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = "id, name, code, description, capacity, display_order, form_teacher_id, active, created_at, updated_at"

// List returns class levels matching provided filters.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassLevelFilter) ([]models.ClassLevel, int, error) {
	base := "FROM class_levels WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":          true,
		"display_order": true,
		"capacity":      true,
		"created_at":    true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "display_order"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, name ASC LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)

	var classes []models.ClassLevel
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class levels: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class levels: %w", err)
	}

	return classes, total, nil
}

// FindByID loads a class level by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassLevel, error) {
	query := fmt.Sprintf("SELECT %s FROM class_levels WHERE id = $1", classColumns)
	var class models.ClassLevel
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsByName checks name uniqueness, optionally excluding one row.
func (r *ClassRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	base := "SELECT 1 FROM class_levels WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check class level name: %w", err)
	}
	return true, nil
}

// Create inserts a new class level record.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassLevel) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO class_levels (id, name, code, description, capacity, display_order, form_teacher_id, active, created_at, updated_at)
        VALUES (:id, :name, :code, :description, :capacity, :display_order, :form_teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class level: %w", err)
	}
	return nil
}

// Update modifies an existing class level.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassLevel) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_levels SET name = :name, code = :code, description = :description, capacity = :capacity,
        display_order = :display_order, form_teacher_id = :form_teacher_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class level: %w", err)
	}
	return nil
}

// Delete removes a class level permanently.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM class_levels WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class level: %w", err)
	}
	return nil
}

// CountStudents returns active students attached to the class level.
func (r *ClassRepository) CountStudents(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE class_level_id = $1 AND role = 'STUDENT' AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}
