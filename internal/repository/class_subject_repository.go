package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/osei-labs/schoolmate-api/internal/models"
)

// ClassSubjectRepository persists class-subject teacher assignments.
type ClassSubjectRepository struct {
	db *sqlx.DB
}

// NewClassSubjectRepository constructs the repository.
func NewClassSubjectRepository(db *sqlx.DB) *ClassSubjectRepository {
	return &ClassSubjectRepository{db: db}
}

// ListByClass returns the subjects (and teachers) attached to a class for a year.
func (r *ClassSubjectRepository) ListByClass(ctx context.Context, classLevelID, academicYearID string) ([]models.ClassSubjectDetail, error) {
	const query = `
SELECT cs.id, cs.class_level_id, cs.subject_id, cs.teacher_id, cs.academic_year_id, cs.created_at,
       c.name AS class_name, s.name AS subject_name, u.full_name AS teacher_name
FROM class_subjects cs
JOIN class_levels c ON c.id = cs.class_level_id
JOIN subjects s ON s.id = cs.subject_id
LEFT JOIN users u ON u.id = cs.teacher_id
WHERE cs.class_level_id = $1 AND cs.academic_year_id = $2
ORDER BY s.name ASC`
	var assignments []models.ClassSubjectDetail
	if err := r.db.SelectContext(ctx, &assignments, query, classLevelID, academicYearID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return assignments, nil
}

// ListByTeacher returns assignments owned by a teacher for a year.
func (r *ClassSubjectRepository) ListByTeacher(ctx context.Context, teacherID, academicYearID string) ([]models.ClassSubjectDetail, error) {
	const query = `
SELECT cs.id, cs.class_level_id, cs.subject_id, cs.teacher_id, cs.academic_year_id, cs.created_at,
       c.name AS class_name, s.name AS subject_name, u.full_name AS teacher_name
FROM class_subjects cs
JOIN class_levels c ON c.id = cs.class_level_id
JOIN subjects s ON s.id = cs.subject_id
LEFT JOIN users u ON u.id = cs.teacher_id
WHERE cs.teacher_id = $1 AND cs.academic_year_id = $2
ORDER BY c.name ASC, s.name ASC`
	var assignments []models.ClassSubjectDetail
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID, academicYearID); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// Exists checks if the class-subject-year tuple already exists.
func (r *ClassSubjectRepository) Exists(ctx context.Context, classLevelID, subjectID, academicYearID string) (bool, error) {
	const query = `SELECT 1 FROM class_subjects WHERE class_level_id = $1 AND subject_id = $2 AND academic_year_id = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classLevelID, subjectID, academicYearID); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check class subject: %w", err)
	}
	return true, nil
}

// IsTeacherAssigned reports whether the teacher teaches the subject in the
// class for the given academic year. Drives result-mutation authorization.
func (r *ClassSubjectRepository) IsTeacherAssigned(ctx context.Context, teacherID, classLevelID, subjectID, academicYearID string) (bool, error) {
	const query = `SELECT 1 FROM class_subjects WHERE teacher_id = $1 AND class_level_id = $2 AND subject_id = $3 AND academic_year_id = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, classLevelID, subjectID, academicYearID); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher assignment: %w", err)
	}
	return true, nil
}

// Create inserts a new assignment.
func (r *ClassSubjectRepository) Create(ctx context.Context, assignment *models.ClassSubject) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_subjects (id, class_level_id, subject_id, teacher_id, academic_year_id, created_at)
        VALUES (:id, :class_level_id, :subject_id, :teacher_id, :academic_year_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create class subject: %w", err)
	}
	return nil
}

// SetTeacher changes the teacher on an existing assignment.
func (r *ClassSubjectRepository) SetTeacher(ctx context.Context, assignmentID string, teacherID *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE class_subjects SET teacher_id = $2 WHERE id = $1`, assignmentID, teacherID)
	if err != nil {
		return fmt.Errorf("set class subject teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment.
func (r *ClassSubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
