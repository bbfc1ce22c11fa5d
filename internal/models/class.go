package models

import "time"

// ClassLevel models a class/form (e.g. JHS 1, SHS 2).
type ClassLevel struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Code          *string   `db:"code" json:"code,omitempty"`
	Description   *string   `db:"description" json:"description,omitempty"`
	Capacity      int       `db:"capacity" json:"capacity"`
	DisplayOrder  int       `db:"display_order" json:"display_order"`
	FormTeacherID *string   `db:"form_teacher_id" json:"form_teacher_id,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ClassLevelFilter defines filters supported by list endpoints.
type ClassLevelFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ClassSubject links a subject (and optionally its teacher) to a class level
// for one academic year. Unique per (class_level, subject, academic_year).
type ClassSubject struct {
	ID             string    `db:"id" json:"id"`
	ClassLevelID   string    `db:"class_level_id" json:"class_level_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	TeacherID      *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ClassSubjectDetail enriches assignments with descriptive fields.
type ClassSubjectDetail struct {
	ClassSubject
	ClassName   string  `db:"class_name" json:"class_name"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}
