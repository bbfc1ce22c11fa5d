package models

import "time"

// SubjectCategory classifies a subject.
type SubjectCategory string

const (
	SubjectCore     SubjectCategory = "core"
	SubjectElective SubjectCategory = "elective"
)

// Subject is a taught discipline identified by a unique code.
type Subject struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Code        string          `db:"code" json:"code"`
	Description *string         `db:"description" json:"description,omitempty"`
	Category    SubjectCategory `db:"category" json:"category"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// SubjectFilter defines filters supported by list endpoints.
type SubjectFilter struct {
	Category  SubjectCategory
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
