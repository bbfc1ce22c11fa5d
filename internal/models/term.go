package models

import "time"

// Allowed term names within an academic year.
const (
	TermFirst  = "1st Term"
	TermSecond = "2nd Term"
	TermThird  = "3rd Term"
)

// AllowedTermNames lists the labels accepted by the term creation workflow.
var AllowedTermNames = []string{TermFirst, TermSecond, TermThird}

// Term models an academic term within an academic year.
// At most one term per academic year is flagged current.
type Term struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	IsCurrent      bool      `db:"is_current" json:"is_current"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	AcademicYearID string
	IsCurrent      *bool
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
