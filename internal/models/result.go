package models

import "time"

// ScoreMode selects how the total score of a result is obtained.
type ScoreMode string

const (
	// ScoreModeSystem derives the total from the weighted class and exam scores.
	ScoreModeSystem ScoreMode = "system"
	// ScoreModeManual takes the caller-supplied total as-is.
	ScoreModeManual ScoreMode = "manual"
)

// Result is a student's score for a subject in a term.
// Unique per (student, subject, term). Score, grade and grade point are
// derived before persistence; published_date records the first publication
// and survives unpublishing.
type Result struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	SubjectID     string     `db:"subject_id" json:"subject_id"`
	ClassLevelID  string     `db:"class_level_id" json:"class_level_id"`
	TermID        string     `db:"term_id" json:"term_id"`
	ClassScore    float64    `db:"class_score" json:"class_score"`
	ExamScore     float64    `db:"exam_score" json:"exam_score"`
	Score         *float64   `db:"score" json:"score,omitempty"`
	Grade         string     `db:"grade" json:"grade"`
	GradePoint    float64    `db:"grade_point" json:"grade_point"`
	Remarks       *string    `db:"remarks" json:"remarks,omitempty"`
	IsPublished   bool       `db:"is_published" json:"is_published"`
	PublishedDate *time.Time `db:"published_date" json:"published_date,omitempty"`
	UploadedBy    string     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultDetail enriches a result with descriptive names for listings.
type ResultDetail struct {
	Result
	StudentName string `db:"student_name" json:"student_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	TermName    string `db:"term_name" json:"term_name"`
}

// ResultFilter defines filters supported by result listings.
type ResultFilter struct {
	StudentID    string
	SubjectID    string
	ClassLevelID string
	TermID       string
	UploadedBy   string
	IsPublished  *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// UploadOutcome reports whether an upsert created or updated a row.
type UploadOutcome struct {
	Result  *Result `json:"result"`
	Created bool    `json:"created"`
}

// BulkUploadSummary aggregates created vs updated counts for bulk uploads.
type BulkUploadSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// BulkPublishSummary reports how many results a bulk transition touched.
type BulkPublishSummary struct {
	Requested int `json:"requested"`
	Affected  int `json:"affected"`
	Skipped   int `json:"skipped"`
}
