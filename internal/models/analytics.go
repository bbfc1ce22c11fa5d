package models

// AnalysisFilter scopes the results analysis aggregation.
type AnalysisFilter struct {
	ClassLevelID string
	SubjectID    string
	TermID       string
	TopN         int
}

// GradeBucket counts results falling into one grade band.
type GradeBucket struct {
	Grade string `db:"grade" json:"grade"`
	Count int    `db:"count" json:"count"`
}

// TopPerformer is a ranked student row in the analysis view.
type TopPerformer struct {
	StudentID    string   `db:"student_id" json:"student_id"`
	StudentName  string   `db:"student_name" json:"student_name"`
	AverageScore *float64 `db:"average_score" json:"average_score,omitempty"`
	Rank         int      `db:"rank" json:"rank"`
}

// ResultsAnalysis is the read-only aggregate consumed by dashboards and exports.
type ResultsAnalysis struct {
	ClassLevelID   string         `json:"class_level_id,omitempty"`
	SubjectID      string         `json:"subject_id,omitempty"`
	TermID         string         `json:"term_id,omitempty"`
	TotalResults   int            `json:"total_results"`
	PublishedCount int            `json:"published_count"`
	AverageScore   *float64       `json:"average_score,omitempty"`
	HighestScore   *float64       `json:"highest_score,omitempty"`
	LowestScore    *float64       `json:"lowest_score,omitempty"`
	Distribution   []GradeBucket  `json:"distribution"`
	TopPerformers  []TopPerformer `json:"top_performers"`
}
