// Package grading holds the pure arithmetic of the results workflow:
// weighted total computation and the grade band table. Persistence never
// happens here; services compute first, then write.
package grading

import (
	"math"

	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
)

// Component weights for the system-calculated total.
const (
	ClassWeight = 0.30
	ExamWeight  = 0.70
)

// Band maps an inclusive minimum score to a letter grade and grade point.
type Band struct {
	Min    float64
	Letter string
	Point  float64
}

// Bands is ordered highest threshold first; the first band whose minimum is
// less than or equal to the score applies.
var Bands = []Band{
	{90, "A+", 4.0},
	{80, "A", 4.0},
	{75, "B+", 3.5},
	{70, "B", 3.0},
	{65, "C+", 2.5},
	{60, "C", 2.0},
	{55, "D+", 1.5},
	{50, "D", 1.0},
	{35, "E", 0.5},
	{0, "F", 0.0},
}

// Round2 rounds to 2 decimal places using round-half-to-even. Ties go to the
// even hundredth: Round2(12.125) is 12.12 and Round2(12.375) is 12.38.
// 74.995 scales to exactly 7499.5 in float64 and therefore rounds to 75.00.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// ValidateScore rejects component or total scores outside [0, 100].
func ValidateScore(field string, v float64) error {
	if v < 0 || v > 100 {
		return appErrors.Clone(appErrors.ErrValidation, field+" must be between 0 and 100")
	}
	return nil
}

// ComputeTotal derives the weighted total from class and exam scores.
// Nil components count as zero. The result is rounded via Round2 and is
// guaranteed to stay in [0, 100] when the inputs do.
func ComputeTotal(classScore, examScore *float64) (float64, error) {
	cs := 0.0
	if classScore != nil {
		cs = *classScore
	}
	es := 0.0
	if examScore != nil {
		es = *examScore
	}
	if err := ValidateScore("class_score", cs); err != nil {
		return 0, err
	}
	if err := ValidateScore("exam_score", es); err != nil {
		return 0, err
	}
	return Round2(cs*ClassWeight + es*ExamWeight), nil
}

// GradeFor maps a total score onto the band table, scanning from the highest
// threshold downward. Exactly one band applies for any score in [0, 100].
func GradeFor(score float64) (string, float64) {
	for _, band := range Bands {
		if score >= band.Min {
			return band.Letter, band.Point
		}
	}
	return "F", 0.0
}
