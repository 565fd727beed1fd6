package models

// Proficiency defaults for subjects without an assessment.
const (
	ProficiencyAverage      = "average"
	DefaultProficiencyScore = 50
)

// ClassSubject is a subject taught to a class, resolved with the subject row.
type ClassSubject struct {
	ClassID     string `db:"class_id" json:"class_id"`
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}

// Proficiency is a student's assessed level in one subject.
type Proficiency struct {
	StudentID string  `db:"student_id" json:"student_id"`
	SubjectID string  `db:"subject_id" json:"subject_id"`
	Level     string  `db:"proficiency_level" json:"proficiency_level"`
	Score     float64 `db:"score" json:"score"`
}
