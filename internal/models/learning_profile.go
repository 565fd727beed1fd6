package models

import "time"

// DefaultConfidenceScore is reported for students without any recorded activity.
const DefaultConfidenceScore = 50

// LearningProfile aggregates per-student activity metrics. Absent until the first activity.
type LearningProfile struct {
	StudentID           string     `db:"student_id" json:"student_id"`
	CurrentStreakDays   int        `db:"current_streak_days" json:"current_streak_days"`
	LongestStreakDays   int        `db:"longest_streak_days" json:"longest_streak_days"`
	TotalTasksCompleted int        `db:"total_tasks_completed" json:"total_tasks_completed"`
	ConfidenceScore     float64    `db:"confidence_score" json:"confidence_score"`
	LastActivityDate    *time.Time `db:"last_activity_date" json:"last_activity_date,omitempty"`
}

// DefaultLearningProfile returns the profile substituted for a student with no activity.
func DefaultLearningProfile(studentID string) LearningProfile {
	return LearningProfile{StudentID: studentID, ConfidenceScore: DefaultConfidenceScore}
}
