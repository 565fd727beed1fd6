package models

import (
	"time"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// ClassRef identifies the class a student belongs to.
type ClassRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Section string `json:"section"`
}

// AcademicYearRef identifies the academic year of an enrollment.
type AcademicYearRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StudentView is the read-only composite of a student's record, profile, class,
// learning profile and parent details.
type StudentView struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	RollNumber     string  `json:"roll_number"`
	Status         string  `json:"status"`
	ResidenceType  string  `json:"residence_type"`
	VillageAddress *string `json:"village_address,omitempty"`
	ParentPhone    *string `json:"parent_phone,omitempty"`

	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`

	Class        *ClassRef        `json:"class,omitempty"`
	AcademicYear *AcademicYearRef `json:"academic_year,omitempty"`

	CurrentStreakDays   int        `json:"current_streak_days"`
	LongestStreakDays   int        `json:"longest_streak_days"`
	TotalTasksCompleted int        `json:"total_tasks_completed"`
	ConfidenceScore     float64    `json:"confidence_score"`
	LastActivityDate    *time.Time `json:"last_activity_date,omitempty"`

	FatherName       *string `json:"father_name,omitempty"`
	MotherName       *string `json:"mother_name,omitempty"`
	FatherOccupation *string `json:"father_occupation,omitempty"`
	MotherOccupation *string `json:"mother_occupation,omitempty"`
}

// SubjectView is one entry of the student's subject list.
type SubjectView struct {
	SubjectID        string  `json:"subject_id"`
	Name             string  `json:"name"`
	Code             string  `json:"code"`
	ProficiencyLevel string  `json:"proficiency_level"`
	Score            float64 `json:"score"`
}

// ViewState is the observable state of a live student view.
type ViewState struct {
	Student  *StudentView     `json:"student"`
	Subjects []SubjectView    `json:"subjects"`
	Loading  bool             `json:"loading"`
	Error    *appErrors.Error `json:"error"`
}

// EmptyViewState is the state of a view with no identity.
func EmptyViewState() ViewState {
	return ViewState{Subjects: []SubjectView{}}
}
