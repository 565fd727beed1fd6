package models

import "time"

// Student status values.
const (
	StudentStatusActive   = "active"
	StudentStatusInactive = "inactive"
)

// StudentRecord is the per-identity student row. At most one exists per user.
type StudentRecord struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	RollNumber     string    `db:"roll_number" json:"roll_number"`
	Status         string    `db:"status" json:"status"`
	ResidenceType  string    `db:"residence_type" json:"residence_type"`
	VillageAddress *string   `db:"village_address" json:"village_address,omitempty"`
	ParentPhone    *string   `db:"parent_phone" json:"parent_phone,omitempty"`
	ClassID        *string   `db:"class_id" json:"class_id,omitempty"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail is a StudentRecord joined with its class and academic year.
type StudentDetail struct {
	StudentRecord
	ClassName        *string `db:"class_name" json:"class_name,omitempty"`
	ClassSection     *string `db:"class_section" json:"class_section,omitempty"`
	AcademicYearName *string `db:"academic_year_name" json:"academic_year_name,omitempty"`
}

// Profile is the role-agnostic profile row keyed by identity.
type Profile struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	Email    string  `db:"email" json:"email"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
}

// ParentDetails holds optional guardian information for a student.
type ParentDetails struct {
	StudentID        string  `db:"student_id" json:"student_id"`
	FatherName       *string `db:"father_name" json:"father_name,omitempty"`
	MotherName       *string `db:"mother_name" json:"mother_name,omitempty"`
	FatherOccupation *string `db:"father_occupation" json:"father_occupation,omitempty"`
	MotherOccupation *string `db:"mother_occupation" json:"mother_occupation,omitempty"`
}
