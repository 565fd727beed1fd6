package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// StudentViewRepository reads the rows that make up a student's dashboard view.
// Lookups of a single row return sql.ErrNoRows unwrapped when nothing matches.
type StudentViewRepository struct {
	db *sqlx.DB
}

// NewStudentViewRepository constructs a StudentViewRepository.
func NewStudentViewRepository(db *sqlx.DB) *StudentViewRepository {
	return &StudentViewRepository{db: db}
}

// FindStudentByUser returns the student row of an identity joined with its class and academic year.
func (r *StudentViewRepository) FindStudentByUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.roll_number, s.status, s.residence_type, s.village_address, s.parent_phone, s.class_id, s.academic_year_id, s.created_at, s.updated_at,
        c.name AS class_name, c.section AS class_section, ay.name AS academic_year_name
        FROM students s LEFT JOIN classes c ON c.id = s.class_id LEFT JOIN academic_years ay ON ay.id = s.academic_year_id
        WHERE s.user_id = $1 LIMIT 1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// FindProfile returns the profile of an identity.
func (r *StudentViewRepository) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT id, full_name, email, phone FROM profiles WHERE id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// FindLearningProfile returns the learning metrics of a student.
func (r *StudentViewRepository) FindLearningProfile(ctx context.Context, studentID string) (*models.LearningProfile, error) {
	const query = `SELECT student_id, current_streak_days, longest_streak_days, total_tasks_completed, confidence_score, last_activity_date FROM learning_profiles WHERE student_id = $1 LIMIT 1`
	var lp models.LearningProfile
	if err := r.db.GetContext(ctx, &lp, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find learning profile: %w", err)
	}
	return &lp, nil
}

// FindParentDetails returns guardian information for a student.
func (r *StudentViewRepository) FindParentDetails(ctx context.Context, studentID string) (*models.ParentDetails, error) {
	const query = `SELECT student_id, father_name, mother_name, father_occupation, mother_occupation FROM parent_details WHERE student_id = $1 LIMIT 1`
	var details models.ParentDetails
	if err := r.db.GetContext(ctx, &details, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find parent details: %w", err)
	}
	return &details, nil
}

// ListClassSubjects returns the subjects taught to a class ordered by subject name.
func (r *StudentViewRepository) ListClassSubjects(ctx context.Context, classID string) ([]models.ClassSubject, error) {
	const query = `SELECT cs.class_id, cs.subject_id, sub.name AS subject_name, sub.code AS subject_code
        FROM class_subjects cs JOIN subjects sub ON sub.id = cs.subject_id
        WHERE cs.class_id = $1 ORDER BY sub.name ASC`
	var subjects []models.ClassSubject
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// ListProficiencies returns the proficiency rows of a student.
func (r *StudentViewRepository) ListProficiencies(ctx context.Context, studentID string) ([]models.Proficiency, error) {
	const query = `SELECT student_id, subject_id, proficiency_level, score FROM student_proficiencies WHERE student_id = $1`
	var rows []models.Proficiency
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list proficiencies: %w", err)
	}
	return rows, nil
}
