package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type studentViewRepository interface {
	FindStudentByUser(ctx context.Context, userID string) (*models.StudentDetail, error)
	FindProfile(ctx context.Context, userID string) (*models.Profile, error)
	FindLearningProfile(ctx context.Context, studentID string) (*models.LearningProfile, error)
	FindParentDetails(ctx context.Context, studentID string) (*models.ParentDetails, error)
	ListClassSubjects(ctx context.Context, classID string) ([]models.ClassSubject, error)
	ListProficiencies(ctx context.Context, studentID string) ([]models.Proficiency, error)
}

// StudentViewLoader materialises the denormalised student view for one identity.
type StudentViewLoader struct {
	repo    studentViewRepository
	runner  *QueryRunner
	logger  *zap.Logger
	metrics *MetricsService
}

// NewStudentViewLoader constructs a StudentViewLoader.
func NewStudentViewLoader(repo studentViewRepository, logger *zap.Logger, metrics *MetricsService) *StudentViewLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentViewLoader{
		repo:    repo,
		runner:  NewQueryRunner(logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
}

// Load fetches the student row first, then the optional joins concurrently, and merges them.
func (l *StudentViewLoader) Load(ctx context.Context, userID string) (*models.StudentView, []models.SubjectView, error) {
	var (
		student      *models.StudentDetail
		profile      *models.Profile
		learning     *models.LearningProfile
		parent       *models.ParentDetails
		classSubject []models.ClassSubject
		proficiency  []models.Proficiency
	)

	plan := QueryPlan{
		Name: "student_view",
		Stages: []QueryStage{
			{
				{
					Table:    "students",
					Filter:   "user_id=eq." + userID,
					Required: true,
					Fetch: func(ctx context.Context) (err error) {
						student, err = l.repo.FindStudentByUser(ctx, userID)
						return err
					},
				},
			},
			{
				{
					Table:  "profiles",
					Filter: "id=eq." + userID,
					Fetch: func(ctx context.Context) (err error) {
						profile, err = l.repo.FindProfile(ctx, userID)
						return err
					},
					Fallback: func() { profile = nil },
				},
				{
					Table: "learning_profiles",
					Fetch: func(ctx context.Context) (err error) {
						learning, err = l.repo.FindLearningProfile(ctx, student.ID)
						return err
					},
					Fallback: func() { learning = nil },
				},
				{
					Table: "parent_details",
					Fetch: func(ctx context.Context) (err error) {
						parent, err = l.repo.FindParentDetails(ctx, student.ID)
						return err
					},
					Fallback: func() { parent = nil },
				},
				{
					Table: "class_subjects",
					Fetch: func(ctx context.Context) (err error) {
						if student.ClassID == nil {
							return nil
						}
						classSubject, err = l.repo.ListClassSubjects(ctx, *student.ClassID)
						return err
					},
					Fallback: func() { classSubject = nil },
				},
				{
					Table: "student_proficiencies",
					Fetch: func(ctx context.Context) (err error) {
						proficiency, err = l.repo.ListProficiencies(ctx, student.ID)
						return err
					},
					Fallback: func() { proficiency = nil },
				},
			},
		},
	}

	if err := l.runner.Run(ctx, plan); err != nil {
		return nil, nil, err
	}

	return buildStudentView(student, profile, learning, parent), mergeSubjects(classSubject, proficiency), nil
}

// Snapshot loads the view once and reports it as a settled ViewState.
func (l *StudentViewLoader) Snapshot(ctx context.Context, userID string) models.ViewState {
	start := time.Now()
	student, subjects, err := l.Load(ctx, userID)
	l.metrics.ObserveViewFetch(fetchOutcome(err), time.Since(start))
	if err != nil {
		return errorViewState(err)
	}
	return models.ViewState{Student: student, Subjects: subjects}
}

func errorViewState(err error) models.ViewState {
	state := models.EmptyViewState()
	state.Error = appErrors.FromError(err)
	return state
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return FetchOutcomeOK
	case errors.Is(err, appErrors.ErrNotFound):
		return FetchOutcomeNotFound
	default:
		return FetchOutcomeError
	}
}

func buildStudentView(student *models.StudentDetail, profile *models.Profile, learning *models.LearningProfile, parent *models.ParentDetails) *models.StudentView {
	view := &models.StudentView{
		ID:             student.ID,
		UserID:         student.UserID,
		RollNumber:     student.RollNumber,
		Status:         student.Status,
		ResidenceType:  student.ResidenceType,
		VillageAddress: student.VillageAddress,
		ParentPhone:    student.ParentPhone,
	}

	if student.ClassID != nil {
		view.Class = &models.ClassRef{ID: *student.ClassID, Name: deref(student.ClassName), Section: deref(student.ClassSection)}
	}
	if student.AcademicYearID != nil {
		view.AcademicYear = &models.AcademicYearRef{ID: *student.AcademicYearID, Name: deref(student.AcademicYearName)}
	}

	if profile != nil {
		view.FullName = profile.FullName
		view.Email = profile.Email
		view.Phone = profile.Phone
	}

	lp := models.DefaultLearningProfile(student.ID)
	if learning != nil {
		lp = *learning
	}
	view.CurrentStreakDays = lp.CurrentStreakDays
	view.LongestStreakDays = lp.LongestStreakDays
	view.TotalTasksCompleted = lp.TotalTasksCompleted
	view.ConfidenceScore = lp.ConfidenceScore
	view.LastActivityDate = lp.LastActivityDate

	if parent != nil {
		view.FatherName = parent.FatherName
		view.MotherName = parent.MotherName
		view.FatherOccupation = parent.FatherOccupation
		view.MotherOccupation = parent.MotherOccupation
	}

	return view
}

// mergeSubjects left-joins proficiencies onto the class subject list, keeping its order.
func mergeSubjects(subjects []models.ClassSubject, proficiencies []models.Proficiency) []models.SubjectView {
	bySubject := make(map[string]models.Proficiency, len(proficiencies))
	for _, p := range proficiencies {
		bySubject[p.SubjectID] = p
	}

	out := make([]models.SubjectView, 0, len(subjects))
	for _, s := range subjects {
		view := models.SubjectView{
			SubjectID:        s.SubjectID,
			Name:             s.SubjectName,
			Code:             s.SubjectCode,
			ProficiencyLevel: models.ProficiencyAverage,
			Score:            models.DefaultProficiencyScore,
		}
		if p, ok := bySubject[s.SubjectID]; ok {
			view.ProficiencyLevel = p.Level
			view.Score = p.Score
		}
		out = append(out, view)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
