package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// ReportFile is a rendered document ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders a student's progress summary.
type ReportService struct {
	views  studentViewSource
	csv    reportRenderer
	pdf    reportRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(views studentViewSource, logger *zap.Logger, csv, pdf reportRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{views: views, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// StudentProgress renders the current view of userID in the requested format.
func (s *ReportService) StudentProgress(ctx context.Context, userID, format string) (*ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatPDF
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	student, subjects, err := s.views.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := buildProgressReport(student, subjects, s.now().UTC())
	filename := fmt.Sprintf("progress-%s-%s.%s", student.RollNumber, s.now().UTC().Format("20060102"), format)

	var data []byte
	contentType := "text/csv"
	switch format {
	case ReportFormatCSV:
		data, err = s.csv.Render(report)
	default:
		contentType = "application/pdf"
		data, err = s.pdf.Render(report)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	return &ReportFile{Filename: filename, ContentType: contentType, Data: data}, nil
}

func buildProgressReport(student *models.StudentView, subjects []models.SubjectView, generatedAt time.Time) export.Report {
	className := "-"
	if student.Class != nil {
		className = strings.TrimSpace(student.Class.Name + " " + student.Class.Section)
	}
	lastActivity := "-"
	if student.LastActivityDate != nil {
		lastActivity = student.LastActivityDate.Format("2006-01-02")
	}

	rows := make([]map[string]string, 0, len(subjects))
	for _, sub := range subjects {
		rows = append(rows, map[string]string{
			"Subject":     sub.Name,
			"Code":        sub.Code,
			"Proficiency": sub.ProficiencyLevel,
			"Score":       formatScore(sub.Score),
		})
	}

	return export.Report{
		Title: "Student Progress Report",
		Summary: []export.Field{
			{Label: "Student", Value: student.FullName},
			{Label: "Roll number", Value: student.RollNumber},
			{Label: "Class", Value: className},
			{Label: "Current streak (days)", Value: fmt.Sprintf("%d", student.CurrentStreakDays)},
			{Label: "Longest streak (days)", Value: fmt.Sprintf("%d", student.LongestStreakDays)},
			{Label: "Tasks completed", Value: fmt.Sprintf("%d", student.TotalTasksCompleted)},
			{Label: "Confidence score", Value: formatScore(student.ConfidenceScore)},
			{Label: "Last activity", Value: lastActivity},
			{Label: "Generated at", Value: generatedAt.Format(time.RFC3339)},
		},
		Table: export.Dataset{
			Headers: []string{"Subject", "Code", "Proficiency", "Score"},
			Rows:    rows,
		},
	}
}

func formatScore(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
