package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// DefaultKeepAlive is the interval between SSE comment pings on idle streams.
const DefaultKeepAlive = 25 * time.Second

type studentViewSnapshotter interface {
	Snapshot(ctx context.Context, userID string) models.ViewState
}

type progressReporter interface {
	StudentProgress(ctx context.Context, userID, format string) (*service.ReportFile, error)
}

// ViewWatcher is the live view a stream connection observes.
type ViewWatcher interface {
	SetIdentity(identity *string)
	Updates() <-chan models.ViewState
	Close()
}

// StudentViewHandler serves the signed-in student's dashboard view.
type StudentViewHandler struct {
	views      studentViewSnapshotter
	reports    progressReporter
	newWatcher func() ViewWatcher
	keepAlive  time.Duration
	logger     *zap.Logger
}

// NewStudentViewHandler constructs a StudentViewHandler. newWatcher is called once per stream connection.
func NewStudentViewHandler(views studentViewSnapshotter, reports progressReporter, newWatcher func() ViewWatcher, logger *zap.Logger) *StudentViewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentViewHandler{views: views, reports: reports, newWatcher: newWatcher, keepAlive: DefaultKeepAlive, logger: logger}
}

// Snapshot godoc
// @Summary Current student view
// @Description Loads the signed-in student's record, profile, learning metrics and subjects once
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/view [get]
func (h *StudentViewHandler) Snapshot(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	state := h.views.Snapshot(c.Request.Context(), claims.UserID)
	if state.Error != nil {
		response.Error(c, state.Error)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// Stream godoc
// @Summary Live student view
// @Description Server-Sent Events stream; every view state transition is sent as a "state" event
// @Tags Students
// @Produce text/event-stream
// @Success 200 {object} models.ViewState
// @Failure 401 {object} response.Envelope
// @Router /students/me/view/stream [get]
func (h *StudentViewHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.logger).With(zap.String("user_id", claims.UserID))

	watcher := h.newWatcher()
	defer watcher.Close()

	identity := claims.UserID
	watcher.SetIdentity(&identity)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	updates := watcher.Updates()
	log.Debug("student view stream opened")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case state, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", state)
			return true
		case <-ticker.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		}
	})
	log.Debug("student view stream closed")
}

// Report godoc
// @Summary Progress report
// @Description Download the signed-in student's progress summary
// @Tags Students
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/report [get]
func (h *StudentViewHandler) Report(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.reports.StudentProgress(c.Request.Context(), claims.UserID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
