package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

const relayChunkSize = 32 << 10

type tutorRelay interface {
	Open(ctx context.Context, req dto.TutorChatRequest) (io.ReadCloser, error)
}

// TutorChatHandler exposes the AI tutoring relay.
type TutorChatHandler struct {
	relay  tutorRelay
	logger *zap.Logger
}

// NewTutorChatHandler constructs a TutorChatHandler.
func NewTutorChatHandler(relay tutorRelay, logger *zap.Logger) *TutorChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorChatHandler{relay: relay, logger: logger}
}

// Chat godoc
// @Summary AI tutor chat
// @Description Relays the conversation to the model provider and streams its events back unmodified
// @Tags Tutor
// @Accept json
// @Produce text/event-stream
// @Param payload body dto.TutorChatRequest true "Conversation"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} response.EdgeError
// @Failure 402 {object} response.EdgeError
// @Failure 429 {object} response.EdgeError
// @Failure 500 {object} response.EdgeError
// @Router /student-ai-chat [post]
func (h *TutorChatHandler) Chat(c *gin.Context) {
	var req dto.TutorChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.EdgeFail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request body"))
		return
	}

	body, err := h.relay.Open(c.Request.Context(), req)
	if err != nil {
		response.EdgeFail(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	buf := make([]byte, relayChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := c.Writer.Write(buf[:n]); err != nil {
				logger.WithContext(c.Request.Context(), h.logger).Debug("client went away during relay", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, context.Canceled) {
				logger.WithContext(c.Request.Context(), h.logger).Warn("upstream stream interrupted", zap.Error(readErr))
			}
			return
		}
	}
}
