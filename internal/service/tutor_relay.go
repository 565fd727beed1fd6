package service

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/llm"
	"github.com/noah-isme/school-portal-api/pkg/logger"
)

// TutorSystemPrompt is prepended to every conversation sent to the provider.
const TutorSystemPrompt = `You are a patient tutor for school students.
Never give the final answer to an exercise, even when asked directly.
Break every problem into small steps and explain the reasoning behind each one.
After each step, ask a short question to check the student's understanding before moving on.
When the student makes a mistake, point to where it happened and let them correct it.
Be warm and encouraging, and keep explanations at the student's level.
If an image is attached, describe what you see in it before helping.`

type chatCompleter interface {
	HasCredential() bool
	Model() string
	StreamChat(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error)
}

// TutorRelay forwards student chat conversations to the model provider under a fixed
// pedagogical policy. It holds no state between requests and never retries.
type TutorRelay struct {
	client    chatCompleter
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewTutorRelay constructs a TutorRelay.
func NewTutorRelay(client chatCompleter, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *TutorRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TutorRelay{client: client, validator: validate, logger: logger, metrics: metrics}
}

// Open starts a streaming completion and returns the provider's event stream.
// The caller must close it.
func (r *TutorRelay) Open(ctx context.Context, req dto.TutorChatRequest) (io.ReadCloser, error) {
	if r.client == nil || !r.client.HasCredential() {
		return nil, appErrors.Clone(appErrors.ErrMisconfigured, "AI API key is not configured")
	}
	if err := r.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "messages are required")
	}

	log := logger.WithContext(ctx, r.logger)

	body, err := r.client.StreamChat(ctx, llm.ChatRequest{
		Model:    r.client.Model(),
		Messages: BuildTutorMessages(req),
		Stream:   true,
	})
	if err == nil {
		r.metrics.RecordRelayUpstream(http.StatusOK)
		return body, nil
	}

	status := llm.StatusCode(err)
	r.metrics.RecordRelayUpstream(status)

	var httpErr *llm.HTTPError
	switch {
	case status == http.StatusTooManyRequests:
		log.Warn("tutor provider rate limited")
		return nil, appErrors.Clone(appErrors.ErrUpstreamRateLimited, "")
	case status == http.StatusPaymentRequired:
		log.Warn("tutor provider requires payment")
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")
	case errors.As(err, &httpErr):
		log.Error("tutor provider error", zap.Int("status", status), zap.String("body", httpErr.Body))
		return nil, appErrors.WithDetails(appErrors.ErrUpstreamError, httpErr.Body)
	default:
		log.Error("tutor provider unreachable", zap.Error(err))
		return nil, appErrors.WithDetails(appErrors.ErrUpstreamError, err.Error())
	}
}

// BuildTutorMessages assembles the provider message list: the system prompt first,
// then the conversation. User messages with an image become a text part plus one
// image part; everything else passes through as plain text.
func BuildTutorMessages(req dto.TutorChatRequest) []llm.Message {
	lastUser := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUser = i
		}
	}

	out := make([]llm.Message, 0, len(req.Messages)+1)
	out = append(out, llm.Message{Role: "system", Text: TutorSystemPrompt})
	for i, m := range req.Messages {
		image := m.ImageURL
		if image == "" && i == lastUser {
			image = req.ImageURL
		}
		if m.Role != "user" || image == "" {
			out = append(out, llm.Message{Role: m.Role, Text: m.Content})
			continue
		}
		out = append(out, llm.Message{
			Role:  m.Role,
			Parts: []llm.ContentPart{llm.TextPart(m.Content), llm.ImagePart(image)},
		})
	}
	return out
}
