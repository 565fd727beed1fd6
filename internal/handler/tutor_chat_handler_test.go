package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/llm"
)

func newTutorHandler(t *testing.T, apiKey string, upstream http.HandlerFunc) *TutorChatHandler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client, err := llm.NewWithHTTPClient(llm.Config{BaseURL: srv.URL, APIKey: apiKey, Model: "test-model"}, srv.Client())
	require.NoError(t, err)
	relay := service.NewTutorRelay(client, validator.New(), zap.NewNop(), nil)
	return NewTutorChatHandler(relay, zap.NewNop())
}

const chatBody = `{"messages":[{"role":"user","content":"What is photosynthesis?"}]}`

func TestTutorChatStreamsUpstreamUnmodified(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Plants\"}}]}\n\ndata: [DONE]\n\n"
	h := newTutorHandler(t, "key", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, stream)
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(chatBody))

	h.Chat(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, stream, rec.Body.String())
}

func TestTutorChatRateLimitedReturnsJSON(t *testing.T) {
	h := newTutorHandler(t, "key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"slow down"}`)
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(chatBody))

	h.Chat(c)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"error":"rate limit exceeded, please try again later"}`, rec.Body.String())
}

func TestTutorChatPaymentRequired(t *testing.T) {
	h := newTutorHandler(t, "key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(chatBody))

	h.Chat(c)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "AI service unavailable")
}

func TestTutorChatUpstreamErrorCarriesDetails(t *testing.T) {
	h := newTutorHandler(t, "key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "bad gateway")
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(chatBody))

	h.Chat(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"AI service error","details":"bad gateway"}`, rec.Body.String())
}

func TestTutorChatMissingCredentialNeverCallsUpstream(t *testing.T) {
	called := false
	h := newTutorHandler(t, "", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(chatBody))

	h.Chat(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestTutorChatMalformedBody(t *testing.T) {
	called := false
	h := newTutorHandler(t, "key", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c, rec := newGinContext(http.MethodPost, "/student-ai-chat", []byte(`{"messages":`))

	h.Chat(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
