package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, fakePinger{})
	c, rec := newGinContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsHandlerNotReadyWhenDatabaseDown(t *testing.T) {
	h := NewMetricsHandler(nil, fakePinger{err: errors.New("connection refused")})
	c, rec := newGinContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandlerWithoutMetrics(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	c, rec := newGinContext(http.MethodGet, "/metrics", nil)

	h.Prometheus(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
