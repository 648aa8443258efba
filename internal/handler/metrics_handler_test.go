package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("all dependencies reachable", func(t *testing.T) {
		handler := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
			"postgres": pingerFunc(func(context.Context) error { return nil }),
		})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodGet, "/ready", nil)

		handler.Ready(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"postgres":"ok"`)
	})

	t.Run("one dependency down", func(t *testing.T) {
		handler := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
			"postgres": pingerFunc(func(context.Context) error { return nil }),
			"redis":    pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodGet, "/ready", nil)

		handler.Ready(c)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "dial tcp: refused")
	})
}

func TestMetricsHandlerSummaryAndPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordConflict(models.ConflictRoom)
	metrics.RecordSlotMutation("add", "ok", "")
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/slots", http.StatusCreated, 5*time.Millisecond)
	handler := NewMetricsHandler(metrics, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/metrics/summary", nil)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["conflicts"].(map[string]interface{})["ROOM"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timetable_conflicts_total")
}
