package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) PingFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var response Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return rec, response
}

func TestHealthHandlerHealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("store", PingFunc(ok))

	rec, response := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "v1.0.0", response.Version)
	require.Contains(t, response.Checks, "store")
	assert.Equal(t, StatusHealthy, response.Checks["store"].Status)
}

func TestHealthHandlerUnhealthyStore(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("store", failing("connection refused"))
	handler.RegisterOptional("redis", PingFunc(ok))

	rec, response := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Equal(t, "connection refused", response.Checks["store"].Message)
}

func TestHealthHandlerDegradedByOptionalCheck(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.Register("store", PingFunc(ok))
	handler.RegisterOptional("redis", failing("redis down"))

	rec, response := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, response.Status)
	assert.True(t, response.Checks["redis"].Optional)
}

func TestHealthCheckTimeout(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.SetTimeout(20 * time.Millisecond)
	handler.Register("store", PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	status, checks := handler.Run(context.Background())

	assert.Equal(t, StatusUnhealthy, status)
	assert.Equal(t, context.DeadlineExceeded.Error(), checks["store"].Message)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		optional PingFunc
		required PingFunc
		code     int
		body     string
	}{
		{name: "ready", required: ok, optional: ok, code: http.StatusOK, body: "ready"},
		{name: "optional down", required: ok, optional: failing("redis down"), code: http.StatusOK, body: "ready"},
		{name: "store down", required: failing("store down"), optional: ok, code: http.StatusServiceUnavailable, body: "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			handler.Register("store", tt.required)
			handler.RegisterOptional("redis", tt.optional)

			rec := httptest.NewRecorder()
			handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}
