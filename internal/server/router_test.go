package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/bucketgate/internal/config"
	"github.com/abduss/bucketgate/internal/logger"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(deps)
}

func TestReadinessReportsFailingComponent(t *testing.T) {
	tests := []struct {
		name      string
		db        Pinger
		store     Pinger
		want      int
		component string
	}{
		{name: "healthy", db: stubPinger{}, store: stubPinger{}, want: http.StatusOK},
		{name: "postgres down", db: stubPinger{err: errors.New("refused")}, store: stubPinger{}, want: http.StatusServiceUnavailable, component: "postgres"},
		{name: "object store down", db: stubPinger{}, store: stubPinger{err: errors.New("no bucket")}, want: http.StatusServiceUnavailable, component: "object_store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Dependencies{DB: tt.db, ObjectStore: tt.store})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tt.want, rec.Code)
			if tt.component != "" {
				assert.Contains(t, rec.Body.String(), tt.component)
			}
		})
	}
}

func TestRouterSetsCorrelationAndCORSHeaders(t *testing.T) {
	router := newTestRouter(Dependencies{
		Config: config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/public/files", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-bucket-key"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logger.CorrelationIDHeader))
}
