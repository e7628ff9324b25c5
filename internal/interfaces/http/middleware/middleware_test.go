package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-ai-api/internal/interfaces/http/dto"
	apperrors "fable-ai-api/pkg/errors"
	"fable-ai-api/pkg/logger"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123", keep: true},
		{name: "too long", incoming: strings.Repeat("a", 65)},
		{name: "control chars", incoming: "req\n123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inCtx any
			r := gin.New()
			r.Use(RequestID())
			r.GET("/", func(c *gin.Context) {
				inCtx = c.Request.Context().Value(logger.RequestIDKey)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			assert.Equal(t, got, inCtx)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
				assert.Len(t, got, 36)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logger.SetDefault(logger.New("error", "json", io.Discard))

	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Message)
	assert.Equal(t, string(apperrors.CodeInternalError), resp.Error.ErrorCode)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestCORS_ExposesRateLimitHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{}))
	r.POST("/api/fable", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/fable", nil)
	req.Header.Set("Origin", "https://fables.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, exposed, strings.ToLower(HeaderRetryAfter))
	assert.Contains(t, exposed, strings.ToLower(HeaderRateLimitRemaining))
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://fables.example"}}))
	r.POST("/api/fable", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/fable", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
