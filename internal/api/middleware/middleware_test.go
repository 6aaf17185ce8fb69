package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	apierrors "transcribot/internal/api/errors"
)

func newTestRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(StructuredLogging(logger))
	router.Use(ErrorHandler(logger))
	return router
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(zap.NewNop())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := rec.Header().Get("X-Request-ID")
		assert.Len(t, id, 36)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-123", rec.Body.String())
	})
}

func TestStructuredLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) {
		HandleError(c, apierrors.NewNotFoundError("quota"))
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 0, logs.Len(), "health checks are not logged")

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "/missing", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestErrorHandler(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/api-error", func(c *gin.Context) {
		HandleError(c, apierrors.NewBadRequestError("No file uploaded"))
	})
	router.GET("/plain-error", func(c *gin.Context) {
		HandleError(c, errors.New("database exploded"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	t.Run("api error keeps its status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-error", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, apierrors.KindBadRequest, body.Kind)
		assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
	})

	t.Run("plain error is hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain-error", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, apierrors.KindInternal, body.Kind)
		assert.NotContains(t, rec.Body.String(), "database exploded")
		assert.Equal(t, 1, logs.FilterMessage("Internal server error").Len())
	})

	t.Run("non-error panic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, 1, logs.FilterMessage("Unknown panic occurred").Len())
	})
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		header         string
		expectedStatus int
	}{
		{"valid token", "s3cret", "Bearer s3cret", http.StatusNoContent},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"unconfigured token locks the route", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(zap.NewNop())
			router.POST("/admin", BearerAuth(tt.token), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

type creditBody struct {
	Seconds float64 `json:"seconds" binding:"required,gt=0"`
}

type uploadForm struct {
	UserID string `form:"user_id" binding:"required"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectError   bool
		expectedField string
		expectedMsg   string
	}{
		{name: "valid", body: `{"seconds": 600}`},
		{name: "missing", body: `{}`, expectError: true, expectedField: "seconds", expectedMsg: "is required"},
		{name: "negative", body: `{"seconds": -5}`, expectError: true, expectedField: "seconds", expectedMsg: "must be greater than 0"},
		{name: "malformed", body: `{"seconds":`, expectError: true, expectedField: "request", expectedMsg: "invalid JSON format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req creditBody
			err := ValidateRequest(c, &req)
			if !tt.expectError {
				require.NoError(t, err)
				assert.Equal(t, 600.0, req.Seconds)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, apierrors.KindValidation, apiErr.Kind)
			assert.Equal(t, tt.expectedMsg, apiErr.Details[tt.expectedField])
		})
	}
}

func TestValidateForm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("language=ja"))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var form uploadForm
	err := ValidateForm(c, &form)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "is required", apiErr.Details["userid"])
}
