package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{Code: "test_error", Message: "test error message"}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := NewAppError("test_error", "test error message", http.StatusTeapot, wrapped)

		assert.Equal(t, "test error message: wrapped error", err.Error())
		assert.Equal(t, wrapped, err.Unwrap())
		assert.ErrorIs(t, err, wrapped)
	})

	t.Run("Is matches by code", func(t *testing.T) {
		err := RateLimited("")
		assert.ErrorIs(t, err, &AppError{Code: CodeRateLimited})
		assert.NotErrorIs(t, err, &AppError{Code: CodeInternal})
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		code   string
		base   error
	}{
		{"invalid input", InvalidInput("bad page"), http.StatusBadRequest, CodeInvalidInput, ErrBadRequest},
		{"unauthorized default", Unauthorized("", ""), http.StatusUnauthorized, CodeUnauthorized, ErrUnauthorized},
		{"invalid token", Unauthorized(CodeInvalidToken, "expired"), http.StatusUnauthorized, CodeInvalidToken, ErrUnauthorized},
		{"conflict", Conflict(CodeRequestInProgress, "busy"), http.StatusConflict, CodeRequestInProgress, ErrConflict},
		{"rate limited", RateLimited(""), http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited},
		{"unavailable", ServiceUnavailable(""), http.StatusServiceUnavailable, CodeServiceUnavail, ErrServiceUnavail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
			assert.ErrorIs(t, tt.err, tt.base)
			assert.Equal(t, tt.status, GetStatusCode(tt.err))
		})
	}
}

func TestInternal_HidesCause(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"))

	resp := err.ToResponse()
	assert.Equal(t, CodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pq")
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetStatusCode(fmt.Errorf("lock: %w", ErrConflict)))
	assert.Equal(t, http.StatusServiceUnavailable, GetStatusCode(ErrServiceUnavail))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("other")))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error passes through", fmt.Errorf("guard: %w", RateLimited("")), http.StatusTooManyRequests, CodeRateLimited},
		{"bad request", fmt.Errorf("page: %w", ErrBadRequest), http.StatusBadRequest, CodeInvalidInput},
		{"conflict", fmt.Errorf("lock: %w", ErrConflict), http.StatusConflict, CodeConflict},
		{"unavailable", fmt.Errorf("redis: %w", ErrServiceUnavail), http.StatusServiceUnavailable, CodeServiceUnavail},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
			assert.NotContains(t, got.Message, "pq")
		})
	}
}

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reached := false
	r.GET("/", func(c *gin.Context) {
		Abort(c, InvalidInput("page must be positive").WithDetails(map[string]any{"field": "page"}))
	}, func(c *gin.Context) {
		reached = true
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, reached)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidInput, body.Error.Code)
	assert.Equal(t, "page", body.Error.Details["field"])
}
