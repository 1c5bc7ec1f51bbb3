package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authcore/internal/apperror"
)

func TestStatusForCode_CoversEveryCode(t *testing.T) {
	for _, code := range apperror.Codes() {
		_, ok := codeStatus[code]
		assert.True(t, ok, "no status for %s", code)
		assert.NotEmpty(t, codeMessage[code], "no message for %s", code)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", apperror.ValidationFailed("email", "bad"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("wrapped: %w", apperror.NotFound("user", "7")), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("user", "7"), http.StatusConflict, "conflict"},
		{"coded conflict", apperror.WithCode(apperror.Conflict("user", "7"), apperror.EmailExists), http.StatusConflict, "email-exists"},
		{"auth code", apperror.Auth(apperror.UnknownProvider, "nope"), http.StatusNotFound, "unknown-provider"},
		{"fault", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestWriteError_HidesFaultDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("pq: password authentication failed for user admin"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "An internal error occurred", body.Message)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandleHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("up", func(t *testing.T) {
		h := NewHealthHandler(pingFunc(func(context.Context) error { return nil }), logger)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("down", func(t *testing.T) {
		h := NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("down") }), logger)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
