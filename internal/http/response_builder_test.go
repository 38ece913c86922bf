package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/core"
	"choreboard/internal/services"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		JSON(map[string]int{"count": 2}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().JSON(map[string]any{"bad": make(chan int)}).Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to encode response"}`, w.Body.String())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		builder *JSONResponseBuilder
		code    int
	}{
		{BadRequestError("bad"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{ConflictError("busy"), http.StatusConflict},
		{ServiceUnavailableError("off"), http.StatusServiceUnavailable},
		{InternalServerError("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.builder.Write(w)
		assert.Equal(t, tt.code, w.Code)
		assert.Contains(t, w.Body.String(), `"error":`)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrEmptyName, http.StatusBadRequest},
		{core.ErrNameTooLong, http.StatusBadRequest},
		{services.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w: child9", core.ErrChildNotFound), http.StatusNotFound},
		{core.ErrCategoryNotFound, http.StatusNotFound},
		{services.ErrUnknownDeletionToken, http.StatusNotFound},
		{services.ErrArchiveInProgress, http.StatusConflict},
		{services.ErrArchiveNotStarted, http.StatusConflict},
		{services.ErrArchiveNotConfirmed, http.StatusConflict},
		{core.ErrDuplicateCategory, http.StatusConflict},
		{services.ErrUnsavedChanges, http.StatusConflict},
		{services.ErrNotLoaded, http.StatusServiceUnavailable},
		{services.ErrPersistenceDisabled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestErrorFromHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(errors.New("password=hunter2")).Write(w)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")

	w = httptest.NewRecorder()
	ErrorFrom(services.ErrArchiveInProgress).Write(w)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"an archive is in progress"}`, w.Body.String())
}
