package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindAndCause(t *testing.T) {
	cause := errors.New("option 9 not found")
	err := fmt.Errorf("grading: %w", &Error{Kind: ErrBadRequest, Msg: "unknown option", Cause: cause})

	assert.True(t, errors.Is(err, ErrBadRequest))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromError(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "unknown option", e.Error())
}

func TestHTTPStatusFromError(t *testing.T) {
	cases := map[error]int{
		nil:                                      http.StatusOK,
		ErrNotFound:                              http.StatusNotFound,
		NewError(ErrConflict, "taken"):           http.StatusConflict,
		NewError(ErrForbidden, "no %s", "entry"): http.StatusForbidden,
		NewValidationError("title is required"):  http.StatusBadRequest,
		ErrServiceUnavailable:                    http.StatusServiceUnavailable,
		errors.New("boom"):                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatusFromError(err), "%v", err)
	}
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())
	v.Add("question %d: at least 2 options are required", 1)
	v.Add("title is required")
	err := v.OrNil()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "question 1: at least 2 options are required; title is required", err.Error())
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusBadRequest, "validation failed", "a", "b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"validation failed","details":["a","b"]}`, rec.Body.String())
}
