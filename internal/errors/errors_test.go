package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:           http.StatusNotFound,
		CodeAlreadyExists:      http.StatusConflict,
		CodeConflict:           http.StatusConflict,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeInvalidCredentials: http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeDatasetInactive:    http.StatusForbidden,
		CodeValidation:         http.StatusBadRequest,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeInternal:           http.StatusInternalServerError,
		Code("SOMETHING_ELSE"):  http.StatusInternalServerError,
	}

	for code, want := range tests {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := Validation("label \"neutral\" is not allowed for binary datasets")

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))

	wrapped := fmt.Errorf("submit labels: %w", err)
	assert.True(t, Is(wrapped, ErrValidation))
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
}

func TestWithCause_PreservesOriginal(t *testing.T) {
	cause := New("disk full")
	base := Internal("failed to save labels")

	wrapped := base.WithCause(cause)

	assert.Equal(t, "failed to save labels: disk full", wrapped.Error())
	assert.Equal(t, "failed to save labels", base.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithDetails(t *testing.T) {
	err := Validation("invalid labels").WithDetails(map[string]string{"en-1": "unknown entry"})

	assert.Equal(t, map[string]string{"en-1": "unknown entry"}, err.Details)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(New("boom")))
}

func TestDatasetInactive(t *testing.T) {
	err := DatasetInactive("Product reviews")
	assert.Contains(t, err.Error(), `"Product reviews"`)
	assert.True(t, Is(err, ErrDatasetInactive))
}
