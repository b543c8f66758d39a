package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	e := NewError(ErrRateLimitExceeded)
	assert.Equal(t, ErrRateLimitExceeded, e.Code)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)

	notFound := NewError(ErrNotFound, "/nope")
	assert.Equal(t, "Resource /nope not found.", notFound.Message)

	unknown := NewError(424242)
	assert.Equal(t, ErrUnknown, unknown.Code)
	assert.Equal(t, http.StatusInternalServerError, unknown.Status)
}

func TestNewErrorDoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrNotFound, "/a")
	assert.Equal(t, "Resource /b not found.", NewError(ErrNotFound, "/b").Message)
}
