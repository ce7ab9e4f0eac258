package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesIdentity(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrUpstream, cause)

	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := ErrInvalidInput.WithMessage("title is required")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "title is required", PublicMessage(err))
	assert.Equal(t, http.StatusBadRequest, Status(err))
}

func TestIsMatchesThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("loading conversation: %w", ErrForbidden)

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, http.StatusForbidden, Status(err))
	assert.Equal(t, "forbidden", CodeOf(err))
}

func TestUnclassifiedErrorDefaults(t *testing.T) {
	err := errors.New("something broke")

	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "internal", CodeOf(err))
}
