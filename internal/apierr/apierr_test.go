package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsDefaultStatus(t *testing.T) {
	err := New(NotFound, "no such thing")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "NOT_FOUND: no such thing", err.Error())
}

func TestNewfFormats(t *testing.T) {
	err := Newf(ValidationError, "field %q is required", "name")
	assert.Equal(t, "field \"name\" is required", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
}

func TestWithersReturnIndependentClones(t *testing.T) {
	base := New(BadRequest, "bad")
	withFields := base.WithFields(FieldError{Field: "name", Message: "required"})
	withRetry := base.WithRetryAfter(30)

	assert.Empty(t, base.Fields)
	assert.Zero(t, base.RetryAfter)
	assert.Len(t, withFields.Fields, 1)
	assert.Equal(t, 30, withRetry.RetryAfter)
}

func TestWrapPreservesCauseWithoutLeakingMessage(t *testing.T) {
	cause := errors.New("database exploded")
	wrapped := New(InternalError, "an internal error occurred").Wrap(cause)

	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "an internal error occurred", wrapped.Message)
}

func TestInternalWrapsCauseWithGenericMessage(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	assert.Equal(t, InternalError, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	require.ErrorIs(t, err, cause)
}

func TestAsPassesThroughTypedErrors(t *testing.T) {
	original := New(Conflict, "already exists")
	assert.Same(t, original, As(original))
}

func TestAsWrapsUntypedErrors(t *testing.T) {
	err := As(errors.New("unexpected"))
	require.NotNil(t, err)
	assert.Equal(t, InternalError, err.Code)
}

func TestAsNilIsNil(t *testing.T) {
	assert.Nil(t, As(nil))
}

func TestStatusForUnknownCodeFallsBackToInternal(t *testing.T) {
	err := New(Code("SOMETHING_NEW"), "mystery")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}
