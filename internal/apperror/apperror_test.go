package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("task %s not found", "abc"), KindNotFound},
		{"already exists", AlreadyExists("dup"), KindAlreadyExists},
		{"invalid", Invalid("bad field"), KindInvalid},
		{"invalid operator", InvalidOperator("bad op"), KindInvalidOperator},
		{"transport", Transport(errors.New("broker down"), "send failed"), KindTransport},
		{"plain error", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := NotFound("task missing")
	wrapped := fmt.Errorf("loading: %w", err)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindInvalid))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport(cause, "posting launch command")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "posting launch command")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "already_exists", KindAlreadyExists.String())
	assert.Equal(t, "invalid", KindInvalid.String())
	assert.Equal(t, "invalid_operator", KindInvalidOperator.String())
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
