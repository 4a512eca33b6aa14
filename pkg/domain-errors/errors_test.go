package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeQuotaExceeded, "credits exhausted")
		assert.True(t, HasCode(err, CodeQuotaExceeded))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeInvalidState, "capture from pending")
		err := fmt.Errorf("settlement: %w", inner)
		assert.True(t, HasCode(err, CodeInvalidState))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
	})

	t.Run("preserves cause for errors.Is", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeExternal, "payment provider unreachable")
		assert.True(t, errors.Is(err, cause))
		assert.True(t, HasCode(err, CodeExternal))
		assert.Contains(t, err.Error(), "payment provider unreachable")
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeDuplicate, CodeOf(New(CodeDuplicate, "already captured")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("opaque")))
}
