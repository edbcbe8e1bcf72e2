package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("formats without cause", func(t *testing.T) {
		err := New(ErrCodeNotFound, "thing not found")
		assert.Equal(t, "NOT_FOUND: thing not found", err.Error())
	})

	t.Run("formats with cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(ErrCodeDatabase, "query failed", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(ErrCodeInternal, "wrapped", cause)
		assert.ErrorIs(t, err, cause)
	})
}

func TestConstructors(t *testing.T) {
	t.Run("session not found carries tenant id", func(t *testing.T) {
		err := SessionNotFound("tenant-1")
		assert.Equal(t, ErrCodeSessionNotFound, err.Code)
		assert.Contains(t, err.Message, "tenant-1")
	})

	t.Run("not connected carries tenant id", func(t *testing.T) {
		err := NotConnected("tenant-1")
		assert.Equal(t, ErrCodeNotConnected, err.Code)
		assert.Contains(t, err.Message, "tenant-1")
	})

	t.Run("auth persistence wraps the cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := AuthPersistence("save", cause)
		assert.Equal(t, ErrCodeAuthPersistence, err.Code)
		assert.ErrorIs(t, err, cause)
	})
}

func TestHelpers(t *testing.T) {
	t.Run("detects app errors through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", Ingestion("no sender"))
		assert.True(t, IsAppError(wrapped))
		assert.True(t, IsCode(wrapped, ErrCodeIngestion))
		assert.Equal(t, ErrCodeIngestion, GetCode(wrapped))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("plain")
		assert.False(t, IsAppError(err))
		assert.False(t, IsCode(err, ErrCodeIngestion))
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}
