package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientError_Error(t *testing.T) {
	err := NewRequestFailed("gateway", "/positions", 502)
	msg := err.Error()

	assert.Contains(t, msg, "REQUEST")
	assert.Contains(t, msg, "gateway")
	assert.Contains(t, msg, "/positions")
}

func TestClientError_Unwrap(t *testing.T) {
	underlying := io.ErrUnexpectedEOF
	err := NewNetworkError("gateway", "dial", underlying)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestClientError_IsRetryable(t *testing.T) {
	assert.True(t, NewNetworkError("gateway", "dial", io.EOF).IsRetryable())
	assert.False(t, NewInvalidCredentials("session").IsRetryable())
	assert.False(t, NewOrderRejected("trading", "busy").IsRetryable())
}

func TestHelpers_MatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("poll: %w", NewSessionExpired("gateway", "/positions"))
	assert.True(t, IsSessionExpired(wrapped))
	assert.False(t, IsSessionExpired(io.EOF))
	assert.False(t, IsSessionExpired(nil))

	assert.True(t, IsInvalidCredentials(NewInvalidCredentials("session")))
	assert.False(t, IsInvalidCredentials(NewSessionExpired("gateway", "x")))

	assert.True(t, IsNetworkError(NewNetworkError("gateway", "dial", io.EOF)))
}

func TestIsRequestFailed_ExposesStatus(t *testing.T) {
	status, ok := IsRequestFailed(NewRequestFailed("gateway", "/order", 422))
	assert.True(t, ok)
	assert.Equal(t, 422, status)

	_, ok = IsRequestFailed(io.EOF)
	assert.False(t, ok)
}
