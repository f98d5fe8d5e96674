package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	base := errors.New("rate limited")
	err := NewProviderError("anthropic", base)

	assert.Equal(t, "anthropic: rate limited", err.Error())
	assert.True(t, IsProviderError(err))
	assert.True(t, IsProviderError(fmt.Errorf("stage plan: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsProviderError(base))
}

func TestNavigationError(t *testing.T) {
	err := NewNavigationError("https://zavod.ru", errors.New("status 503"))

	assert.Equal(t, "navigate https://zavod.ru: status 503", err.Error())
	assert.True(t, IsNavigationError(err))
	assert.False(t, IsNavigationError(errors.New("status 503")))
}

func TestMalformedResponseError_SnippetBounded(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := NewMalformedResponseError(errors.New("unexpected end of JSON input"), string(long))

	assert.True(t, IsMalformedResponse(err))
	assert.Len(t, err.Snippet, 200)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(errors.New("Get \"https://x\": tls handshake timeout")))
	assert.True(t, IsTransient(errors.New("lookup zavod.ru: no such host")))
	assert.False(t, IsTransient(errors.New("status 404")))
	assert.False(t, IsTransient(nil))
}
