package ratelimiting

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedRateLimiter struct {
	consumeFunc func(key string) bool
}

func (m *mockedRateLimiter) Consume(key string) bool {
	return m.consumeFunc(key)
}

func (m *mockedRateLimiter) Wait(ctx context.Context, key string) error {
	return nil
}

func TestTokenBucketRateLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}

	rateLimiter, stop := NewTokenBucketRateLimiter(1, 2)
	defer stop()

	assert.True(t, rateLimiter.Consume("user2"))

	// Burst of 2
	assert.True(t, rateLimiter.Consume("user1"))
	assert.True(t, rateLimiter.Consume("user1"))
	assert.False(t, rateLimiter.Consume("user1"))

	time.Sleep(1000 * time.Millisecond)

	// Refill rate of 1
	assert.True(t, rateLimiter.Consume("user1"))
	assert.False(t, rateLimiter.Consume("user1"))

	// Burst of 2 - even after refill
	assert.True(t, rateLimiter.Consume("user3"))
	assert.True(t, rateLimiter.Consume("user3"))
	assert.False(t, rateLimiter.Consume("user3"))
}

func TestTokenBucketRateLimiterWait(t *testing.T) {
	t.Parallel()

	rateLimiter, stop := NewTokenBucketRateLimiter(1, 1)
	defer stop()

	require.NoError(t, rateLimiter.Wait(t.Context(), "host: cdn.example.com"))

	// The bucket is empty and refills after a second
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, rateLimiter.Wait(ctx, "host: cdn.example.com"))

	// Other keys are unaffected
	require.NoError(t, rateLimiter.Wait(t.Context(), "host: other.example.com"))
}

func TestIPKeyFunc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ip: 123.123.123.123", IPKeyFunc(&http.Request{RemoteAddr: "123.123.123.123"}))
	assert.Equal(t, "ip: 123.123.123.123", IPKeyFunc(&http.Request{RemoteAddr: "123.123.123.123:4567"}))
}

func TestHostKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "host: cdn.example.com", HostKey("https://CDN.example.com/maps.js?v=3"))
	assert.Equal(t, "host: cdn.example.com:8443", HostKey("https://cdn.example.com:8443/maps.js"))
	assert.Equal(t, "host: <unknown>", HostKey("/relative.js"))
	assert.Equal(t, "host: <unknown>", HostKey("://bad"))
}

func TestRequestBasedRateLimiter(t *testing.T) {
	t.Parallel()

	var expectedKey string
	var allowed bool
	rateLimiter := &mockedRateLimiter{
		consumeFunc: func(key string) bool {
			t.Helper()
			assert.Equal(t, expectedKey, key)
			return allowed
		},
	}
	requestRateLimiter := NewRequestBasedRateLimiter(rateLimiter, IPKeyFunc)

	expectedKey = "ip: 1.1.1.1"
	allowed = true
	assert.True(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "1.1.1.1"}))
	assert.Equal(t, "ip: 1.1.1.1", requestRateLimiter.KeyFor(&http.Request{RemoteAddr: "1.1.1.1"}))
	allowed = false
	assert.False(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "1.1.1.1"}))

	expectedKey = "ip: 2.1.1.1"
	allowed = true
	assert.True(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "2.1.1.1"}))
}
