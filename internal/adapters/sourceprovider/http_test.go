package sourceprovider

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Amund211/scriptcache/internal/constants"
	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFromResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		data       []byte
		expected   []byte
		err        error
	}{
		{
			name:       "ok",
			statusCode: 200,
			data:       []byte(`window.loaded = true;`),
			expected:   []byte(`window.loaded = true;`),
		},
		{
			name:       "empty ok",
			statusCode: 200,
			data:       []byte(``),
			expected:   []byte(``),
		},
		{
			name:       "not found",
			statusCode: 404,
			data:       []byte(`Not Found`),
			err:        domain.ErrSourceNotFound,
		},
		{
			name:       "gone",
			statusCode: 410,
			err:        domain.ErrSourceNotFound,
		},
		{
			name:       "too many requests",
			statusCode: 429,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "bad gateway",
			statusCode: 502,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "service unavailable",
			statusCode: 503,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "gateway timeout",
			statusCode: 504,
			err:        domain.ErrTemporarilyUnavailable,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			source, err := sourceFromResponse(test.statusCode, test.data)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, source)
		})
	}

	t.Run("other errors", func(t *testing.T) {
		t.Parallel()

		for _, statusCode := range []int{301, 400, 403, 500} {
			_, err := sourceFromResponse(statusCode, nil)
			require.Error(t, err)
			require.False(t, errors.Is(err, domain.ErrTemporarilyUnavailable))
			require.False(t, errors.Is(err, domain.ErrSourceNotFound))
		}
	})
}

func newProviderWithMaxSize(t *testing.T, maxSourceSize int64) SourceProvider {
	t.Helper()

	limiter, stop := ratelimiting.NewTokenBucketRateLimiter(100, 100)
	t.Cleanup(stop)

	provider, err := NewHTTPSourceProvider(http.DefaultClient, limiter, maxSourceSize)
	require.NoError(t, err)
	return provider
}

func newProvider(t *testing.T) SourceProvider {
	t.Helper()
	return newProviderWithMaxSize(t, 1<<20)
}

func TestHTTPSourceProvider(t *testing.T) {
	t.Parallel()

	t.Run("fetches the body", func(t *testing.T) {
		t.Parallel()

		var userAgent atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent.Store(r.Header.Get("User-Agent"))
			assert.Equal(t, "/maps.js", r.URL.Path)
			_, _ = w.Write([]byte(`var maps = 1;`))
		}))
		defer server.Close()

		source, err := newProvider(t).GetSource(t.Context(), server.URL+"/maps.js")
		require.NoError(t, err)
		require.Equal(t, []byte(`var maps = 1;`), source)
		require.Equal(t, constants.USER_AGENT, userAgent.Load())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := newProvider(t).GetSource(t.Context(), server.URL+"/missing.js")
		require.ErrorIs(t, err, domain.ErrSourceNotFound)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL + "/maps.js"
		server.Close()

		_, err := newProvider(t).GetSource(t.Context(), url)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		_, err := newProvider(t).GetSource(t.Context(), "http://[::1")
		require.Error(t, err)
	})

	t.Run("body at the size limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`var a=1;`))
		}))
		defer server.Close()

		source, err := newProviderWithMaxSize(t, 8).GetSource(t.Context(), server.URL+"/a.js")
		require.NoError(t, err)
		require.Equal(t, []byte(`var a=1;`), source)
	})

	t.Run("body over the size limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("/", 4096)))
		}))
		defer server.Close()

		source, err := newProviderWithMaxSize(t, 1024).GetSource(t.Context(), server.URL+"/huge.js")
		require.ErrorIs(t, err, domain.ErrSourceTooLarge)
		require.Nil(t, source)
	})

	t.Run("size limit must be positive", func(t *testing.T) {
		t.Parallel()

		limiter, stop := ratelimiting.NewTokenBucketRateLimiter(100, 100)
		t.Cleanup(stop)

		_, err := NewHTTPSourceProvider(http.DefaultClient, limiter, 0)
		require.Error(t, err)
	})
}
