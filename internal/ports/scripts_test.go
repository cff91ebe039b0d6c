package ports_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/Amund211/scriptcache/internal/app"
	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/ports"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/scriptcache"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func noopMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r)
	}
}

func newIPRateLimiter(t *testing.T) ratelimiting.RequestRateLimiter {
	t.Helper()
	limiter, stop := ratelimiting.NewTokenBucketRateLimiter(100, 100)
	t.Cleanup(stop)
	return ratelimiting.NewRequestBasedRateLimiter(limiter, ratelimiting.IPKeyFunc)
}

func TestMakeRegisterScriptsHandler(t *testing.T) {
	t.Parallel()

	newHandler := func(t *testing.T) (http.HandlerFunc, *scriptcache.Cache, *document.Memory) {
		doc := document.NewMemory()
		cache := scriptcache.New(doc)
		return ports.MakeRegisterScriptsHandler(
			app.BuildRegisterScripts(cache),
			newIPRateLimiter(t),
			testLogger,
			noopMiddleware,
		), cache, doc
	}

	post := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/v1/scripts", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("registers scripts", func(t *testing.T) {
		t.Parallel()

		handler, _, doc := newHandler(t)
		doc.Preload("/present.js")

		w := post(handler, `{"scripts":[{"name":"core","url":"/core.js"},{"name":"present","url":"/present.js"}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
		require.JSONEq(t, `{"success":true,"registrations":[
			{"name":"core","url":"/core.js","status":"started"},
			{"name":"present","url":"/present.js","status":"skipped"}
		]}`, w.Body.String())

		w = post(handler, `{"scripts":[{"name":"core","url":"/core-v2.js"}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"registrations":[
			{"name":"core","url":"/core-v2.js","status":"existing"}
		]}`, w.Body.String())
	})

	t.Run("registers a name to url object in name order", func(t *testing.T) {
		t.Parallel()

		handler, _, doc := newHandler(t)

		w := post(handler, `{"scripts":{"ui":"/ui.js","core":"/core.js"}}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"registrations":[
			{"name":"core","url":"/core.js","status":"started"},
			{"name":"ui","url":"/ui.js","status":"started"}
		]}`, w.Body.String())

		srcs := []string{}
		for _, el := range doc.Appended() {
			srcs = append(srcs, el.Src)
		}
		require.Equal(t, []string{"/core.js", "/ui.js"}, srcs)

		w = post(handler, `{"scripts":{}}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"registrations":[]}`, w.Body.String())
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t)
		w := post(handler, `{"scripts":[]}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"registrations":[]}`, w.Body.String())
	})

	t.Run("invalid entry", func(t *testing.T) {
		t.Parallel()

		handler, cache, _ := newHandler(t)
		w := post(handler, `{"scripts":[{"name":"core","url":""}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), `"success":false`)
		require.Empty(t, cache.Records())
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t)
		for _, body := range []string{
			``,
			`not json`,
			`{"scripts":"core"}`,
			`{"scripts":null}`,
			`{"entries":[]}`,
			`{"scripts":[{"name":"core","url":"/core.js","async":true}]}`,
			`{"scripts":{"core":1}}`,
		} {
			w := post(handler, body)
			require.Equal(t, http.StatusBadRequest, w.Code, body)
			require.JSONEq(t, `{"success":false,"cause":"invalid request body"}`, w.Body.String())
		}
	})

	t.Run("too many scripts", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t)
		scripts := make([]string, 101)
		for i := range scripts {
			scripts[i] = fmt.Sprintf(`{"name":"s%d","url":"/s%d.js"}`, i, i)
		}
		w := post(handler, fmt.Sprintf(`{"scripts":[%s]}`, strings.Join(scripts, ",")))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("internal error", func(t *testing.T) {
		t.Parallel()

		handler := ports.MakeRegisterScriptsHandler(
			func(ctx context.Context, entries []domain.Entry) ([]scriptcache.Registration, error) {
				return nil, errors.New("boom")
			},
			newIPRateLimiter(t),
			testLogger,
			noopMiddleware,
		)
		w := post(handler, `{"scripts":[]}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"internal server error"}`, w.Body.String())
	})
}

func TestMakeGetScriptHandler(t *testing.T) {
	t.Parallel()

	newHandler := func(t *testing.T) (http.HandlerFunc, *scriptcache.Cache, *document.Memory) {
		doc := document.NewMemory()
		cache := scriptcache.New(doc)
		return ports.MakeGetScriptHandler(
			app.BuildGetScriptState(cache),
			newIPRateLimiter(t),
			testLogger,
			noopMiddleware,
		), cache, doc
	}

	get := func(ctx context.Context, handler http.HandlerFunc, name string, wait bool) *httptest.ResponseRecorder {
		target := fmt.Sprintf("/v1/scripts/%s", name)
		if wait {
			target += "?wait=true"
		}
		req := httptest.NewRequestWithContext(ctx, "GET", target, nil)
		req.SetPathValue("name", name)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("pending", func(t *testing.T) {
		t.Parallel()

		handler, cache, _ := newHandler(t)
		cache.Cache(t.Context(), []domain.Entry{{Name: "core", URL: "/core.js"}})

		w := get(t.Context(), handler, "core", false)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"loaded":false`)
		require.Contains(t, w.Body.String(), `"rejected":false`)
		require.NotContains(t, w.Body.String(), `settledAt`)
	})

	t.Run("wait for load", func(t *testing.T) {
		t.Parallel()

		handler, cache, doc := newHandler(t)
		cache.Cache(t.Context(), []domain.Entry{{Name: "core", URL: "/core.js"}})

		go func() {
			time.Sleep(10 * time.Millisecond)
			doc.Load("/core.js")
		}()

		w := get(t.Context(), handler, "core", true)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"loaded":true`)
		require.Contains(t, w.Body.String(), `settledAt`)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		handler, cache, doc := newHandler(t)
		cache.Cache(t.Context(), []domain.Entry{{Name: "core", URL: "/core.js"}})
		doc.Fail("/core.js", errors.New("network down"))

		w := get(t.Context(), handler, "core", true)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"rejected":true`)
		require.Contains(t, w.Body.String(), `network down`)
	})

	t.Run("wait times out", func(t *testing.T) {
		t.Parallel()

		handler, cache, _ := newHandler(t)
		cache.Cache(t.Context(), []domain.Entry{{Name: "core", URL: "/core.js"}})

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		w := get(ctx, handler, "core", true)
		require.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t)
		w := get(t.Context(), handler, "core", false)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"not found"}`, w.Body.String())
	})

	t.Run("invalid name", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t)
		w := get(t.Context(), handler, strings.Repeat("a", 201), false)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMakeGetAllScriptsHandler(t *testing.T) {
	t.Parallel()

	newHandler := func(t *testing.T, timeout time.Duration) (http.HandlerFunc, *scriptcache.Cache, *document.Memory) {
		doc := document.NewMemory()
		cache := scriptcache.New(doc)
		return ports.MakeGetAllScriptsHandler(
			app.BuildWaitForAllScripts(cache, timeout),
			newIPRateLimiter(t),
			testLogger,
			noopMiddleware,
		), cache, doc
	}

	get := func(handler http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/v1/scripts", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("empty registry", func(t *testing.T) {
		t.Parallel()

		handler, _, _ := newHandler(t, time.Second)
		w := get(handler)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"errors":[],"scripts":[]}`, w.Body.String())
	})

	t.Run("loaded", func(t *testing.T) {
		t.Parallel()

		handler, cache, doc := newHandler(t, time.Second)
		cache.Cache(t.Context(), []domain.Entry{
			{Name: "one", URL: "/one.js"},
			{Name: "two", URL: "/two.js"},
		})
		doc.Load("/one.js")
		doc.Load("/two.js")

		w := get(handler)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		require.Contains(t, body, `"success":true`)
		require.Less(t, strings.Index(body, `"one"`), strings.Index(body, `"two"`))
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		handler, cache, doc := newHandler(t, time.Second)
		cache.Cache(t.Context(), []domain.Entry{{Name: "one", URL: "/one.js"}})
		doc.Fail("/one.js", errors.New("network down"))

		w := get(handler)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		require.Contains(t, body, `"success":false`)
		require.Contains(t, body, `network down`)
		require.Contains(t, body, `"scripts":[]`)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		handler, cache, _ := newHandler(t, 10*time.Millisecond)
		cache.Cache(t.Context(), []domain.Entry{{Name: "one", URL: "/one.js"}})

		w := get(handler)
		require.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}
