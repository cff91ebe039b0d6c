package document_test

import (
	"errors"
	"testing"

	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/stretchr/testify/require"
)

func TestElement(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		el := document.NewElement()
		require.Equal(t, document.TypeJavaScript, el.Type)
		require.True(t, el.Async)
		require.NotEqual(t, document.NewElement().ID, el.ID)
	})

	t.Run("listeners run in order for their event type", func(t *testing.T) {
		t.Parallel()

		el := document.NewElement()
		calls := []string{}
		el.AddEventListener(document.EventLoad, func(e document.Event) {
			require.Same(t, el, e.Target)
			calls = append(calls, "load1")
		})
		el.AddEventListener(document.EventError, func(e document.Event) {
			calls = append(calls, "error")
		})
		el.AddEventListener(document.EventLoad, func(e document.Event) {
			calls = append(calls, "load2")
		})

		el.Dispatch(document.Event{Type: document.EventLoad})
		require.Equal(t, []string{"load1", "load2"}, calls)
	})
}

func TestMemory(t *testing.T) {
	t.Parallel()

	t.Run("append and settle", func(t *testing.T) {
		t.Parallel()

		doc := document.NewMemory()
		require.False(t, doc.HasScript("/a.js"))

		el := doc.CreateScript()
		el.Src = "/a.js"

		var got []document.Event
		el.AddEventListener(document.EventLoad, func(e document.Event) { got = append(got, e) })
		el.AddEventListener(document.EventError, func(e document.Event) { got = append(got, e) })

		doc.AppendChild(t.Context(), el)
		require.True(t, doc.HasScript("/a.js"))
		require.Empty(t, got)

		require.Equal(t, 1, doc.Load("/a.js"))
		require.Len(t, got, 1)
		require.Equal(t, document.EventLoad, got[0].Type)

		wantErr := errors.New("network down")
		require.Equal(t, 1, doc.Fail("/a.js", wantErr))
		require.Len(t, got, 2)
		require.Equal(t, document.EventError, got[1].Type)
		require.ErrorIs(t, got[1].Err, wantErr)

		require.Equal(t, 0, doc.Load("/missing.js"))
	})

	t.Run("preload", func(t *testing.T) {
		t.Parallel()

		doc := document.NewMemory()
		doc.Preload("/external.js")
		require.True(t, doc.HasScript("/external.js"))
		require.Len(t, doc.Appended(), 1)
	})

	t.Run("auto load dispatches during append", func(t *testing.T) {
		t.Parallel()

		doc := document.NewMemory(document.WithAutoLoad())
		el := doc.CreateScript()
		el.Src = "/fast.js"

		loaded := false
		el.AddEventListener(document.EventLoad, func(document.Event) { loaded = true })

		doc.AppendChild(t.Context(), el)
		require.True(t, loaded)
	})

	t.Run("appended keeps insertion order", func(t *testing.T) {
		t.Parallel()

		doc := document.NewMemory()
		for _, src := range []string{"/c.js", "/a.js", "/b.js"} {
			el := doc.CreateScript()
			el.Src = src
			doc.AppendChild(t.Context(), el)
		}

		srcs := []string{}
		for _, el := range doc.Appended() {
			srcs = append(srcs, el.Src)
		}
		require.Equal(t, []string{"/c.js", "/a.js", "/b.js"}, srcs)
	})
}
