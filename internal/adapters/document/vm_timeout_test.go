package document

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type noSources struct{}

func (noSources) GetSource(ctx context.Context, url string) ([]byte, error) {
	return nil, context.Canceled
}

func TestRunScriptLateInterrupt(t *testing.T) {
	t.Parallel()

	vm := NewVM(noSources{}, time.Second)
	defer vm.Close()

	// A timer that has already fired when the script returns, but whose
	// callback has not run yet
	var fired atomic.Bool
	vm.afterFunc = func(d time.Duration, f func()) func() bool {
		go func() {
			time.Sleep(20 * time.Millisecond)
			fired.Store(true)
			f()
		}()
		return func() bool { return false }
	}

	require.NoError(t, vm.runScript("/first.js", `var first = 1;`))
	require.True(t, fired.Load())

	vm.afterFunc = afterFunc
	require.NoError(t, vm.runScript("/second.js", `var second = first + 1;`))
}
