package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Amund211/scriptcache/internal/future"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/dop251/goja"
)

var ErrClosed = errors.New("document closed")

type SourceProvider interface {
	GetSource(ctx context.Context, url string) ([]byte, error)
}

type pendingScript struct {
	ctx    context.Context
	el     *Element
	source *future.Future[[]byte]
}

// VM is a document backed by a goja runtime. Sources are fetched as soon as an
// element is appended. Scripts with Async=false execute in insertion order,
// async scripts execute as soon as their source arrives.
//
// All scripts share one runtime, which is only touched by the executor
// goroutine. Event listeners run on that goroutine too, so they should not block.
type VM struct {
	provider  SourceProvider
	runtime   *goja.Runtime
	timeout   time.Duration
	// Schedules the script timeout. Returns a stop func like (*time.Timer).Stop.
	afterFunc func(d time.Duration, f func()) func() bool

	mu      sync.Mutex
	present map[string]bool
	ordered []*pendingScript
	ready   []*pendingScript
	calls   []func(*goja.Runtime)

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func NewVM(provider SourceProvider, timeout time.Duration) *VM {
	vm := &VM{
		provider:  provider,
		runtime:   goja.New(),
		timeout:   timeout,
		afterFunc: afterFunc,
		present:   make(map[string]bool),
		wake:      make(chan struct{}, 1),
		closed:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go vm.run()

	return vm
}

func (vm *VM) HasScript(src string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return vm.present[src]
}

func (vm *VM) CreateScript() *Element {
	return NewElement()
}

func (vm *VM) AppendChild(ctx context.Context, el *Element) {
	pending := &pendingScript{
		// The load outlives the caller's request
		ctx:    context.WithoutCancel(ctx),
		el:     el,
		source: future.New[[]byte](),
	}

	vm.mu.Lock()
	vm.present[el.Src] = true
	if !el.Async {
		vm.ordered = append(vm.ordered, pending)
	}
	vm.mu.Unlock()

	go func() {
		source, err := vm.provider.GetSource(pending.ctx, el.Src)
		if err != nil {
			pending.source.Reject(err)
		} else {
			pending.source.Resolve(source)
		}

		if el.Async {
			vm.mu.Lock()
			vm.ready = append(vm.ready, pending)
			vm.mu.Unlock()
		}
		vm.notify()
	}()
}

// Do runs fn on the executor goroutine, between scripts
func (vm *VM) Do(ctx context.Context, fn func(*goja.Runtime) error) error {
	result := make(chan error, 1)

	vm.mu.Lock()
	vm.calls = append(vm.calls, func(runtime *goja.Runtime) {
		result <- fn(runtime)
	})
	vm.mu.Unlock()
	vm.notify()

	select {
	case err := <-result:
		return err
	case <-vm.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the executor. Scripts that have not executed yet never settle.
func (vm *VM) Close() {
	vm.closeOnce.Do(func() {
		close(vm.closed)
	})
	<-vm.stopped
}

func (vm *VM) notify() {
	select {
	case vm.wake <- struct{}{}:
	default:
	}
}

func (vm *VM) run() {
	defer close(vm.stopped)

	for {
		select {
		case <-vm.closed:
			return
		default:
		}

		call, script := vm.next()
		switch {
		case call != nil:
			call(vm.runtime)
		case script != nil:
			vm.execute(script)
		default:
			select {
			case <-vm.wake:
			case <-vm.closed:
				return
			}
		}
	}
}

func (vm *VM) next() (func(*goja.Runtime), *pendingScript) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if len(vm.calls) > 0 {
		call := vm.calls[0]
		vm.calls = vm.calls[1:]
		return call, nil
	}

	if len(vm.ready) > 0 {
		script := vm.ready[0]
		vm.ready = vm.ready[1:]
		return nil, script
	}

	// The head of the ordered queue blocks everything behind it
	if len(vm.ordered) > 0 && vm.ordered[0].source.Settled() {
		script := vm.ordered[0]
		vm.ordered = vm.ordered[1:]
		return nil, script
	}

	return nil, nil
}

func (vm *VM) execute(script *pendingScript) {
	logger := logging.FromContext(script.ctx).With(slog.String("src", script.el.Src))

	source, err := script.source.Result()
	if err != nil {
		logger.WarnContext(script.ctx, "Failed to fetch script source", "error", err.Error())
		script.el.Dispatch(Event{
			Type: EventError,
			Err:  fmt.Errorf("failed to fetch script source: %w", err),
		})
		return
	}

	vm.runtime.Set("console", newConsole(vm.runtime, logger))

	err = vm.runScript(script.el.Src, string(source))
	if err != nil {
		logger.WarnContext(script.ctx, "Failed to execute script", "error", err.Error())
		script.el.Dispatch(Event{Type: EventError, Err: err})
		return
	}

	script.el.Dispatch(Event{Type: EventLoad})
}

func (vm *VM) runScript(name, source string) error {
	if vm.timeout > 0 {
		interrupted := make(chan struct{})
		stop := vm.afterFunc(vm.timeout, func() {
			vm.runtime.Interrupt("timeout")
			close(interrupted)
		})
		defer func() {
			if stop() {
				return
			}
			// The timer fired. Let the interrupt land before clearing it so it
			// can't leak into the next script.
			<-interrupted
			vm.runtime.ClearInterrupt()
		}()
	}

	_, err := vm.runtime.RunScript(name, source)
	if err != nil {
		return fmt.Errorf("failed to run script %s: %w", name, err)
	}
	return nil
}

func newConsole(runtime *goja.Runtime, logger *slog.Logger) *goja.Object {
	write := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			logger.Log(context.Background(), level, strings.Join(parts, " "), "logger", "console")
			return goja.Undefined()
		}
	}

	console := runtime.NewObject()
	console.Set("log", write(slog.LevelInfo))
	console.Set("info", write(slog.LevelInfo))
	console.Set("warn", write(slog.LevelWarn))
	console.Set("error", write(slog.LevelError))
	return console
}

// Type assertion
var _ Document = (*VM)(nil)
