package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/scriptcache/internal/scriptcache"
)

// ScriptState is a snapshot of a registered script
type ScriptState struct {
	Name      string
	URL       string
	Loaded    bool
	Rejected  bool
	Err       error
	StartedAt time.Time
	SettledAt time.Time
}

func ScriptStateFromRecord(record *scriptcache.Record) ScriptState {
	return ScriptState{
		Name:      record.Name(),
		URL:       record.URL(),
		Loaded:    record.HasLoaded(),
		Rejected:  record.WasRejected(),
		Err:       record.Err(),
		StartedAt: record.StartedAt(),
		SettledAt: record.SettledAt(),
	}
}

// GetScriptState returns scriptcache.ErrScriptNotRegistered for names without a stub
type GetScriptState func(ctx context.Context, name string, wait bool) (ScriptState, error)

type stubRegistry interface {
	GetScriptStub(name string) (scriptcache.Stub, bool)
	Wait(ctx context.Context, name string) (*scriptcache.Record, error)
}

// BuildGetScriptState returns the current state, or the settled state when
// wait is set. A failed load is a state, not an error.
func BuildGetScriptState(registry stubRegistry) GetScriptState {
	return func(ctx context.Context, name string, wait bool) (ScriptState, error) {
		stub, ok := registry.GetScriptStub(name)
		if !ok {
			return ScriptState{}, fmt.Errorf("%w: %s", scriptcache.ErrScriptNotRegistered, name)
		}

		if !wait {
			return ScriptStateFromRecord(stub.Record), nil
		}

		_, err := registry.Wait(ctx, name)
		if err != nil && !stub.Record.WasRejected() {
			return ScriptState{}, fmt.Errorf("gave up waiting for %s: %w", name, err)
		}

		return ScriptStateFromRecord(stub.Record), nil
	}
}
