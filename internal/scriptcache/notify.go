package scriptcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/Amund211/scriptcache/internal/future"
)

// OnLoad calls cb once the script registered as name settles, or right away if
// it has already loaded. cb is never called for unregistered names.
func (c *Cache) OnLoad(name string, cb Callback) {
	record, ok := c.lookup(name)
	if !ok {
		return
	}

	if record.HasLoaded() {
		cb(nil, record)
		return
	}

	record.signal.Subscribe(func(*Record, error) {
		// Trust the record over the signal
		if record.WasRejected() {
			cb(record.Err(), nil)
			return
		}
		cb(nil, record)
	})
}

// OnAllLoad calls cb once every registered script has settled.
//
// Scripts that have already loaded are only passed to cb when there is
// nothing to wait for. If anything is waited on, cb receives the waited
// records alone, or the first failure among them.
func (c *Cache) OnAllLoad(cb AllCallback) {
	results := []*Record{}
	pending := []*future.Future[*Record]{}

	for _, record := range c.Records() {
		if record.HasLoaded() {
			results = append(results, record)
		} else {
			pending = append(pending, record.signal)
		}
	}

	if len(pending) == 0 {
		cb(nil, results)
		return
	}

	future.All(pending, func(records []*Record, err error) {
		if err != nil {
			cb([]error{err}, nil)
			return
		}
		cb(nil, records)
	})
}

// Wait blocks until the script registered as name settles
func (c *Cache) Wait(ctx context.Context, name string) (*Record, error) {
	record, ok := c.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotRegistered, name)
	}

	_, err := record.signal.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

type allResult struct {
	errs    []error
	records []*Record
}

// WaitAll is OnAllLoad as a blocking call
func (c *Cache) WaitAll(ctx context.Context) ([]*Record, error) {
	result := make(chan allResult, 1)
	c.OnAllLoad(func(errs []error, records []*Record) {
		result <- allResult{errs: errs, records: records}
	})

	select {
	case r := <-result:
		if len(r.errs) > 0 {
			return nil, errors.Join(r.errs...)
		}
		return r.records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
