package app

import (
	"context"
	"time"

	"github.com/Amund211/scriptcache/internal/scriptcache"
)

// WaitForAllScripts returns what the batch notification reports: either
// errors or records. The context error is returned when the timeout passes
// first.
type WaitForAllScripts func(ctx context.Context) ([]*scriptcache.Record, []error, error)

type batchRegistry interface {
	OnAllLoad(cb scriptcache.AllCallback)
}

type allLoadResult struct {
	errs    []error
	records []*scriptcache.Record
}

func BuildWaitForAllScripts(registry batchRegistry, timeout time.Duration) WaitForAllScripts {
	return func(ctx context.Context) ([]*scriptcache.Record, []error, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result := make(chan allLoadResult, 1)
		registry.OnAllLoad(func(errs []error, records []*scriptcache.Record) {
			result <- allLoadResult{errs: errs, records: records}
		})

		select {
		case r := <-result:
			return r.records, r.errs, nil
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}
