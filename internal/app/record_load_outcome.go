package app

import (
	"context"
	"time"

	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/scriptcache"
)

type loadRepository interface {
	StoreLoad(ctx context.Context, outcome domain.LoadOutcome) error
}

func LoadOutcomeFromRecord(instanceID string, record *scriptcache.Record) domain.LoadOutcome {
	outcome := domain.LoadOutcome{
		InstanceID: instanceID,
		Name:       record.Name(),
		URL:        record.URL(),
		Status:     domain.LoadStatusLoaded,
		StartedAt:  record.StartedAt(),
		SettledAt:  record.SettledAt(),
	}
	if err := record.Err(); err != nil {
		outcome.Status = domain.LoadStatusRejected
		outcome.Error = err.Error()
	}
	return outcome
}

// BuildRecordLoadOutcome journals every settled load. Runs on the goroutine
// that settled the load, so the write is bounded by a short timeout.
func BuildRecordLoadOutcome(repo loadRepository, instanceID string) scriptcache.SettleHook {
	return func(ctx context.Context, record *scriptcache.Record) {
		storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		// NOTE: loadRepository implementations handle their own error reporting
		_ = repo.StoreLoad(storeCtx, LoadOutcomeFromRecord(instanceID, record))
	}
}
