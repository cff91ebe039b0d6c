package app

import (
	"context"
	"fmt"

	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/reporting"
	"github.com/Amund211/scriptcache/internal/scriptcache"
)

type RegisterScripts func(ctx context.Context, entries []domain.Entry) ([]scriptcache.Registration, error)

type scriptRegistry interface {
	Cache(ctx context.Context, entries []domain.Entry) []scriptcache.Registration
}

// BuildRegisterScripts validates the whole batch before registering any of it
func BuildRegisterScripts(registry scriptRegistry) RegisterScripts {
	return func(ctx context.Context, entries []domain.Entry) ([]scriptcache.Registration, error) {
		for _, entry := range entries {
			if err := entry.Validate(); err != nil {
				// Client error, not reported
				return nil, err
			}
		}

		registrations := registry.Cache(ctx, entries)
		if len(registrations) != len(entries) {
			err := fmt.Errorf("expected %d registrations, got %d", len(entries), len(registrations))
			reporting.Report(ctx, err)
			return nil, err
		}

		return registrations, nil
	}
}
