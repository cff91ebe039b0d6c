package loadrepository

import (
	"context"

	"github.com/Amund211/scriptcache/internal/domain"
)

type LoadRepository interface {
	StoreLoad(ctx context.Context, outcome domain.LoadOutcome) error
}
