package loadrepository

import (
	"context"

	"github.com/Amund211/scriptcache/internal/domain"
)

type Nop struct{}

func NewNop() Nop {
	return Nop{}
}

func (Nop) StoreLoad(ctx context.Context, outcome domain.LoadOutcome) error {
	return nil
}
