package registry

import (
	"context"

	"CarbonPulse/internal/domain/service"
)

// Static admits every participant. Local runs only; production wires the
// HTTP client.
type Static struct{}

func (Static) IsRegistered(ctx context.Context, participant string) (bool, error)  { return true, nil }
func (Static) HasPaidEscrow(ctx context.Context, participant string) (bool, error) { return true, nil }

var _ service.Registry = Static{}
