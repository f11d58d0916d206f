package service

import (
	"context"

	"CarbonPulse/pkg/fixed"
)

// PriceOracle returns the latest fixed-point credit price in USD.
// The core makes no staleness assumption beyond "latest value at call time".
type PriceOracle interface {
	Price(ctx context.Context) (fixed.Num, error)
}

// Registry is the external registration/escrow collaborator consulted as a
// precondition before any market action.
type Registry interface {
	IsRegistered(ctx context.Context, participant string) (bool, error)
	HasPaidEscrow(ctx context.Context, participant string) (bool, error)
}

// AssetToken is an external asset collaborator (credit token or currency
// token). TransferFrom must report success; any non-success return is a
// hard failure of the whole settlement.
type AssetToken interface {
	BalanceOf(ctx context.Context, participant string) (fixed.Num, error)
	Allowance(ctx context.Context, owner, spender string) (fixed.Num, error)
	TransferFrom(ctx context.Context, from, to string, amount fixed.Num) (bool, error)
}
