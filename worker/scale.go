// Copyright (c) 2025 BVK Chaitanya

package worker

import (
	"github.com/bvk/replicon/event"
	"github.com/bvk/replicon/gobs"
	"github.com/shopspring/decimal"
)

// FollowerQuantity computes the follower's order quantity from the master
// event and the relationship's copy strategy. Fractional results round down;
// a zero or negative result means the follower is skipped.
func FollowerQuantity(rel *gobs.FollowerRelationship, follower *gobs.User, ev *event.NormalizedOrderEvent) int64 {
	qty := decimal.NewFromInt(ev.Quantity)

	switch rel.Strategy {
	case gobs.FixedRatio:
		return qty.Mul(rel.Ratio).Floor().IntPart()

	case gobs.Percentage:
		// Without a price there is no way to size by capital; fall back
		// to mirroring the master quantity.
		if !ev.Price.IsPositive() {
			return ev.Quantity
		}
		capital := follower.Balance.Mul(rel.Percent).Div(decimal.NewFromInt(100))
		return capital.Div(ev.Price).Floor().IntPart()

	case gobs.FixedQuantity:
		return rel.FixedQuantity
	}
	return 0
}

// orderValue is the notional value used for the max-order-value guard.
func orderValue(qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}

// scaledDisclosure keeps the master's disclosed fraction on the follower's
// scaled quantity. A disclosure can never exceed the order quantity.
func scaledDisclosure(ev *event.NormalizedOrderEvent, qty int64) int64 {
	if ev.DisclosedQuantity <= 0 || ev.Quantity <= 0 {
		return 0
	}
	d := decimal.NewFromInt(ev.DisclosedQuantity).
		Mul(decimal.NewFromInt(qty)).
		Div(decimal.NewFromInt(ev.Quantity)).
		Floor().IntPart()
	return min(d, qty)
}
