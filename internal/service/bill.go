package service

import (
	"github.com/chaipoint/api/internal/store"
	"github.com/shopspring/decimal"
)

var (
	taxRate     = decimal.RequireFromString("0.05")
	serviceRate = decimal.RequireFromString("0.02")
)

// Charges is the computed financial breakdown of a set of order items.
type Charges struct {
	Subtotal int64
	Tax      int64
	Service  int64
	Total    int64
}

// ComputeCharges derives a bill's numbers from order items.
//
// Tax and service are each rounded to a whole currency unit independently,
// before summing. The total can therefore differ by one unit from rounding
// the combined 7% once; historical bills were produced this way and parity
// matters more than the alternative.
func ComputeCharges(items []store.OrderItem) Charges {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Price * int64(item.Quantity)
	}

	sub := decimal.NewFromInt(subtotal)
	tax := sub.Mul(taxRate).Round(0).IntPart()
	svc := sub.Mul(serviceRate).Round(0).IntPart()

	return Charges{
		Subtotal: subtotal,
		Tax:      tax,
		Service:  svc,
		Total:    subtotal + tax + svc,
	}
}
