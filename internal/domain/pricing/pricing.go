// Package pricing implements the checkout total calculation.
//
// The calculation is a pure function of the selected cart lines and an
// optional voucher code: every call site delegates here instead of
// re-deriving subtotals inline, so the breakdown persisted on an order is
// the single source of truth for its total.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Voucher codes honoured at checkout. The set is fixed: there is no voucher
// management surface, and codes match case-insensitively.
const (
	// VoucherDiscount grants 10% off the subtotal.
	VoucherDiscount = "ANEC10"
	// VoucherFreeShipping waives the flat shipping fee.
	VoucherFreeShipping = "FREESHIP"
)

var (
	// FreeShippingThreshold is the subtotal above which (strictly) shipping
	// is free without a voucher.
	FreeShippingThreshold = decimal.New(100000, -2) // 1000.00

	// FlatShippingFee applies whenever the order does not qualify for free
	// shipping.
	FlatShippingFee = decimal.New(5000, -2) // 50.00

	discountRate = decimal.New(10, -2) // 10%
	taxRate      = decimal.New(12, -2) // 12%
)

// Line is a selected cart line entering the checkout calculation.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the checkout price breakdown. All terms are rounded to two
// decimal places and Total is the exact sum of the rounded terms, so
// Total = Subtotal + ShippingFee + Tax - Discount always holds.
type Quote struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Calculate prices the given lines with an optional voucher code.
//
// Unknown voucher codes are not an error: they simply apply no discount and
// no shipping waiver. An empty line slice yields an all-zero quote; rejecting
// an empty checkout is the caller's concern. The two known vouchers are
// mutually exclusive by construction, since each affects a different term.
func Calculate(lines []Line, voucherCode string) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.UnitPrice.Mul(qty))
	}

	shipping := FlatShippingFee
	if len(lines) == 0 ||
		subtotal.GreaterThan(FreeShippingThreshold) ||
		strings.EqualFold(voucherCode, VoucherFreeShipping) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if strings.EqualFold(voucherCode, VoucherDiscount) {
		discount = subtotal.Mul(discountRate).Round(2)
	}

	tax := subtotal.Sub(discount).Mul(taxRate).Round(2)

	return Quote{
		Subtotal:    subtotal.Round(2),
		ShippingFee: shipping,
		Discount:    discount,
		Tax:         tax,
		Total:       subtotal.Round(2).Add(shipping).Add(tax).Sub(discount),
	}
}
