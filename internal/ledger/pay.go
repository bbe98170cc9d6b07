package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrConversionFailed means a debit or refund could not be represented in the
// denomination table. Callers pre-check with PurchasingPower, so hitting this
// is an internal consistency error, not a user mistake.
var ErrConversionFailed = errors.New("currency conversion failed")

// PayCost debits cost (in base units) from funds and returns the updated
// balances plus the overpayment that was refunded in change, also in base
// units. The input map is not modified.
//
// Coins are spent finest first so buyers break small change before large
// coins. A coarse coin cannot be split, so the payment may overshoot; the
// overshoot is returned to the purse as finer coins before this returns.
func PayCost(cost decimal.Decimal, funds Funds, t *Table) (Funds, decimal.Decimal, error) {
	if cost.Sign() < 0 {
		return nil, decimal.Zero, fmt.Errorf("pay cost: negative cost %s", cost)
	}
	out := funds.Clone()
	if cost.Sign() == 0 {
		return out, decimal.Zero, nil
	}

	// Rescale so the cost is an integer, and every rate by the same power of
	// ten. All later arithmetic stays exact.
	scale := decimal.New(1, 0)
	if exp := cost.Exponent(); exp < 0 {
		scale = decimal.New(1, -exp)
	}
	remaining := cost.Mul(scale)
	overpay := decimal.Zero
	one := decimal.New(1, 0)

	for i := len(t.denoms) - 1; i >= 0; i-- {
		d := t.denoms[i]
		rate := d.rate.Mul(scale)
		have := decimal.NewFromInt(out[d.ID])
		if rate.LessThan(one) {
			// Many coins per scaled base unit; these spend without change.
			ratio := one.Div(rate)
			value := decimal.Min(remaining, have.Div(ratio).Floor())
			remaining = remaining.Sub(value)
			out[d.ID] = have.Sub(value.Mul(ratio)).IntPart()
		} else {
			value := decimal.Min(remaining, have.Mul(rate).Floor())
			remaining = remaining.Sub(value)
			lost := value.Div(rate).Ceil()
			out[d.ID] = have.Sub(lost).IntPart()
			overpay = overpay.Add(lost.Mul(rate).Sub(value))
		}
	}

	if remaining.Sign() > 0 {
		return nil, decimal.Zero, fmt.Errorf("pay cost: %s base units uncovered: %w",
			remaining.Div(scale), ErrConversionFailed)
	}

	// Hand the overpayment back, coarsest coin first.
	refund := overpay
	for _, d := range t.denoms {
		rate := d.rate.Mul(scale)
		if rate.LessThanOrEqual(refund) {
			n := refund.Div(rate).Floor()
			out[d.ID] += n.IntPart()
			refund = refund.Mod(rate)
		}
	}
	if refund.Sign() > 0 {
		return nil, decimal.Zero, fmt.Errorf("pay cost: %s base units of change unrepresentable: %w",
			refund.Div(scale), ErrConversionFailed)
	}
	return out, overpay.Div(scale), nil
}

// SpreadGain credits total (in base units) to funds, greedily from the base
// unit down through the finer denominations. Coins coarser than the base unit
// are never minted. Any residue finer than the finest denomination is dropped.
// The input map is not modified.
func SpreadGain(total decimal.Decimal, funds Funds, t *Table) Funds {
	out := funds.Clone()
	rem := total
	one := decimal.New(1, 0)
	for _, d := range t.denoms {
		if d.rate.GreaterThan(one) {
			continue
		}
		if rem.Sign() <= 0 {
			break
		}
		n := rem.Div(d.rate).Floor()
		if n.Sign() > 0 {
			out[d.ID] += n.IntPart()
			rem = rem.Sub(n.Mul(d.rate))
		}
	}
	return out
}
