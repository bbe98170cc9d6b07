package ledger

import "github.com/shopspring/decimal"

// Funds maps denomination id to whole-coin count. Counts are never negative.
type Funds map[string]int64

func (f Funds) Clone() Funds {
	out := make(Funds, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Funds) IsZero() bool {
	for _, v := range f {
		if v != 0 {
			return false
		}
	}
	return true
}

// PurchasingPower sums floor(count * rate) per denomination, in base units.
// Denominations absent from the table contribute nothing.
func PurchasingPower(funds Funds, t *Table) decimal.Decimal {
	total := decimal.Zero
	for _, d := range t.denoms {
		n := funds[d.ID]
		if n == 0 {
			continue
		}
		total = total.Add(decimal.NewFromInt(n).Mul(d.rate).Floor())
	}
	return total
}

// Split divides funds evenly among n recipients, per denomination, flooring.
// The remainder stays behind: share*n + remains == funds.
func Split(funds Funds, n int) (share, remains Funds) {
	share = make(Funds, len(funds))
	remains = funds.Clone()
	if n <= 0 {
		return share, remains
	}
	for id, count := range funds {
		each := count / int64(n)
		share[id] = each
		remains[id] = count - each*int64(n)
	}
	return share, remains
}
