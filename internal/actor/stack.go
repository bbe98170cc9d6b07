package actor

import (
	"github.com/shopspring/decimal"
)

// Item categories carried over from the host system's type tags.
const (
	TypeWeapon     = "weapon"
	TypeEquipment  = "equipment"
	TypeConsumable = "consumable"
	TypeTool       = "tool"
	TypeLoot       = "loot"
	TypeContainer  = "container"
)

// SubTypeTradeGoods marks items that resell at full price by default; the
// exemption predicate is configurable, this is merely the conventional tag.
const SubTypeTradeGoods = "tradeGoods"

// Stack is a quantity-bearing holding of one item definition, owned by
// exactly one actor at a time.
type Stack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	SubType string `json:"sub_type,omitempty"`

	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // unit price in base units

	Identified        bool            `json:"identified"`
	UnidentifiedName  string          `json:"unidentified_name,omitempty"`
	UnidentifiedPrice decimal.Decimal `json:"unidentified_price,omitempty"`

	// Per-instance flags; they do not travel with a partial split.
	Infinite bool `json:"infinite,omitempty"`
	Secret   bool `json:"secret,omitempty"`

	// Container contents, consulted only for sale-value aggregation.
	Children []*Stack `json:"children,omitempty"`
}

// Transferable reports whether the category may change hands at all.
func (s *Stack) Transferable() bool {
	switch s.Type {
	case TypeWeapon, TypeEquipment, TypeConsumable, TypeLoot:
		return true
	}
	return false
}

// DisplayName is the identification rule for naming: a privileged viewer (the
// authority or the owning side) always sees the true name; anyone else sees
// the unidentified alternate when one is set.
func (s *Stack) DisplayName(privileged bool) string {
	if privileged || s.Identified || s.UnidentifiedName == "" {
		return s.Name
	}
	return s.UnidentifiedName
}

// DisplayPrice is the identification rule for valuation, same shape as
// DisplayName. A zero alternate price falls back to the true price.
func (s *Stack) DisplayPrice(privileged bool) decimal.Decimal {
	if privileged || s.Identified || s.UnidentifiedPrice.Sign() <= 0 {
		return s.Price
	}
	return s.UnidentifiedPrice
}

// clone copies the definition for a move, resetting per-instance flags.
func (s *Stack) clone(id string, qty int64) *Stack {
	out := *s
	out.ID = id
	out.Quantity = qty
	out.Infinite = false
	out.Secret = false
	out.Children = nil
	return &out
}

// SaleValue prices a stack for resale: identification-aware unit price,
// halved unless the subtype is exempt, times quantity. Containers aggregate
// their contents; non-lootable categories are worthless to a merchant.
func SaleValue(s *Stack, exempt func(subType string) bool, privileged bool) decimal.Decimal {
	if s.Type == TypeContainer {
		total := decimal.Zero
		for _, c := range s.Children {
			total = total.Add(SaleValue(c, exempt, privileged))
		}
		return total
	}
	switch s.Type {
	case TypeWeapon, TypeEquipment, TypeConsumable, TypeTool, TypeLoot:
	default:
		return decimal.Zero
	}
	unit := s.DisplayPrice(privileged)
	if exempt == nil || !exempt(s.SubType) {
		unit = unit.Div(decimal.New(2, 0))
	}
	return unit.Mul(decimal.NewFromInt(s.Quantity))
}
