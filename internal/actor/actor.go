package actor

import (
	"github.com/shopspring/decimal"

	"lootledger/internal/ledger"
)

// PermissionLevel is the per-user access level on an actor record. DefaultUser
// keys the fallback applied to users with no explicit entry.
type PermissionLevel int

const (
	LevelNone PermissionLevel = iota
	LevelLimited
	LevelObserver
	LevelOwner
)

const DefaultUser = "default"

func (l PermissionLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLimited:
		return "limited"
	case LevelObserver:
		return "observer"
	case LevelOwner:
		return "owner"
	}
	return "unknown"
}

// Sheet types. A merchant container pays for dropped goods; a plain loot
// container accepts donations for free.
const (
	SheetLoot     = "loot"
	SheetMerchant = "merchant"
)

// Config carries the sheet flags the host keeps on a loot actor. The document
// store populates it from the record; unknown flags are dropped at that
// boundary rather than carried around as a loose bag.
type Config struct {
	SheetType     string          `json:"sheet_type,omitempty"`
	PriceModifier decimal.Decimal `json:"price_modifier,omitempty"`
}

// Actor is one ledger holder: an item inventory, a coin purse, an optional
// weightless purse, and a permission map. The host collaborator owns the
// record lifecycle; this core only reads and patches fields.
type Actor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TokenID string `json:"token_id,omitempty"`

	Stacks      []*Stack                   `json:"stacks,omitempty"`
	Funds       ledger.Funds               `json:"funds,omitempty"`
	AltFunds    ledger.Funds               `json:"alt_funds,omitempty"`
	Permissions map[string]PermissionLevel `json:"permissions,omitempty"`
	Config      Config                     `json:"config,omitempty"`
}

func (a *Actor) IsMerchant() bool { return a.Config.SheetType == SheetMerchant }

// PriceModifier returns the configured merchant multiplier, defaulting to 1.
func (a *Actor) PriceModifier() decimal.Decimal {
	if a.Config.PriceModifier.Sign() <= 0 {
		return decimal.New(1, 0)
	}
	return a.Config.PriceModifier
}

// Level resolves a user's access, falling back to the default entry.
func (a *Actor) Level(userID string) PermissionLevel {
	if l, ok := a.Permissions[userID]; ok {
		return l
	}
	return a.Permissions[DefaultUser]
}

// Owners lists the user ids holding owner access, excluding the default
// entry. These are the users counted for coin splitting.
func (a *Actor) Owners() []string {
	var out []string
	for id, l := range a.Permissions {
		if id != DefaultUser && l == LevelOwner {
			out = append(out, id)
		}
	}
	return out
}

func (a *Actor) Stack(id string) *Stack {
	for _, s := range a.Stacks {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (a *Actor) addStack(s *Stack) { a.Stacks = append(a.Stacks, s) }

func (a *Actor) removeStack(id string) {
	for i, s := range a.Stacks {
		if s.ID == id {
			a.Stacks = append(a.Stacks[:i], a.Stacks[i+1:]...)
			return
		}
	}
}
