package protocol

import "strings"

// The host addresses currency by an id-shape convention: a bare two-letter
// denomination id, or the same with a "wl_" prefix for the weightless purse.
// ParseRef resolves that convention exactly once, at the message boundary;
// everything past it works with the discriminated Ref.

const weightlessPrefix = "wl_"

type RefKind int

const (
	RefItem RefKind = iota
	RefCurrency
)

// Ref is the resolved target of an intent: either an item stack id or a
// denomination of one of the two purses.
type Ref struct {
	Kind       RefKind
	ID         string
	Weightless bool
}

// ParseRef classifies an item-or-currency id. isDenom guards against a
// two-letter item id shadowing a coin.
func ParseRef(id string, isDenom func(string) bool) Ref {
	if rest, ok := strings.CutPrefix(id, weightlessPrefix); ok && isDenom(rest) {
		return Ref{Kind: RefCurrency, ID: rest, Weightless: true}
	}
	if len(id) == 2 && isDenom(id) {
		return Ref{Kind: RefCurrency, ID: id}
	}
	return Ref{Kind: RefItem, ID: id}
}
