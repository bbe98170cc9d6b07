package actor

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound means the stack vanished between the request and its
	// processing. Benign: the caller warns instead of crashing.
	ErrNotFound = errors.New("stack not found")

	// ErrInvalidItemType rejects transfers of non-lootable categories before
	// any mutation.
	ErrInvalidItemType = errors.New("item category not transferable")
)

// Moved reports the outcome of a MoveStack for downstream messaging: the
// stack created on the destination plus the mover's view of name and unit
// price under the identification rule.
type Moved struct {
	Stack       *Stack
	Quantity    int64
	DisplayName string
	UnitPrice   decimal.Decimal
}

// MoveStack transfers qty units of the identified stack from source to
// destination. qty <= 0 or qty beyond the stock moves the whole stack. The
// source stack is debited (unless flagged infinite), deleted when it empties
// and removeEmpty is set, and a fresh stack with per-instance flags stripped
// is created on the destination. Merging with an existing destination stack
// is a host concern, not handled here.
//
// Total quantity across both actors is conserved, except where infinite
// suppresses the debit by design.
func MoveStack(source, dest *Actor, itemID string, qty int64, removeEmpty, privileged bool) (*Moved, error) {
	s := source.Stack(itemID)
	if s == nil {
		return nil, ErrNotFound
	}
	if qty <= 0 || qty > s.Quantity {
		qty = s.Quantity
	}

	if !s.Infinite {
		remaining := s.Quantity - qty
		if remaining == 0 && removeEmpty {
			source.removeStack(itemID)
		} else {
			s.Quantity = remaining
		}
	}

	moved := s.clone(uuid.NewString(), qty)
	dest.addStack(moved)

	return &Moved{
		Stack:       moved,
		Quantity:    qty,
		DisplayName: moved.DisplayName(privileged),
		UnitPrice:   moved.DisplayPrice(privileged),
	}, nil
}
