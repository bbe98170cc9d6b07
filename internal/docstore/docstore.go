// Package docstore is the host document store the transaction engine reads
// actor records from and patches them back into. Updates are last-writer-wins
// with no conflict detection: the single-writer authority model makes
// anything stronger unnecessary.
package docstore

import (
	"context"
	"errors"

	"lootledger/internal/actor"
)

var ErrNotExist = errors.New("record does not exist")

type Store interface {
	// Get returns a private copy of the record; mutating it does not touch
	// the store until Put.
	Get(ctx context.Context, id string) (*actor.Actor, error)

	// GetByToken resolves a record through its scene-token reference.
	GetByToken(ctx context.Context, tokenID string) (*actor.Actor, error)

	// Put creates or replaces the record, last writer wins.
	Put(ctx context.Context, a *actor.Actor) error

	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*actor.Actor, error)
}
