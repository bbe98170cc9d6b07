package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lootledger/internal/actor"
)

// MemStore keeps JSON-encoded records in memory. It backs tests and
// single-process deployments.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string][]byte)}
}

func (m *MemStore) Get(ctx context.Context, id string) (*actor.Actor, error) {
	m.mu.RLock()
	raw, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotExist)
	}
	return decode(raw)
}

func (m *MemStore) GetByToken(ctx context.Context, tokenID string) (*actor.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, raw := range m.docs {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if a.TokenID == tokenID {
			return a, nil
		}
	}
	return nil, fmt.Errorf("token %s: %w", tokenID, ErrNotExist)
}

func (m *MemStore) Put(ctx context.Context, a *actor.Actor) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[a.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.docs, id)
	m.mu.Unlock()
	return nil
}

func (m *MemStore) List(ctx context.Context) ([]*actor.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*actor.Actor, 0, len(m.docs))
	for _, raw := range m.docs {
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(raw []byte) (*actor.Actor, error) {
	var a actor.Actor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
