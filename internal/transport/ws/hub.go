package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub fans every outbound message out to all connected peers. The wire is
// fire-and-forget: addressed envelopes (errors) still reach everyone and the
// receiving client filters on target_user_id, matching the relay semantics
// the protocol is built on. A peer that cannot keep up loses messages rather
// than stalling the authority loop.
type Hub struct {
	mu    sync.Mutex
	peers map[string]chan []byte
	log   *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		peers: make(map[string]chan []byte),
		log:   logger,
	}
}

// add registers a peer's outbound queue, displacing any previous connection
// for the same user.
func (h *Hub) add(userID string, out chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.peers[userID]; ok {
		close(old)
	}
	h.peers[userID] = out
}

// remove drops the peer only if the given queue is still the registered one,
// so a reconnect racing a disconnect does not tear down the fresh connection.
func (h *Hub) remove(userID string, out chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[userID] == out {
		delete(h.peers, userID)
		close(out)
	}
}

// Broadcast marshals once and offers the frame to every peer. Implements the
// realm's outbound port.
func (h *Hub) Broadcast(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Printf("broadcast marshal: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, out := range h.peers {
		select {
		case out <- b:
		default:
			h.log.Printf("dropping frame for slow peer %s", id)
		}
	}
}

// send offers a frame to one peer only. Used for connection-local replies
// that never belong on the shared channel.
func (h *Hub) send(userID string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Printf("send marshal: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out, ok := h.peers[userID]
	if !ok {
		return
	}
	select {
	case out <- b:
	default:
		h.log.Printf("dropping frame for slow peer %s", userID)
	}
}
