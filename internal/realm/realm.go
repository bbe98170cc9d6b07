// Package realm hosts the authority side of the loot protocol: a session
// registry, authority discovery, and a single-writer loop that drains intents
// and executes them against the document store. Because only this loop ever
// mutates actor records, no locks or optimistic retries exist anywhere in the
// engine.
package realm

import (
	"context"
	"log"

	"lootledger/internal/protocol"
)

type Realm struct {
	proc *Processor
	log  *log.Logger

	inbox    chan protocol.IntentMsg
	join     chan Session
	leave    chan Departure
	discover chan discoverReq
	split    chan splitReq
	convert  chan convertReq
	stop     chan struct{}

	// Mutated only by Run.
	sessions map[string]Session
	order    []string
}

// Departure is one connection going away. ConnID guards against a reconnect
// racing the old connection's teardown: a leave for a superseded connection
// must not deregister the live session. An empty ConnID leaves
// unconditionally.
type Departure struct {
	UserID string
	ConnID string
}

type discoverReq struct {
	scene string
	reply chan Session
}

type splitReq struct {
	containerID string
	reply       chan error
}

type convertReq struct {
	actorID string
	reply   chan error
}

func New(proc *Processor, inboxCapacity int, logger *log.Logger) *Realm {
	return &Realm{
		proc:     proc,
		log:      logger,
		inbox:    make(chan protocol.IntentMsg, inboxCapacity),
		join:     make(chan Session, 16),
		leave:    make(chan Departure, 16),
		discover: make(chan discoverReq),
		split:    make(chan splitReq),
		convert:  make(chan convertReq),
		stop:     make(chan struct{}),
		sessions: make(map[string]Session),
	}
}

func (r *Realm) Inbox() chan<- protocol.IntentMsg { return r.inbox }
func (r *Realm) Join() chan<- Session             { return r.join }
func (r *Realm) Leave() chan<- Departure          { return r.leave }

func (r *Realm) Stop() { close(r.stop) }

// Run owns all shared state. Intents addressed to the same authority are
// processed strictly in arrival order.
func (r *Realm) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case s := <-r.join:
			r.handleJoin(s)
		case d := <-r.leave:
			r.handleLeave(d)
		case req := <-r.discover:
			s, _ := r.findAuthority(req.scene)
			req.reply <- s
		case req := <-r.split:
			req.reply <- r.proc.SplitCoins(ctx, req.containerID, r.characters())
		case req := <-r.convert:
			req.reply <- r.proc.ConvertLoot(ctx, req.actorID)
		case env := <-r.inbox:
			r.handleIntent(ctx, env)
		}
	}
}

func (r *Realm) handleJoin(s Session) {
	if _, ok := r.sessions[s.UserID]; !ok {
		r.order = append(r.order, s.UserID)
	}
	r.sessions[s.UserID] = s
	r.log.Printf("session join: %s (gm=%v scene=%s)", s.UserID, s.GM, s.Scene)
}

func (r *Realm) handleLeave(d Departure) {
	s, ok := r.sessions[d.UserID]
	if !ok {
		return
	}
	if d.ConnID != "" && s.ConnID != d.ConnID {
		// Teardown of a connection that was already replaced; the live
		// session stays registered.
		r.log.Printf("ignoring stale leave for %s", d.UserID)
		return
	}
	delete(r.sessions, d.UserID)
	for i, id := range r.order {
		if id == d.UserID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Printf("session leave: %s", d.UserID)
}

// findAuthority picks the first connected privileged session viewing the
// given scene.
func (r *Realm) findAuthority(scene string) (Session, bool) {
	for _, id := range r.order {
		if s := r.sessions[id]; s.eligibleAuthority(scene) {
			return s, true
		}
	}
	return Session{}, false
}

func (r *Realm) characters() map[string]string {
	out := make(map[string]string, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s.CharacterID
	}
	return out
}

// handleIntent applies the processorId filter: everyone sees every envelope,
// only the addressed live authority acts on it. Anything else is dropped,
// matching the at-most-once, no-acknowledgement wire semantics.
func (r *Realm) handleIntent(ctx context.Context, env protocol.IntentMsg) {
	auth, ok := r.sessions[env.AuthorityUserID]
	if !ok || !auth.GM {
		r.log.Printf("dropping %s intent addressed to %q: not a connected authority", env.Kind, env.AuthorityUserID)
		return
	}
	var requester *Session
	if s, ok := r.sessions[env.RequestingUserID]; ok {
		requester = &s
	}
	r.proc.ProcessIntent(ctx, env, requester)
}

// Discover resolves the live authority for a scene before a peer sends an
// intent. Absence is a definite failure, not a retryable condition.
func (r *Realm) Discover(ctx context.Context, scene string) (Session, error) {
	req := discoverReq{scene: scene, reply: make(chan Session, 1)}
	select {
	case r.discover <- req:
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
	select {
	case s := <-req.reply:
		if s.UserID == "" {
			return Session{}, ErrNoAuthority
		}
		return s, nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

// SplitCoins runs the coin distribution for a container on the authority
// loop.
func (r *Realm) SplitCoins(ctx context.Context, containerID string) error {
	req := splitReq{containerID: containerID, reply: make(chan error, 1)}
	select {
	case r.split <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConvertLoot liquidates a container's stacks on the authority loop.
func (r *Realm) ConvertLoot(ctx context.Context, actorID string) error {
	req := convertReq{actorID: actorID, reply: make(chan error, 1)}
	select {
	case r.convert <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
