// Package presence tracks which logical users are currently reachable over
// live connections. The Registry is the single shared-mutation point of the
// relay: every connection registers itself under a user id, the router looks
// receivers up here, and disconnects (or failed deliveries) remove handles.
//
// Invariants:
//   - a user id key exists iff its handle set is non-empty
//   - a handle is bound to at most one user id at a time
//   - every operation runs in one consistent critical section; no caller
//     observes a half-updated state
package presence

import "sync"

// Conn is an opaque handle to one live bidirectional connection. The registry
// never interprets the payloads it carries; delivery goes through Send.
//
// Send must be safe for concurrent use and must fail (not block forever) when
// the connection is dead or its outbound queue is full.
type Conn interface {
	Send(event string, payload any) error
}

// Registry maps user ids to their live connection handles. The zero value is
// not usable; call NewRegistry.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[Conn]struct{}
	owners map[Conn]string // reverse index: handle -> owning user id
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[Conn]struct{}),
		owners: make(map[Conn]string),
	}
}

// Register binds conn to userID. Registering the same (userID, conn) pair
// twice is a no-op. If conn was previously bound to a different user, that
// stale binding is removed first, so a handle never appears under two users.
//
// It returns true when the binding changed (new handle, or rebound from
// another user), which callers use to emit a registration-confirmed signal.
func (r *Registry) Register(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[conn]; ok {
		if prev == userID {
			return false
		}
		r.removeLocked(prev, conn)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.users[userID] = set
	}
	set[conn] = struct{}{}
	r.owners[conn] = userID
	return true
}

// Unregister removes conn from whichever user set contains it and deletes
// the user key if the set becomes empty. Unregistering an unknown handle is
// a no-op. It returns the user id the handle was bound to, if any.
func (r *Registry) Unregister(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[conn]
	if !ok {
		return "", false
	}
	r.removeLocked(userID, conn)
	return userID, true
}

// removeLocked deletes the (userID, conn) binding. Caller holds r.mu.
func (r *Registry) removeLocked(userID string, conn Conn) {
	delete(r.owners, conn)
	if set, ok := r.users[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}
}

// Lookup returns a snapshot of the live handles for userID. An empty slice
// means the user is offline. The snapshot is safe to iterate while other
// goroutines mutate the registry.
func (r *Registry) Lookup(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Owner returns the user id a handle is currently bound to.
func (r *Registry) Owner(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[conn]
	return id, ok
}

// ListOnline returns the user ids that currently have at least one live
// handle. Order is unspecified.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// Connections reports the total number of live handles across all users.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
