package topics

import "sync"

// Registry tracks which live connections belong to which topics. All
// operations are safe for concurrent use. MembersOf returns a snapshot: a
// publish sees exactly the membership at the instant of the call.
type Registry struct {
	mu     sync.RWMutex
	topics map[Topic]map[string]struct{}
	conns  map[string]map[Topic]struct{} // reverse index for purge
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[Topic]map[string]struct{}),
		conns:  make(map[string]map[Topic]struct{}),
	}
}

// Subscribe is idempotent; re-subscribing an existing membership is a no-op.
func (r *Registry) Subscribe(connID string, t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topics[t] == nil {
		r.topics[t] = make(map[string]struct{})
	}
	r.topics[t][connID] = struct{}{}
	if r.conns[connID] == nil {
		r.conns[connID] = make(map[Topic]struct{})
	}
	r.conns[connID][t] = struct{}{}
}

// Unsubscribe is idempotent; removing an absent membership is a no-op.
func (r *Registry) Unsubscribe(connID string, t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(connID, t)
}

// PurgeConnection removes the connection from every topic. Called on
// disconnect.
func (r *Registry) PurgeConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.conns[connID] {
		r.drop(connID, t)
	}
}

// MembersOf returns the connection ids subscribed to t right now.
func (r *Registry) MembersOf(t Topic) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.topics[t]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// drop removes one membership; caller holds the write lock.
func (r *Registry) drop(connID string, t Topic) {
	if m := r.topics[t]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.topics, t)
		}
	}
	if ts := r.conns[connID]; ts != nil {
		delete(ts, t)
		if len(ts) == 0 {
			delete(r.conns, connID)
		}
	}
}
