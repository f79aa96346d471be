package recording

import (
	"sort"
	"sync"
)

// registry is the set of active sessions keyed by channel. Every read and
// write goes through mu.
type registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Session
}

func newRegistry(capacity int) *registry {
	return &registry{capacity: capacity, sessions: make(map[string]*Session)}
}

// reserve inserts s unless the channel is taken or the registry is full.
// AlreadyActive takes precedence over AtCapacity.
func (r *registry) reserve(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.channel]; ok {
		return ErrAlreadyActive
	}
	if len(r.sessions) >= r.capacity {
		return ErrAtCapacity
	}
	r.sessions[s.channel] = s
	return nil
}

// release removes s if it is still the session registered for its channel.
func (r *registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.channel]; ok && current == s {
		delete(r.sessions, s.channel)
	}
}

func (r *registry) get(channel string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[channel]
	return s, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// snapshot returns the active sessions ordered by start time, then channel.
func (r *registry) snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].startedAt.Equal(out[j].startedAt) {
			return out[i].startedAt.Before(out[j].startedAt)
		}
		return out[i].channel < out[j].channel
	})
	return out
}
