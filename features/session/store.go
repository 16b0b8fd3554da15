package session

import (
	"context"
	"sync"
	"time"
)

// Store is the only channel between the primary and secondary device.
// Put overwrites (last-write-wins), Get is non-destructive, Delete is
// the consumer's acknowledgment. No cross-key guarantees.
type Store interface {
	Put(ctx context.Context, p *Payload) error
	Get(ctx context.Context, id string) (*Payload, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps payloads in-process. Suitable for tests and
// single-node deployments where both devices talk to one server.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string]*Payload
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[string]*Payload),
		ttl:      TTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, p *Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[p.SessionID] = p
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payloads[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !p.WrittenAt.After(s.now().Add(-s.ttl)) {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, id)
	return nil
}

// PurgeExpired drops entries the primary device never consumed.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	purged := 0
	for id, p := range s.payloads {
		if !p.WrittenAt.After(cutoff) {
			delete(s.payloads, id)
			purged++
		}
	}
	return purged, nil
}
