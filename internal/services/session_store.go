package services

import (
	"context"
	"sync"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
)

type sessionEntry struct {
	session   domain.VerificationSession
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory for their TTL
type MemorySessionStore struct {
	mu   sync.RWMutex
	m    map[string]sessionEntry
	ttl  time.Duration
	nowF func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		m:    make(map[string]sessionEntry),
		ttl:  ttl,
		nowF: time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*domain.VerificationSession, error) {
	s.mu.RLock()
	e, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		s.deleteExpired(id)
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	out := e.session
	return &out, nil
}

// deleteExpired re-checks expiry so a Save that raced the caller survives.
// s.mu must be held for writing.
func (s *MemorySessionStore) deleteExpired(id string) {
	if e, ok := s.m[id]; ok && !e.expiresAt.After(s.nowF()) {
		delete(s.m, id)
	}
}

// Update applies fn under the write lock and refreshes the TTL. An error
// from fn leaves the stored session untouched.
func (s *MemorySessionStore) Update(ctx context.Context, id string, fn func(*domain.VerificationSession) error) (*domain.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowF()
	e, ok := s.m[id]
	if !ok || !e.expiresAt.After(now) {
		delete(s.m, id)
		return nil, domain.ErrSessionNotFound
	}
	sess := e.session
	if err := fn(&sess); err != nil {
		return nil, err
	}
	s.m[id] = sessionEntry{session: sess, expiresAt: now.Add(s.ttl)}
	out := sess
	return &out, nil
}

// Save stores a copy of sess and refreshes its TTL
func (s *MemorySessionStore) Save(ctx context.Context, sess *domain.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sessionEntry{session: *sess, expiresAt: s.nowF().Add(s.ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

// Cleanup removes expired sessions and returns how many were removed
func (s *MemorySessionStore) Cleanup() int {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is done
func (s *MemorySessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
