package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"biasmeter/app/config"
	"biasmeter/app/util/metrics"

	"github.com/samber/do"
)

const cleanupInterval = time.Minute

var _ do.Shutdownable = (*Store)(nil)

// Store keeps sessions in memory, keyed by the session cookie value.
// Nothing survives a restart.
type Store struct {
	limit      int
	expiration time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
}

func NewStore(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewMemoryStore(cfg.Session.Limit, cfg.Session.Expiration), nil
}

func NewMemoryStore(limit int, expiration time.Duration) *Store {
	return &Store{
		limit:      limit,
		expiration: expiration,
		now:        time.Now,
		sessions:   make(map[string]*Session),
		lastSeen:   make(map[string]time.Time),
	}
}

// Get returns the session for id, creating a fresh one on first use.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, s.limit, s.now)
		s.sessions[id] = sess
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}

	s.lastSeen[id] = s.now()

	return sess
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// Prune forgets sessions idle for longer than the expiration and returns
// how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(-s.expiration)
	removed := 0

	for id, seen := range s.lastSeen {
		if seen.Before(deadline) {
			delete(s.sessions, id)
			delete(s.lastSeen, id)
			removed++
		}
	}

	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	return removed
}

func (s *Store) RunCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Prune(); removed > 0 {
				slog.Debug("Pruned idle sessions", "removed", removed)
			}
		}
	}
}

func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.sessions)
	clear(s.lastSeen)
	metrics.ActiveSessions.Set(0)

	return nil
}
