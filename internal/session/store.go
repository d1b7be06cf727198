// Package session holds parsed uploads between the preview and
// execute/cancel calls.
//
// The store is the pipeline's only owner of ephemeral state: an explicit
// keyed in-memory map rather than files in a shared directory, so there is
// no ambient filesystem coupling and cleanup is a map delete. Sessions are
// consumed exactly once or discarded; an optional TTL reaper covers
// operators who abandon an upload between preview and execute.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory/internal/metrics"
	"inventory/internal/parser"
)

// ErrSessionNotFound means the identifier is unknown, already consumed,
// or expired. Hard error surfaced to the operator ("upload again").
var ErrSessionNotFound = errors.New("import session not found")

type entry struct {
	grid      *parser.Grid
	createdAt time.Time
}

// Store is a keyed in-memory session store.
//
// Concurrency: safe for concurrent use. Each session is created, consumed
// and discarded by one operator's sequential calls, but distinct sessions
// share the map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry

	ttl time.Duration

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStore creates a Store. A positive ttl starts a background reaper
// that expires abandoned sessions; zero disables expiry entirely and the
// store relies on consume/discard alone.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if ttl > 0 {
		go s.reap()
	} else {
		close(s.doneCh)
	}
	return s
}

// Close stops the reaper, if any. Call once at shutdown.
func (s *Store) Close() {
	if s.ttl > 0 {
		close(s.stopCh)
	}
	<-s.doneCh
}

// Create stores the parsed grid under a fresh, unguessable identifier.
func (s *Store) Create(grid *parser.Grid) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = entry{grid: grid, createdAt: s.now()}
	s.mu.Unlock()

	metrics.RecordSession("created")
	return id
}

// Consume retrieves and invalidates the session atomically. A session can
// never be executed twice: the second Consume for the same id returns
// ErrSessionNotFound.
func (s *Store) Consume(id string) (*parser.Grid, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	metrics.RecordSession("consumed")
	return e.grid, nil
}

// Discard drops the session if it still exists. Idempotent and safe on
// never-created, consumed, or already-discarded ids; a no-op simplifies
// client cleanup races.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		metrics.RecordSession("discarded")
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) reap() {
	defer close(s.doneCh)

	t := time.NewTicker(s.ttl / 2)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.expire()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) expire() {
	cutoff := s.now().Add(-s.ttl)
	var expired int

	s.mu.Lock()
	for id, e := range s.sessions {
		if e.createdAt.Before(cutoff) {
			delete(s.sessions, id)
			expired++
		}
	}
	s.mu.Unlock()

	for i := 0; i < expired; i++ {
		metrics.RecordSession("expired")
	}
}
