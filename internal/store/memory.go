// internal/store/memory.go
//
// In-memory session store for game rounds.
//
// Characteristics:
//   - Stores one *game.Round per session id.
//   - The map is guarded by an RWMutex; each session additionally has its own
//     mutex so operations on one session run one at a time while other sessions
//     proceed in parallel.
//   - Readers always receive clones; the live round never leaves the store.
//   - Get reads the snapshot published when the last Save/Update finished, so
//     it never waits behind a slow operation such as a hint request.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rizkyjpr/semantic-game/internal/game"
)

// ErrNotFound is returned when a session has no round.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for session rounds.
type Store interface {
	// Save installs r as the round for sessionID, replacing any previous one.
	Save(ctx context.Context, sessionID string, r *game.Round) error

	// Get returns a copy of the round for sessionID.
	Get(ctx context.Context, sessionID string) (*game.Round, error)

	// Update runs fn on the live round while holding the session lock and
	// returns a copy of the round as fn left it. fn's error is passed through.
	Update(ctx context.Context, sessionID string, fn func(r *game.Round) error) (*game.Round, error)

	// Len reports the number of stored sessions.
	Len() int
}

type entry struct {
	mu    sync.Mutex // held for the whole of Save/Update
	round *game.Round
	snap  atomic.Pointer[game.Round] // read-only copy for Get
}

// publish stores a copy of the live round for readers. Callers hold e.mu.
func (e *entry) publish() *game.Round {
	c := e.round.Clone()
	e.snap.Store(c)
	return c
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex      // guards sessions
	sessions map[string]*entry // keyed by session id
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*entry)}
}

func (m *memory) Save(ctx context.Context, sessionID string, r *game.Round) error {
	if r == nil {
		return errors.New("nil round")
	}
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		e = &entry{}
		m.sessions[sessionID] = e
	}
	m.mu.Unlock()

	// Wait for any in-flight operation on the old round.
	e.mu.Lock()
	e.round = r.Clone()
	e.publish()
	e.mu.Unlock()
	return nil
}

func (m *memory) Get(ctx context.Context, sessionID string) (*game.Round, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return nil, ErrNotFound
	}
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotFound
	}
	return snap.Clone(), nil
}

func (m *memory) Update(ctx context.Context, sessionID string, fn func(r *game.Round) error) (*game.Round, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := fn(e.round)
	return e.publish().Clone(), err
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *memory) lookup(sessionID string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}
