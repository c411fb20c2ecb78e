package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	lerrors "github.com/matzehuels/lineage/pkg/errors"
)

// DefaultIdleTimeout is how long an untouched viewer is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Store holds viewers by id.
type Store interface {
	Get(id string) (*Viewer, bool)
	Put(v *Viewer)
	Delete(id string) (*Viewer, bool)
	// Expired removes and returns viewers idle since before cutoff.
	Expired(cutoff time.Time) []*Viewer
	All() []*Viewer
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{viewers: make(map[string]*Viewer)}
}

func (s *MemoryStore) Get(id string) (*Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[id]
	return v, ok
}

func (s *MemoryStore) Put(v *Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[v.ID()] = v
}

func (s *MemoryStore) Delete(id string) (*Viewer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[id]
	delete(s.viewers, id)
	return v, ok
}

func (s *MemoryStore) Expired(cutoff time.Time) []*Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Viewer
	for id, v := range s.viewers {
		if v.LastUsed().Before(cutoff) {
			out = append(out, v)
			delete(s.viewers, id)
		}
	}
	return out
}

func (s *MemoryStore) All() []*Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		out = append(out, v)
	}
	return out
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Backend     Backend
	Store       Store
	Viewer      Options
	IdleTimeout time.Duration
	Logger      *log.Logger
}

// Manager creates and tracks viewers.
type Manager struct {
	backend Backend
	store   Store
	opts    Options
	idle    time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewManager returns a manager. A nil Store selects a MemoryStore.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Viewer.Logger == nil {
		opts.Viewer.Logger = opts.Logger
	}
	return &Manager{
		backend: opts.Backend,
		store:   opts.Store,
		opts:    opts.Viewer,
		idle:    opts.IdleTimeout,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// Create starts a viewer and loads its backbone. The viewer is usable
// even when the backbone could not be fetched.
func (m *Manager) Create(ctx context.Context) (*Viewer, error) {
	id := uuid.NewString()
	v := NewViewer(id, m.backend, m.opts)
	if err := v.Load(ctx); err != nil {
		v.Close()
		return nil, err
	}
	m.store.Put(v)
	m.logger.Debug("session created", "id", id)
	return v, nil
}

// Get returns a live viewer.
func (m *Manager) Get(id string) (*Viewer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, lerrors.New(lerrors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	v, ok := m.store.Get(id)
	if !ok {
		return nil, lerrors.New(lerrors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	return v, nil
}

// Delete closes and forgets a viewer.
func (m *Manager) Delete(id string) error {
	v, ok := m.store.Delete(id)
	if !ok {
		return lerrors.New(lerrors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	v.Close()
	return nil
}

// Cleanup closes viewers idle longer than the timeout and returns how many
// were removed.
func (m *Manager) Cleanup() int {
	expired := m.store.Expired(m.now().Add(-m.idle))
	for _, v := range expired {
		v.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

// Close closes every viewer.
func (m *Manager) Close() {
	for _, v := range m.store.All() {
		m.store.Delete(v.ID())
		v.Close()
	}
}
