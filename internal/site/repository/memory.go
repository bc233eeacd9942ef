package repository

import (
	"context"
	"sync"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/site"
)

// MemoryRepo is an in-memory site document used for development and tests.
type MemoryRepo struct {
	mu       sync.Mutex
	doc      site.Document
	exists   bool
	watchers map[chan Snapshot]struct{}
	writes   int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{watchers: make(map[chan Snapshot]struct{})}
}

func (m *MemoryRepo) Get(ctx context.Context) (site.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, false, nil
	}
	return m.doc.Clone(), true, nil
}

func (m *MemoryRepo) Create(ctx context.Context, doc site.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	if m.doc == nil {
		m.doc = site.Document{}
	}
	m.exists = true
	m.writes++
	m.broadcastLocked()
	return nil
}

func (m *MemoryRepo) UpdateSection(ctx context.Context, key site.SectionKey, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return ErrNotFound
	}
	m.doc[string(key)] = site.Clone(payload)
	m.writes++
	m.broadcastLocked()
	return nil
}

// Writes reports how many successful writes the repo has accepted.
func (m *MemoryRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryRepo) Watch(ctx context.Context) (<-chan Snapshot, error) {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	latest(ch, m.snapshotLocked())
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, ch)
		m.mu.Unlock()
	}()
	return forward(ctx, ch), nil
}

func (m *MemoryRepo) snapshotLocked() Snapshot {
	if !m.exists {
		return Snapshot{}
	}
	return Snapshot{Exists: true, Doc: m.doc.Clone()}
}

func (m *MemoryRepo) broadcastLocked() {
	s := m.snapshotLocked()
	for ch := range m.watchers {
		latest(ch, Snapshot{Exists: s.Exists, Doc: s.Doc.Clone()})
	}
}
