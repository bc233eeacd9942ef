package assets

import (
	"context"
	"sync"
)

// MemoryRepo keeps hash records in memory (dev and tests).
type MemoryRepo struct {
	mu   sync.RWMutex
	recs []HashRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) FindByHash(ctx context.Context, hash string) ([]HashRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []HashRecord
	for _, r := range m.recs {
		if r.Hash == hash {
			out = append(out, r)
		}
	}
	sortByUpload(out)
	return out, nil
}

func (m *MemoryRepo) Insert(ctx context.Context, rec HashRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

// Count returns the number of records stored for hash.
func (m *MemoryRepo) Count(hash string) int {
	recs, _ := m.FindByHash(context.Background(), hash)
	return len(recs)
}
