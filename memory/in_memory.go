package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/hupe1980/studymesh/core"
)

// InMemoryStore is a process-local MemoryStore: user -> pattern type ->
// ordered records. Safe for concurrent use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string][]core.PatternRecord
	now     func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]map[string][]core.PatternRecord),
		now:     time.Now,
	}
}

// Save appends a copy of data under patternType for userID.
func (m *InMemoryStore) Save(userID, patternType string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.records[userID]
	if !ok {
		byType = make(map[string][]core.PatternRecord)
		m.records[userID] = byType
	}
	byType[patternType] = append(byType[patternType], core.PatternRecord{
		Timestamp: m.now().UTC(),
		Data:      maps.Clone(data),
	})

	return nil
}

// Patterns returns a copy of the records of patternType in insertion order.
func (m *InMemoryStore) Patterns(userID, patternType string) ([]core.PatternRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.records[userID][patternType]
	out := make([]core.PatternRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// PatternTypes returns the pattern types recorded for userID.
func (m *InMemoryStore) PatternTypes(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.records[userID]))
	for t := range m.records[userID] {
		types = append(types, t)
	}
	return types
}

var _ core.MemoryStore = (*InMemoryStore)(nil)
