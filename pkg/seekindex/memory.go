package seekindex

import (
	"context"
	"iter"
	"slices"
	"sync"
)

// Memory is an in-memory Store implementation.
// It is safe for concurrent use and intended primarily for testing.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte // id → encoded record
	sources map[string]string // source → id
}

// NewMemory creates a new in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]byte),
		sources: make(map[string]string),
	}
}

func (m *Memory) Put(_ context.Context, rec *Record) error {
	if err := prepare(rec); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sources[rec.Source]; ok && old != rec.ID {
		delete(m.records, old)
	}
	if prev, ok := m.records[rec.ID]; ok {
		if old, err := decodeRecord(prev); err == nil && old.Source != rec.Source {
			delete(m.sources, old.Source)
		}
	}
	m.records[rec.ID] = data
	m.sources[rec.Source] = rec.ID
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

func (m *Memory) Lookup(_ context.Context, source string) (*Record, error) {
	// One read lock covers both maps.
	m.mu.RLock()
	data, ok := m.records[m.sources[source]]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	if rec, err := decodeRecord(data); err == nil {
		delete(m.sources, rec.Source)
	}
	return nil
}

func (m *Memory) List(_ context.Context) iter.Seq2[*Record, error] {
	// Snapshot under read lock.
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	snapshot := make(map[string][]byte, len(m.records))
	for id, data := range m.records {
		ids = append(ids, id)
		snapshot[id] = data
	}
	m.mu.RUnlock()
	slices.Sort(ids)

	return func(yield func(*Record, error) bool) {
		for _, id := range ids {
			if !yield(decodeRecord(snapshot[id])) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
