package cachestore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Nothing survives the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	seq     uint64
}

type memoryRecord struct {
	rec Record
	seq uint64
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*memoryRecord)}
}

func (m *Memory) TopByCount(ctx context.Context, n int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*memoryRecord, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].rec.Count != all[j].rec.Count {
			return all[i].rec.Count > all[j].rec.Count
		}
		return all[i].seq < all[j].seq
	})

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		out = append(out, r.rec)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	rec := r.rec
	return &rec, nil
}

func (m *Memory) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.Key]; ok {
		return ErrAlreadyExists
	}
	m.seq++
	m.records[rec.Key] = &memoryRecord{rec: *rec, seq: m.seq}
	return nil
}

func (m *Memory) IncrementCount(ctx context.Context, key string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	r.rec.Count += delta
	r.rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
