package storage

import (
	"context"
	"sync"

	"yesan/internal/core"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps the list in process memory, newest first.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []core.Expense
}

func NewMemoryRepository(seed ...core.Expense) *MemoryRepository {
	return &MemoryRepository{items: append([]core.Expense(nil), seed...)}
}

func (r *MemoryRepository) List(_ context.Context) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Expense{}, r.items...), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.items[i], nil
	}
	return core.Expense{}, ErrNotFound
}

func (r *MemoryRepository) Upsert(_ context.Context, e core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(e.ID); i >= 0 {
		r.items[i] = e
		return nil
	}
	r.items = append([]core.Expense{e}, r.items...)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return ErrNotFound
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	return nil
}

func (r *MemoryRepository) ReplaceAll(_ context.Context, expenses []core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(expenses))
	items := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		items = append(items, e)
	}
	r.items = items
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) index(id string) int {
	for i, e := range r.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}
