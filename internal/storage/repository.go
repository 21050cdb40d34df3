package storage

import (
	"context"
	"errors"

	"yesan/internal/core"
)

// ErrNotFound is returned for unknown expense ids.
var ErrNotFound = errors.New("expense not found")

// Repository stores the authoritative expense list. List returns the most
// recently added expense first; Upsert of an existing id keeps its place.
type Repository interface {
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, error)
	Upsert(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, id string) error
	// ReplaceAll swaps the whole list in one step, keeping the given order.
	ReplaceAll(ctx context.Context, expenses []core.Expense) error
	Close() error
}
