// Package repository persists the score ranking and battle results.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store provides read/write access to the score ranking.
type Store interface {
	// Save stores e, assigning ID and CreatedAt when they are zero.
	Save(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error)

	// Get returns one entry or ErrNotFound.
	Get(ctx context.Context, id int64) (model.ScoreEntry, error)

	// Position returns the 1-based place of id in ranking order.
	Position(ctx context.Context, id int64) (int, error)

	// TopN returns up to n entries ordered by score desc, id asc.
	TopN(ctx context.Context, n int) ([]model.ScoreEntry, error)

	// Delete removes the given ids and reports how many existed.
	Delete(ctx context.Context, ids []int64) (int, error)

	// Clear removes every entry and reports how many existed.
	Clear(ctx context.Context) (int, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) int
}

// BattleStore keeps resolved click battles.
type BattleStore interface {
	// SaveBattle stores r, assigning ID and BattleDate when they are zero.
	SaveBattle(ctx context.Context, r model.BattleResult) (model.BattleResult, error)

	// Battles returns every stored battle, oldest first.
	Battles(ctx context.Context) ([]model.BattleResult, error)
}

// Repository is a complete backend.
type Repository interface {
	Store
	BattleStore
	Backend() string
	Close() error
}

// Open creates the backend named by backend.
func Open(ctx context.Context, backend string, opts ...Option) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		return NewFileStore(ctx, opts...)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts...)
	case BackendMemory:
		return NewTreapStore(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("open %q: %w", backend, ErrUnknownBackend)
	}
}

func validateEntry(e model.ScoreEntry) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	return nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
