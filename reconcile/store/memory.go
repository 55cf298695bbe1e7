// Package store provides LedgerStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/ticketsync/reconcile"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds the ledger in process memory. Load and Save copy, so callers
// never alias the stored map.
type Memory struct {
	mu     sync.RWMutex
	ledger reconcile.Ledger
}

func NewMemory() *Memory {
	return &Memory{ledger: reconcile.NewLedger()}
}

// Load returns a copy of the stored ledger.
func (m *Memory) Load(_ context.Context) (reconcile.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledger.Clone(), nil
}

// Save replaces the stored ledger with a copy of the given one.
func (m *Memory) Save(_ context.Context, ledger reconcile.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = ledger.Clone()
	return nil
}
