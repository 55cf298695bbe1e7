/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the interface between the reconciliation engine and whatever
  holds the ledger between runs. The engine loads once at batch start and
  saves once at batch end; no incremental persistence exists.

CONTRACT:
  Load: Missing or unreadable state is "start fresh", not an error. An
        implementation returns an empty ledger (and logs) when the
        persisted content cannot be parsed.
  Save: Atomic overwrite. An interrupted save must never leave a
        half-written ledger behind (temp file + rename, or a transactional
        table swap).

IMPLEMENTATIONS:
  - store/file:            JSON file (production default)
  - store/sqlite:          Embedded SQLite with run history
  - reconcile/store:       In-memory, for tests and dev

SEE ALSO:
  - reconciler.go: The only consumer of this interface
*/
package reconcile

import "context"

// LedgerStore loads and persists the ledger. No other component touches the
// persisted location.
type LedgerStore interface {
	// Load returns the persisted ledger, or an empty ledger if nothing is
	// persisted or the persisted content is unreadable.
	Load(ctx context.Context) (Ledger, error)

	// Save atomically overwrites the persisted location with the ledger's
	// current contents.
	Save(ctx context.Context, ledger Ledger) error
}
