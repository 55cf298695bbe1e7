/*
Package file provides the JSON-file implementation of the ledger store.

PURPOSE:
  The production-default persistence backend: one JSON object on disk
  whose keys are transaction IDs and whose values carry issue_key and
  cksum. A just-saved ledger loads back byte-for-byte identical.

ON-DISK FORMAT:
  {
      "trans-1234": {
          "issue_key": "OPS-101",
          "cksum": "9f86d08..."
      }
  }

START-FRESH SEMANTICS:
  A missing file means no prior state. An unreadable or malformed file is
  treated the same way, with a logged warning: the accepted tradeoff is a
  possible duplicate ticket per previously-open transaction, which is
  visible and cheap to close, against blocking every future run on one
  corrupt file.

ATOMIC WRITES:
  Save goes through a temp file and rename (natefinch/atomic), so an
  interrupted save can never leave a half-written ledger behind.

SEE ALSO:
  - reconcile/store.go: The interface this implements
  - store/sqlite: The embedded-database alternative
*/
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/warp/ticketsync/reconcile"
)

// Store persists the ledger as a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a file store at the given path. The file is created on first
// Save; New never touches the filesystem.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger file. Missing, unreadable, or malformed content
// yields an empty ledger; only the malformed case is logged.
func (s *Store) Load(_ context.Context) (reconcile.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("ledger %s unreadable, starting fresh: %v", s.path, err)
		}
		return reconcile.NewLedger(), nil
	}

	var ledger reconcile.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		log.Printf("ledger %s malformed, starting fresh: %v", s.path, err)
		return reconcile.NewLedger(), nil
	}
	if ledger == nil {
		ledger = reconcile.NewLedger()
	}
	return ledger, nil
}

// Save atomically replaces the ledger file with the given contents.
func (s *Store) Save(_ context.Context, ledger reconcile.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(ledger, "", "    ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
