/*
Package reconcile contains the core ticket-reconciliation engine.

PURPOSE:
  This package holds the domain types and the state machine that keeps an
  issue tracker in sync with a stream of transaction error reports. A
  transaction with a new error gets a ticket, a transaction whose error text
  changed gets a comment, and a transaction whose error cleared gets its
  ticket closed.

KEY CONCEPTS IN THIS FILE (types.go):
  - TicketRecord: Tracked state for one transaction (issue key + fingerprint)
  - Ledger: The full transaction-ID -> TicketRecord mapping for one batch
  - TransactionReport: One input element of a batch
  - BatchResult: Per-report outcomes and counts for one reconciliation run

DESIGN PRINCIPLES:
  1. The Ledger is owned by exactly one Reconciler for the duration of a batch
  2. A TicketRecord exists iff the ledger believes a ticket is open
  3. Strong typing for issue keys and fingerprints prevents mixing them up
  4. Monetary amounts use decimal.Decimal to avoid floating-point errors

SEE ALSO:
  - reconciler.go: The transition function and batch driver
  - store.go: Ledger persistence interface
  - fingerprint.go: Error-message digests
*/
package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// TransactionID identifies one payment transaction in the upstream system.
type TransactionID string

// IssueKey is the tracker-assigned ticket identifier (e.g. "OPS-1042").
// Immutable once assigned to a record.
type IssueKey string

// Fingerprint is a digest of the last error message recorded for a
// transaction. Compared for equality only; never exposed externally.
type Fingerprint string

// =============================================================================
// TICKET RECORD - Tracked state for one transaction
// =============================================================================

// TicketRecord exists for a transaction iff the ledger's view of the world
// says an open ticket exists for it.
//
// The JSON field names are the persisted ledger format (issue_key, cksum)
// and must not change: the on-disk ledger has to round-trip exactly.
type TicketRecord struct {
	IssueKey    IssueKey    `json:"issue_key"`
	Fingerprint Fingerprint `json:"cksum"`
}

// =============================================================================
// LEDGER - Transaction ID -> TicketRecord mapping
// =============================================================================

// Ledger maps transaction IDs to their ticket records. It is loaded once at
// batch start, mutated in memory, and persisted once at batch end. Never
// shared between concurrent batches.
type Ledger map[TransactionID]TicketRecord

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return make(Ledger)
}

// Clone returns an independent copy. Stores hand out clones so callers can
// never alias persisted state.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for id, rec := range l {
		out[id] = rec
	}
	return out
}

// Equal reports whether two ledgers contain exactly the same records.
func (l Ledger) Equal(other Ledger) bool {
	if len(l) != len(other) {
		return false
	}
	for id, rec := range l {
		if other[id] != rec {
			return false
		}
	}
	return true
}

// =============================================================================
// TRANSACTION REPORT - One batch input element
// =============================================================================

// TransactionReport is one (transaction ID, error-or-none) pair presented to
// the reconciler. An empty ErrorMessage means the transaction's error has
// cleared. Amount and Currency are optional payment metadata; when present
// they are included in the ticket description for triage context.
type TransactionReport struct {
	TransactionID TransactionID   `json:"transaction_id"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
}

// HasError reports whether the report carries a non-empty error message.
func (r TransactionReport) HasError() bool {
	return r.ErrorMessage != ""
}

// =============================================================================
// OUTCOMES - Per-report results of one reconciliation run
// =============================================================================

type Outcome string

const (
	OutcomeCreated   Outcome = "created"   // New ticket opened
	OutcomeUpdated   Outcome = "updated"   // Comment added for changed error
	OutcomeClosed    Outcome = "closed"    // Ticket transitioned to done
	OutcomeUnchanged Outcome = "unchanged" // Same error as last run, no call made
	OutcomeNoop      Outcome = "noop"      // No record and no error
	OutcomeSkipped   Outcome = "skipped"   // Malformed report (missing transaction ID)
	OutcomeFailed    Outcome = "failed"    // Ticket service call failed; ledger untouched
)

// ReportOutcome records what happened to a single report within a batch.
type ReportOutcome struct {
	TransactionID TransactionID `json:"transaction_id"`
	Outcome       Outcome       `json:"outcome"`
	IssueKey      IssueKey      `json:"issue_key,omitempty"`
	Err           string        `json:"error,omitempty"`
}

// BatchResult summarizes one reconciliation run.
type BatchResult struct {
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcomes   []ReportOutcome `json:"outcomes"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Closed    int `json:"closed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (b *BatchResult) record(o ReportOutcome) {
	b.Outcomes = append(b.Outcomes, o)
	switch o.Outcome {
	case OutcomeCreated:
		b.Created++
	case OutcomeUpdated:
		b.Updated++
	case OutcomeClosed:
		b.Closed++
	case OutcomeUnchanged:
		b.Unchanged++
	case OutcomeSkipped:
		b.Skipped++
	case OutcomeFailed:
		b.Failed++
	}
}
