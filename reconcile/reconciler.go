/*
reconciler.go - The per-transaction state machine and batch driver

PURPOSE:
  Decides, for each (transaction ID, error-or-none) report, one of four
  actions against the tracker and keeps the ledger consistent with what
  the tracker now holds.

TRANSITION TABLE (complete):

  record? | error? | condition              | action
  --------+--------+------------------------+----------------------------------
  yes     | yes    | fingerprint unchanged  | nothing ("no change")
  yes     | yes    | fingerprint changed    | AddComment; store new fingerprint
  yes     | no     |                        | CloseTicket; drop the record
  no      | yes    |                        | CreateTicket; insert a record
  no      | no     |                        | nothing

  Each transaction has exactly two states, Open (record present) and
  Absent. The table is re-evaluated per report in batch order against the
  evolving ledger, so one ID can go Absent -> Open -> Absent in a single
  batch.

FAILURE POLICY:
  A failed service call abandons that report's action and leaves the
  ledger untouched for that transaction. In particular a failed close
  keeps the record: the ledger must keep claiming the ticket is open,
  because it is. Processing always continues to the next report, and the
  ledger is flushed once at batch end regardless of individual failures.

SEE ALSO:
  - types.go: Ledger, TicketRecord, BatchResult
  - store.go: Load-once / save-once persistence contract
*/
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler drives one batch at a time. It owns the in-memory ledger for
// the duration of ProcessBatch and is not safe for concurrent batches.
type Reconciler struct {
	store   LedgerStore
	tickets TicketService
	logger  *log.Logger
}

// New creates a reconciler over the given store and ticket service.
func New(store LedgerStore, tickets TicketService) *Reconciler {
	return &Reconciler{
		store:   store,
		tickets: tickets,
		logger:  log.Default(),
	}
}

// SetLogger replaces the outcome logger. Useful for tests.
func (r *Reconciler) SetLogger(l *log.Logger) {
	r.logger = l
}

// =============================================================================
// BATCH DRIVER - Load once, apply in order, save once
// =============================================================================

// ProcessBatch loads the ledger, applies the transition table to each report
// in order, then persists the ledger exactly once. The flush happens even
// when individual reports failed: the best-effort final state for everything
// that succeeded is still written. The returned result is non-nil whenever
// the ledger was loaded, including alongside a save error.
func (r *Reconciler) ProcessBatch(ctx context.Context, reports []TransactionReport) (*BatchResult, error) {
	ledger, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	result := &BatchResult{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	for _, report := range reports {
		outcome := r.apply(ctx, ledger, report)
		result.record(outcome)
	}

	result.FinishedAt = time.Now().UTC()

	if err := r.store.Save(ctx, ledger); err != nil {
		return result, fmt.Errorf("%w: %v", ErrLedgerSave, err)
	}
	r.logger.Printf("run %s: ledger flushed (%d created, %d updated, %d closed, %d unchanged, %d failed, %d skipped)",
		result.RunID, result.Created, result.Updated, result.Closed, result.Unchanged, result.Failed, result.Skipped)
	return result, nil
}

// =============================================================================
// TRANSITION FUNCTION - One report against the evolving ledger
// =============================================================================

func (r *Reconciler) apply(ctx context.Context, ledger Ledger, report TransactionReport) ReportOutcome {
	id := report.TransactionID
	if id == "" {
		r.logger.Printf("skipping report with no transaction id")
		return ReportOutcome{Outcome: OutcomeSkipped, Err: ErrMissingTransactionID.Error()}
	}

	record, hasRecord := ledger[id]

	switch {
	case hasRecord && report.HasError():
		current := FingerprintOf(report.ErrorMessage)
		if current == record.Fingerprint {
			r.logger.Printf("transaction %s: no change in error message", id)
			return ReportOutcome{TransactionID: id, Outcome: OutcomeUnchanged, IssueKey: record.IssueKey}
		}
		if err := r.tickets.AddComment(ctx, record.IssueKey, report.ErrorMessage); err != nil {
			r.logger.Printf("transaction %s: comment on %s failed: %v", id, record.IssueKey, err)
			return ReportOutcome{TransactionID: id, Outcome: OutcomeFailed, IssueKey: record.IssueKey, Err: err.Error()}
		}
		record.Fingerprint = current
		ledger[id] = record
		r.logger.Printf("transaction %s: comment added to %s", id, record.IssueKey)
		return ReportOutcome{TransactionID: id, Outcome: OutcomeUpdated, IssueKey: record.IssueKey}

	case hasRecord && !report.HasError():
		if err := r.tickets.CloseTicket(ctx, record.IssueKey); err != nil {
			// The ticket is still open; the record must stay.
			r.logger.Printf("transaction %s: close of %s failed: %v", id, record.IssueKey, err)
			return ReportOutcome{TransactionID: id, Outcome: OutcomeFailed, IssueKey: record.IssueKey, Err: err.Error()}
		}
		delete(ledger, id)
		r.logger.Printf("transaction %s: ticket %s closed", id, record.IssueKey)
		return ReportOutcome{TransactionID: id, Outcome: OutcomeClosed, IssueKey: record.IssueKey}

	case !hasRecord && report.HasError():
		key, err := r.tickets.CreateTicket(ctx, report)
		if err != nil {
			r.logger.Printf("transaction %s: create failed: %v", id, err)
			return ReportOutcome{TransactionID: id, Outcome: OutcomeFailed, Err: err.Error()}
		}
		ledger[id] = TicketRecord{
			IssueKey:    key,
			Fingerprint: FingerprintOf(report.ErrorMessage),
		}
		r.logger.Printf("transaction %s: ticket %s created", id, key)
		return ReportOutcome{TransactionID: id, Outcome: OutcomeCreated, IssueKey: key}

	default:
		// No record, no error: nothing to create, nothing to close.
		r.logger.Printf("transaction %s: no ticket and no error, nothing to do", id)
		return ReportOutcome{TransactionID: id, Outcome: OutcomeNoop}
	}
}
