/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Adapters (jira, stores) wrap these with additional context.

ERROR CATEGORIES:
  1. Service errors - Ticket service call failures (non-2xx, transport)
  2. Store errors - Ledger persistence failures
  3. Input errors - Malformed batch entries

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, reconcile.ErrServiceFailure) {
        // abandoned this transaction's action, batch continues
    }
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrServiceFailure is the category for any failed ticket service call.
	// Calls are one-shot: the engine never retries, it abandons the action
	// for that transaction and moves on.
	ErrServiceFailure = errors.New("ticket service call failed")

	// ErrMissingTransactionID is returned for a report with no transaction ID.
	// Fatal only for that entry; the rest of the batch is independent.
	ErrMissingTransactionID = errors.New("report missing transaction id")

	// ErrLedgerSave is returned when the ledger cannot be flushed at batch end.
	ErrLedgerSave = errors.New("ledger save failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ServiceError describes a failed ticket service call: which operation, for
// which issue, and what the service said.
type ServiceError struct {
	Op         string   // "create", "comment", "transition"
	IssueKey   IssueKey // empty for create
	StatusCode int      // 0 for transport-level failures
	Body       string   // response snippet, for logs
	Cause      error    // transport error, if any
}

func (e *ServiceError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("jira %s: %v", e.Op, e.Cause)
	case e.IssueKey != "":
		return fmt.Sprintf("jira %s %s: status %d: %s", e.Op, e.IssueKey, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("jira %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *ServiceError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrServiceFailure
}

// Is lets errors.Is(err, ErrServiceFailure) match even when a transport
// cause is attached.
func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceFailure
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsServiceFailure reports whether err came from a ticket service call.
func IsServiceFailure(err error) bool {
	return errors.Is(err, ErrServiceFailure)
}
