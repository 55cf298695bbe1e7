/*
ticketservice.go - Abstract capability consumed from the issue tracker

PURPOSE:
  The reconciler needs exactly three things from the tracker: open a
  ticket, comment on a ticket, close a ticket. This interface keeps the
  state machine free of HTTP and lets tests substitute a fake.

CONTRACT:
  Every call is synchronous and one-shot. No retries happen anywhere in
  this system; a failed call surfaces as a ServiceError and the engine
  abandons that transaction's action for the run.

IMPLEMENTATIONS:
  - jira: REST v2 adapter (production)
  - reconcile tests: scriptable fake
*/
package reconcile

import "context"

// TicketService is the consumed issue-tracker capability. Each operation maps
// to one HTTP call in the real system.
type TicketService interface {
	// CreateTicket opens a ticket whose title references the transaction ID
	// and whose description is the report. Returns the service-assigned key.
	CreateTicket(ctx context.Context, report TransactionReport) (IssueKey, error)

	// AddComment appends the updated error text to an existing ticket.
	AddComment(ctx context.Context, key IssueKey, errorMessage string) error

	// CloseTicket transitions an existing ticket to its terminal state via
	// the configured transition identifier.
	CloseTicket(ctx context.Context, key IssueKey) error
}
