/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the intake API. These decouple the internal domain
  model from the external contract: the ledger's fingerprints in
  particular are change-detection internals and never leave the system,
  so the ledger DTO carries only transaction ID and issue key.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - reconcile/types.go: Domain types these project
*/
package api

import (
	"github.com/warp/ticketsync/reconcile"
	"github.com/warp/ticketsync/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ReconcileRequest carries one batch of transaction reports.
type ReconcileRequest struct {
	Reports []reconcile.TransactionReport `json:"reports"`
}

// LedgerEntryDTO is one open-ticket mapping. Fingerprints are deliberately
// omitted.
type LedgerEntryDTO struct {
	TransactionID string `json:"transaction_id"`
	IssueKey      string `json:"issue_key"`
}

// RunDTO is one reconciliation run in API responses.
type RunDTO struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Closed     int    `json:"closed"`
	Unchanged  int    `json:"unchanged"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

func runDTO(r sqlite.RunRecord) RunDTO {
	return RunDTO{
		ID:         r.ID,
		StartedAt:  r.StartedAt.Format(timeFormat),
		FinishedAt: r.FinishedAt.Format(timeFormat),
		Created:    r.Created,
		Updated:    r.Updated,
		Closed:     r.Closed,
		Unchanged:  r.Unchanged,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
