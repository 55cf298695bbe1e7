/*
handlers.go - HTTP handlers for the reconciliation intake API

PURPOSE:
  Exposes the reconciliation engine over HTTP. A batch producer POSTs
  transaction reports, the handler runs exactly one batch through the
  reconciler, and dashboards can read back the ledger and run history.

ENDPOINTS:
  POST /api/reconcile   Run a batch; responds with per-report outcomes
  GET  /api/ledger      Open-ticket mappings from the persisted ledger
  GET  /api/runs        Recent runs (sqlite backend only)
  GET  /api/health      Liveness

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (reconciler, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed request body, empty batch
  - 500: Ledger load/save failures
  Individual ticket-service failures are NOT HTTP errors: the batch still
  ran, and the failures are itemized in the response body.

CONCURRENCY:
  Batches are strictly sequential. The handler serializes /api/reconcile
  calls under a mutex so two producers can never interleave ledger
  load/save cycles.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/warp/ticketsync/reconcile"
	"github.com/warp/ticketsync/store/sqlite"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RunHistory is the optional run-tracking capability. The sqlite store
// implements it; the file store has nowhere to keep history.
type RunHistory interface {
	RecordRun(ctx context.Context, result *reconcile.BatchResult) error
	ListRuns(ctx context.Context, limit int) ([]sqlite.RunRecord, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Reconciler *reconcile.Reconciler
	Store      reconcile.LedgerStore
	History    RunHistory // nil when the backend keeps no history

	mu sync.Mutex // serializes batches
}

// NewHandler creates a handler. history may be nil.
func NewHandler(rec *reconcile.Reconciler, store reconcile.LedgerStore, history RunHistory) *Handler {
	return &Handler{Reconciler: rec, Store: store, History: history}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Reconcile runs one batch of transaction reports.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Reports) == 0 {
		writeError(w, http.StatusBadRequest, "empty batch")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.Reconciler.ProcessBatch(r.Context(), req.Reports)
	if err != nil {
		// Load/save failure. A non-nil result means the batch ran but the
		// flush failed; surface the error either way.
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.History != nil {
		// History is advisory; the batch itself succeeded.
		if err := h.History.RecordRun(r.Context(), result); err != nil {
			log.Printf("failed to record run history: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetLedger returns the persisted ledger's open-ticket mappings.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]LedgerEntryDTO, 0, len(ledger))
	for id, rec := range ledger {
		entries = append(entries, LedgerEntryDTO{
			TransactionID: string(id),
			IssueKey:      string(rec.IssueKey),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TransactionID < entries[j].TransactionID
	})
	writeJSON(w, http.StatusOK, entries)
}

// ListRuns returns recent reconciliation runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusOK, []RunDTO{})
		return
	}
	runs, err := h.History.ListRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, runDTO(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
