package reconcile_test

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ticketsync/reconcile"
	"github.com/warp/ticketsync/reconcile/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type commentCall struct {
	Key     reconcile.IssueKey
	Message string
}

// fakeTickets is a scriptable TicketService that records every call.
type fakeTickets struct {
	nextKey int

	CreateCalls  []reconcile.TransactionReport
	CommentCalls []commentCall
	CloseCalls   []reconcile.IssueKey

	FailCreate  bool
	FailComment bool
	FailClose   map[reconcile.IssueKey]bool
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{FailClose: make(map[reconcile.IssueKey]bool)}
}

func (f *fakeTickets) CreateTicket(_ context.Context, report reconcile.TransactionReport) (reconcile.IssueKey, error) {
	f.CreateCalls = append(f.CreateCalls, report)
	if f.FailCreate {
		return "", &reconcile.ServiceError{Op: "create", StatusCode: 503, Body: "unavailable"}
	}
	f.nextKey++
	return reconcile.IssueKey(issueKey(f.nextKey)), nil
}

func (f *fakeTickets) AddComment(_ context.Context, key reconcile.IssueKey, message string) error {
	f.CommentCalls = append(f.CommentCalls, commentCall{Key: key, Message: message})
	if f.FailComment {
		return &reconcile.ServiceError{Op: "comment", IssueKey: key, StatusCode: 500, Body: "boom"}
	}
	return nil
}

func (f *fakeTickets) CloseTicket(_ context.Context, key reconcile.IssueKey) error {
	f.CloseCalls = append(f.CloseCalls, key)
	if f.FailClose[key] {
		return &reconcile.ServiceError{Op: "transition", IssueKey: key, StatusCode: 500, Body: "boom"}
	}
	return nil
}

func issueKey(n int) string {
	return "OPS-" + strconv.Itoa(n)
}

func newTestReconciler(t *testing.T) (*reconcile.Reconciler, *store.Memory, *fakeTickets) {
	t.Helper()
	mem := store.NewMemory()
	tickets := newFakeTickets()
	r := reconcile.New(mem, tickets)
	r.SetLogger(log.New(io.Discard, "", 0))
	return r, mem, tickets
}

func report(id, msg string) reconcile.TransactionReport {
	return reconcile.TransactionReport{TransactionID: reconcile.TransactionID(id), ErrorMessage: msg}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestReconciler_CreateThenClose_Lifecycle(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: A batch reports an error for t1 and then a cleared error for t1
	// THEN: Exactly one create, exactly one close, and no record remains

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", "err A"),
		report("t1", ""),
	})
	require.NoError(t, err)

	assert.Len(t, tickets.CreateCalls, 1, "exactly one create")
	assert.Len(t, tickets.CloseCalls, 1, "exactly one close")
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Closed)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ledger, reconcile.TransactionID("t1"), "record removed after close")
}

func TestReconciler_UpdateOnChange(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: t1 reports "err A" and then "err B" within one batch
	// THEN: One create, one comment, final fingerprint is hash("err B")

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", "err A"),
		report("t1", "err B"),
	})
	require.NoError(t, err)

	require.Len(t, tickets.CreateCalls, 1)
	require.Len(t, tickets.CommentCalls, 1)
	assert.Equal(t, "err B", tickets.CommentCalls[0].Message)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	rec := ledger[reconcile.TransactionID("t1")]
	assert.Equal(t, reconcile.FingerprintOf("err B"), rec.Fingerprint)
}

func TestReconciler_UnchangedError_NoCallsNoMutation(t *testing.T) {
	// GIVEN: t1 already has a record with the fingerprint of "err A"
	// WHEN: t1 reports "err A" again
	// THEN: No service call of any kind, ledger exactly unchanged

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err A")})
	require.NoError(t, err)
	before, err := mem.Load(ctx)
	require.NoError(t, err)
	tickets.CreateCalls = nil

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err A")})
	require.NoError(t, err)

	assert.Empty(t, tickets.CreateCalls, "no create for unchanged error")
	assert.Empty(t, tickets.CommentCalls, "no comment for unchanged error")
	assert.Equal(t, 1, result.Unchanged)

	after, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.True(t, before.Equal(after), "ledger must be unchanged")
}

func TestReconciler_AbsentAbsent_Noop(t *testing.T) {
	// GIVEN: No record for t9
	// WHEN: t9 reports no error
	// THEN: Zero service calls, zero ledger mutation

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t9", "")})
	require.NoError(t, err)

	assert.Empty(t, tickets.CreateCalls)
	assert.Empty(t, tickets.CommentCalls)
	assert.Empty(t, tickets.CloseCalls)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, reconcile.OutcomeNoop, result.Outcomes[0].Outcome)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestReconciler_IndependentTransactions_NoCrossTalk(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: t1 and t2 each report distinct errors
	// THEN: Each gets its own record and neither affects the other

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", "e1"),
		report("t2", "e2"),
	})
	require.NoError(t, err)

	require.Len(t, tickets.CreateCalls, 2)
	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 2)

	rec1 := ledger[reconcile.TransactionID("t1")]
	rec2 := ledger[reconcile.TransactionID("t2")]
	assert.Equal(t, reconcile.FingerprintOf("e1"), rec1.Fingerprint)
	assert.Equal(t, reconcile.FingerprintOf("e2"), rec2.Fingerprint)
	assert.NotEqual(t, rec1.IssueKey, rec2.IssueKey)
}

func TestReconciler_FullCycleWithinOneBatch(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: One batch takes t1 through create, update, and close
	// THEN: Later pairs see the effects of earlier ones

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", "err A"),
		report("t1", "err B"),
		report("t1", ""),
	})
	require.NoError(t, err)

	assert.Len(t, tickets.CreateCalls, 1)
	assert.Len(t, tickets.CommentCalls, 1)
	assert.Len(t, tickets.CloseCalls, 1)
	assert.Equal(t, []reconcile.Outcome{
		reconcile.OutcomeCreated,
		reconcile.OutcomeUpdated,
		reconcile.OutcomeClosed,
	}, outcomes(result))

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func outcomes(result *reconcile.BatchResult) []reconcile.Outcome {
	out := make([]reconcile.Outcome, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		out = append(out, o.Outcome)
	}
	return out
}

// =============================================================================
// FAILURE ISOLATION TESTS
// =============================================================================

func TestReconciler_FailedClose_KeepsRecord_OthersUnaffected(t *testing.T) {
	// GIVEN: t1 has an open ticket whose close will fail
	// WHEN: A batch clears t1's error and reports a new error for t2
	// THEN: t1's original record survives and t2's record is persisted

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err A")})
	require.NoError(t, err)
	before, err := mem.Load(ctx)
	require.NoError(t, err)
	t1Key := before[reconcile.TransactionID("t1")].IssueKey

	tickets.FailClose[t1Key] = true

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", ""),
		report("t2", "fresh error"),
	})
	require.NoError(t, err, "batch must not abort on a per-transaction failure")
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Created)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[reconcile.TransactionID("t1")], ledger[reconcile.TransactionID("t1")],
		"failed close must not remove the record")
	assert.Contains(t, ledger, reconcile.TransactionID("t2"))
}

func TestReconciler_FailedCreate_NoRecordInserted(t *testing.T) {
	// GIVEN: The ticket service rejects creates
	// WHEN: t1 reports a new error
	// THEN: The ledger stays empty and the outcome is failed

	r, mem, tickets := newTestReconciler(t)
	tickets.FailCreate = true
	ctx := context.Background()

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err A")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestReconciler_FailedComment_KeepsOldFingerprint(t *testing.T) {
	// GIVEN: t1 has a record for "err A" and comments fail
	// WHEN: t1 reports "err B"
	// THEN: The stored fingerprint still matches "err A" so the next run retries

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err A")})
	require.NoError(t, err)

	tickets.FailComment = true
	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t1", "err B")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.FingerprintOf("err A"),
		ledger[reconcile.TransactionID("t1")].Fingerprint)
}

func TestReconciler_ServiceErrors_MatchSentinel(t *testing.T) {
	err := error(&reconcile.ServiceError{Op: "create", StatusCode: 500, Body: "boom"})
	assert.True(t, errors.Is(err, reconcile.ErrServiceFailure))
	assert.True(t, reconcile.IsServiceFailure(err))
}

// =============================================================================
// MALFORMED INPUT
// =============================================================================

func TestReconciler_MissingTransactionID_SkippedNotFatal(t *testing.T) {
	// GIVEN: A batch where the first report has no transaction ID
	// WHEN: The batch runs
	// THEN: That entry is skipped and later, independent reports still process

	r, mem, tickets := newTestReconciler(t)
	ctx := context.Background()

	result, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("", "orphan error"),
		report("t2", "real error"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, tickets.CreateCalls, 1)

	ledger, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, ledger, reconcile.TransactionID("t2"))
}

// =============================================================================
// PERSISTENCE DISCIPLINE
// =============================================================================

// countingStore wraps a LedgerStore and counts Load/Save calls.
type countingStore struct {
	inner reconcile.LedgerStore
	loads int
	saves int
}

func (c *countingStore) Load(ctx context.Context) (reconcile.Ledger, error) {
	c.loads++
	return c.inner.Load(ctx)
}

func (c *countingStore) Save(ctx context.Context, ledger reconcile.Ledger) error {
	c.saves++
	return c.inner.Save(ctx, ledger)
}

func TestReconciler_LoadsOnceSavesOnce_EvenWithFailures(t *testing.T) {
	// GIVEN: A batch with a mix of successes and a failing create
	// WHEN: The batch runs
	// THEN: The store sees exactly one load and one save

	counting := &countingStore{inner: store.NewMemory()}
	tickets := newFakeTickets()
	r := reconcile.New(counting, tickets)
	r.SetLogger(log.New(io.Discard, "", 0))
	ctx := context.Background()

	_, err := r.ProcessBatch(ctx, []reconcile.TransactionReport{
		report("t1", "e1"),
		report("t2", "e2"),
		report("t3", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, counting.loads)
	assert.Equal(t, 1, counting.saves)

	tickets.FailCreate = true
	_, err = r.ProcessBatch(ctx, []reconcile.TransactionReport{report("t4", "e4")})
	require.NoError(t, err)
	assert.Equal(t, 2, counting.saves, "ledger flushed even when every action failed")
}
