package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/billing-engine/ledger"
)

func (f *fixture) seedOrders(t *testing.T, orders ...ledger.SalesOrder) {
	t.Helper()
	require.NoError(t, f.store.SaveOrders(context.Background(), orders))
}

func (f *fixture) order(t *testing.T, id string) ledger.SalesOrder {
	t.Helper()
	order, err := f.engine.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return *order
}

func linkedInvoice(id, orderID, total string) ledger.Document {
	doc := openInvoice(id, total)
	doc.OrderID = orderID
	return doc
}

// =============================================================================
// PAYMENT STATUS PROPAGATION
// =============================================================================

func TestSyncSalesOrder_MixedInvoices_PartiallyPaid(t *testing.T) {
	// GIVEN: an order with two invoices, one PAID and one PARTIALLY_PAID
	// THEN: the order is Partially Paid

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("1500.00")})

	paid := linkedInvoice("inv-1", "so-1", "1000.00")
	paid.AmountPaid = paid.Total
	paid.BalanceDue = ledger.MustMoney("0")
	paid.Status = ledger.StatusPaid
	partial := linkedInvoice("inv-2", "so-1", "500.00")
	partial.AmountPaid = ledger.MustMoney("100.00")
	partial.BalanceDue = ledger.MustMoney("400.00")
	partial.Status = ledger.StatusPartiallyPaid
	f.seedInvoices(t, paid, partial)

	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-1"))

	order := f.order(t, "so-1")
	assert.Equal(t, ledger.OrderPartiallyPaid, order.PaymentStatus)
	require.Len(t, order.Invoices, 2)
}

func TestSyncSalesOrder_AllPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("1500.00")})

	for _, id := range []string{"inv-1", "inv-2"} {
		doc := linkedInvoice(id, "so-1", "750.00")
		doc.AmountPaid = doc.Total
		doc.BalanceDue = ledger.MustMoney("0")
		doc.Status = ledger.StatusPaid
		docs, err := f.store.LoadDocuments(ctx, ledger.ColInvoices)
		require.NoError(t, err)
		f.seedInvoices(t, append(docs, doc)...)
	}

	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-2"))

	assert.Equal(t, ledger.OrderPaid, f.order(t, "so-1").PaymentStatus)
}

func TestSyncSalesOrder_NoInvoices_StaysUnpaid(t *testing.T) {
	// "all paid" requires at least one linked invoice.

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("100.00")})
	f.seedInvoices(t, openInvoice("inv-1", "100.00")) // not linked

	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-1"))

	assert.Equal(t, ledger.OrderUnpaid, f.order(t, "so-1").PaymentStatus)
	assert.Empty(t, f.order(t, "so-1").Invoices)
}

func TestSyncSalesOrder_SnapshotsFollowInvoiceState(t *testing.T) {
	// Snapshots carry the current number/status/balance of each linked
	// invoice and are kept sorted by number.

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("900.00")})
	f.seedInvoices(t,
		linkedInvoice("inv-b", "so-1", "500.00"),
		linkedInvoice("inv-a", "so-1", "400.00"))
	f.seedSources(t, ledger.ColPaymentsReceived, openSource("pay-1", ledger.SrcPaymentReceived, "200.00"))

	_, _, err := f.engine.ApplySettlement(ctx, ledger.SrcPaymentReceived, "pay-1", ledger.DocInvoice,
		[]ledger.TargetApplication{{DocumentID: "inv-b", Amount: ledger.MustMoney("200.00")}}, "tester")
	require.NoError(t, err)

	// The engine synced the order as part of the settlement.
	order := f.order(t, "so-1")
	assert.Equal(t, ledger.OrderPartiallyPaid, order.PaymentStatus)
	require.Len(t, order.Invoices, 2)
	assert.Equal(t, "INV-inv-a", order.Invoices[0].Number)
	assert.Equal(t, "INV-inv-b", order.Invoices[1].Number)
	assert.Equal(t, "300.00", order.Invoices[1].BalanceDue.StringFixed(2))
	assert.Equal(t, ledger.StatusPartiallyPaid, order.Invoices[1].Status)
}

// =============================================================================
// OWNER INDEX
// =============================================================================

func TestSyncSalesOrder_LegacyInvoiceResolvedThroughIndex(t *testing.T) {
	// GIVEN: an invoice without an OrderID back-reference, known only
	// through the order's snapshot list
	// WHEN: the index is rebuilt and the invoice synced
	// THEN: the owner is found via the index and the order refreshed

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{
		ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("500.00"),
		Invoices: []ledger.InvoiceSnapshot{{InvoiceID: "inv-legacy", Number: "INV-inv-legacy"}},
	})
	legacy := openInvoice("inv-legacy", "500.00")
	legacy.AmountPaid = legacy.Total
	legacy.BalanceDue = ledger.MustMoney("0")
	legacy.Status = ledger.StatusPaid
	f.seedInvoices(t, legacy)

	require.NoError(t, f.syncer.RebuildIndex(ctx))
	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-legacy"))

	order := f.order(t, "so-1")
	assert.Equal(t, ledger.OrderPaid, order.PaymentStatus)
	require.Len(t, order.Invoices, 1)
	assert.True(t, order.Invoices[0].BalanceDue.IsZero())
}

func TestSyncSalesOrder_NoOwner_NoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedInvoices(t, openInvoice("inv-1", "100.00"))

	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-1"))
}

func TestDetachInvoice_RemovesSnapshotAndRecomputes(t *testing.T) {
	// GIVEN: an order whose only unpaid invoice is removed
	// THEN: the snapshot disappears and the status is recomputed from
	// what remains

	f := newFixture(t)
	ctx := context.Background()
	f.seedOrders(t, ledger.SalesOrder{
		ID: "so-1", Number: "SO-1", Total: ledger.MustMoney("900.00"),
		Invoices: []ledger.InvoiceSnapshot{
			{InvoiceID: "inv-1", Number: "INV-inv-1"},
			{InvoiceID: "inv-2", Number: "INV-inv-2"},
		},
	})
	paid := linkedInvoice("inv-1", "so-1", "400.00")
	paid.AmountPaid = paid.Total
	paid.BalanceDue = ledger.MustMoney("0")
	paid.Status = ledger.StatusPaid
	f.seedInvoices(t, paid) // inv-2 already deleted from the collection
	require.NoError(t, f.syncer.RebuildIndex(ctx))

	require.NoError(t, f.syncer.DetachInvoice(ctx, "inv-2"))

	order := f.order(t, "so-1")
	require.Len(t, order.Invoices, 1)
	assert.Equal(t, "inv-1", order.Invoices[0].InvoiceID)
	assert.Equal(t, ledger.OrderPaid, order.PaymentStatus)

	// Index entry is gone: further syncs for inv-2 are no-ops.
	require.NoError(t, f.syncer.SyncSalesOrder(ctx, "inv-2"))
}
