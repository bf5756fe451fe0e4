package receivables_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openledger/billing-engine/ledger"
	"github.com/openledger/billing-engine/receivables"
	"github.com/openledger/billing-engine/store/memory"
)

type fixture struct {
	store *memory.Store
	svc   *receivables.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	locks := ledger.NewPairLocker()
	syncer := ledger.NewSynchronizer(store, locks, zap.NewNop())
	engine := ledger.NewEngine(store, locks, syncer, zap.NewNop())
	return &fixture{store: store, svc: receivables.NewService(engine, syncer, zap.NewNop())}
}

func (f *fixture) createInvoice(t *testing.T, total string) *ledger.Document {
	t.Helper()
	doc, err := f.svc.CreateInvoice(context.Background(), receivables.NewInvoice{
		Number: "INV-001",
		Total:  ledger.MustMoney(total),
	})
	require.NoError(t, err)
	return doc
}

// =============================================================================
// RECORD / EDIT / DELETE PAYMENT
// =============================================================================

func TestRecordPayment_SettlesInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("400.00"),
		Date:   time.Now(),
		Mode:   "bank transfer",
		Actor:  "jane",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPartiallyPaid, res.Invoice.Status)
	assert.Equal(t, "600.00", res.Invoice.BalanceDue.StringFixed(2))
	assert.True(t, res.Payment.AmountRemaining.IsZero())
}

func TestRecordPayment_OverpaymentKeepsExcessAsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("1500.00"),
		Date:   time.Now(),
		Actor:  "jane",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPaid, res.Invoice.Status)
	assert.Equal(t, "500.00", res.Payment.AmountRemaining.StringFixed(2))
	assert.Equal(t, ledger.SourceOpen, res.Payment.Status)
}

func TestEditPayment_RetargetsThroughFullReversal(t *testing.T) {
	// GIVEN: a payment applied to invoice A
	// WHEN: it is edited to a new amount targeting invoice B
	// THEN: A is fully restored and B carries the new application

	f := newFixture(t)
	ctx := context.Background()
	invA := f.createInvoice(t, "500.00")
	invB, err := f.svc.CreateInvoice(ctx, receivables.NewInvoice{Number: "INV-002", Total: ledger.MustMoney("800.00")})
	require.NoError(t, err)

	res, err := f.svc.RecordPayment(ctx, invA.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("500.00"), Date: time.Now(), Actor: "jane",
	})
	require.NoError(t, err)

	_, err = f.svc.EditPayment(ctx, res.Payment.ID, receivables.EditPaymentInput{
		Amount: ledger.MustMoney("300.00"),
		Date:   time.Now(),
		Targets: []ledger.TargetApplication{
			{DocumentID: invB.ID, Amount: ledger.MustMoney("300.00")},
		},
		Actor: "jane",
	})
	require.NoError(t, err)

	a, err := f.svc.GetInvoice(ctx, invA.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOpen, a.Status)
	assert.Empty(t, a.Settlements)

	b, err := f.svc.GetInvoice(ctx, invB.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", b.BalanceDue.StringFixed(2))
	assert.Equal(t, ledger.StatusPartiallyPaid, b.Status)
}

func TestDeletePayment_RestoresInvoiceAndIsRetrySafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("1000.00"), Date: time.Now(), Actor: "jane",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePayment(ctx, res.Payment.ID, "jane"))

	restored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOpen, restored.Status)
	assert.Equal(t, "1000.00", restored.BalanceDue.StringFixed(2))

	// Retry hits NotFound on the already-deleted payment.
	err = f.svc.DeletePayment(ctx, res.Payment.ID, "jane")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestVoidPayment_KeepsRecordUnusable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("400.00"), Date: time.Now(), Actor: "jane",
	})
	require.NoError(t, err)

	voided, err := f.svc.VoidPayment(ctx, res.Payment.ID, "jane")
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceVoid, voided.Status)
	assert.True(t, voided.AmountRemaining.IsZero())

	restored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOpen, restored.Status)
}

// =============================================================================
// CREDIT NOTES AND APPLY CREDITS
// =============================================================================

func TestApplyCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	note, err := f.svc.CreateCreditNote(ctx, receivables.NewCreditNote{
		Number: "CN-001", Date: time.Now(), Amount: ledger.MustMoney("300.00"),
	})
	require.NoError(t, err)

	_, docs, err := f.svc.ApplyCreditNote(ctx, note.ID,
		[]ledger.TargetApplication{{DocumentID: inv.ID, Amount: ledger.MustMoney("300.00")}}, "jane")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "700.00", docs[0].BalanceDue.StringFixed(2))
}

func TestApplyCredits_RejectsPayableKinds(t *testing.T) {
	// A vendor credit can never settle an invoice.

	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	_, err := f.svc.ApplyCredits(ctx, inv.ID, []ledger.CreditApplication{
		{SourceID: "vc-1", Kind: ledger.SrcVendorCredit, Amount: ledger.MustMoney("100.00")},
	}, "jane")

	assert.ErrorIs(t, err, ledger.ErrInvalidTargetState)
}

func TestApplyCredits_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	note, err := f.svc.CreateCreditNote(ctx, receivables.NewCreditNote{
		Number: "CN-001", Date: time.Now(), Amount: ledger.MustMoney("300.00"),
	})
	require.NoError(t, err)

	_, err = f.svc.ApplyCredits(ctx, inv.ID, []ledger.CreditApplication{
		{SourceID: note.ID, Kind: ledger.SrcCreditNote, Amount: ledger.MustMoney("300.00")},
		{SourceID: "ghost", Kind: ledger.SrcPaymentReceived, Amount: ledger.MustMoney("100.00")},
	}, "jane")
	require.Error(t, err)

	untouched, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched.Settlements)
	remaining, err := f.svc.GetCreditNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", remaining.AmountRemaining.StringFixed(2))
}

// =============================================================================
// INVOICES AND SALES ORDERS
// =============================================================================

func TestDeleteInvoice_RestoresSourcesAndDetachesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateSalesOrder(ctx, receivables.NewSalesOrder{
		Number: "SO-1", OrderDate: time.Now(), Total: ledger.MustMoney("1000.00"),
	})
	require.NoError(t, err)

	inv, err := f.svc.CreateInvoice(ctx, receivables.NewInvoice{
		Number: "INV-001", OrderID: order.ID, Total: ledger.MustMoney("1000.00"),
	})
	require.NoError(t, err)

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("1000.00"), Date: time.Now(), Actor: "jane",
	})
	require.NoError(t, err)

	synced, err := f.svc.GetSalesOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.OrderPaid, synced.PaymentStatus)

	require.NoError(t, f.svc.DeleteInvoice(ctx, inv.ID, "jane"))

	_, err = f.svc.GetInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	payment, err := f.svc.GetPayment(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", payment.AmountRemaining.StringFixed(2))
	assert.Empty(t, payment.AppliedTo)

	detached, err := f.svc.GetSalesOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, detached.Invoices)
	assert.Equal(t, ledger.OrderUnpaid, detached.PaymentStatus)
}

func TestVoidInvoice_TerminalAndSynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "1000.00")

	res, err := f.svc.RecordPayment(ctx, inv.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("400.00"), Date: time.Now(), Actor: "jane",
	})
	require.NoError(t, err)

	voided, err := f.svc.VoidInvoice(ctx, inv.ID, "jane")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusVoid, voided.Status)
	assert.Empty(t, voided.Settlements)

	payment, err := f.svc.GetPayment(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", payment.AmountRemaining.StringFixed(2))
}

func TestCreateInvoice_DraftIsNotSettleable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateInvoice(ctx, receivables.NewInvoice{
		Number: "INV-001", Total: ledger.MustMoney("100.00"), Draft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDraft, draft.Status)

	_, err = f.svc.RecordPayment(ctx, draft.ID, receivables.RecordPaymentInput{
		Amount: ledger.MustMoney("100.00"), Date: time.Now(), Actor: "jane",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidTargetState)
}
