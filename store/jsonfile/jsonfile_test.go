package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/billing-engine/ledger"
)

func TestLoad_AbsentFileIsEmptyCollection(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	docs, err := store.LoadDocuments(context.Background(), ledger.ColInvoices)
	require.NoError(t, err)
	assert.Empty(t, docs)

	orders, err := store.LoadOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestDocuments_RoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	when := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	in := []ledger.Document{{
		ID:         "inv-1",
		Kind:       ledger.DocInvoice,
		Number:     "INV-001",
		ContactID:  "c-1",
		Total:      ledger.MustMoney("1234.56"),
		AmountPaid: ledger.MustMoney("234.56"),
		BalanceDue: ledger.MustMoney("1000.00"),
		Status:     ledger.StatusPartiallyPaid,
		Settlements: []ledger.SettlementRef{{
			SourceID:      "pay-1",
			SourceKind:    ledger.SrcPaymentReceived,
			AmountApplied: ledger.MustMoney("234.56"),
			AppliedDate:   when,
		}},
		CreatedAt: when,
		UpdatedAt: when,
	}}
	require.NoError(t, store.SaveDocuments(ctx, ledger.ColInvoices, in))

	out, err := store.LoadDocuments(ctx, ledger.ColInvoices)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "inv-1", out[0].ID)
	assert.True(t, out[0].Total.Equal(ledger.MustMoney("1234.56")))
	assert.True(t, out[0].AmountPaid.Equal(ledger.MustMoney("234.56")))
	require.Len(t, out[0].Settlements, 1)
	assert.True(t, out[0].Settlements[0].AmountApplied.Equal(ledger.MustMoney("234.56")))
	assert.True(t, out[0].Settlements[0].AppliedDate.Equal(when))
}

func TestSources_RoundTripKeepsMirrors(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	in := []ledger.Source{{
		ID:              "cn-1",
		Kind:            ledger.SrcCreditNote,
		TotalAmount:     ledger.MustMoney("500.00"),
		AmountRemaining: ledger.MustMoney("100.00"),
		Status:          ledger.SourceOpen,
		AppliedTo: []ledger.AppliedRef{{
			DocumentID:    "inv-1",
			DocumentKind:  ledger.DocInvoice,
			AmountApplied: ledger.MustMoney("400.00"),
		}},
	}}
	require.NoError(t, store.SaveSources(ctx, ledger.ColCreditNotes, in))

	out, err := store.LoadSources(ctx, ledger.ColCreditNotes)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].AppliedTo, 1)
	assert.True(t, out[0].AmountRemaining.Equal(out[0].TotalAmount.Sub(out[0].AppliedAmount())))
}

func TestSave_AmountsStoredAsStrings(t *testing.T) {
	// Amounts must never become binary floats on disk.

	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveDocuments(ctx, ledger.ColBills, []ledger.Document{{
		ID:    "bill-1",
		Kind:  ledger.DocBill,
		Total: ledger.MustMoney("0.10"),
	}}))

	raw, err := os.ReadFile(filepath.Join(dir, "bills.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total": "0.1"`)
}

func TestSave_OverwritesWholesale(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveDocuments(ctx, ledger.ColInvoices, []ledger.Document{
		{ID: "a"}, {ID: "b"},
	}))
	require.NoError(t, store.SaveDocuments(ctx, ledger.ColInvoices, []ledger.Document{
		{ID: "b"},
	}))

	out, err := store.LoadDocuments(ctx, ledger.ColInvoices)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestSave_NilBecomesEmptyArray(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveOrders(ctx, nil))

	raw, err := os.ReadFile(filepath.Join(dir, "sales_orders.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
