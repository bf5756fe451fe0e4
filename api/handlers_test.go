package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openledger/billing-engine/api"
	"github.com/openledger/billing-engine/ledger"
	"github.com/openledger/billing-engine/payables"
	"github.com/openledger/billing-engine/receivables"
	"github.com/openledger/billing-engine/store/memory"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	locks := ledger.NewPairLocker()
	syncer := ledger.NewSynchronizer(store, locks, zap.NewNop())
	engine := ledger.NewEngine(store, locks, syncer, zap.NewNop())
	h := api.NewHandler(
		receivables.NewService(engine, syncer, zap.NewNop()),
		payables.NewService(engine, zap.NewNop()),
		zap.NewNop(),
	)
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func createInvoice(t *testing.T, srv *httptest.Server, total string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"number":     "INV-001",
		"contact_id": "c-1",
		"issue_date": "2026-01-15",
		"total":      total,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

// =============================================================================
// INVOICE FLOW
// =============================================================================

func TestCreateAndGetInvoice(t *testing.T) {
	srv := newServer(t)
	id := createInvoice(t, srv, "1000.00")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000.00", body["total"])
	assert.Equal(t, "1000.00", body["balance_due"])
	assert.Equal(t, "open", body["status"])
}

func TestRecordPayment_Overpayment(t *testing.T) {
	srv := newServer(t)
	id := createInvoice(t, srv, "1000.00")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+id+"/payments", map[string]any{
		"amount": "1500.00",
		"date":   "2026-02-01",
		"mode":   "bank transfer",
		"actor":  "jane",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	doc := body["document"].(map[string]any)
	payment := body["payment"].(map[string]any)
	assert.Equal(t, "paid", doc["status"])
	assert.Equal(t, "0.00", doc["balance_due"])
	assert.Equal(t, "500.00", payment["amount_remaining"])
	assert.Equal(t, "open", payment["status"])
}

func TestApplyCredits_RoundTrip(t *testing.T) {
	srv := newServer(t)
	invoiceID := createInvoice(t, srv, "1000.00")

	resp, note := doJSON(t, http.MethodPost, srv.URL+"/api/credit-notes", map[string]any{
		"number": "CN-001",
		"date":   "2026-02-01",
		"amount": "300.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+invoiceID+"/credits", map[string]any{
		"credits": []map[string]any{
			{"source_id": note["id"], "kind": "credit_note", "amount": "300.00"},
		},
		"actor": "jane",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "300.00", body["total_applied"])
	doc := body["document"].(map[string]any)
	assert.Equal(t, "700.00", doc["balance_due"])
	assert.Equal(t, "partially_paid", doc["status"])
}

func TestDeletePayment_RestoresInvoice(t *testing.T) {
	srv := newServer(t)
	invoiceID := createInvoice(t, srv, "1000.00")

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+invoiceID+"/payments", map[string]any{
		"amount": "1000.00",
		"date":   "2026-02-01",
		"actor":  "jane",
	})
	paymentID := body["payment"].(map[string]any)["id"].(string)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/payments-received/"+paymentID+"?actor=jane", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, invoice := doJSON(t, http.MethodGet, srv.URL+"/api/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", invoice["status"])
	assert.Equal(t, "1000.00", invoice["balance_due"])
}

// =============================================================================
// SALES ORDERS
// =============================================================================

func TestSalesOrder_StatusFollowsInvoices(t *testing.T) {
	srv := newServer(t)

	resp, order := doJSON(t, http.MethodPost, srv.URL+"/api/sales-orders", map[string]any{
		"number":     "SO-1",
		"order_date": "2026-01-10",
		"total":      "1000.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := order["id"].(string)

	resp, invoice := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"number":     "INV-001",
		"order_id":   orderID,
		"issue_date": "2026-01-15",
		"total":      "1000.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+invoice["id"].(string)+"/payments", map[string]any{
		"amount": "400.00",
		"date":   "2026-02-01",
		"actor":  "jane",
	})

	resp, synced := doJSON(t, http.MethodGet, srv.URL+"/api/sales-orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Partially Paid", synced["payment_status"])
	invoices := synced["invoices"].([]any)
	require.Len(t, invoices, 1)
	assert.Equal(t, "600.00", invoices[0].(map[string]any)["balance_due"])
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrors_NotFoundIs404(t *testing.T) {
	srv := newServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/invoices/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrors_ValidationIs422(t *testing.T) {
	srv := newServer(t)
	invoiceID := createInvoice(t, srv, "100.00")

	// Mixed-side credit kind is a validation failure.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+invoiceID+"/credits", map[string]any{
		"credits": []map[string]any{
			{"source_id": "vc-1", "kind": "vendor_credit", "amount": "50.00"},
		},
		"actor": "jane",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestErrors_MalformedBodyIs400(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/invoices", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
