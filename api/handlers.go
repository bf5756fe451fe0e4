/*
handlers.go - HTTP handlers for the settlement ledger

PURPOSE:
  Exposes the receivables and payables services via REST. Handles HTTP
  request/response, JSON serialization, and delegates every balance
  mutation to the domain services.

REQUEST FLOW:
  1. Decode and validate input
  2. Call the domain service
  3. Serialize response
  4. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed JSON or dates
  - 404: Referenced id not found
  - 409: Reversal mismatch (corrupted cross-links)
  - 422: Settlement precondition violated (insufficient credit,
         over-application, invalid target state)
  - 500: Store or internal errors

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openledger/billing-engine/ledger"
	"github.com/openledger/billing-engine/payables"
	"github.com/openledger/billing-engine/receivables"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	AR  *receivables.Service
	AP  *payables.Service
	Log *zap.Logger
}

// NewHandler creates a new handler over both domain services.
func NewHandler(ar *receivables.Service, ap *payables.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{AR: ar, AP: ap, Log: log}
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoice creates an invoice.
// POST /api/invoices
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	issue, due, ok := parseDocumentDates(w, req.IssueDate, req.DueDate)
	if !ok {
		return
	}

	doc, err := h.AR.CreateInvoice(r.Context(), receivables.NewInvoice{
		Number:    req.Number,
		ContactID: req.ContactID,
		OrderID:   req.OrderID,
		IssueDate: issue,
		DueDate:   due,
		Total:     req.Total,
		Draft:     req.Draft,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentDTO(doc))
}

// ListInvoices returns all invoices.
// GET /api/invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	docs, err := h.AR.ListInvoices(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// GetInvoice returns a single invoice.
// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	doc, err := h.AR.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// DeleteInvoice reverses all settlements, removes the invoice, and
// detaches it from any owning sales order.
// DELETE /api/invoices/{id}
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.AR.DeleteInvoice(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoidInvoice reverses all settlements and marks the invoice VOID.
// POST /api/invoices/{id}/void
func (h *Handler) VoidInvoice(w http.ResponseWriter, r *http.Request) {
	doc, err := h.AR.VoidInvoice(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to void invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// RecordInvoicePayment records a customer payment against one invoice;
// any overpaid excess stays on the payment as available credit.
// POST /api/invoices/{id}/payments
func (h *Handler) RecordInvoicePayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	res, err := h.AR.RecordPayment(r.Context(), chi.URLParam(r, "id"), receivables.RecordPaymentInput{
		Amount:    req.Amount,
		Date:      date,
		Mode:      req.Mode,
		Reference: req.Reference,
		Actor:     req.Actor,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Document: toDocumentDTO(res.Invoice),
		Payment:  toSourceDTO(res.Payment),
	})
}

// ApplyInvoiceCredits applies a batch of existing credits against one
// invoice, all-or-nothing.
// POST /api/invoices/{id}/credits
func (h *Handler) ApplyInvoiceCredits(w http.ResponseWriter, r *http.Request) {
	var req ApplyCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.AR.ApplyCredits(r.Context(), chi.URLParam(r, "id"),
		toCreditApplications(req.Credits), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply credits", err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyCreditsResponse{
		Document:     toDocumentDTO(&res.Document),
		TotalApplied: res.TotalApplied.StringFixed(2),
		Sources:      toSourceDTOs(res.Sources),
	})
}

// =============================================================================
// PAYMENTS RECEIVED
// =============================================================================

// ListPaymentsReceived returns all customer payments.
// GET /api/payments-received
func (h *Handler) ListPaymentsReceived(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.AR.ListPayments(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTOs(srcs))
}

// GetPaymentReceived returns a single customer payment.
// GET /api/payments-received/{id}
func (h *Handler) GetPaymentReceived(w http.ResponseWriter, r *http.Request) {
	src, err := h.AR.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// EditPaymentReceived replaces the payment's amount, metadata, and
// target set through full reversal and re-application.
// PUT /api/payments-received/{id}
func (h *Handler) EditPaymentReceived(w http.ResponseWriter, r *http.Request) {
	var req EditPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	src, err := h.AR.EditPayment(r.Context(), chi.URLParam(r, "id"), receivables.EditPaymentInput{
		Amount:    req.Amount,
		Date:      date,
		Mode:      req.Mode,
		Reference: req.Reference,
		Targets:   toTargetApplications(req.Targets),
		Actor:     req.Actor,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to edit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// ApplyPaymentReceivedBalance applies a payment's leftover credit
// against further invoices.
// POST /api/payments-received/{id}/apply
func (h *Handler) ApplyPaymentReceivedBalance(w http.ResponseWriter, r *http.Request) {
	var req ApplyTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	src, _, err := h.AR.ApplyPaymentBalance(r.Context(), chi.URLParam(r, "id"),
		toTargetApplications(req.Targets), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply payment balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// DeletePaymentReceived reverses every application, then removes the
// payment.
// DELETE /api/payments-received/{id}
func (h *Handler) DeletePaymentReceived(w http.ResponseWriter, r *http.Request) {
	if err := h.AR.DeletePayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoidPaymentReceived reverses every application, then terminally voids
// the payment.
// POST /api/payments-received/{id}/void
func (h *Handler) VoidPaymentReceived(w http.ResponseWriter, r *http.Request) {
	src, err := h.AR.VoidPayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to void payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// =============================================================================
// CREDIT NOTES
// =============================================================================

// CreateCreditNote creates a credit note.
// POST /api/credit-notes
func (h *Handler) CreateCreditNote(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	src, err := h.AR.CreateCreditNote(r.Context(), receivables.NewCreditNote{
		Number:    req.Number,
		ContactID: req.ContactID,
		Date:      date,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create credit note", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSourceDTO(src))
}

// ListCreditNotes returns all credit notes.
// GET /api/credit-notes
func (h *Handler) ListCreditNotes(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.AR.ListCreditNotes(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list credit notes", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTOs(srcs))
}

// GetCreditNote returns a single credit note.
// GET /api/credit-notes/{id}
func (h *Handler) GetCreditNote(w http.ResponseWriter, r *http.Request) {
	src, err := h.AR.GetCreditNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get credit note", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// ApplyCreditNote applies a credit note against invoices.
// POST /api/credit-notes/{id}/apply
func (h *Handler) ApplyCreditNote(w http.ResponseWriter, r *http.Request) {
	var req ApplyTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	src, _, err := h.AR.ApplyCreditNote(r.Context(), chi.URLParam(r, "id"),
		toTargetApplications(req.Targets), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply credit note", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// DeleteCreditNote reverses every application, then removes the note.
// DELETE /api/credit-notes/{id}
func (h *Handler) DeleteCreditNote(w http.ResponseWriter, r *http.Request) {
	if err := h.AR.DeleteCreditNote(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete credit note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BILLS
// =============================================================================

// CreateBill creates a bill.
// POST /api/bills
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	issue, due, ok := parseDocumentDates(w, req.IssueDate, req.DueDate)
	if !ok {
		return
	}

	doc, err := h.AP.CreateBill(r.Context(), payables.NewBill{
		Number:    req.Number,
		ContactID: req.ContactID,
		IssueDate: issue,
		DueDate:   due,
		Total:     req.Total,
		Draft:     req.Draft,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create bill", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentDTO(doc))
}

// ListBills returns all bills.
// GET /api/bills
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	docs, err := h.AP.ListBills(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// GetBill returns a single bill.
// GET /api/bills/{id}
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	doc, err := h.AP.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// DeleteBill reverses all settlements, then removes the bill.
// DELETE /api/bills/{id}
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.AP.DeleteBill(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete bill", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoidBill reverses all settlements and marks the bill VOID.
// POST /api/bills/{id}/void
func (h *Handler) VoidBill(w http.ResponseWriter, r *http.Request) {
	doc, err := h.AP.VoidBill(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to void bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// RecordBillPayment records a payment made against one bill.
// POST /api/bills/{id}/payments
func (h *Handler) RecordBillPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	res, err := h.AP.RecordPayment(r.Context(), chi.URLParam(r, "id"), payables.RecordPaymentInput{
		Amount:    req.Amount,
		Date:      date,
		Mode:      req.Mode,
		Reference: req.Reference,
		Actor:     req.Actor,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Document: toDocumentDTO(res.Bill),
		Payment:  toSourceDTO(res.Payment),
	})
}

// ApplyBillCredits applies a batch of existing credits against one
// bill, all-or-nothing.
// POST /api/bills/{id}/credits
func (h *Handler) ApplyBillCredits(w http.ResponseWriter, r *http.Request) {
	var req ApplyCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.AP.ApplyCredits(r.Context(), chi.URLParam(r, "id"),
		toCreditApplications(req.Credits), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply credits", err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyCreditsResponse{
		Document:     toDocumentDTO(&res.Document),
		TotalApplied: res.TotalApplied.StringFixed(2),
		Sources:      toSourceDTOs(res.Sources),
	})
}

// =============================================================================
// PAYMENTS MADE
// =============================================================================

// ListPaymentsMade returns all payments made.
// GET /api/payments-made
func (h *Handler) ListPaymentsMade(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.AP.ListPayments(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTOs(srcs))
}

// GetPaymentMade returns a single payment made.
// GET /api/payments-made/{id}
func (h *Handler) GetPaymentMade(w http.ResponseWriter, r *http.Request) {
	src, err := h.AP.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// EditPaymentMade replaces the payment's amount, metadata, and target
// set through full reversal and re-application.
// PUT /api/payments-made/{id}
func (h *Handler) EditPaymentMade(w http.ResponseWriter, r *http.Request) {
	var req EditPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	src, err := h.AP.EditPayment(r.Context(), chi.URLParam(r, "id"), payables.EditPaymentInput{
		Amount:    req.Amount,
		Date:      date,
		Mode:      req.Mode,
		Reference: req.Reference,
		Targets:   toTargetApplications(req.Targets),
		Actor:     req.Actor,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to edit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// ApplyPaymentMadeBalance applies a payment's leftover credit against
// further bills.
// POST /api/payments-made/{id}/apply
func (h *Handler) ApplyPaymentMadeBalance(w http.ResponseWriter, r *http.Request) {
	var req ApplyTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	src, _, err := h.AP.ApplyPaymentBalance(r.Context(), chi.URLParam(r, "id"),
		toTargetApplications(req.Targets), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply payment balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// DeletePaymentMade reverses every application, then removes the
// payment.
// DELETE /api/payments-made/{id}
func (h *Handler) DeletePaymentMade(w http.ResponseWriter, r *http.Request) {
	if err := h.AP.DeletePayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoidPaymentMade reverses every application, then terminally voids the
// payment.
// POST /api/payments-made/{id}/void
func (h *Handler) VoidPaymentMade(w http.ResponseWriter, r *http.Request) {
	src, err := h.AP.VoidPayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.writeDomainError(w, "Failed to void payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// =============================================================================
// VENDOR CREDITS
// =============================================================================

// CreateVendorCredit creates a vendor credit.
// POST /api/vendor-credits
func (h *Handler) CreateVendorCredit(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	src, err := h.AP.CreateVendorCredit(r.Context(), payables.NewVendorCredit{
		Number:    req.Number,
		ContactID: req.ContactID,
		Date:      date,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create vendor credit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSourceDTO(src))
}

// ListVendorCredits returns all vendor credits.
// GET /api/vendor-credits
func (h *Handler) ListVendorCredits(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.AP.ListVendorCredits(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list vendor credits", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTOs(srcs))
}

// GetVendorCredit returns a single vendor credit.
// GET /api/vendor-credits/{id}
func (h *Handler) GetVendorCredit(w http.ResponseWriter, r *http.Request) {
	src, err := h.AP.GetVendorCredit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get vendor credit", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// ApplyVendorCredit applies a vendor credit against bills.
// POST /api/vendor-credits/{id}/apply
func (h *Handler) ApplyVendorCredit(w http.ResponseWriter, r *http.Request) {
	var req ApplyTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	src, _, err := h.AP.ApplyVendorCredit(r.Context(), chi.URLParam(r, "id"),
		toTargetApplications(req.Targets), req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to apply vendor credit", err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(src))
}

// DeleteVendorCredit reverses every application, then removes the
// credit.
// DELETE /api/vendor-credits/{id}
func (h *Handler) DeleteVendorCredit(w http.ResponseWriter, r *http.Request) {
	if err := h.AP.DeleteVendorCredit(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		h.writeDomainError(w, "Failed to delete vendor credit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALES ORDERS
// =============================================================================

// CreateSalesOrder creates a sales order.
// POST /api/sales-orders
func (h *Handler) CreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateSalesOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.OrderDate)
	if !ok {
		return
	}

	order, err := h.AR.CreateSalesOrder(r.Context(), receivables.NewSalesOrder{
		Number:    req.Number,
		ContactID: req.ContactID,
		OrderDate: date,
		Total:     req.Total,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create sales order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSalesOrderDTO(order))
}

// ListSalesOrders returns all sales orders.
// GET /api/sales-orders
func (h *Handler) ListSalesOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.AR.ListSalesOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list sales orders", err)
		return
	}
	dtos := make([]SalesOrderDTO, len(orders))
	for i := range orders {
		dtos[i] = toSalesOrderDTO(&orders[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSalesOrder returns a single sales order.
// GET /api/sales-orders/{id}
func (h *Handler) GetSalesOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.AR.GetSalesOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get sales order", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesOrderDTO(order))
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrReversalMismatch):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		h.Log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// actorFrom resolves the acting user for mutations without a body.
func actorFrom(r *http.Request) string {
	if actor := r.URL.Query().Get("actor"); actor != "" {
		return actor
	}
	return "system"
}

// parseDate parses a YYYY-MM-DD date, defaulting to today when empty.
func parseDate(w http.ResponseWriter, s string) (time.Time, bool) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return time.Time{}, false
	}
	return d, true
}

func parseDocumentDates(w http.ResponseWriter, issue, due string) (time.Time, time.Time, bool) {
	issueDate, ok := parseDate(w, issue)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	var dueDate time.Time
	if due != "" {
		var err error
		dueDate, err = time.Parse(dateLayout, due)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
			return time.Time{}, time.Time{}, false
		}
	}
	return issueDate, dueDate, true
}
