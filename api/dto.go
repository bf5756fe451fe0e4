/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract:
  dates go out as formatted strings, amounts as fixed two-decimal
  strings, and internal-only fields stay internal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go:   Route definitions
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openledger/billing-engine/ledger"
)

// =============================================================================
// DOCUMENT TYPES - Invoices and bills
// =============================================================================

// DocumentDTO represents an invoice or bill in API responses.
type DocumentDTO struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	ContactID   string             `json:"contact_id"`
	OrderID     string             `json:"order_id,omitempty"`
	IssueDate   string             `json:"issue_date"`
	DueDate     string             `json:"due_date,omitempty"`
	Total       string             `json:"total"`
	AmountPaid  string             `json:"amount_paid"`
	BalanceDue  string             `json:"balance_due"`
	Status      string             `json:"status"`
	Settlements []SettlementRefDTO `json:"settlements"`
	CreatedAt   string             `json:"created_at,omitempty"`
}

// SettlementRefDTO is one application recorded on a document.
type SettlementRefDTO struct {
	SourceID      string `json:"source_id"`
	SourceKind    string `json:"source_kind"`
	AmountApplied string `json:"amount_applied"`
	AppliedDate   string `json:"applied_date"`
}

// CreateDocumentRequest creates an invoice or bill.
type CreateDocumentRequest struct {
	Number    string          `json:"number"`
	ContactID string          `json:"contact_id"`
	OrderID   string          `json:"order_id,omitempty"` // invoices only
	IssueDate string          `json:"issue_date"`         // YYYY-MM-DD
	DueDate   string          `json:"due_date"`           // YYYY-MM-DD
	Total     decimal.Decimal `json:"total"`
	Draft     bool            `json:"draft"`
}

// =============================================================================
// SOURCE TYPES - Payments and credits
// =============================================================================

// SourceDTO represents a payment, credit note, or vendor credit.
type SourceDTO struct {
	ID              string           `json:"id"`
	Kind            string           `json:"kind"`
	Number          string           `json:"number,omitempty"`
	ContactID       string           `json:"contact_id,omitempty"`
	Date            string           `json:"date"`
	Mode            string           `json:"mode,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	TotalAmount     string           `json:"total_amount"`
	AmountRemaining string           `json:"amount_remaining"`
	Status          string           `json:"status"`
	AppliedTo       []AppliedRefDTO  `json:"applied_to"`
}

// AppliedRefDTO is one application recorded on a source.
type AppliedRefDTO struct {
	DocumentID    string `json:"document_id"`
	DocumentKind  string `json:"document_kind"`
	AmountApplied string `json:"amount_applied"`
	AppliedDate   string `json:"applied_date"`
}

// RecordPaymentRequest records a payment against a single document.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Mode      string          `json:"mode"`
	Reference string          `json:"reference"`
	Actor     string          `json:"actor"`
}

// EditPaymentRequest replaces a payment's amount, metadata, and target
// set. The server reverses the old applications before applying the
// new ones.
type EditPaymentRequest struct {
	Amount    decimal.Decimal    `json:"amount"`
	Date      string             `json:"date"`
	Mode      string             `json:"mode"`
	Reference string             `json:"reference"`
	Targets   []TargetRequestRow `json:"targets"`
	Actor     string             `json:"actor"`
}

// CreateCreditRequest creates a credit note or vendor credit.
type CreateCreditRequest struct {
	Number    string          `json:"number"`
	ContactID string          `json:"contact_id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

// TargetRequestRow is one (document, amount) row in a source-centric
// application request.
type TargetRequestRow struct {
	DocumentID string          `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// ApplyTargetsRequest applies a source against a set of documents.
type ApplyTargetsRequest struct {
	Targets []TargetRequestRow `json:"targets"`
	Actor   string             `json:"actor"`
}

// CreditRequestRow is one (source, amount) row in a target-centric
// application request.
type CreditRequestRow struct {
	SourceID string          `json:"source_id"`
	Kind     string          `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
}

// ApplyCreditsRequest applies a set of credits against one document.
type ApplyCreditsRequest struct {
	Credits []CreditRequestRow `json:"credits"`
	Actor   string             `json:"actor"`
}

// RecordPaymentResponse pairs the settled document with the payment
// created for it.
type RecordPaymentResponse struct {
	Document DocumentDTO `json:"document"`
	Payment  SourceDTO   `json:"payment"`
}

// ApplyCreditsResponse reports the outcome of a credit batch.
type ApplyCreditsResponse struct {
	Document     DocumentDTO `json:"document"`
	TotalApplied string      `json:"total_applied"`
	Sources      []SourceDTO `json:"sources"`
}

// =============================================================================
// SALES ORDER TYPES
// =============================================================================

// SalesOrderDTO represents a sales order with its derived payment
// status and invoice snapshots.
type SalesOrderDTO struct {
	ID            string               `json:"id"`
	Number        string               `json:"number"`
	ContactID     string               `json:"contact_id"`
	OrderDate     string               `json:"order_date"`
	Total         string               `json:"total"`
	PaymentStatus string               `json:"payment_status"`
	Invoices      []InvoiceSnapshotDTO `json:"invoices"`
}

// InvoiceSnapshotDTO is the order's cached view of one linked invoice.
type InvoiceSnapshotDTO struct {
	InvoiceID  string `json:"invoice_id"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	Total      string `json:"total"`
	BalanceDue string `json:"balance_due"`
}

// CreateSalesOrderRequest creates a sales order.
type CreateSalesOrderRequest struct {
	Number    string          `json:"number"`
	ContactID string          `json:"contact_id"`
	OrderDate string          `json:"order_date"`
	Total     decimal.Decimal `json:"total"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

const dateLayout = "2006-01-02"

func toDocumentDTO(d *ledger.Document) DocumentDTO {
	refs := make([]SettlementRefDTO, len(d.Settlements))
	for i, ref := range d.Settlements {
		refs[i] = SettlementRefDTO{
			SourceID:      ref.SourceID,
			SourceKind:    string(ref.SourceKind),
			AmountApplied: ref.AmountApplied.StringFixed(2),
			AppliedDate:   ref.AppliedDate.Format(time.RFC3339),
		}
	}
	dto := DocumentDTO{
		ID:          d.ID,
		Number:      d.Number,
		ContactID:   d.ContactID,
		OrderID:     d.OrderID,
		IssueDate:   d.IssueDate.Format(dateLayout),
		Total:       d.Total.StringFixed(2),
		AmountPaid:  d.AmountPaid.StringFixed(2),
		BalanceDue:  d.BalanceDue.StringFixed(2),
		Status:      string(d.Status),
		Settlements: refs,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
	if !d.DueDate.IsZero() {
		dto.DueDate = d.DueDate.Format(dateLayout)
	}
	return dto
}

func toDocumentDTOs(docs []ledger.Document) []DocumentDTO {
	dtos := make([]DocumentDTO, len(docs))
	for i := range docs {
		dtos[i] = toDocumentDTO(&docs[i])
	}
	return dtos
}

func toSourceDTO(s *ledger.Source) SourceDTO {
	refs := make([]AppliedRefDTO, len(s.AppliedTo))
	for i, ref := range s.AppliedTo {
		refs[i] = AppliedRefDTO{
			DocumentID:    ref.DocumentID,
			DocumentKind:  string(ref.DocumentKind),
			AmountApplied: ref.AmountApplied.StringFixed(2),
			AppliedDate:   ref.AppliedDate.Format(time.RFC3339),
		}
	}
	return SourceDTO{
		ID:              s.ID,
		Kind:            string(s.Kind),
		Number:          s.Number,
		ContactID:       s.ContactID,
		Date:            s.Date.Format(dateLayout),
		Mode:            s.Mode,
		Reference:       s.Reference,
		TotalAmount:     s.TotalAmount.StringFixed(2),
		AmountRemaining: s.AmountRemaining.StringFixed(2),
		Status:          string(s.Status),
		AppliedTo:       refs,
	}
}

func toSourceDTOs(srcs []ledger.Source) []SourceDTO {
	dtos := make([]SourceDTO, len(srcs))
	for i := range srcs {
		dtos[i] = toSourceDTO(&srcs[i])
	}
	return dtos
}

func toSalesOrderDTO(o *ledger.SalesOrder) SalesOrderDTO {
	snaps := make([]InvoiceSnapshotDTO, len(o.Invoices))
	for i, snap := range o.Invoices {
		snaps[i] = InvoiceSnapshotDTO{
			InvoiceID:  snap.InvoiceID,
			Number:     snap.Number,
			Status:     string(snap.Status),
			Total:      snap.Total.StringFixed(2),
			BalanceDue: snap.BalanceDue.StringFixed(2),
		}
	}
	return SalesOrderDTO{
		ID:            o.ID,
		Number:        o.Number,
		ContactID:     o.ContactID,
		OrderDate:     o.OrderDate.Format(dateLayout),
		Total:         o.Total.StringFixed(2),
		PaymentStatus: string(o.PaymentStatus),
		Invoices:      snaps,
	}
}

func toTargetApplications(rows []TargetRequestRow) []ledger.TargetApplication {
	targets := make([]ledger.TargetApplication, len(rows))
	for i, row := range rows {
		targets[i] = ledger.TargetApplication{DocumentID: row.DocumentID, Amount: row.Amount}
	}
	return targets
}

func toCreditApplications(rows []CreditRequestRow) []ledger.CreditApplication {
	credits := make([]ledger.CreditApplication, len(rows))
	for i, row := range rows {
		credits[i] = ledger.CreditApplication{
			SourceID: row.SourceID,
			Kind:     ledger.SourceKind(row.Kind),
			Amount:   row.Amount,
		}
	}
	return credits
}
