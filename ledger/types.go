/*
Package ledger implements the receivables/payables settlement core.

PURPOSE:
  This package contains the domain model and algorithms for applying
  payments, credit notes, and vendor credits against invoices and bills,
  and for reversing those applications. It keeps amountPaid/balanceDue/
  status consistent across interdependent documents regardless of the
  order in which they are created, edited, voided, or deleted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Document:      A settleable document (invoice or bill) owing money
  - Source:        A settlement source (payment or credit) that pays it
  - SettlementRef: Immutable record of one application, stored on the target
  - AppliedRef:    Its mirror image, stored on the source
  - SalesOrder:    Parent of invoices, carries a derived payment status

DESIGN PRINCIPLES:
  1. Mirrored refs: every application is recorded on BOTH sides, and the
     pair is created and removed together. An orphaned ref is corruption.
  2. Precision: all money is decimal.Decimal, never float64.
  3. Single writer: amountPaid/balanceDue/settlements are mutated only by
     the Engine in this package. No other code path touches them.

SEE ALSO:
  - balance.go: balanceDue/status derivation
  - engine.go:  settlement application
  - reverse.go: settlement reversal
  - store.go:   persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KINDS - What a document or source is
// =============================================================================

// DocumentKind identifies a settleable document type.
type DocumentKind string

const (
	DocInvoice DocumentKind = "invoice"
	DocBill    DocumentKind = "bill"
)

// SourceKind identifies a settlement source type.
type SourceKind string

const (
	SrcPaymentReceived SourceKind = "payment_received"
	SrcPaymentMade     SourceKind = "payment_made"
	SrcCreditNote      SourceKind = "credit_note"
	SrcVendorCredit    SourceKind = "vendor_credit"
)

// =============================================================================
// STATUSES
// =============================================================================

// Status is the lifecycle state of a settleable document.
//
// DRAFT and VOID are terminal overrides set outside the balance
// calculator; the calculator only ever moves between OPEN,
// PARTIALLY_PAID, and PAID.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusOpen          Status = "open"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusVoid          Status = "void"
)

// SourceStatus is the lifecycle state of a settlement source.
// A source is CLOSED when its remaining amount hits zero through
// application; reversal reopens it. VOID is terminal.
type SourceStatus string

const (
	SourceOpen   SourceStatus = "open"
	SourceClosed SourceStatus = "closed"
	SourceVoid   SourceStatus = "void"
)

// OrderPaymentStatus is the derived payment state of a sales order.
// It is a cache computed from the order's linked invoices, never a
// primary invariant.
type OrderPaymentStatus string

const (
	OrderUnpaid        OrderPaymentStatus = "Unpaid"
	OrderPartiallyPaid OrderPaymentStatus = "Partially Paid"
	OrderPaid          OrderPaymentStatus = "Paid"
)

// =============================================================================
// SETTLEMENT REFS - Mirrored application records
// =============================================================================

// SettlementRef records one application event on the TARGET document.
// Immutable once written; removal happens only through reversal.
type SettlementRef struct {
	SourceID      string          `json:"source_id"`
	SourceKind    SourceKind      `json:"source_kind"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
	AppliedDate   time.Time       `json:"applied_date"`
}

// AppliedRef is the mirror image of a SettlementRef, stored on the
// SOURCE, pointing back at the target document.
type AppliedRef struct {
	DocumentID    string          `json:"document_id"`
	DocumentKind  DocumentKind    `json:"document_kind"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
	AppliedDate   time.Time       `json:"applied_date"`
}

// =============================================================================
// DOCUMENT - Invoice or bill
// =============================================================================

// Document is a settleable document: something that owes money and can
// have settlements applied against it.
//
// INVARIANTS (maintained by Engine, checked in tests):
//   - AmountPaid  == sum(Settlements[].AmountApplied)
//   - BalanceDue  == max(0, Total - AmountPaid)
//   - Status derives from BalanceDue/Total unless DRAFT or VOID
type Document struct {
	ID        string       `json:"id"`
	Kind      DocumentKind `json:"kind"`
	Number    string       `json:"number"`
	ContactID string       `json:"contact_id"`

	// OrderID is the owning sales order, invoices only. Empty for
	// bills and for invoices created without an order.
	OrderID string `json:"order_id,omitempty"`

	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`

	Total       decimal.Decimal `json:"total"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Status      Status          `json:"status"`
	Settlements []SettlementRef `json:"settlements,omitempty"`

	// Audit is advisory history, never used for invariant checks.
	Audit []AuditEntry `json:"audit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettledBy returns the refs on d that point at sourceID.
func (d *Document) SettledBy(sourceID string) []SettlementRef {
	var refs []SettlementRef
	for _, ref := range d.Settlements {
		if ref.SourceID == sourceID {
			refs = append(refs, ref)
		}
	}
	return refs
}

// =============================================================================
// SOURCE - Payment, credit note, or vendor credit
// =============================================================================

// Source is a settlement source: a pool of money that can be applied
// against one or more documents.
//
// INVARIANT: AmountRemaining == TotalAmount - sum(AppliedTo[].AmountApplied),
// always >= 0. A source with AmountRemaining == 0 is fully consumed.
type Source struct {
	ID        string     `json:"id"`
	Kind      SourceKind `json:"kind"`
	Number    string     `json:"number"`
	ContactID string     `json:"contact_id"`

	Date      time.Time `json:"date"`
	Mode      string    `json:"mode,omitempty"`      // cash, bank transfer, cheque, ...
	Reference string    `json:"reference,omitempty"` // external reference number

	TotalAmount     decimal.Decimal `json:"total_amount"`
	AmountRemaining decimal.Decimal `json:"amount_remaining"`
	Status          SourceStatus    `json:"status"`
	AppliedTo       []AppliedRef    `json:"applied_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliedAmount returns the sum of all mirrored refs on s. This is the
// authoritative figure: AmountRemaining is re-derived from it after
// every mutation rather than trusted as an independent scalar.
func (s *Source) AppliedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, ref := range s.AppliedTo {
		total = total.Add(ref.AmountApplied)
	}
	return total
}

// =============================================================================
// SALES ORDER - Parent of invoices, derived payment status only
// =============================================================================

// InvoiceSnapshot is the sales order's cached view of a linked invoice,
// refreshed by the synchronizer so list screens need not re-query.
type InvoiceSnapshot struct {
	InvoiceID  string          `json:"invoice_id"`
	Number     string          `json:"number"`
	Status     Status          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// SalesOrder owns zero or more invoices. It carries no balance of its
// own; PaymentStatus is derived from the linked invoices.
type SalesOrder struct {
	ID            string             `json:"id"`
	Number        string             `json:"number"`
	ContactID     string             `json:"contact_id"`
	OrderDate     time.Time          `json:"order_date"`
	Total         decimal.Decimal    `json:"total"`
	PaymentStatus OrderPaymentStatus `json:"payment_status"`
	Invoices      []InvoiceSnapshot  `json:"invoices,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// =============================================================================
// AUDIT - Advisory trail on the target document
// =============================================================================

// AuditEntry is a human-readable note of who did what when. Advisory
// only: reversal and invariant checks never read it.
type AuditEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor"`
	Description string    `json:"description"`
}

// =============================================================================
// APPLICATION INPUTS
// =============================================================================

// TargetApplication is one (document, amount) pair in a source-centric
// batch: "apply this much of the source to that document".
type TargetApplication struct {
	DocumentID string
	Amount     decimal.Decimal
}

// CreditApplication is one (source, amount) pair in a target-centric
// batch: "apply this much of that source to this document".
type CreditApplication struct {
	SourceID string
	Kind     SourceKind
	Amount   decimal.Decimal
}

// MustMoney parses a decimal amount, panicking on malformed input.
// Intended for constants and tests only.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
