/*
Package receivables is the accounts-receivable surface of the
settlement core: invoices, payments received, credit notes, and the
sales orders that own invoices.

PURPOSE:
  Thin domain wrapper over ledger.Engine. It owns the AR-specific
  rules - which source kinds may settle an invoice, the overpayment
  split on recorded payments, sales-order attachment - and delegates
  every balance mutation to the engine. No code here touches
  amountPaid/balanceDue/settlements directly.

EDIT SEMANTICS:
  Editing a payment is always full-reversal-then-reapply. The old
  applications are unwound completely before the new amount and target
  set are applied, so the invariants hold even when the edit moves the
  payment to entirely different invoices.

SEE ALSO:
  - payables: the mirror-image accounts-payable wrapper
  - ledger:   the engine both wrappers delegate to
*/
package receivables

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openledger/billing-engine/ledger"
)

// Service exposes the AR operations.
type Service struct {
	engine *ledger.Engine
	syncer *ledger.Synchronizer
	log    *zap.Logger
}

func NewService(engine *ledger.Engine, syncer *ledger.Synchronizer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{engine: engine, syncer: syncer, log: log}
}

// arSourceKinds are the only kinds that may settle an invoice.
var arSourceKinds = map[ledger.SourceKind]bool{
	ledger.SrcPaymentReceived: true,
	ledger.SrcCreditNote:      true,
}

// =============================================================================
// INVOICES
// =============================================================================

// NewInvoice is the input for invoice creation.
type NewInvoice struct {
	Number    string
	ContactID string
	OrderID   string // owning sales order, optional
	IssueDate time.Time
	DueDate   time.Time
	Total     decimal.Decimal
	Draft     bool
}

// CreateInvoice persists a new invoice and, when it belongs to a sales
// order, links it and refreshes the order's snapshots.
func (s *Service) CreateInvoice(ctx context.Context, in NewInvoice) (*ledger.Document, error) {
	status := ledger.StatusOpen
	if in.Draft {
		status = ledger.StatusDraft
	}
	doc, err := s.engine.CreateDocument(ctx, ledger.Document{
		Kind:      ledger.DocInvoice,
		Number:    in.Number,
		ContactID: in.ContactID,
		OrderID:   in.OrderID,
		IssueDate: in.IssueDate,
		DueDate:   in.DueDate,
		Total:     in.Total,
		Status:    status,
	})
	if err != nil {
		return nil, err
	}

	if doc.OrderID != "" {
		s.syncer.Attach(doc.ID, doc.OrderID)
		if err := s.syncer.SyncSalesOrder(ctx, doc.ID); err != nil {
			s.log.Error("sales order sync failed after invoice create",
				zap.String("invoice_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*ledger.Document, error) {
	return s.engine.GetDocument(ctx, ledger.DocInvoice, id)
}

func (s *Service) ListInvoices(ctx context.Context) ([]ledger.Document, error) {
	return s.engine.ListDocuments(ctx, ledger.DocInvoice)
}

// DeleteInvoice fully reverses every settlement on the invoice, then
// removes it and detaches it from any owning sales order.
func (s *Service) DeleteInvoice(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllSettlements(ctx, ledger.DocInvoice, id, actor); err != nil {
		return err
	}
	if err := s.engine.DeleteDocument(ctx, ledger.DocInvoice, id); err != nil {
		return err
	}
	if err := s.syncer.DetachInvoice(ctx, id); err != nil {
		s.log.Error("sales order detach failed after invoice delete",
			zap.String("invoice_id", id), zap.Error(err))
	}
	return nil
}

// VoidInvoice reverses all settlements and marks the invoice VOID.
func (s *Service) VoidInvoice(ctx context.Context, id, actor string) (*ledger.Document, error) {
	if err := s.engine.ReverseAllSettlements(ctx, ledger.DocInvoice, id, actor); err != nil {
		return nil, err
	}
	doc, err := s.engine.VoidDocument(ctx, ledger.DocInvoice, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.syncer.SyncSalesOrder(ctx, id); err != nil {
		s.log.Error("sales order sync failed after invoice void",
			zap.String("invoice_id", id), zap.Error(err))
	}
	return doc, nil
}

// =============================================================================
// PAYMENTS RECEIVED
// =============================================================================

// RecordPaymentInput describes a customer payment against one invoice.
type RecordPaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Mode      string
	Reference string
	Actor     string
}

// RecordPaymentResult pairs the settled invoice with the payment
// source created for it. The source keeps any overpaid excess as
// remaining credit.
type RecordPaymentResult struct {
	Invoice *ledger.Document
	Payment *ledger.Source
}

// RecordPayment creates a payment-received source sized to the raw
// amount and immediately applies it: applied = min(raw, balanceDue),
// the rest stays on the payment as available credit.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, in RecordPaymentInput) (*RecordPaymentResult, error) {
	invoice, payment, err := s.engine.RecordPayment(ctx, ledger.DocInvoice, invoiceID, ledger.Source{
		Kind:        ledger.SrcPaymentReceived,
		Date:        in.Date,
		Mode:        in.Mode,
		Reference:   in.Reference,
		TotalAmount: in.Amount.Round(2),
	}, in.Actor)
	if err != nil {
		return nil, err
	}
	return &RecordPaymentResult{Invoice: invoice, Payment: payment}, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*ledger.Source, error) {
	return s.engine.GetSource(ctx, ledger.SrcPaymentReceived, id)
}

func (s *Service) ListPayments(ctx context.Context) ([]ledger.Source, error) {
	return s.engine.ListSources(ctx, ledger.SrcPaymentReceived)
}

// ApplyPaymentBalance applies a payment's leftover credit against
// further invoices (all-or-nothing).
func (s *Service) ApplyPaymentBalance(ctx context.Context, paymentID string, targets []ledger.TargetApplication, actor string) (*ledger.Source, []ledger.Document, error) {
	return s.engine.ApplySettlement(ctx, ledger.SrcPaymentReceived, paymentID, ledger.DocInvoice, targets, actor)
}

// EditPaymentInput carries the new state of an edited payment.
type EditPaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Mode      string
	Reference string
	// Targets is the NEW application set; it may name entirely
	// different invoices than before.
	Targets []ledger.TargetApplication
	Actor   string
}

// EditPayment performs a full reversal of the payment's old state and
// then applies the new one. Never an in-place diff.
func (s *Service) EditPayment(ctx context.Context, paymentID string, in EditPaymentInput) (*ledger.Source, error) {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentReceived, paymentID, in.Actor); err != nil {
		return nil, err
	}
	payment, err := s.engine.UpdateSource(ctx, ledger.SrcPaymentReceived, paymentID, func(src *ledger.Source) {
		src.TotalAmount = in.Amount
		src.Date = in.Date
		src.Mode = in.Mode
		src.Reference = in.Reference
	})
	if err != nil {
		return nil, err
	}
	if len(in.Targets) == 0 {
		return payment, nil
	}
	payment, _, err = s.engine.ApplySettlement(ctx, ledger.SrcPaymentReceived, paymentID, ledger.DocInvoice, in.Targets, in.Actor)
	return payment, err
}

// DeletePayment reverses every application the payment made, then
// removes it. Safe to retry.
func (s *Service) DeletePayment(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentReceived, id, actor); err != nil {
		return err
	}
	return s.engine.DeleteSource(ctx, ledger.SrcPaymentReceived, id)
}

// VoidPayment reverses every application, then terminally voids the
// payment record (kept for the books, unusable as credit).
func (s *Service) VoidPayment(ctx context.Context, id, actor string) (*ledger.Source, error) {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentReceived, id, actor); err != nil {
		return nil, err
	}
	return s.engine.VoidSource(ctx, ledger.SrcPaymentReceived, id)
}

// =============================================================================
// CREDIT NOTES
// =============================================================================

// NewCreditNote is the input for credit note creation.
type NewCreditNote struct {
	Number    string
	ContactID string
	Date      time.Time
	Amount    decimal.Decimal
}

// CreateCreditNote persists a credit note with its full amount
// available for application.
func (s *Service) CreateCreditNote(ctx context.Context, in NewCreditNote) (*ledger.Source, error) {
	return s.engine.CreateSource(ctx, ledger.Source{
		Kind:        ledger.SrcCreditNote,
		Number:      in.Number,
		ContactID:   in.ContactID,
		Date:        in.Date,
		TotalAmount: in.Amount,
	})
}

func (s *Service) GetCreditNote(ctx context.Context, id string) (*ledger.Source, error) {
	return s.engine.GetSource(ctx, ledger.SrcCreditNote, id)
}

func (s *Service) ListCreditNotes(ctx context.Context) ([]ledger.Source, error) {
	return s.engine.ListSources(ctx, ledger.SrcCreditNote)
}

// ApplyCreditNote applies a credit note against invoices.
func (s *Service) ApplyCreditNote(ctx context.Context, creditNoteID string, targets []ledger.TargetApplication, actor string) (*ledger.Source, []ledger.Document, error) {
	return s.engine.ApplySettlement(ctx, ledger.SrcCreditNote, creditNoteID, ledger.DocInvoice, targets, actor)
}

// DeleteCreditNote reverses every application, then removes the note.
func (s *Service) DeleteCreditNote(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcCreditNote, id, actor); err != nil {
		return err
	}
	return s.engine.DeleteSource(ctx, ledger.SrcCreditNote, id)
}

// =============================================================================
// CREDIT APPLICATION - Batch apply sources against one invoice
// =============================================================================

// ApplyCredits applies a batch of existing credits (payment leftovers
// and credit notes) against one invoice, all-or-nothing.
func (s *Service) ApplyCredits(ctx context.Context, invoiceID string, credits []ledger.CreditApplication, actor string) (*ledger.ApplyCreditsResult, error) {
	for _, c := range credits {
		if !arSourceKinds[c.Kind] {
			return nil, fmt.Errorf("%w: source kind %s cannot settle an invoice",
				ledger.ErrInvalidTargetState, c.Kind)
		}
	}
	return s.engine.ApplyCredits(ctx, ledger.DocInvoice, invoiceID, credits, actor)
}

// =============================================================================
// SALES ORDERS
// =============================================================================

// NewSalesOrder is the input for sales order creation.
type NewSalesOrder struct {
	Number    string
	ContactID string
	OrderDate time.Time
	Total     decimal.Decimal
}

func (s *Service) CreateSalesOrder(ctx context.Context, in NewSalesOrder) (*ledger.SalesOrder, error) {
	return s.engine.CreateOrder(ctx, ledger.SalesOrder{
		Number:    in.Number,
		ContactID: in.ContactID,
		OrderDate: in.OrderDate,
		Total:     in.Total,
	})
}

func (s *Service) GetSalesOrder(ctx context.Context, id string) (*ledger.SalesOrder, error) {
	return s.engine.GetOrder(ctx, id)
}

func (s *Service) ListSalesOrders(ctx context.Context) ([]ledger.SalesOrder, error) {
	return s.engine.ListOrders(ctx)
}
