/*
Package payables is the accounts-payable surface: bills, payments
made, and vendor credits.

The mirror image of receivables, minus sales orders (bills have no
parent document). Same discipline: every balance mutation goes through
ledger.Engine, edits are full-reversal-then-reapply.
*/
package payables

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openledger/billing-engine/ledger"
)

// Service exposes the AP operations.
type Service struct {
	engine *ledger.Engine
	log    *zap.Logger
}

func NewService(engine *ledger.Engine, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{engine: engine, log: log}
}

// apSourceKinds are the only kinds that may settle a bill.
var apSourceKinds = map[ledger.SourceKind]bool{
	ledger.SrcPaymentMade:  true,
	ledger.SrcVendorCredit: true,
}

// =============================================================================
// BILLS
// =============================================================================

// NewBill is the input for bill creation.
type NewBill struct {
	Number    string
	ContactID string
	IssueDate time.Time
	DueDate   time.Time
	Total     decimal.Decimal
	Draft     bool
}

func (s *Service) CreateBill(ctx context.Context, in NewBill) (*ledger.Document, error) {
	status := ledger.StatusOpen
	if in.Draft {
		status = ledger.StatusDraft
	}
	return s.engine.CreateDocument(ctx, ledger.Document{
		Kind:      ledger.DocBill,
		Number:    in.Number,
		ContactID: in.ContactID,
		IssueDate: in.IssueDate,
		DueDate:   in.DueDate,
		Total:     in.Total,
		Status:    status,
	})
}

func (s *Service) GetBill(ctx context.Context, id string) (*ledger.Document, error) {
	return s.engine.GetDocument(ctx, ledger.DocBill, id)
}

func (s *Service) ListBills(ctx context.Context) ([]ledger.Document, error) {
	return s.engine.ListDocuments(ctx, ledger.DocBill)
}

// DeleteBill fully reverses every settlement on the bill, then
// removes it.
func (s *Service) DeleteBill(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllSettlements(ctx, ledger.DocBill, id, actor); err != nil {
		return err
	}
	return s.engine.DeleteDocument(ctx, ledger.DocBill, id)
}

// VoidBill reverses all settlements and marks the bill VOID.
func (s *Service) VoidBill(ctx context.Context, id, actor string) (*ledger.Document, error) {
	if err := s.engine.ReverseAllSettlements(ctx, ledger.DocBill, id, actor); err != nil {
		return nil, err
	}
	return s.engine.VoidDocument(ctx, ledger.DocBill, id, actor)
}

// =============================================================================
// PAYMENTS MADE
// =============================================================================

// RecordPaymentInput describes a payment made against one bill.
type RecordPaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Mode      string
	Reference string
	Actor     string
}

// RecordPaymentResult pairs the settled bill with the payment source
// created for it.
type RecordPaymentResult struct {
	Bill    *ledger.Document
	Payment *ledger.Source
}

// RecordPayment creates a payment-made source and immediately applies
// it; an overpaid excess stays on the payment as available credit.
func (s *Service) RecordPayment(ctx context.Context, billID string, in RecordPaymentInput) (*RecordPaymentResult, error) {
	bill, payment, err := s.engine.RecordPayment(ctx, ledger.DocBill, billID, ledger.Source{
		Kind:        ledger.SrcPaymentMade,
		Date:        in.Date,
		Mode:        in.Mode,
		Reference:   in.Reference,
		TotalAmount: in.Amount.Round(2),
	}, in.Actor)
	if err != nil {
		return nil, err
	}
	return &RecordPaymentResult{Bill: bill, Payment: payment}, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*ledger.Source, error) {
	return s.engine.GetSource(ctx, ledger.SrcPaymentMade, id)
}

func (s *Service) ListPayments(ctx context.Context) ([]ledger.Source, error) {
	return s.engine.ListSources(ctx, ledger.SrcPaymentMade)
}

// ApplyPaymentBalance applies a payment's leftover credit against
// further bills (all-or-nothing).
func (s *Service) ApplyPaymentBalance(ctx context.Context, paymentID string, targets []ledger.TargetApplication, actor string) (*ledger.Source, []ledger.Document, error) {
	return s.engine.ApplySettlement(ctx, ledger.SrcPaymentMade, paymentID, ledger.DocBill, targets, actor)
}

// EditPaymentInput carries the new state of an edited payment.
type EditPaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Mode      string
	Reference string
	Targets   []ledger.TargetApplication
	Actor     string
}

// EditPayment fully reverses the payment's old state, then applies
// the new one.
func (s *Service) EditPayment(ctx context.Context, paymentID string, in EditPaymentInput) (*ledger.Source, error) {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentMade, paymentID, in.Actor); err != nil {
		return nil, err
	}
	payment, err := s.engine.UpdateSource(ctx, ledger.SrcPaymentMade, paymentID, func(src *ledger.Source) {
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
	payment, _, err = s.engine.ApplySettlement(ctx, ledger.SrcPaymentMade, paymentID, ledger.DocBill, in.Targets, in.Actor)
	return payment, err
}

// DeletePayment reverses every application the payment made, then
// removes it. Safe to retry.
func (s *Service) DeletePayment(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentMade, id, actor); err != nil {
		return err
	}
	return s.engine.DeleteSource(ctx, ledger.SrcPaymentMade, id)
}

// VoidPayment reverses every application, then terminally voids the
// payment record.
func (s *Service) VoidPayment(ctx context.Context, id, actor string) (*ledger.Source, error) {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcPaymentMade, id, actor); err != nil {
		return nil, err
	}
	return s.engine.VoidSource(ctx, ledger.SrcPaymentMade, id)
}

// =============================================================================
// VENDOR CREDITS
// =============================================================================

// NewVendorCredit is the input for vendor credit creation.
type NewVendorCredit struct {
	Number    string
	ContactID string
	Date      time.Time
	Amount    decimal.Decimal
}

func (s *Service) CreateVendorCredit(ctx context.Context, in NewVendorCredit) (*ledger.Source, error) {
	return s.engine.CreateSource(ctx, ledger.Source{
		Kind:        ledger.SrcVendorCredit,
		Number:      in.Number,
		ContactID:   in.ContactID,
		Date:        in.Date,
		TotalAmount: in.Amount,
	})
}

func (s *Service) GetVendorCredit(ctx context.Context, id string) (*ledger.Source, error) {
	return s.engine.GetSource(ctx, ledger.SrcVendorCredit, id)
}

func (s *Service) ListVendorCredits(ctx context.Context) ([]ledger.Source, error) {
	return s.engine.ListSources(ctx, ledger.SrcVendorCredit)
}

// ApplyVendorCredit applies a vendor credit against bills.
func (s *Service) ApplyVendorCredit(ctx context.Context, creditID string, targets []ledger.TargetApplication, actor string) (*ledger.Source, []ledger.Document, error) {
	return s.engine.ApplySettlement(ctx, ledger.SrcVendorCredit, creditID, ledger.DocBill, targets, actor)
}

// DeleteVendorCredit reverses every application, then removes the
// credit.
func (s *Service) DeleteVendorCredit(ctx context.Context, id, actor string) error {
	if err := s.engine.ReverseAllApplications(ctx, ledger.SrcVendorCredit, id, actor); err != nil {
		return err
	}
	return s.engine.DeleteSource(ctx, ledger.SrcVendorCredit, id)
}

// =============================================================================
// CREDIT APPLICATION
// =============================================================================

// ApplyCredits applies a batch of existing credits (payment leftovers
// and vendor credits) against one bill, all-or-nothing.
func (s *Service) ApplyCredits(ctx context.Context, billID string, credits []ledger.CreditApplication, actor string) (*ledger.ApplyCreditsResult, error) {
	for _, c := range credits {
		if !apSourceKinds[c.Kind] {
			return nil, fmt.Errorf("%w: source kind %s cannot settle a bill",
				ledger.ErrInvalidTargetState, c.Kind)
		}
	}
	return s.engine.ApplyCredits(ctx, ledger.DocBill, billID, credits, actor)
}
