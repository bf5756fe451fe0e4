/*
engine.go - Settlement application

PURPOSE:
  Applies settlement sources (payments, credit notes, vendor credits)
  against settleable documents (invoices, bills). Every application:

    1. Appends a SettlementRef to the target and recomputes
       amountPaid/balanceDue/status (balance.go)
    2. Appends the mirrored AppliedRef to the source and re-derives
       amountRemaining from the mirrors
    3. Appends an advisory audit entry to the target
    4. Triggers the sales-order synchronizer for invoice targets

PRECONDITIONS (checked against freshly loaded data, under the
collection locks; ANY violation rejects the ENTIRE batch):
  1. sum(amounts) <= source.amountRemaining   -> InsufficientCreditError
  2. each amount  <= target.balanceDue        -> OverApplicationError
  3. target not VOID/DRAFT/already PAID       -> InvalidTargetStateError

COMMIT ORDER:
  All validation and in-memory mutation completes before the first
  save. Target collections are saved before source collections, so a
  crash between the two leaves a state reversal can repair: remaining
  amounts are re-derived from mirrored refs, never trusted as scalars.
  Backends implementing TxStore commit both saves as one transaction.

OVERPAYMENT (RecordPayment):
  The one asymmetric rule. A raw payment larger than the balance due
  settles only the owed portion; the excess stays on the newly created
  source as amountRemaining, immediately available as future credit:
    applied = min(raw, balanceDueBeforePayment)
    unused  = raw - applied

SEE ALSO:
  - reverse.go: the inverse of everything here
  - sync.go:    sales-order status propagation
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the only code path allowed to mutate amountPaid,
// balanceDue, settlements, and the mirrored applied refs.
type Engine struct {
	store  Store
	locks  *PairLocker
	syncer *Synchronizer
	log    *zap.Logger

	now func() time.Time
}

// NewEngine wires the settlement engine. syncer may be nil when no
// sales orders exist (pure payables deployments).
func NewEngine(store Store, locks *PairLocker, syncer *Synchronizer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  store,
		locks:  locks,
		syncer: syncer,
		log:    log,
		now:    time.Now,
	}
}

// =============================================================================
// SOURCE-CENTRIC APPLY - One source, many targets
// =============================================================================

// ApplySettlement applies one source against a batch of targets.
// All-or-nothing: a violation on any target rejects the whole batch
// before anything is written.
func (e *Engine) ApplySettlement(ctx context.Context, kind SourceKind, sourceID string, docKind DocumentKind, targets []TargetApplication, actor string) (*Source, []Document, error) {
	srcCol := CollectionForSource(kind)
	docCol := CollectionForDocument(docKind)

	unlock := e.locks.Lock(srcCol, docCol)
	defer unlock()

	srcs, err := e.store.LoadSources(ctx, srcCol)
	if err != nil {
		return nil, nil, err
	}
	si, err := FindSource(srcCol, srcs, sourceID)
	if err != nil {
		return nil, nil, err
	}
	src := &srcs[si]
	if src.Status == SourceVoid {
		return nil, nil, &InvalidTargetStateError{DocumentID: sourceID, Status: StatusVoid}
	}

	// Precondition 1: the source covers the whole batch. Available
	// credit is re-derived from the mirrors, not the stored scalar.
	requested := decimal.Zero
	for _, t := range targets {
		requested = requested.Add(t.Amount)
	}
	available := src.TotalAmount.Sub(src.AppliedAmount())
	if requested.GreaterThan(available) {
		return nil, nil, &InsufficientCreditError{SourceID: sourceID, Available: available, Requested: requested}
	}

	docs, err := e.store.LoadDocuments(ctx, docCol)
	if err != nil {
		return nil, nil, err
	}

	// Preconditions 2 and 3 are checked per target against the
	// in-memory state as the batch progresses, so a batch naming the
	// same document twice cannot sneak past its balance. Nothing is
	// saved until every target has passed.
	applied := make([]Document, 0, len(targets))
	when := e.now()
	for _, t := range targets {
		di, err := FindDocument(docCol, docs, t.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		doc := &docs[di]
		if err := e.applyOne(doc, src, t.Amount, when, actor); err != nil {
			return nil, nil, err
		}
		applied = append(applied, *doc)
	}
	e.settleSource(src, when)

	err = withTx(ctx, e.store, func(s Store) error {
		if err := s.SaveDocuments(ctx, docCol, docs); err != nil {
			return err
		}
		return s.SaveSources(ctx, srcCol, srcs)
	})
	if err != nil {
		return nil, nil, err
	}

	e.syncTargets(ctx, docKind, targets)
	srcCopy := *src
	return &srcCopy, applied, nil
}

// applyOne validates and records a single application in memory.
func (e *Engine) applyOne(doc *Document, src *Source, amount decimal.Decimal, when time.Time, actor string) error {
	switch doc.Status {
	case StatusVoid, StatusDraft, StatusPaid:
		return &InvalidTargetStateError{DocumentID: doc.ID, Status: doc.Status}
	}
	if !amount.IsPositive() || amount.GreaterThan(doc.BalanceDue) {
		return &OverApplicationError{DocumentID: doc.ID, BalanceDue: doc.BalanceDue, Requested: amount}
	}

	doc.Settlements = append(doc.Settlements, SettlementRef{
		SourceID:      src.ID,
		SourceKind:    src.Kind,
		AmountApplied: amount,
		AppliedDate:   when,
	})
	doc.AmountPaid = SettledAmount(doc.Settlements)
	doc.BalanceDue, doc.Status = ComputeBalance(doc.Total, doc.AmountPaid, doc.Status)
	doc.Audit = append(doc.Audit, AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   when,
		Actor:       actor,
		Description: "applied " + amount.StringFixed(2) + " from " + string(src.Kind) + " " + src.ID,
	})
	doc.UpdatedAt = when

	src.AppliedTo = append(src.AppliedTo, AppliedRef{
		DocumentID:    doc.ID,
		DocumentKind:  doc.Kind,
		AmountApplied: amount,
		AppliedDate:   when,
	})
	return nil
}

// settleSource re-derives the source scalar state after its mirrors
// changed. A source exhausted by application closes; reversal reopens
// it (reverse.go).
func (e *Engine) settleSource(src *Source, when time.Time) {
	src.AmountRemaining = src.TotalAmount.Sub(src.AppliedAmount())
	if src.AmountRemaining.IsZero() && src.Status == SourceOpen {
		src.Status = SourceClosed
	}
	src.UpdatedAt = when
}

// =============================================================================
// TARGET-CENTRIC APPLY - One document, many sources
// =============================================================================

// ApplyCreditsResult reports a committed credit batch.
type ApplyCreditsResult struct {
	Document     Document
	TotalApplied decimal.Decimal
	Sources      []Source
}

// ApplyCredits applies a batch of existing sources (payment leftovers,
// credit notes, vendor credits) against one document. All-or-nothing
// under the same preconditions as ApplySettlement.
func (e *Engine) ApplyCredits(ctx context.Context, docKind DocumentKind, documentID string, credits []CreditApplication, actor string) (*ApplyCreditsResult, error) {
	docCol := CollectionForDocument(docKind)
	cols := []Collection{docCol}
	for _, c := range credits {
		cols = append(cols, CollectionForSource(c.Kind))
	}
	unlock := e.locks.Lock(cols...)
	defer unlock()

	docs, err := e.store.LoadDocuments(ctx, docCol)
	if err != nil {
		return nil, err
	}
	di, err := FindDocument(docCol, docs, documentID)
	if err != nil {
		return nil, err
	}
	doc := &docs[di]

	// Load every touched source collection once.
	srcsByCol := make(map[Collection][]Source)
	for _, c := range credits {
		col := CollectionForSource(c.Kind)
		if _, ok := srcsByCol[col]; ok {
			continue
		}
		srcs, err := e.store.LoadSources(ctx, col)
		if err != nil {
			return nil, err
		}
		srcsByCol[col] = srcs
	}

	when := e.now()
	total := decimal.Zero
	type sourceKey struct {
		col Collection
		id  string
	}
	var touched []sourceKey
	seen := make(map[sourceKey]bool, len(credits))
	for _, c := range credits {
		col := CollectionForSource(c.Kind)
		srcs := srcsByCol[col]
		si, err := FindSource(col, srcs, c.SourceID)
		if err != nil {
			return nil, err
		}
		src := &srcs[si]
		if src.Status == SourceVoid {
			return nil, &InvalidTargetStateError{DocumentID: src.ID, Status: StatusVoid}
		}
		available := src.TotalAmount.Sub(src.AppliedAmount())
		if c.Amount.GreaterThan(available) {
			return nil, &InsufficientCreditError{SourceID: src.ID, Available: available, Requested: c.Amount}
		}
		if err := e.applyOne(doc, src, c.Amount, when, actor); err != nil {
			return nil, err
		}
		e.settleSource(src, when)
		total = total.Add(c.Amount)
		k := sourceKey{col: col, id: c.SourceID}
		if !seen[k] {
			seen[k] = true
			touched = append(touched, k)
		}
	}

	err = withTx(ctx, e.store, func(s Store) error {
		if err := s.SaveDocuments(ctx, docCol, docs); err != nil {
			return err
		}
		for col, srcs := range srcsByCol {
			if err := s.SaveSources(ctx, col, srcs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A batch may name the same source more than once; report each
	// touched source a single time, with its final state.
	updated := make([]Source, 0, len(touched))
	for _, k := range touched {
		si, _ := FindSource(k.col, srcsByCol[k.col], k.id)
		updated = append(updated, srcsByCol[k.col][si])
	}

	e.syncTargets(ctx, docKind, []TargetApplication{{DocumentID: documentID}})
	return &ApplyCreditsResult{Document: *doc, TotalApplied: total, Sources: updated}, nil
}

// =============================================================================
// RECORD PAYMENT - Create a source and apply it in one critical section
// =============================================================================

// RecordPayment creates src (sized to the raw payment amount) and
// immediately applies it against the document. Overpayment is split:
// only the owed portion settles, the excess stays on the source as
// remaining credit. A document that is already PAID accepts the
// payment as pure credit (applied = 0).
func (e *Engine) RecordPayment(ctx context.Context, docKind DocumentKind, documentID string, src Source, actor string) (*Document, *Source, error) {
	srcCol := CollectionForSource(src.Kind)
	docCol := CollectionForDocument(docKind)

	unlock := e.locks.Lock(srcCol, docCol)
	defer unlock()

	docs, err := e.store.LoadDocuments(ctx, docCol)
	if err != nil {
		return nil, nil, err
	}
	di, err := FindDocument(docCol, docs, documentID)
	if err != nil {
		return nil, nil, err
	}
	doc := &docs[di]
	if doc.Status == StatusVoid || doc.Status == StatusDraft {
		return nil, nil, &InvalidTargetStateError{DocumentID: doc.ID, Status: doc.Status}
	}
	if !src.TotalAmount.IsPositive() {
		return nil, nil, &OverApplicationError{DocumentID: doc.ID, BalanceDue: doc.BalanceDue, Requested: src.TotalAmount}
	}

	when := e.now()
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	src.AmountRemaining = src.TotalAmount
	src.Status = SourceOpen
	src.CreatedAt = when
	src.UpdatedAt = when

	// The asymmetric rule: applied = min(raw, balanceDue).
	applied := decimal.Min(src.TotalAmount, doc.BalanceDue)
	if applied.IsPositive() {
		if err := e.applyOne(doc, &src, applied, when, actor); err != nil {
			return nil, nil, err
		}
	}
	e.settleSource(&src, when)

	srcs, err := e.store.LoadSources(ctx, srcCol)
	if err != nil {
		return nil, nil, err
	}
	srcs = append(srcs, src)

	err = withTx(ctx, e.store, func(s Store) error {
		if err := s.SaveDocuments(ctx, docCol, docs); err != nil {
			return err
		}
		return s.SaveSources(ctx, srcCol, srcs)
	})
	if err != nil {
		return nil, nil, err
	}

	e.syncTargets(ctx, docKind, []TargetApplication{{DocumentID: documentID}})
	docCopy := *doc
	return &docCopy, &src, nil
}

// =============================================================================
// SYNC DISPATCH
// =============================================================================

// syncTargets propagates invoice state to owning sales orders after
// the settlement commit. The synchronizer locks sales_orders alone and
// nothing acquires further collections while holding it, so no lock
// cycle can form. Failure is logged and swallowed because order
// payment status is a derived cache.
func (e *Engine) syncTargets(ctx context.Context, docKind DocumentKind, targets []TargetApplication) {
	if e.syncer == nil || docKind != DocInvoice {
		return
	}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.DocumentID] {
			continue
		}
		seen[t.DocumentID] = true
		if err := e.syncer.SyncSalesOrder(ctx, t.DocumentID); err != nil {
			e.log.Error("sales order sync failed",
				zap.String("invoice_id", t.DocumentID),
				zap.Error(err))
		}
	}
}
