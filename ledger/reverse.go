/*
reverse.go - Settlement reversal

PURPOSE:
  Undoes previously recorded settlements when a payment or application
  is edited, voided, or deleted. For each matching SettlementRef on the
  target:
    (a) remove it from the target's settlement list
    (b) subtract its amount from amountPaid, recompute balance/status
    (c) remove the mirrored AppliedRef from the source and re-derive
        amountRemaining from the surviving mirrors
    (d) reopen a source that was CLOSED purely by exhaustion

RULES:
  - IDEMPOTENT: reversing a settlement that is not present is a no-op,
    not an error, so "delete payment" can be retried safely.
  - EDIT = FULL REVERSAL FIRST: when a payment or credit changes, the
    old state is fully reversed before the new state is applied. Never
    diff in place; the edit may change targets entirely.
  - MISMATCH: a target-side ref whose source-side mirror is missing
    means corrupted cross-links. Logged loudly, operation aborted,
    data left untouched.
*/
package ledger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// TARGET-SIDE REVERSAL
// =============================================================================

// ReverseSettlement removes every settlement linking sourceID to the
// given document and restores both sides. No-op when no such
// settlement exists.
func (e *Engine) ReverseSettlement(ctx context.Context, docKind DocumentKind, documentID, sourceID string, actor string) error {
	return e.reverse(ctx, docKind, documentID, func(d *Document) []SettlementRef {
		return d.SettledBy(sourceID)
	}, actor)
}

// ReverseAllSettlements removes every settlement on the document,
// restoring every source it was settled by. Used before deleting or
// voiding a document.
func (e *Engine) ReverseAllSettlements(ctx context.Context, docKind DocumentKind, documentID string, actor string) error {
	return e.reverse(ctx, docKind, documentID, func(d *Document) []SettlementRef {
		return d.Settlements
	}, actor)
}

// reverse is the shared implementation: pick picks which refs on the
// freshly loaded document are being reversed.
//
// The lock set depends on which source collections the picked refs
// name, which is only known after reading the document. An unlocked
// peek seeds the set; if the authoritative re-read under the locks
// picks a ref whose collection is not held (a settlement landed
// between peek and lock), the locks are released and reacquired with
// the wider set. Every write happens under the lock of its collection.
func (e *Engine) reverse(ctx context.Context, docKind DocumentKind, documentID string, pick func(*Document) []SettlementRef, actor string) error {
	docCol := CollectionForDocument(docKind)

	peekDocs, err := e.store.LoadDocuments(ctx, docCol)
	if err != nil {
		return err
	}
	pi, err := FindDocument(docCol, peekDocs, documentID)
	if err != nil {
		return err
	}
	peeked := pick(&peekDocs[pi])
	if len(peeked) == 0 {
		return nil // idempotent: nothing to reverse
	}
	cols := reversalLockSet(docCol, peeked)

	for {
		unlock := e.locks.Lock(cols...)
		grown, reversed, err := e.reverseLocked(ctx, docCol, documentID, pick, actor, cols)
		unlock()
		if err != nil {
			return err
		}
		if grown != nil {
			cols = grown
			continue
		}
		if reversed {
			e.syncTargets(ctx, docKind, []TargetApplication{{DocumentID: documentID}})
		}
		return nil
	}
}

// reverseLocked runs one reversal attempt while holding the locks for
// held. When the re-picked refs need a collection outside held, it
// returns the full set so the caller can retry with it.
func (e *Engine) reverseLocked(ctx context.Context, docCol Collection, documentID string, pick func(*Document) []SettlementRef, actor string, held []Collection) (grown []Collection, reversed bool, err error) {
	docs, err := e.store.LoadDocuments(ctx, docCol)
	if err != nil {
		return nil, false, err
	}
	di, err := FindDocument(docCol, docs, documentID)
	if err != nil {
		return nil, false, err
	}
	doc := &docs[di]
	refs := pick(doc)
	if len(refs) == 0 {
		return nil, false, nil
	}

	heldSet := make(map[Collection]bool, len(held))
	for _, c := range held {
		heldSet[c] = true
	}
	need := reversalLockSet(docCol, refs)
	for _, c := range need {
		if !heldSet[c] {
			return need, false, nil
		}
	}

	srcsByCol := make(map[Collection][]Source)
	for _, ref := range refs {
		col := CollectionForSource(ref.SourceKind)
		if _, ok := srcsByCol[col]; ok {
			continue
		}
		srcs, err := e.store.LoadSources(ctx, col)
		if err != nil {
			return nil, false, err
		}
		srcsByCol[col] = srcs
	}

	// Verify every mirror exists BEFORE mutating anything. A missing
	// mirror aborts the whole reversal with data untouched.
	when := e.now()
	reversing := make(map[string]bool, len(refs))
	for _, ref := range refs {
		reversing[ref.SourceID] = true
		col := CollectionForSource(ref.SourceKind)
		si, err := FindSource(col, srcsByCol[col], ref.SourceID)
		if err != nil {
			e.log.Error("reversal found orphaned settlement ref",
				zap.String("document_id", documentID),
				zap.String("source_id", ref.SourceID))
			return nil, false, &ReversalMismatchError{DocumentID: documentID, SourceID: ref.SourceID}
		}
		if !hasMirror(&srcsByCol[col][si], documentID) {
			e.log.Error("reversal found settlement ref without source-side mirror",
				zap.String("document_id", documentID),
				zap.String("source_id", ref.SourceID))
			return nil, false, &ReversalMismatchError{DocumentID: documentID, SourceID: ref.SourceID}
		}
	}

	// Target side: drop the reversed refs, re-derive amounts. The
	// filter builds a fresh slice: the loaded one shares its backing
	// array with copies handed to earlier callers. A VOID document
	// keeps its terminal status; the calculator is never invoked for
	// it.
	kept := make([]SettlementRef, 0, len(doc.Settlements))
	for _, ref := range doc.Settlements {
		if !reversing[ref.SourceID] {
			kept = append(kept, ref)
		}
	}
	doc.Settlements = kept
	doc.AmountPaid = SettledAmount(doc.Settlements)
	if doc.Status != StatusVoid {
		doc.BalanceDue, doc.Status = ComputeBalance(doc.Total, doc.AmountPaid, doc.Status)
	} else {
		doc.BalanceDue = doc.Total.Sub(doc.AmountPaid)
	}
	doc.Audit = append(doc.Audit, AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   when,
		Actor:       actor,
		Description: "reversed settlements from " + joinSourceIDs(refs),
	})
	doc.UpdatedAt = when

	// Source side: drop the mirrors into a fresh slice, re-derive
	// remaining, reopen sources that were closed by exhaustion.
	for _, ref := range refs {
		col := CollectionForSource(ref.SourceKind)
		srcs := srcsByCol[col]
		si, _ := FindSource(col, srcs, ref.SourceID)
		src := &srcs[si]

		mirrors := make([]AppliedRef, 0, len(src.AppliedTo))
		for _, m := range src.AppliedTo {
			if m.DocumentID != documentID {
				mirrors = append(mirrors, m)
			}
		}
		src.AppliedTo = mirrors
		src.AmountRemaining = src.TotalAmount.Sub(src.AppliedAmount())
		if src.Status == SourceClosed && src.AmountRemaining.IsPositive() {
			src.Status = SourceOpen
		}
		src.UpdatedAt = when
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
		return nil, false, err
	}
	return nil, true, nil
}

// =============================================================================
// SOURCE-SIDE REVERSAL - Walk a source's applications
// =============================================================================

// ReverseAllApplications reverses every application the source made,
// target by target. Used before deleting or voiding a payment/credit.
// Safe to retry: targets already reversed are skipped.
func (e *Engine) ReverseAllApplications(ctx context.Context, kind SourceKind, sourceID string, actor string) error {
	srcCol := CollectionForSource(kind)
	srcs, err := e.store.LoadSources(ctx, srcCol)
	if err != nil {
		return err
	}
	si, err := FindSource(srcCol, srcs, sourceID)
	if err != nil {
		return err
	}

	// Distinct targets, preserving first-seen order.
	type target struct {
		kind DocumentKind
		id   string
	}
	var targets []target
	seen := make(map[string]bool)
	for _, ref := range srcs[si].AppliedTo {
		if !seen[ref.DocumentID] {
			seen[ref.DocumentID] = true
			targets = append(targets, target{kind: ref.DocumentKind, id: ref.DocumentID})
		}
	}

	for _, t := range targets {
		err := e.ReverseSettlement(ctx, t.kind, t.id, sourceID, actor)
		if err != nil {
			// A mirror pointing at a deleted document is stale, not a
			// live settlement; it vanishes with the source.
			if IsNotFound(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// reversalLockSet is the set of collections a reversal of refs on a
// docCol document writes.
func reversalLockSet(docCol Collection, refs []SettlementRef) []Collection {
	cols := []Collection{docCol}
	for _, ref := range refs {
		cols = append(cols, CollectionForSource(ref.SourceKind))
	}
	return cols
}

func hasMirror(src *Source, documentID string) bool {
	for _, m := range src.AppliedTo {
		if m.DocumentID == documentID {
			return true
		}
	}
	return false
}

func joinSourceIDs(refs []SettlementRef) string {
	out := ""
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref.SourceID] {
			continue
		}
		seen[ref.SourceID] = true
		if out != "" {
			out += ", "
		}
		out += string(ref.SourceKind) + " " + ref.SourceID
	}
	return out
}
