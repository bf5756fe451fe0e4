/*
lifecycle.go - Document and source lifecycle under the collection locks

PURPOSE:
  Create, update, void, and delete operations for documents and
  sources. These are deliberately dumb about settlement: anything that
  would change applied amounts must go through engine.go/reverse.go
  first. Deleting or voiding a record that still carries cross-
  references is refused - an orphaned ref would break the other side's
  invariant permanently.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// CreateDocument persists a new settleable document with a zeroed
// settlement state. Total is rounded to 2 decimal places.
func (e *Engine) CreateDocument(ctx context.Context, doc Document) (*Document, error) {
	col := CollectionForDocument(doc.Kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	when := e.now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = StatusOpen
	}
	doc.Total = doc.Total.Round(2)
	doc.AmountPaid = decimal.Zero
	doc.BalanceDue = doc.Total
	doc.Settlements = nil
	doc.CreatedAt = when
	doc.UpdatedAt = when

	docs, err := e.store.LoadDocuments(ctx, col)
	if err != nil {
		return nil, err
	}
	if _, err := FindDocument(col, docs, doc.ID); err == nil {
		return nil, fmt.Errorf("%s: id %q already exists", col, doc.ID)
	}
	docs = append(docs, doc)
	if err := e.store.SaveDocuments(ctx, col, docs); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument loads a single document.
func (e *Engine) GetDocument(ctx context.Context, kind DocumentKind, id string) (*Document, error) {
	col := CollectionForDocument(kind)
	docs, err := e.store.LoadDocuments(ctx, col)
	if err != nil {
		return nil, err
	}
	i, err := FindDocument(col, docs, id)
	if err != nil {
		return nil, err
	}
	return &docs[i], nil
}

// ListDocuments loads a whole document collection.
func (e *Engine) ListDocuments(ctx context.Context, kind DocumentKind) ([]Document, error) {
	return e.store.LoadDocuments(ctx, CollectionForDocument(kind))
}

// DeleteDocument removes a document. The caller must have reversed all
// settlements first (ReverseAllSettlements); a document still carrying
// refs is refused.
func (e *Engine) DeleteDocument(ctx context.Context, kind DocumentKind, id string) error {
	col := CollectionForDocument(kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	docs, err := e.store.LoadDocuments(ctx, col)
	if err != nil {
		return err
	}
	i, err := FindDocument(col, docs, id)
	if err != nil {
		return err
	}
	if len(docs[i].Settlements) > 0 {
		return fmt.Errorf("document %s still has settlements; reverse them before deleting", id)
	}
	docs = append(docs[:i], docs[i+1:]...)
	return e.store.SaveDocuments(ctx, col, docs)
}

// VoidDocument marks a document VOID after the caller reversed its
// settlements. VOID is terminal: the balance calculator is never
// invoked for it again.
func (e *Engine) VoidDocument(ctx context.Context, kind DocumentKind, id string, actor string) (*Document, error) {
	col := CollectionForDocument(kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	docs, err := e.store.LoadDocuments(ctx, col)
	if err != nil {
		return nil, err
	}
	i, err := FindDocument(col, docs, id)
	if err != nil {
		return nil, err
	}
	doc := &docs[i]
	if len(doc.Settlements) > 0 {
		return nil, fmt.Errorf("document %s still has settlements; reverse them before voiding", id)
	}

	when := e.now()
	doc.Status = StatusVoid
	doc.BalanceDue = decimal.Zero
	doc.Audit = append(doc.Audit, AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   when,
		Actor:       actor,
		Description: "voided",
	})
	doc.UpdatedAt = when

	if err := e.store.SaveDocuments(ctx, col, docs); err != nil {
		return nil, err
	}
	docCopy := *doc
	return &docCopy, nil
}

// =============================================================================
// SOURCES
// =============================================================================

// CreateSource persists a new settlement source with its full amount
// remaining (a standalone credit note or vendor credit; payments that
// settle immediately go through RecordPayment instead).
func (e *Engine) CreateSource(ctx context.Context, src Source) (*Source, error) {
	col := CollectionForSource(src.Kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	when := e.now()
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	src.TotalAmount = src.TotalAmount.Round(2)
	src.AmountRemaining = src.TotalAmount
	src.Status = SourceOpen
	src.AppliedTo = nil
	src.CreatedAt = when
	src.UpdatedAt = when

	srcs, err := e.store.LoadSources(ctx, col)
	if err != nil {
		return nil, err
	}
	if _, err := FindSource(col, srcs, src.ID); err == nil {
		return nil, fmt.Errorf("%s: id %q already exists", col, src.ID)
	}
	srcs = append(srcs, src)
	if err := e.store.SaveSources(ctx, col, srcs); err != nil {
		return nil, err
	}
	return &src, nil
}

// GetSource loads a single source.
func (e *Engine) GetSource(ctx context.Context, kind SourceKind, id string) (*Source, error) {
	col := CollectionForSource(kind)
	srcs, err := e.store.LoadSources(ctx, col)
	if err != nil {
		return nil, err
	}
	i, err := FindSource(col, srcs, id)
	if err != nil {
		return nil, err
	}
	return &srcs[i], nil
}

// ListSources loads a whole source collection.
func (e *Engine) ListSources(ctx context.Context, kind SourceKind) ([]Source, error) {
	return e.store.LoadSources(ctx, CollectionForSource(kind))
}

// UpdateSource rewrites a fully reversed source (edit flow: reverse
// old state, update, re-apply new state). A source that still has
// applications is refused - editing must never diff in place.
func (e *Engine) UpdateSource(ctx context.Context, kind SourceKind, id string, mutate func(*Source)) (*Source, error) {
	col := CollectionForSource(kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	srcs, err := e.store.LoadSources(ctx, col)
	if err != nil {
		return nil, err
	}
	i, err := FindSource(col, srcs, id)
	if err != nil {
		return nil, err
	}
	src := &srcs[i]
	if len(src.AppliedTo) > 0 {
		return nil, fmt.Errorf("source %s still has applications; reverse them before editing", id)
	}

	mutate(src)
	src.TotalAmount = src.TotalAmount.Round(2)
	src.AmountRemaining = src.TotalAmount
	src.Status = SourceOpen
	src.UpdatedAt = e.now()

	if err := e.store.SaveSources(ctx, col, srcs); err != nil {
		return nil, err
	}
	srcCopy := *src
	return &srcCopy, nil
}

// VoidSource terminally voids a fully reversed source. The remaining
// amount is zeroed so it can never be applied again.
func (e *Engine) VoidSource(ctx context.Context, kind SourceKind, id string) (*Source, error) {
	col := CollectionForSource(kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	srcs, err := e.store.LoadSources(ctx, col)
	if err != nil {
		return nil, err
	}
	i, err := FindSource(col, srcs, id)
	if err != nil {
		return nil, err
	}
	src := &srcs[i]
	if len(src.AppliedTo) > 0 {
		return nil, fmt.Errorf("source %s still has applications; reverse them before voiding", id)
	}

	src.Status = SourceVoid
	src.AmountRemaining = decimal.Zero
	src.UpdatedAt = e.now()

	if err := e.store.SaveSources(ctx, col, srcs); err != nil {
		return nil, err
	}
	srcCopy := *src
	return &srcCopy, nil
}

// DeleteSource removes a fully reversed source.
func (e *Engine) DeleteSource(ctx context.Context, kind SourceKind, id string) error {
	col := CollectionForSource(kind)
	unlock := e.locks.Lock(col)
	defer unlock()

	srcs, err := e.store.LoadSources(ctx, col)
	if err != nil {
		return err
	}
	i, err := FindSource(col, srcs, id)
	if err != nil {
		return err
	}
	if len(srcs[i].AppliedTo) > 0 {
		return fmt.Errorf("source %s still has applications; reverse them before deleting", id)
	}
	srcs = append(srcs[:i], srcs[i+1:]...)
	return e.store.SaveSources(ctx, col, srcs)
}

// =============================================================================
// SALES ORDERS
// =============================================================================

// CreateOrder persists a new sales order with no linked invoices.
func (e *Engine) CreateOrder(ctx context.Context, order SalesOrder) (*SalesOrder, error) {
	unlock := e.locks.Lock(ColSalesOrders)
	defer unlock()

	when := e.now()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Total = order.Total.Round(2)
	order.PaymentStatus = OrderUnpaid
	order.Invoices = nil
	order.CreatedAt = when
	order.UpdatedAt = when

	orders, err := e.store.LoadOrders(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := FindOrder(orders, order.ID); err == nil {
		return nil, fmt.Errorf("%s: id %q already exists", ColSalesOrders, order.ID)
	}
	orders = append(orders, order)
	if err := e.store.SaveOrders(ctx, orders); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder loads a single sales order.
func (e *Engine) GetOrder(ctx context.Context, id string) (*SalesOrder, error) {
	orders, err := e.store.LoadOrders(ctx)
	if err != nil {
		return nil, err
	}
	i, err := FindOrder(orders, id)
	if err != nil {
		return nil, err
	}
	return &orders[i], nil
}

// ListOrders loads all sales orders.
func (e *Engine) ListOrders(ctx context.Context) ([]SalesOrder, error) {
	return e.store.LoadOrders(ctx)
}
