/*
store.go - Persistence contract for ledger collections

PURPOSE:
  Defines the seam between the settlement engine and storage. Each
  entity type is one durable collection keyed by id. Every Load is a
  full read of the collection, every Save a full rewrite - no partial
  updates. Callers re-read before every read-modify-write cycle and
  hold the collection pair lock (locks.go) for the whole cycle.

  The interface carries no business rules, which is the point: the
  flat-file backend, the in-memory fake, and the SQLite backend are
  interchangeable under the engine.

COLLECTIONS:
  invoices, bills                       -> Document
  payments_received, payments_made,
  credit_notes, vendor_credits          -> Source
  sales_orders                          -> SalesOrder

IMPLEMENTATIONS:
  - store/jsonfile: flat JSON files, one per collection (primary)
  - store/memory:   in-memory, for tests and dev
  - store/sqlite:   transactional backend, also implements TxStore
*/
package ledger

import "context"

// Collection names a durable set of records.
type Collection string

const (
	ColInvoices         Collection = "invoices"
	ColBills            Collection = "bills"
	ColPaymentsReceived Collection = "payments_received"
	ColPaymentsMade     Collection = "payments_made"
	ColCreditNotes      Collection = "credit_notes"
	ColVendorCredits    Collection = "vendor_credits"
	ColSalesOrders      Collection = "sales_orders"
)

// CollectionForDocument maps a document kind to its collection.
func CollectionForDocument(kind DocumentKind) Collection {
	if kind == DocBill {
		return ColBills
	}
	return ColInvoices
}

// CollectionForSource maps a source kind to its collection.
func CollectionForSource(kind SourceKind) Collection {
	switch kind {
	case SrcPaymentMade:
		return ColPaymentsMade
	case SrcCreditNote:
		return ColCreditNotes
	case SrcVendorCredit:
		return ColVendorCredits
	default:
		return ColPaymentsReceived
	}
}

// =============================================================================
// STORE - Full-collection read/rewrite persistence
// =============================================================================

// Store persists ledger collections. Loads return the full collection;
// saves rewrite it wholesale. Implementations must make Save atomic per
// collection (a crashed save may not leave a half-written collection),
// but atomicity ACROSS collections is the engine's problem, handled by
// write ordering and the pair lock.
type Store interface {
	LoadDocuments(ctx context.Context, col Collection) ([]Document, error)
	SaveDocuments(ctx context.Context, col Collection, docs []Document) error

	LoadSources(ctx context.Context, col Collection) ([]Source, error)
	SaveSources(ctx context.Context, col Collection, srcs []Source) error

	LoadOrders(ctx context.Context) ([]SalesOrder, error)
	SaveOrders(ctx context.Context, orders []SalesOrder) error
}

// TxStore wraps Store with real transaction support. Backends that have
// it (SQLite) let the engine commit a multi-collection settlement as
// one unit; backends that don't fall back to write ordering.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// withTx runs fn inside a store transaction when the backend supports
// one, directly otherwise.
func withTx(ctx context.Context, store Store, fn func(Store) error) error {
	if tx, ok := store.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(store)
}

// =============================================================================
// LOOKUP HELPERS - Single place that produces NotFoundError
// =============================================================================

// FindDocument returns the index of id in docs, or a NotFoundError.
func FindDocument(col Collection, docs []Document, id string) (int, error) {
	for i := range docs {
		if docs[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Collection: col, ID: id}
}

// FindSource returns the index of id in srcs, or a NotFoundError.
func FindSource(col Collection, srcs []Source, id string) (int, error) {
	for i := range srcs {
		if srcs[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Collection: col, ID: id}
}

// FindOrder returns the index of id in orders, or a NotFoundError.
func FindOrder(orders []SalesOrder, id string) (int, error) {
	for i := range orders {
		if orders[i].ID == id {
			return i, nil
		}
	}
	return -1, &NotFoundError{Collection: ColSalesOrders, ID: id}
}
