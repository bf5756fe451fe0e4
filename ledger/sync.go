/*
sync.go - Sales-order payment status propagation

PURPOSE:
  Propagates invoice payment state up to the owning sales order. The
  order's paymentStatus and its cached invoice snapshots are DERIVED
  data: failure here is logged and swallowed by callers, never allowed
  to abort the settlement that triggered it.

OWNER LOOKUP:
  The invoice's OrderID back-reference is authoritative. Legacy records
  missing it are resolved through ownerIndex, built once from the
  orders' embedded snapshot lists and kept current on every mutation -
  this replaces the original's ad-hoc rescan of every order on every
  lookup.

STATUS RULES:
  Paid            every linked invoice is PAID
  Partially Paid  at least one linked invoice is PAID, PARTIALLY_PAID,
                  or has amountPaid > 0
  Unpaid          otherwise
*/
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Synchronizer recomputes sales-order payment status from linked
// invoices and keeps the owner index current.
type Synchronizer struct {
	store Store
	locks *PairLocker
	log   *zap.Logger
	now   func() time.Time

	mu         sync.RWMutex
	ownerIndex map[string]string // invoice id -> sales order id
}

func NewSynchronizer(store Store, locks *PairLocker, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		store:      store,
		locks:      locks,
		log:        log,
		now:        time.Now,
		ownerIndex: make(map[string]string),
	}
}

// =============================================================================
// OWNER INDEX
// =============================================================================

// RebuildIndex scans every sales order's snapshot list once and
// rebuilds the invoice -> order mapping. Called at startup.
func (sy *Synchronizer) RebuildIndex(ctx context.Context) error {
	orders, err := sy.store.LoadOrders(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]string)
	for _, o := range orders {
		for _, snap := range o.Invoices {
			index[snap.InvoiceID] = o.ID
		}
	}

	sy.mu.Lock()
	sy.ownerIndex = index
	sy.mu.Unlock()
	return nil
}

// Attach records invoice -> order ownership in the index.
func (sy *Synchronizer) Attach(invoiceID, orderID string) {
	sy.mu.Lock()
	sy.ownerIndex[invoiceID] = orderID
	sy.mu.Unlock()
}

// Detach drops an invoice from the index.
func (sy *Synchronizer) Detach(invoiceID string) {
	sy.mu.Lock()
	delete(sy.ownerIndex, invoiceID)
	sy.mu.Unlock()
}

func (sy *Synchronizer) owner(invoiceID string) (string, bool) {
	sy.mu.RLock()
	defer sy.mu.RUnlock()
	id, ok := sy.ownerIndex[invoiceID]
	return id, ok
}

// =============================================================================
// SYNC
// =============================================================================

// SyncSalesOrder recomputes the payment status and invoice snapshots
// of the order owning invoiceID. No-op when the invoice has no owner.
func (sy *Synchronizer) SyncSalesOrder(ctx context.Context, invoiceID string) error {
	invoices, err := sy.store.LoadDocuments(ctx, ColInvoices)
	if err != nil {
		return err
	}

	orderID := ""
	if i, err := FindDocument(ColInvoices, invoices, invoiceID); err == nil {
		orderID = invoices[i].OrderID
	}
	if orderID == "" {
		// Legacy records carry no back-reference; the index covers them.
		if id, ok := sy.owner(invoiceID); ok {
			orderID = id
		}
	}
	if orderID == "" {
		return nil
	}

	unlock := sy.locks.Lock(ColSalesOrders)
	defer unlock()

	orders, err := sy.store.LoadOrders(ctx)
	if err != nil {
		return err
	}
	oi, err := FindOrder(orders, orderID)
	if err != nil {
		return err
	}

	sy.refresh(&orders[oi], invoices)
	sy.Attach(invoiceID, orderID)
	return sy.store.SaveOrders(ctx, orders)
}

// DetachInvoice removes a deleted invoice's snapshot from its owning
// order and recomputes the order status. Used by invoice deletion.
func (sy *Synchronizer) DetachInvoice(ctx context.Context, invoiceID string) error {
	orderID, ok := sy.owner(invoiceID)
	if !ok {
		return nil
	}

	unlock := sy.locks.Lock(ColSalesOrders)
	defer unlock()

	orders, err := sy.store.LoadOrders(ctx)
	if err != nil {
		return err
	}
	oi, err := FindOrder(orders, orderID)
	if err != nil {
		sy.Detach(invoiceID)
		return nil
	}

	order := &orders[oi]
	kept := order.Invoices[:0]
	for _, snap := range order.Invoices {
		if snap.InvoiceID != invoiceID {
			kept = append(kept, snap)
		}
	}
	order.Invoices = kept

	invoices, err := sy.store.LoadDocuments(ctx, ColInvoices)
	if err != nil {
		return err
	}
	sy.refresh(order, invoices)
	sy.Detach(invoiceID)
	return sy.store.SaveOrders(ctx, orders)
}

// refresh recomputes one order's snapshots and payment status from the
// given invoice collection. Linked invoices are the union of the
// snapshot list and any invoice whose back-reference names the order.
func (sy *Synchronizer) refresh(order *SalesOrder, invoices []Document) {
	linked := make(map[string]*Document)
	for i := range invoices {
		if invoices[i].OrderID == order.ID {
			linked[invoices[i].ID] = &invoices[i]
		}
	}
	for _, snap := range order.Invoices {
		if _, ok := linked[snap.InvoiceID]; ok {
			continue
		}
		if i, err := FindDocument(ColInvoices, invoices, snap.InvoiceID); err == nil {
			linked[snap.InvoiceID] = &invoices[i]
		}
	}

	snapshots := make([]InvoiceSnapshot, 0, len(linked))
	allPaid := len(linked) > 0
	anyPaid := false
	for _, inv := range linked {
		snapshots = append(snapshots, InvoiceSnapshot{
			InvoiceID:  inv.ID,
			Number:     inv.Number,
			Status:     inv.Status,
			Total:      inv.Total,
			BalanceDue: inv.BalanceDue,
		})
		if inv.Status != StatusPaid {
			allPaid = false
		}
		if inv.Status == StatusPaid || inv.Status == StatusPartiallyPaid || inv.AmountPaid.IsPositive() {
			anyPaid = true
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Number < snapshots[j].Number })
	order.Invoices = snapshots

	switch {
	case allPaid:
		order.PaymentStatus = OrderPaid
	case anyPaid:
		order.PaymentStatus = OrderPartiallyPaid
	default:
		order.PaymentStatus = OrderUnpaid
	}
	order.UpdatedAt = sy.now()
}
