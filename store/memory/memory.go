// Package memory provides an in-memory ledger.Store for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/openledger/billing-engine/ledger"
)

// =============================================================================
// MEMORY STORE - Whole-collection semantics over maps
// =============================================================================

// Store keeps every collection in memory. Loads return deep-enough
// copies (fresh slices) so callers can mutate freely before saving.
type Store struct {
	mu        sync.RWMutex
	documents map[ledger.Collection][]ledger.Document
	sources   map[ledger.Collection][]ledger.Source
	orders    []ledger.SalesOrder
}

func New() *Store {
	return &Store{
		documents: make(map[ledger.Collection][]ledger.Document),
		sources:   make(map[ledger.Collection][]ledger.Source),
	}
}

func (m *Store) LoadDocuments(_ context.Context, col ledger.Collection) ([]ledger.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Document(nil), m.documents[col]...), nil
}

func (m *Store) SaveDocuments(_ context.Context, col ledger.Collection, docs []ledger.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[col] = append([]ledger.Document(nil), docs...)
	return nil
}

func (m *Store) LoadSources(_ context.Context, col ledger.Collection) ([]ledger.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Source(nil), m.sources[col]...), nil
}

func (m *Store) SaveSources(_ context.Context, col ledger.Collection, srcs []ledger.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[col] = append([]ledger.Source(nil), srcs...)
	return nil
}

func (m *Store) LoadOrders(_ context.Context) ([]ledger.SalesOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.SalesOrder(nil), m.orders...), nil
}

func (m *Store) SaveOrders(_ context.Context, orders []ledger.SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append([]ledger.SalesOrder(nil), orders...)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE - Snapshot + rollback on error
// =============================================================================

// TxStore wraps Store with simulated transactions: state is
// snapshotted before fn runs and restored if fn fails.
type TxStore struct {
	*Store
}

func NewTx() *TxStore {
	return &TxStore{Store: New()}
}

func (t *TxStore) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	snap := t.snapshot()
	if err := fn(&txView{parent: t.Store}); err != nil {
		t.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	documents map[ledger.Collection][]ledger.Document
	sources   map[ledger.Collection][]ledger.Source
	orders    []ledger.SalesOrder
}

func (t *TxStore) snapshot() memorySnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	docs := make(map[ledger.Collection][]ledger.Document, len(t.documents))
	for col, v := range t.documents {
		docs[col] = append([]ledger.Document(nil), v...)
	}
	srcs := make(map[ledger.Collection][]ledger.Source, len(t.sources))
	for col, v := range t.sources {
		srcs[col] = append([]ledger.Source(nil), v...)
	}
	return memorySnapshot{
		documents: docs,
		sources:   srcs,
		orders:    append([]ledger.SalesOrder(nil), t.orders...),
	}
}

func (t *TxStore) restore(s memorySnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.documents = s.documents
	t.sources = s.sources
	t.orders = s.orders
}

// txView delegates to the parent; writes inside a failed fn are undone
// by restore.
type txView struct {
	parent *Store
}

func (v *txView) LoadDocuments(ctx context.Context, col ledger.Collection) ([]ledger.Document, error) {
	return v.parent.LoadDocuments(ctx, col)
}

func (v *txView) SaveDocuments(ctx context.Context, col ledger.Collection, docs []ledger.Document) error {
	return v.parent.SaveDocuments(ctx, col, docs)
}

func (v *txView) LoadSources(ctx context.Context, col ledger.Collection) ([]ledger.Source, error) {
	return v.parent.LoadSources(ctx, col)
}

func (v *txView) SaveSources(ctx context.Context, col ledger.Collection, srcs []ledger.Source) error {
	return v.parent.SaveSources(ctx, col, srcs)
}

func (v *txView) LoadOrders(ctx context.Context) ([]ledger.SalesOrder, error) {
	return v.parent.LoadOrders(ctx)
}

func (v *txView) SaveOrders(ctx context.Context, orders []ledger.SalesOrder) error {
	return v.parent.SaveOrders(ctx, orders)
}
