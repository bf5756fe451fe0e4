/*
Package jsonfile persists ledger collections as flat JSON files.

PURPOSE:
  The primary backend: one <collection>.json file per collection under
  a data directory. Every Load reads and decodes the whole file, every
  Save rewrites it wholesale - exactly the contract ledger.Store
  promises. A missing file is an empty collection, so a fresh data
  directory needs no initialization step.

DURABILITY:
  Saves write to a temp file in the same directory and rename it over
  the target, so a crash mid-save never leaves a half-written
  collection. Atomicity ACROSS collections is the engine's concern
  (write ordering + collection locks); this backend intentionally does
  not implement ledger.TxStore.

AMOUNTS:
  decimal.Decimal marshals as a JSON string ("1234.50"), so amounts
  survive the round trip bit-for-bit - no binary floats on disk.
*/
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openledger/billing-engine/ledger"
)

// Store reads and writes one JSON file per collection.
type Store struct {
	dir string
}

// New ensures dir exists and returns a store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(col ledger.Collection) string {
	return filepath.Join(s.dir, string(col)+".json")
}

// =============================================================================
// GENERIC FILE ACCESS
// =============================================================================

// readFile decodes the collection file into out. Absent file = empty
// collection, out left untouched.
func (s *Store) readFile(col ledger.Collection, out any) error {
	data, err := os.ReadFile(s.path(col))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", col, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", col, err)
	}
	return nil
}

// writeFile rewrites the collection file atomically (temp + rename).
func (s *Store) writeFile(col ledger.Collection, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", col, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(col)+".*.tmp")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", col, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", col, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", col, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", col, err)
	}
	if err := os.Rename(tmp.Name(), s.path(col)); err != nil {
		return fmt.Errorf("rename %s: %w", col, err)
	}
	return nil
}

// =============================================================================
// ledger.Store IMPLEMENTATION
// =============================================================================

func (s *Store) LoadDocuments(_ context.Context, col ledger.Collection) ([]ledger.Document, error) {
	var docs []ledger.Document
	if err := s.readFile(col, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) SaveDocuments(_ context.Context, col ledger.Collection, docs []ledger.Document) error {
	if docs == nil {
		docs = []ledger.Document{}
	}
	return s.writeFile(col, docs)
}

func (s *Store) LoadSources(_ context.Context, col ledger.Collection) ([]ledger.Source, error) {
	var srcs []ledger.Source
	if err := s.readFile(col, &srcs); err != nil {
		return nil, err
	}
	return srcs, nil
}

func (s *Store) SaveSources(_ context.Context, col ledger.Collection, srcs []ledger.Source) error {
	if srcs == nil {
		srcs = []ledger.Source{}
	}
	return s.writeFile(col, srcs)
}

func (s *Store) LoadOrders(_ context.Context) ([]ledger.SalesOrder, error) {
	var orders []ledger.SalesOrder
	if err := s.readFile(ledger.ColSalesOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) SaveOrders(_ context.Context, orders []ledger.SalesOrder) error {
	if orders == nil {
		orders = []ledger.SalesOrder{}
	}
	return s.writeFile(ledger.ColSalesOrders, orders)
}
