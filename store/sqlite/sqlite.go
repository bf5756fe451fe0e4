/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Proves the store seam: the engine's whole-collection contract runs
  unchanged on a real transactional database. Each record is one row
  (collection, id, position, payload) with the entity serialized as
  JSON, so the schema never chases the domain model.

  Unlike the jsonfile backend, this one implements ledger.TxStore: the
  engine's multi-collection commits (targets + sources) run inside a
  single SQLite transaction.

WAL MODE:
  Opened with WAL for better concurrency - multiple readers don't
  block, single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/jsonfile:  The flat-file primary backend
  - store/memory:    In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openledger/billing-engine/ledger"
)

// Store implements ledger.TxStore on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		position   INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection_position
		ON records(collection, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROW ACCESS - Shared between the plain store and transaction views
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadPayloads(ctx context.Context, q execer, col ledger.Collection) ([][]byte, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT payload FROM records WHERE collection = ? ORDER BY position`, string(col))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", col, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", col, err)
		}
		payloads = append(payloads, payload)
	}
	return payloads, rows.Err()
}

func savePayloads(ctx context.Context, q execer, col ledger.Collection, ids []string, payloads [][]byte) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ?`, string(col)); err != nil {
		return fmt.Errorf("clear %s: %w", col, err)
	}
	for i := range payloads {
		_, err := q.ExecContext(ctx,
			`INSERT INTO records (collection, id, position, payload) VALUES (?, ?, ?, ?)`,
			string(col), ids[i], i, payloads[i])
		if err != nil {
			return fmt.Errorf("insert into %s: %w", col, err)
		}
	}
	return nil
}

func marshalAll[T any](col ledger.Collection, items []T, id func(*T) string) ([]string, [][]byte, error) {
	ids := make([]string, len(items))
	payloads := make([][]byte, len(items))
	for i := range items {
		data, err := json.Marshal(items[i])
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s: %w", col, err)
		}
		ids[i] = id(&items[i])
		payloads[i] = data
	}
	return ids, payloads, nil
}

func unmarshalAll[T any](col ledger.Collection, payloads [][]byte) ([]T, error) {
	items := make([]T, 0, len(payloads))
	for _, p := range payloads {
		var item T
		if err := json.Unmarshal(p, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", col, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// =============================================================================
// ledger.Store IMPLEMENTATION
// =============================================================================

// view implements ledger.Store over any execer; the plain store and
// the transaction view share it.
type view struct {
	q execer
}

func (v view) LoadDocuments(ctx context.Context, col ledger.Collection) ([]ledger.Document, error) {
	payloads, err := loadPayloads(ctx, v.q, col)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[ledger.Document](col, payloads)
}

func (v view) SaveDocuments(ctx context.Context, col ledger.Collection, docs []ledger.Document) error {
	ids, payloads, err := marshalAll(col, docs, func(d *ledger.Document) string { return d.ID })
	if err != nil {
		return err
	}
	return savePayloads(ctx, v.q, col, ids, payloads)
}

func (v view) LoadSources(ctx context.Context, col ledger.Collection) ([]ledger.Source, error) {
	payloads, err := loadPayloads(ctx, v.q, col)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[ledger.Source](col, payloads)
}

func (v view) SaveSources(ctx context.Context, col ledger.Collection, srcs []ledger.Source) error {
	ids, payloads, err := marshalAll(col, srcs, func(s *ledger.Source) string { return s.ID })
	if err != nil {
		return err
	}
	return savePayloads(ctx, v.q, col, ids, payloads)
}

func (v view) LoadOrders(ctx context.Context) ([]ledger.SalesOrder, error) {
	payloads, err := loadPayloads(ctx, v.q, ledger.ColSalesOrders)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[ledger.SalesOrder](ledger.ColSalesOrders, payloads)
}

func (v view) SaveOrders(ctx context.Context, orders []ledger.SalesOrder) error {
	ids, payloads, err := marshalAll(ledger.ColSalesOrders, orders, func(o *ledger.SalesOrder) string { return o.ID })
	if err != nil {
		return err
	}
	return savePayloads(ctx, v.q, ledger.ColSalesOrders, ids, payloads)
}

func (s *Store) LoadDocuments(ctx context.Context, col ledger.Collection) ([]ledger.Document, error) {
	return view{q: s.db}.LoadDocuments(ctx, col)
}

func (s *Store) SaveDocuments(ctx context.Context, col ledger.Collection, docs []ledger.Document) error {
	return view{q: s.db}.SaveDocuments(ctx, col, docs)
}

func (s *Store) LoadSources(ctx context.Context, col ledger.Collection) ([]ledger.Source, error) {
	return view{q: s.db}.LoadSources(ctx, col)
}

func (s *Store) SaveSources(ctx context.Context, col ledger.Collection, srcs []ledger.Source) error {
	return view{q: s.db}.SaveSources(ctx, col, srcs)
}

func (s *Store) LoadOrders(ctx context.Context) ([]ledger.SalesOrder, error) {
	return view{q: s.db}.LoadOrders(ctx)
}

func (s *Store) SaveOrders(ctx context.Context, orders []ledger.SalesOrder) error {
	return view{q: s.db}.SaveOrders(ctx, orders)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an
// error the transaction is rolled back, otherwise committed.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(view{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
