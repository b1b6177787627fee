/*
Package sqlite provides a SQLite-backed tablestore.Store.

PURPOSE:
  Persists ledger tables as a cell grid: one row per (table, row, column)
  coordinate. This keeps the spreadsheet addressing model intact while
  gaining durable local storage. The PostgreSQL backend uses the same
  schema with dialect differences only.

SCHEMA:
  tabs:  table registry (name)
  cells: the grid; PRIMARY KEY (tab, row_idx, col_idx) makes every cell
         write an upsert. Row 1 holds the header.

CONCURRENCY:
  A sync.RWMutex serializes writers, matching SQLite's single-writer
  model. WAL mode keeps readers unblocked.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - tablestore/tablestore.go: Interface definitions
  - tablestore/memory/memory.go: In-memory implementation for tests
  - tablestore/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/keystone/ads-ledger/tablestore"
)

// Store implements tablestore.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
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
	CREATE TABLE IF NOT EXISTS tabs (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		tab TEXT NOT NULL REFERENCES tabs(name) ON DELETE CASCADE,
		row_idx INTEGER NOT NULL,
		col_idx INTEGER NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tab, row_idx, col_idx)
	);

	CREATE INDEX IF NOT EXISTS idx_cells_tab_row ON cells(tab, row_idx);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Open returns a handle to an existing table.
func (s *Store) Open(ctx context.Context, name string) (tablestore.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM tabs WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open %q: %w", name, tablestore.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	return &table{store: s, name: name}, nil
}

// Create registers a new table and writes its header row.
func (s *Store) Create(ctx context.Context, name string, header []string) (tablestore.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO tabs (name, created_at) VALUES (?, ?)",
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("create %q: %w", name, tablestore.ErrTableExists)
		}
		return nil, fmt.Errorf("create %q: %w", name, err)
	}

	for c, h := range header {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cells (tab, row_idx, col_idx, value) VALUES (?, 1, ?, ?)",
			name, c+1, h); err != nil {
			return nil, fmt.Errorf("create %q: write header: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	return &table{store: s, name: name}, nil
}

// List returns all table names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM tabs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// =============================================================================
// TABLE HANDLE
// =============================================================================

type table struct {
	store *Store
	name  string
}

func (t *table) Name() string { return t.name }

func (t *table) Header(ctx context.Context) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.headerLocked(ctx, t.store.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *table) headerLocked(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT col_idx, value FROM cells WHERE tab = ? AND row_idx = 1 ORDER BY col_idx",
		t.name)
	if err != nil {
		return nil, fmt.Errorf("header of %q: %w", t.name, err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var col int
		var value string
		if err := rows.Scan(&col, &value); err != nil {
			return nil, err
		}
		for len(header) < col {
			header = append(header, "")
		}
		header[col-1] = value
	}
	return header, rows.Err()
}

func (t *table) ReadAll(ctx context.Context) ([]tablestore.Record, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	header, err := t.headerLocked(ctx, t.store.db)
	if err != nil {
		return nil, err
	}

	rows, err := t.store.db.QueryContext(ctx,
		"SELECT row_idx, col_idx, value FROM cells WHERE tab = ? AND row_idx >= 2 ORDER BY row_idx, col_idx",
		t.name)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", t.name, err)
	}
	defer rows.Close()

	// Collect the sparse grid, then project onto the header.
	byRow := make(map[int][]string)
	maxRow := 1
	for rows.Next() {
		var row, col int
		var value string
		if err := rows.Scan(&row, &col, &value); err != nil {
			return nil, err
		}
		cells := byRow[row]
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = value
		byRow[row] = cells
		if row > maxRow {
			maxRow = row
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]tablestore.Record, 0, maxRow-1)
	for row := 2; row <= maxRow; row++ {
		cells := byRow[row]
		rec := make(tablestore.Record, len(header))
		for c, col := range header {
			if c < len(cells) {
				rec[col] = cells[c]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t *table) ReadCell(ctx context.Context, ref tablestore.CellRef) (string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if !ref.Valid() {
		return "", fmt.Errorf("read %s: %w", ref, tablestore.ErrBadRange)
	}

	var value string
	err := t.store.db.QueryRowContext(ctx,
		"SELECT value FROM cells WHERE tab = ? AND row_idx = ? AND col_idx = ?",
		t.name, ref.Row, ref.Col).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %q %s: %w", t.name, ref, err)
	}
	return value, nil
}

func (t *table) Append(ctx context.Context, records []tablestore.Record) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append to %q: %w", t.name, err)
	}
	defer tx.Rollback()

	header, err := t.headerLocked(ctx, tx)
	if err != nil {
		return err
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(row_idx), 1) + 1 FROM cells WHERE tab = ?",
		t.name).Scan(&next)
	if err != nil {
		return fmt.Errorf("append to %q: %w", t.name, err)
	}

	// Every header column is written so appended rows keep their position
	// even when all values are empty.
	for _, rec := range records {
		for c, col := range header {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO cells (tab, row_idx, col_idx, value) VALUES (?, ?, ?, ?)",
				t.name, next, c+1, rec.Get(col)); err != nil {
				return fmt.Errorf("append to %q: %w", t.name, err)
			}
		}
		next++
	}
	return tx.Commit()
}

func (t *table) BatchWrite(ctx context.Context, writes []tablestore.CellWrite) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if err := tablestore.ValidateAll(writes); err != nil {
		return err
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write to %q: %w", t.name, err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO cells (tab, row_idx, col_idx, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(tab, row_idx, col_idx) DO UPDATE SET value = excluded.value
	`
	for _, w := range writes {
		for r, vals := range w.Values {
			for c, v := range vals {
				if _, err := tx.ExecContext(ctx, upsert,
					t.name, w.Range.From.Row+r, w.Range.From.Col+c, v); err != nil {
					return fmt.Errorf("write to %q: %w", t.name, err)
				}
			}
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
