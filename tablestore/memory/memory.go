// Package memory provides an in-memory tablestore.Store for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/keystone/ads-ledger/tablestore"
)

// =============================================================================
// MEMORY STORE - Grid of cells per table, guarded by one lock
// =============================================================================

type Store struct {
	mu     sync.RWMutex
	tables map[string]*grid
}

// grid holds one table. header is row 1; rows holds data rows, so
// rows[i] is grid row i+2.
type grid struct {
	header []string
	rows   [][]string
}

func New() *Store {
	return &Store{tables: make(map[string]*grid)}
}

// Open returns a handle to an existing table.
func (s *Store) Open(_ context.Context, name string) (tablestore.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[name]; !ok {
		return nil, fmt.Errorf("open %q: %w", name, tablestore.ErrTableNotFound)
	}
	return &table{store: s, name: name}, nil
}

// Create makes a new table with the given header row.
func (s *Store) Create(_ context.Context, name string, header []string) (tablestore.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; ok {
		return nil, fmt.Errorf("create %q: %w", name, tablestore.ErrTableExists)
	}
	s.tables[name] = &grid{header: append([]string{}, header...)}
	return &table{store: s, name: name}, nil
}

// List returns all table names, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// =============================================================================
// TABLE HANDLE
// =============================================================================

type table struct {
	store *Store
	name  string
}

func (t *table) Name() string { return t.name }

// locked returns the grid for this handle. The caller must hold the lock.
func (t *table) locked() (*grid, error) {
	g, ok := t.store.tables[t.name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", t.name, tablestore.ErrTableNotFound)
	}
	return g, nil
}

func (t *table) Header(_ context.Context) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	g, err := t.locked()
	if err != nil {
		return nil, err
	}
	return append([]string{}, g.header...), nil
}

func (t *table) ReadAll(_ context.Context) ([]tablestore.Record, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	g, err := t.locked()
	if err != nil {
		return nil, err
	}

	records := make([]tablestore.Record, 0, len(g.rows))
	for _, row := range g.rows {
		rec := make(tablestore.Record, len(g.header))
		for c, col := range g.header {
			if c < len(row) {
				rec[col] = row[c]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t *table) ReadCell(_ context.Context, ref tablestore.CellRef) (string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	g, err := t.locked()
	if err != nil {
		return "", err
	}
	if !ref.Valid() {
		return "", fmt.Errorf("read %s: %w", ref, tablestore.ErrBadRange)
	}

	if ref.Row == 1 {
		if ref.Col <= len(g.header) {
			return g.header[ref.Col-1], nil
		}
		return "", nil
	}
	i := ref.Row - 2
	if i >= len(g.rows) || ref.Col > len(g.rows[i]) {
		return "", nil
	}
	return g.rows[i][ref.Col-1], nil
}

func (t *table) Append(_ context.Context, records []tablestore.Record) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	g, err := t.locked()
	if err != nil {
		return err
	}

	for _, rec := range records {
		row := make([]string, len(g.header))
		for c, col := range g.header {
			row[c] = rec.Get(col)
		}
		g.rows = append(g.rows, row)
	}
	return nil
}

func (t *table) BatchWrite(_ context.Context, writes []tablestore.CellWrite) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	g, err := t.locked()
	if err != nil {
		return err
	}
	if err := tablestore.ValidateAll(writes); err != nil {
		return err
	}

	for _, w := range writes {
		for r, vals := range w.Values {
			row := w.Range.From.Row + r
			for c, v := range vals {
				g.set(row, w.Range.From.Col+c, v)
			}
		}
	}
	return nil
}

// set writes one cell, growing the grid as needed.
func (g *grid) set(row, col int, value string) {
	if row == 1 {
		for len(g.header) < col {
			g.header = append(g.header, "")
		}
		g.header[col-1] = value
		return
	}
	i := row - 2
	for len(g.rows) <= i {
		g.rows = append(g.rows, nil)
	}
	for len(g.rows[i]) < col {
		g.rows[i] = append(g.rows[i], "")
	}
	g.rows[i][col-1] = value
}
