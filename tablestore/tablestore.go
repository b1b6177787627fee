/*
Package tablestore defines the boundary to the remote tabular store.

PURPOSE:
  The ledger lives in spreadsheet-shaped tables: a header row followed by
  data rows, addressed by 1-based (row, column) coordinates. This package
  defines that surface so the reconciliation engine never talks to a
  concrete backend directly. Implementations exist for an in-memory grid
  (tests, dev), SQLite, and PostgreSQL.

KEY TYPES:
  Store:     Opens and creates named tables
  Table:     Reads records and cells, appends rows, writes cell batches
  Record:    One data row as a column-name -> raw-value mapping
  CellRef:   1-based cell coordinate; row 1 is always the header
  CellWrite: A rectangular write (range + values), shape-checked

ADDRESSING CONTRACT:
  Row 1 is the header. The first data row is row 2, so a record at
  zero-based data index i lives at grid row i+2. Columns are located by
  header name, never by hard-coded position.

WRITE MODEL:
  There are exactly two mutations: Append (whole records at the bottom)
  and BatchWrite (in-place cell updates). There is no delete. The store
  is NOT transactional across calls; callers own ordering and recovery.

SEE ALSO:
  - memory/memory.go: In-memory implementation
  - sqlite/sqlite.go: SQLite implementation
  - postgres/postgres.go: PostgreSQL implementation
*/
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrTableNotFound is returned by Open when the named table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned by Create when the name is already taken.
	ErrTableExists = errors.New("table already exists")

	// ErrBadRange is returned when a CellWrite's values do not match its range,
	// or a reference lies outside the grid (row or column < 1).
	ErrBadRange = errors.New("invalid cell range")
)

// =============================================================================
// RECORDS AND CELL ADDRESSING
// =============================================================================

// Record is one data row keyed by header name. Values are raw cell strings;
// numeric interpretation is the caller's concern.
type Record map[string]string

// Get returns the raw value for a column, or "" when the column is absent.
func (r Record) Get(column string) string {
	return r[column]
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CellRef addresses a single cell. Both coordinates are 1-based and row 1
// is the header row.
type CellRef struct {
	Row int
	Col int
}

// Valid reports whether the reference lies inside the grid.
func (c CellRef) Valid() bool {
	return c.Row >= 1 && c.Col >= 1
}

// A1 renders the reference in spreadsheet notation ("B5"). Useful in error
// messages; the store APIs themselves only use numeric coordinates.
func (c CellRef) A1() string {
	return columnLetters(c.Col) + fmt.Sprintf("%d", c.Row)
}

func (c CellRef) String() string {
	return c.A1()
}

func columnLetters(col int) string {
	if col < 1 {
		return "?"
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// DataRow converts a zero-based data index into its grid row.
// Row 1 is the header, so data index 0 lives at row 2.
func DataRow(index int) int {
	return index + 2
}

// ColumnIndex locates a column by header name (whitespace-insensitive).
// Returns the 1-based column and whether it was found.
func ColumnIndex(header []string, name string) (int, bool) {
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.TrimSpace(h) == want {
			return i + 1, true
		}
	}
	return 0, false
}

// =============================================================================
// CELL WRITES
// =============================================================================

// Range is an inclusive rectangular region of cells.
type Range struct {
	From CellRef
	To   CellRef
}

// CellWrite is one rectangular write. Values[r][c] maps to the cell at
// (From.Row+r, From.Col+c); the shape must fill the range exactly.
type CellWrite struct {
	Range  Range
	Values [][]string
}

// Write builds a single-cell CellWrite.
func Write(ref CellRef, value string) CellWrite {
	return CellWrite{
		Range:  Range{From: ref, To: ref},
		Values: [][]string{{value}},
	}
}

// Validate checks that the write is inside the grid and that the value
// matrix matches the range dimensions.
func (w CellWrite) Validate() error {
	if !w.Range.From.Valid() || !w.Range.To.Valid() {
		return fmt.Errorf("range %s:%s outside grid: %w", w.Range.From, w.Range.To, ErrBadRange)
	}
	rows := w.Range.To.Row - w.Range.From.Row + 1
	cols := w.Range.To.Col - w.Range.From.Col + 1
	if rows < 1 || cols < 1 {
		return fmt.Errorf("range %s:%s inverted: %w", w.Range.From, w.Range.To, ErrBadRange)
	}
	if len(w.Values) != rows {
		return fmt.Errorf("range %s:%s expects %d rows, got %d: %w",
			w.Range.From, w.Range.To, rows, len(w.Values), ErrBadRange)
	}
	for i, row := range w.Values {
		if len(row) != cols {
			return fmt.Errorf("range %s:%s expects %d columns, row %d has %d: %w",
				w.Range.From, w.Range.To, cols, i, len(row), ErrBadRange)
		}
	}
	return nil
}

// ValidateAll validates every write in a batch before any is applied.
func ValidateAll(writes []CellWrite) error {
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// STORE - The backend boundary
// =============================================================================

// Store opens named tables in a backing tabular store.
type Store interface {
	// Open returns the named table, or ErrTableNotFound.
	Open(ctx context.Context, name string) (Table, error)

	// Create makes a new table whose row 1 holds the given header.
	// Returns ErrTableExists when the name is taken. A created table is
	// "empty": it has a header and zero data rows.
	Create(ctx context.Context, name string, header []string) (Table, error)

	// List returns the names of all tables, sorted.
	List(ctx context.Context) ([]string, error)
}

// Table is one named grid of cells.
type Table interface {
	// Name returns the table name.
	Name() string

	// Header returns row 1.
	Header(ctx context.Context) ([]string, error)

	// ReadAll returns every data row (rows 2..n) as records keyed by the
	// header. Rows shorter than the header read as "" in the missing
	// columns; cells beyond the header are not visible through records.
	ReadAll(ctx context.Context) ([]Record, error)

	// ReadCell returns the raw value at ref. Unset cells inside the grid
	// read as "".
	ReadCell(ctx context.Context, ref CellRef) (string, error)

	// Append adds records at the bottom, projected onto the header order.
	// Keys that are not header columns are ignored.
	Append(ctx context.Context, records []Record) error

	// BatchWrite applies a set of cell writes in one store call. The batch
	// is validated as a whole before anything is written; a write to row 1
	// updates the header.
	BatchWrite(ctx context.Context, writes []CellWrite) error
}
