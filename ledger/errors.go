/*
errors.go - Error taxonomy and warnings for the reconciliation engine

PURPOSE:
  The engine distinguishes failures that abort a pass from degradations
  that only affect one row. Aborting conditions are errors; per-row
  problems are Warning values collected into the pass output.

ERROR CATEGORIES:
  1. Configuration - The ledger layout is unusable (missing table or
     column, required table empty). Raised before anything is written.
  2. Invalid state - The shared global balance cell does not parse.
     There is no safe default for the shared cell, so this is fatal.
  3. Write - A chunk failed mid-commit. Carries what was committed and
     what is still pending; earlier chunks are NOT rolled back.
  4. Insufficient balance - A distribution asks for more than is
     available. Raised before any write.

WARNINGS:
  Unparsable numeric cells default to zero, unknown ids are skipped.
  Both are reported as Warning values, never as errors.

SEE ALSO:
  - reconcile.go: Emits unknown-id and bad-number warnings
  - writer.go: Builds WriteError on chunk failure
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/tablestore"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is the root of all ledger-layout problems: a table
	// or column the engine needs is missing, or a required table is empty.
	ErrConfiguration = errors.New("ledger configuration invalid")

	// ErrInvalidState is returned when the global balance cell holds a
	// value that does not parse. The shared cell never defaults to zero.
	ErrInvalidState = errors.New("ledger state invalid")

	// ErrInsufficientBalance is returned when a distribution requests more
	// than the employee or the global budget has.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNegativeAmount is returned when a pass input carries a negative
	// deduction or attribution. Consumption is additive-only.
	ErrNegativeAmount = errors.New("negative amount")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError reports an unusable ledger layout.
type ConfigurationError struct {
	Table  string
	Column string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("table %q has no %q column", e.Table, e.Column)
	case e.Table != "":
		return fmt.Sprintf("table %q: %s", e.Table, e.Reason)
	default:
		return e.Reason
	}
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// InvalidStateError reports an unparsable shared cell.
type InvalidStateError struct {
	Table string
	Cell  tablestore.CellRef
	Raw   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cell %s of %q holds %q, expected a number", e.Cell, e.Table, e.Raw)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// InsufficientBalanceError details a balance shortage found before a
// distribution writes anything.
type InsufficientBalanceError struct {
	Scope      string // ScopeEmployee or ScopeGlobal
	EmployeeID EmployeeID
	Available  decimal.Decimal
	Requested  decimal.Decimal
	Shortfall  decimal.Decimal
}

const (
	ScopeEmployee = "employee"
	ScopeGlobal   = "global"
)

func (e *InsufficientBalanceError) Error() string {
	who := e.Scope
	if e.Scope == ScopeEmployee {
		who = fmt.Sprintf("employee %s", e.EmployeeID)
	}
	return fmt.Sprintf("insufficient %s balance: available %v, requested %v, shortfall %v",
		who, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// WriteError reports an aborted commit. Chunks before FailedChunk are
// already in the store and stay there; Pending holds every update that
// was not written.
type WriteError struct {
	Table           string
	FailedChunk     int // zero-based index of the chunk that failed
	ChunksCommitted int
	CellsCommitted  int
	Pending         []CellUpdate
	Err             error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %q aborted at chunk %d (%d cells committed, %d pending): %v",
		e.Table, e.FailedChunk, e.CellsCommitted, len(e.Pending), e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfiguration reports whether err is a ledger-layout problem.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidState reports whether err is an unparsable-shared-cell problem.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsClientError reports whether err is the caller's fault rather than
// the store's.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNegativeAmount)
}

// AsWriteError extracts a WriteError from an error chain.
func AsWriteError(err error) (*WriteError, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// =============================================================================
// WARNINGS - Per-row degradations, reported not raised
// =============================================================================

type WarningKind string

const (
	// WarnBadNumber: a numeric cell did not parse and a default was used.
	WarnBadNumber WarningKind = "bad_number"

	// WarnUnknownID: an id in the pass input has no matching row.
	WarnUnknownID WarningKind = "unknown_id"

	// WarnDuplicateID: an id appears more than once in its table.
	WarnDuplicateID WarningKind = "duplicate_id"

	// WarnMissingTable: an optional table was absent and loaded as empty.
	WarnMissingTable WarningKind = "missing_table"
)

// Warning is one degradation observed during a pass.
type Warning struct {
	Kind    WarningKind
	Table   string
	Row     int    // grid row when known, 0 otherwise
	Subject string // the id or column concerned
	Detail  string
}

func (w Warning) String() string {
	s := string(w.Kind)
	if w.Table != "" {
		s += " in " + w.Table
	}
	if w.Row > 0 {
		s += fmt.Sprintf(" row %d", w.Row)
	}
	if w.Subject != "" {
		s += " (" + w.Subject + ")"
	}
	if w.Detail != "" {
		s += ": " + w.Detail
	}
	return s
}
