/*
session.go - One reconciliation pass, load to commit

PURPOSE:
  A Session binds the store, the engines and the writer for a single
  synchronous pass. Sessions are cheap and short-lived: construct one,
  run one operation, drop it. Nothing caches across passes, so every
  pass sees a fresh read of the store.

WRITE ORDER:
  A consumption pass commits in a fixed order:
    1. append distribution-log rows     (audit trail first)
    2. employee balance cells
    3. project counter cells
    4. the global balance cell          (shared cell last)
  The first failure aborts the remaining steps. Whatever was already
  committed stays; the PassResult reports how far the pass got, and
  re-running the pass against a fresh snapshot converges because the
  computation is deterministic.

SEE ALSO:
  - loader.go: The read sweep
  - allocation.go, reconcile.go: The pure engines
  - writer.go: Chunked commits
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/tablestore"
)

// Session runs ledger passes against one store. Fields are exported so
// tests and hosts can swap the writer or the clock.
type Session struct {
	Store  tablestore.Store
	Writer *BatchWriter
	Clock  func() time.Time
}

func NewSession(store tablestore.Store) *Session {
	return &Session{
		Store:  store,
		Writer: NewBatchWriter(),
		Clock:  time.Now,
	}
}

// Load reads the ledger. Thin wrapper so callers outside the package
// get a snapshot through the session they already hold.
func (s *Session) Load(ctx context.Context) (*Snapshot, bool, error) {
	return LoadAll(ctx, s.Store)
}

// LoadReady loads and insists the ledger is usable: every required
// table present with at least one data row.
func (s *Session) LoadReady(ctx context.Context) (*Snapshot, error) {
	snap, ok, err := LoadAll(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConfigurationError{
			Reason: "required tables empty or missing: " + strings.Join(snap.RequiredEmpty(), ", "),
		}
	}
	return snap, nil
}

// openOrCreate opens a table, creating it with the given header when it
// does not exist yet. A concurrent creator losing the race is fine; the
// existing table wins.
func (s *Session) openOrCreate(ctx context.Context, name string, header []string) (tablestore.Table, error) {
	tbl, err := s.Store.Open(ctx, name)
	if err == nil {
		return tbl, nil
	}
	if !errors.Is(err, tablestore.ErrTableNotFound) {
		return nil, err
	}

	tbl, err = s.Store.Create(ctx, name, header)
	if errors.Is(err, tablestore.ErrTableExists) {
		return s.Store.Open(ctx, name)
	}
	return tbl, err
}

// =============================================================================
// INITIALIZE BALANCES
// =============================================================================

// InitializeResult reports one initialization pass.
type InitializeResult struct {
	Appended       int
	Updated        int
	TotalAllocated decimal.Decimal
	Warnings       []Warning
}

// InitializeBalances computes every employee's share of the global
// balance and writes it: new rows appended, existing rows corrected in
// place. The EmployeeBalances table is created on first run.
func (s *Session) InitializeBalances(ctx context.Context) (*InitializeResult, error) {
	// 1. Read everything, refuse to run on an unusable ledger.
	snap, err := s.LoadReady(ctx)
	if err != nil {
		return nil, err
	}
	global, err := snap.GlobalBalance()
	if err != nil {
		return nil, err
	}

	// 2. Compute the split.
	balancesData := snap.Tables[TableEmployeeBalances]
	out, err := NewAllocationEngine().Initialize(AllocationInput{
		Global:          global,
		EmployeesHeader: snap.Header(TableEmployees),
		Employees:       snap.Employees,
		BalancesPresent: !balancesData.Missing,
		BalancesHeader:  balancesData.Header,
		Balances:        snap.Balances,
	})
	if err != nil {
		return nil, err
	}

	result := &InitializeResult{
		TotalAllocated: out.TotalAllocated,
		Warnings:       append(append([]Warning{}, snap.Warnings...), out.Warnings...),
	}

	// 3. Commit: appends first, then in-place corrections.
	table, err := s.openOrCreate(ctx, TableEmployeeBalances, balancesHeader)
	if err != nil {
		return result, err
	}
	if len(out.Appends) > 0 {
		if err := table.Append(ctx, out.Appends); err != nil {
			return result, fmt.Errorf("append to %q: %w", TableEmployeeBalances, err)
		}
		result.Appended = len(out.Appends)
	}
	updated, err := s.Writer.Commit(ctx, table, out.Updates)
	result.Updated = updated
	if err != nil {
		return result, err
	}

	return result, nil
}

// =============================================================================
// CONSUMPTION PASS
// =============================================================================

// ConsumptionInput is one consumption pass from the host's perspective.
type ConsumptionInput struct {
	Deductions   map[EmployeeID]decimal.Decimal
	Attributions map[ProjectID]decimal.Decimal

	// LogEntries are appended to the distribution log before any balance
	// moves, so the audit trail exists even when a later step fails.
	LogEntries []LogEntry
}

// PassResult reports how far a consumption pass got. On error it is
// still returned, with the counts of what was committed before the
// abort.
type PassResult struct {
	LogAppended   int
	EmployeeCells int
	ProjectCells  int
	GlobalCells   int
	TotalDeducted decimal.Decimal
	Warnings      []Warning
}

// ApplyConsumption runs one reconciliation pass: deduct employee
// balances, grow project counters, deduct the global balance by what
// was actually applied. Fatal conditions (unusable layout, unparsable
// global cell, negative input) surface before anything is written.
func (s *Session) ApplyConsumption(ctx context.Context, in ConsumptionInput) (*PassResult, error) {
	// 1. Read and compute; no writes can happen past this point until
	// every pending update is known.
	snap, err := s.LoadReady(ctx)
	if err != nil {
		return nil, err
	}

	out, err := NewReconciler().Reconcile(ReconcileInput{
		Deductions:     in.Deductions,
		Attributions:   in.Attributions,
		BalancesHeader: snap.Header(TableEmployeeBalances),
		Balances:       snap.Balances,
		ProjectsHeader: snap.Header(TableProjects),
		Projects:       snap.Projects,
	})
	if err != nil {
		return nil, err
	}

	globalUpdate, err := DeductGlobal(snap.Global, out.TotalDeducted)
	if err != nil {
		return nil, err
	}

	result := &PassResult{
		TotalDeducted: out.TotalDeducted,
		Warnings:      append(append([]Warning{}, snap.Warnings...), out.Warnings...),
	}

	// 2. Audit trail first.
	if len(in.LogEntries) > 0 {
		logTable, err := s.openOrCreate(ctx, TableDistributionLog, logHeader)
		if err != nil {
			return result, err
		}
		records := make([]tablestore.Record, 0, len(in.LogEntries))
		for _, e := range in.LogEntries {
			records = append(records, e.Record())
		}
		if err := logTable.Append(ctx, records); err != nil {
			return result, fmt.Errorf("append to %q: %w", TableDistributionLog, err)
		}
		result.LogAppended = len(records)
	}

	// 3. Employee balances.
	if len(out.EmployeeUpdates) > 0 {
		table, err := s.Store.Open(ctx, TableEmployeeBalances)
		if err != nil {
			return result, err
		}
		n, err := s.Writer.Commit(ctx, table, out.EmployeeUpdates)
		result.EmployeeCells = n
		if err != nil {
			return result, err
		}
	}

	// 4. Project counters.
	if len(out.ProjectUpdates) > 0 {
		table, err := s.Store.Open(ctx, TableProjects)
		if err != nil {
			return result, err
		}
		n, err := s.Writer.Commit(ctx, table, out.ProjectUpdates)
		result.ProjectCells = n
		if err != nil {
			return result, err
		}
	}

	// 5. The shared cell, last.
	table, err := s.Store.Open(ctx, TableGlobalBudget)
	if err != nil {
		return result, err
	}
	n, err := s.Writer.Commit(ctx, table, []CellUpdate{globalUpdate})
	result.GlobalCells = n
	if err != nil {
		return result, err
	}

	return result, nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// EmployeeBalance joins an employee with their current balance for
// display.
type EmployeeBalance struct {
	ID      EmployeeID
	Name    string
	Percent string
	Balance string
}

// LedgerSummary is the read-only view a host shows.
type LedgerSummary struct {
	Ready         bool
	GlobalRaw     string
	GlobalBalance decimal.Decimal
	Employees     []EmployeeBalance
	Regions       []string
	ProjectCount  int
	LogCount      int
	Warnings      []Warning
}

// Summary reads the ledger without writing anything. It works on a
// not-ready ledger too; Ready reports whether passes could run.
func (s *Session) Summary(ctx context.Context) (*LedgerSummary, error) {
	snap, ok, err := LoadAll(ctx, s.Store)
	if err != nil {
		return nil, err
	}

	global, _ := ParseNumericOrDefault(snap.Global.Raw, decimal.Zero)
	summary := &LedgerSummary{
		Ready:         ok,
		GlobalRaw:     snap.Global.Raw,
		GlobalBalance: global,
		Regions:       snap.Regions(),
		ProjectCount:  len(snap.Projects),
		LogCount:      len(snap.Log),
		Warnings:      snap.Warnings,
	}

	for _, emp := range snap.Employees {
		eb := EmployeeBalance{ID: emp.ID, Name: emp.Name, Percent: emp.Percent}
		if row, found := snap.BalanceFor(emp.ID); found {
			eb.Balance = row.Balance
		}
		summary.Employees = append(summary.Employees, eb)
	}

	return summary, nil
}
