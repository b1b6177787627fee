/*
allocation.go - Initial split of the global budget across employees

PURPOSE:
  Every employee carries a budget percentage. Initialization turns the
  global balance into per-employee balances: share = global * pct / 100.
  Employees that already have a balance row get it overwritten in place;
  employees without one get a new row appended. The engine never creates
  a second row for the same EmployeeID.

FAILURE MODEL:
  - Percentage column missing entirely -> ConfigurationError (fatal)
  - One employee's percentage unparsable -> warning, employee skipped
  - Duplicate EmployeeID in the source -> warning, first row wins

EXAMPLE:
  engine := NewAllocationEngine()
  out, err := engine.Initialize(AllocationInput{
      Global:    decimal.NewFromInt(1000),
      Employees: snap.Employees,
      Balances:  snap.Balances,
      ...
  })
  // out.Appends -> rows for employees with no balance yet
  // out.Updates -> in-place corrections for employees that have one

SEE ALSO:
  - session.go: Wraps this with the load and the writes
  - reconcile.go: The consumption counterpart
*/
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/tablestore"
)

// AllocationInput is everything Initialize needs, already loaded.
type AllocationInput struct {
	Global          decimal.Decimal
	EmployeesHeader []string
	Employees       []Employee

	// BalancesPresent distinguishes "table exists" from "first run".
	// When the table exists its header must carry the target column;
	// when it does not, the engine only produces appends.
	BalancesPresent bool
	BalancesHeader  []string
	Balances        []BalanceRow
}

// AllocationOutput is the pending work of one initialization.
type AllocationOutput struct {
	// Appends are new balance rows, in employee order.
	Appends []tablestore.Record

	// Updates are in-place corrections to existing balance rows.
	Updates []CellUpdate

	// TotalAllocated is the sum of every share that was computed.
	TotalAllocated decimal.Decimal

	Warnings []Warning
}

// AllocationEngine computes initial balances. It is pure: no I/O, no
// clock, same input gives same output.
type AllocationEngine struct{}

func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{}
}

var oneHundred = decimal.NewFromInt(100)

// Initialize computes the percentage split of the global balance.
func (ae *AllocationEngine) Initialize(in AllocationInput) (*AllocationOutput, error) {
	// 1. The employee source must carry ids and percentages.
	if _, ok := tablestore.ColumnIndex(in.EmployeesHeader, ColEmployeeID); !ok {
		return nil, &ConfigurationError{Table: TableEmployees, Column: ColEmployeeID}
	}
	if _, ok := tablestore.ColumnIndex(in.EmployeesHeader, ColBudgetPercent); !ok {
		return nil, &ConfigurationError{Table: TableEmployees, Column: ColBudgetPercent}
	}

	// 2. An existing balances table must carry the target column, or
	// both updates and appends would write into the void.
	balanceCol, haveBalanceCol := tablestore.ColumnIndex(in.BalancesHeader, ColAdsBalance)
	if in.BalancesPresent && !haveBalanceCol {
		return nil, &ConfigurationError{Table: TableEmployeeBalances, Column: ColAdsBalance}
	}

	out := &AllocationOutput{TotalAllocated: decimal.Zero}

	// 3. Index existing balance rows. First row wins on duplicates so
	// repeated initializations stay deterministic.
	existing := make(map[EmployeeID]BalanceRow, len(in.Balances))
	for _, b := range in.Balances {
		if b.ID == "" {
			continue
		}
		if _, dup := existing[b.ID]; dup {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnDuplicateID,
				Table:   TableEmployeeBalances,
				Row:     tablestore.DataRow(b.Index),
				Subject: string(b.ID),
			})
			continue
		}
		existing[b.ID] = b
	}

	// 4. One share per employee, skipping rows that cannot allocate.
	seen := make(map[EmployeeID]bool, len(in.Employees))
	for _, emp := range in.Employees {
		if emp.ID == "" {
			out.Warnings = append(out.Warnings, Warning{
				Kind:   WarnUnknownID,
				Table:  TableEmployees,
				Row:    tablestore.DataRow(emp.Index),
				Detail: "blank EmployeeID, row skipped",
			})
			continue
		}
		if seen[emp.ID] {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnDuplicateID,
				Table:   TableEmployees,
				Row:     tablestore.DataRow(emp.Index),
				Subject: string(emp.ID),
			})
			continue
		}
		seen[emp.ID] = true

		pct, ok := ParsePercent(emp.Percent)
		if !ok {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnBadNumber,
				Table:   TableEmployees,
				Row:     tablestore.DataRow(emp.Index),
				Subject: string(emp.ID),
				Detail:  "unparsable " + ColBudgetPercent + ", no balance allocated",
			})
			continue
		}

		share := in.Global.Mul(pct).Div(oneHundred)
		out.TotalAllocated = out.TotalAllocated.Add(share)

		if row, ok := existing[emp.ID]; ok {
			ref := tablestore.CellRef{Row: tablestore.DataRow(row.Index), Col: balanceCol}
			out.Updates = append(out.Updates, NumericUpdate(ref, share))
			continue
		}
		out.Appends = append(out.Appends, tablestore.Record{
			ColEmployeeID: string(emp.ID),
			ColAdsBalance: share.String(),
		})
	}

	return out, nil
}
