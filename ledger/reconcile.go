/*
reconcile.go - Consumption pass over balances and project counters

PURPOSE:
  A consumption pass takes two maps: how much each employee consumed,
  and how much each project received. It turns them into pending cell
  updates against the loaded snapshot. The math is plain:

    employee balance  -= deduction
    project counter   += attribution
    global balance    -= sum of deductions actually applied

  "Actually applied" matters: a deduction whose employee has no balance
  row is skipped with a warning and MUST NOT be taken from the global
  balance, or the ledger drifts.

PURITY:
  Reconcile does no I/O. It cannot fail halfway through a write because
  it never writes; the session commits its output afterwards.

SEE ALSO:
  - allocation.go: The initialization counterpart
  - writer.go: Commits the pending updates this file produces
*/
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/tablestore"
)

// ReconcileInput is one consumption pass, already loaded.
type ReconcileInput struct {
	// Deductions is consumed amount per employee. Values must be >= 0.
	Deductions map[EmployeeID]decimal.Decimal

	// Attributions is received amount per project. Values must be >= 0;
	// project counters only ever grow.
	Attributions map[ProjectID]decimal.Decimal

	BalancesHeader []string
	Balances       []BalanceRow
	ProjectsHeader []string
	Projects       []ProjectRow
}

// ReconcileOutput is the pending work of one consumption pass.
type ReconcileOutput struct {
	EmployeeUpdates []CellUpdate
	ProjectUpdates  []CellUpdate

	// TotalDeducted sums the deductions that found a balance row. This
	// is the amount the global balance owes.
	TotalDeducted decimal.Decimal

	Warnings []Warning
}

// Reconciler computes consumption updates. Pure, like AllocationEngine.
type Reconciler struct{}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile validates the input and computes every pending update.
func (r *Reconciler) Reconcile(in ReconcileInput) (*ReconcileOutput, error) {
	// 1. Consumption is additive-only; a negative value anywhere rejects
	// the whole pass before a single cell is touched.
	for _, id := range sortedEmployeeIDs(in.Deductions) {
		if in.Deductions[id].IsNegative() {
			return nil, fmt.Errorf("deduction for employee %s is %v: %w",
				id, in.Deductions[id], ErrNegativeAmount)
		}
	}
	for _, id := range sortedProjectIDs(in.Attributions) {
		if in.Attributions[id].IsNegative() {
			return nil, fmt.Errorf("attribution for project %s is %v: %w",
				id, in.Attributions[id], ErrNegativeAmount)
		}
	}

	// 2. Locate the target columns.
	balanceCol, ok := tablestore.ColumnIndex(in.BalancesHeader, ColAdsBalance)
	if len(in.Deductions) > 0 && !ok {
		return nil, &ConfigurationError{Table: TableEmployeeBalances, Column: ColAdsBalance}
	}
	distributedCol, ok := tablestore.ColumnIndex(in.ProjectsHeader, ColAdsDistributed)
	if len(in.Attributions) > 0 && !ok {
		return nil, &ConfigurationError{Table: TableProjects, Column: ColAdsDistributed}
	}

	out := &ReconcileOutput{TotalDeducted: decimal.Zero}

	// 3. Index rows by id, first row winning on duplicates.
	balances := make(map[EmployeeID]BalanceRow, len(in.Balances))
	for _, b := range in.Balances {
		if b.ID == "" {
			continue
		}
		if _, dup := balances[b.ID]; dup {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnDuplicateID,
				Table:   TableEmployeeBalances,
				Row:     tablestore.DataRow(b.Index),
				Subject: string(b.ID),
			})
			continue
		}
		balances[b.ID] = b
	}
	projects := make(map[ProjectID]ProjectRow, len(in.Projects))
	for _, p := range in.Projects {
		if p.ID == "" {
			continue
		}
		if _, dup := projects[p.ID]; dup {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnDuplicateID,
				Table:   TableProjects,
				Row:     tablestore.DataRow(p.Index),
				Subject: string(p.ID),
			})
			continue
		}
		projects[p.ID] = p
	}

	// 4. Employee deductions, in id order for deterministic output.
	for _, id := range sortedEmployeeIDs(in.Deductions) {
		row, found := balances[id]
		if !found {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnUnknownID,
				Table:   TableEmployeeBalances,
				Subject: string(id),
				Detail:  "no balance row, deduction skipped",
			})
			continue
		}

		current, parsed := ParseNumericOrDefault(row.Balance, decimal.Zero)
		if !parsed {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnBadNumber,
				Table:   TableEmployeeBalances,
				Row:     tablestore.DataRow(row.Index),
				Subject: string(id),
				Detail:  "unparsable " + ColAdsBalance + " treated as 0",
			})
		}

		deduction := in.Deductions[id]
		ref := tablestore.CellRef{Row: tablestore.DataRow(row.Index), Col: balanceCol}
		out.EmployeeUpdates = append(out.EmployeeUpdates, NumericUpdate(ref, current.Sub(deduction)))
		out.TotalDeducted = out.TotalDeducted.Add(deduction)
	}

	// 5. Project attributions, same shape, strictly additive.
	for _, id := range sortedProjectIDs(in.Attributions) {
		row, found := projects[id]
		if !found {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnUnknownID,
				Table:   TableProjects,
				Subject: string(id),
				Detail:  "no project row, attribution skipped",
			})
			continue
		}

		current, parsed := ParseNumericOrDefault(row.AdsDistributed, decimal.Zero)
		if !parsed {
			out.Warnings = append(out.Warnings, Warning{
				Kind:    WarnBadNumber,
				Table:   TableProjects,
				Row:     tablestore.DataRow(row.Index),
				Subject: string(id),
				Detail:  "unparsable " + ColAdsDistributed + " treated as 0",
			})
		}

		ref := tablestore.CellRef{Row: tablestore.DataRow(row.Index), Col: distributedCol}
		out.ProjectUpdates = append(out.ProjectUpdates, NumericUpdate(ref, current.Add(in.Attributions[id])))
	}

	return out, nil
}

// =============================================================================
// GLOBAL BUDGET
// =============================================================================

// DeductGlobal computes the new global balance cell. Unlike row cells,
// the shared global cell never defaults: an unparsable value is an
// InvalidStateError and the pass must not write anything.
func DeductGlobal(g GlobalState, totalDeducted decimal.Decimal) (CellUpdate, error) {
	if !g.Found {
		return CellUpdate{}, &ConfigurationError{Table: TableGlobalBudget, Column: ColGlobalBalance}
	}

	current, ok := ParseNumericOrDefault(g.Raw, decimal.Zero)
	if !ok {
		return CellUpdate{}, &InvalidStateError{Table: TableGlobalBudget, Cell: g.Ref, Raw: g.Raw}
	}

	return NumericUpdate(g.Ref, current.Sub(totalDeducted)), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortedEmployeeIDs(m map[EmployeeID]decimal.Decimal) []EmployeeID {
	ids := make([]EmployeeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedProjectIDs(m map[ProjectID]decimal.Decimal) []ProjectID {
	ids := make([]ProjectID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
