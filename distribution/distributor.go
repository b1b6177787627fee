/*
distributor.go - Guarded end-to-end distribution

PURPOSE:
  The planner only does math; the Distributor wraps it into a safe
  ledger operation. Before anything is planned it checks that the
  employee exists, has enough balance for the request, and that the
  global budget can cover it. Only then does it run the plan and commit
  the resulting consumption pass.

GUARDS (all before any write):
  - request must name an employee, a region, and a positive ad count
  - requested <= employee's current balance
  - requested <= global balance
  A violated balance guard is an InsufficientBalanceError naming the
  scope and the shortfall.

SEE ALSO:
  - planner.go: The scoring and splitting
  - ledger/session.go: The pass that commits the plan
*/
package distribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/ledger"
)

var (
	// ErrInvalidRequest is returned when the request itself is malformed.
	ErrInvalidRequest = errors.New("invalid distribution request")

	// ErrUnknownEmployee is returned when the employee has no balance row.
	ErrUnknownEmployee = errors.New("unknown employee")
)

// Request is one "distribute N ads in region R for employee E".
type Request struct {
	EmployeeID ledger.EmployeeID
	Region     string
	Ads        int
}

// Result is the full outcome: the plan and, when anything was
// allocated, the committed pass.
type Result struct {
	EmployeeID ledger.EmployeeID
	Region     string
	Requested  int

	Plan *PlanResult

	// Pass is nil when the plan allocated nothing.
	Pass *ledger.PassResult
}

// Distributor runs guarded distributions on top of a ledger session.
type Distributor struct {
	Session *ledger.Session
	Planner *Planner
}

func NewDistributor(session *ledger.Session) *Distributor {
	return &Distributor{Session: session, Planner: NewPlanner()}
}

// Distribute validates, plans and commits one distribution.
func (d *Distributor) Distribute(ctx context.Context, req Request) (*Result, error) {
	// 1. A malformed request never reaches the store.
	if req.Ads <= 0 {
		return nil, fmt.Errorf("ads must be positive, got %d: %w", req.Ads, ErrInvalidRequest)
	}
	if req.Region == "" {
		return nil, fmt.Errorf("region is required: %w", ErrInvalidRequest)
	}
	id := ledger.EmployeeID(ledger.NormalizeID(string(req.EmployeeID)))
	if id == "" {
		return nil, fmt.Errorf("employee id is required: %w", ErrInvalidRequest)
	}

	snap, err := d.Session.LoadReady(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Balance guards, employee first, then the shared budget.
	row, found := snap.BalanceFor(id)
	if !found {
		return nil, fmt.Errorf("employee %s has no balance row: %w", id, ErrUnknownEmployee)
	}
	available, _ := ledger.ParseNumericOrDefault(row.Balance, decimal.Zero)
	requested := decimal.NewFromInt(int64(req.Ads))
	if requested.GreaterThan(available) {
		return nil, &ledger.InsufficientBalanceError{
			Scope:      ledger.ScopeEmployee,
			EmployeeID: id,
			Available:  available,
			Requested:  requested,
			Shortfall:  requested.Sub(available),
		}
	}

	global, err := snap.GlobalBalance()
	if err != nil {
		return nil, err
	}
	if requested.GreaterThan(global) {
		return nil, &ledger.InsufficientBalanceError{
			Scope:     ledger.ScopeGlobal,
			Available: global,
			Requested: requested,
			Shortfall: requested.Sub(global),
		}
	}

	// 3. Plan the spread.
	plan, err := d.Planner.Plan(PlanInput{
		Projects:   snap.Projects,
		Region:     req.Region,
		Ads:        req.Ads,
		EmployeeID: id,
		Date:       d.Session.Clock(),
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		EmployeeID: id,
		Region:     req.Region,
		Requested:  req.Ads,
		Plan:       plan,
	}
	if plan.TotalAllocated == 0 {
		return result, nil
	}

	// 4. Commit as one consumption pass. The pass re-reads the store,
	// so balances moved by a concurrent editor are deducted from their
	// freshest values.
	pass, err := d.Session.ApplyConsumption(ctx, ledger.ConsumptionInput{
		Deductions:   map[ledger.EmployeeID]decimal.Decimal{id: decimal.NewFromInt(int64(plan.TotalAllocated))},
		Attributions: plan.ProjectAds,
		LogEntries:   plan.LogEntries,
	})
	result.Pass = pass
	if err != nil {
		return result, err
	}
	return result, nil
}
