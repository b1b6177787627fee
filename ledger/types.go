/*
Package ledger implements the ad-budget reconciliation engine.

PURPOSE:
  A shared ads balance is split across employees by percentage, consumed
  against projects, and tracked in three denormalized places: the global
  balance cell, per-employee balance rows, and per-project counters. The
  backing store is remote, rate-limited, and has no transactions, so this
  package computes every change up front as pending cell updates and
  pushes them through a batched writer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Table and column names of the ledger layout
  - Typed row views (Employee, BalanceRow, ProjectRow, LogRow) that
    remember their position, so cell addresses can be derived
  - Snapshot: everything one pass read from the store
  - CellUpdate: one pending in-place write

DESIGN PRINCIPLES:
  1. Pure engines: allocation and reconciliation take values, return
     pending updates. No I/O inside.
  2. Precision: decimal.Decimal everywhere, never float64.
  3. Warnings are values: bad cells and unknown ids degrade per row and
     are reported, they never abort a pass.
  4. Writes are explicit: a pass ends with an ordered commit of pending
     updates; nothing writes during computation.

SEE ALSO:
  - loader.go: Builds a Snapshot from the store
  - allocation.go: Initial percentage split
  - reconcile.go: Consumption pass and global deduction
  - writer.go: Chunked, paced cell commits
  - session.go: One full pass, load to commit
*/
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/tablestore"
)

// =============================================================================
// LEDGER LAYOUT - Table and column names
// =============================================================================

const (
	TableGlobalBudget     = "GlobalBudget"
	TableEmployees        = "Employees"
	TableEmployeeBalances = "EmployeeBalances"
	TableProjects         = "Projects"
	TableDistributionLog  = "AdsDistributionLog"
	TableDevelopers       = "Developers"
	TableRegions          = "Regions"
	TableUnitTypes        = "UnitTypes"
)

const (
	ColGlobalBalance    = "GlobalAdsBalance"
	ColEmployeeID       = "EmployeeID"
	ColEmployeeName     = "EmployeeName"
	ColBudgetPercent    = "AdsBudgetPercentage"
	ColAdsBalance       = "AdsBalance"
	ColProjectID        = "ProjectID"
	ColProjectName      = "ProjectName"
	ColDeveloperID      = "DeveloperID"
	ColRegionName       = "RegionName"
	ColUnitTypes        = "UnitTypesInProject"
	ColProjectOrder     = "ProjectOrder"
	ColReq              = "Req"
	ColExcellence       = "ProjectExcellenceScore"
	ColMarketingSize    = "MarketingSize"
	ColAdsDistributed   = "AdsDistributed"
	ColDistributionID   = "DistributionID"
	ColUnitTypeName     = "UnitTypeName"
	ColAdsAllocated     = "AdsAllocated"
	ColDistributionDate = "DistributionDate"
)

// requiredTables must be present and non-empty before any pass runs.
var requiredTables = []string{TableGlobalBudget, TableEmployees, TableProjects}

// balancesHeader is the canonical header used when the engine has to
// create the EmployeeBalances table itself.
var balancesHeader = []string{ColEmployeeID, ColAdsBalance}

// logHeader is the canonical header of the distribution log.
var logHeader = []string{
	ColDistributionID, ColEmployeeID, ColProjectID, ColRegionName,
	ColUnitTypeName, ColAdsAllocated, ColDistributionDate,
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ProjectID string

// =============================================================================
// ROW VIEWS - Typed rows that remember where they live
// =============================================================================

// Employee is one row of the Employees table. Index is the zero-based
// position in the data body; the grid row is tablestore.DataRow(Index).
type Employee struct {
	Index   int
	ID      EmployeeID
	Name    string
	Percent string // raw AdsBudgetPercentage cell, may carry a trailing %
}

// BalanceRow is one row of EmployeeBalances.
type BalanceRow struct {
	Index   int
	ID      EmployeeID
	Balance string // raw AdsBalance cell
}

// ProjectRow is one row of Projects. Numeric fields stay raw; consumers
// parse them best-effort to zero.
type ProjectRow struct {
	Index          int
	ID             ProjectID
	Name           string
	DeveloperID    string
	Region         string
	UnitTypes      string // comma-separated UnitTypesInProject
	Order          string
	Req            string
	Excellence     string
	MarketingSize  string
	AdsDistributed string
}

// LogRow is one row of AdsDistributionLog.
type LogRow struct {
	Index          int
	DistributionID string
	EmployeeID     EmployeeID
	ProjectID      ProjectID
	Region         string
	UnitType       string
	Ads            string
	Date           string
}

// LogEntry is a distribution-log row waiting to be appended.
type LogEntry struct {
	DistributionID string
	EmployeeID     EmployeeID
	ProjectID      ProjectID
	Region         string
	UnitType       string
	Ads            decimal.Decimal
	Date           string
}

// Record projects the entry onto the log table's columns.
func (e LogEntry) Record() tablestore.Record {
	return tablestore.Record{
		ColDistributionID:   e.DistributionID,
		ColEmployeeID:       string(e.EmployeeID),
		ColProjectID:        string(e.ProjectID),
		ColRegionName:       e.Region,
		ColUnitTypeName:     e.UnitType,
		ColAdsAllocated:     e.Ads.String(),
		ColDistributionDate: e.Date,
	}
}

// =============================================================================
// SNAPSHOT - Everything one pass read from the store
// =============================================================================

// TableData is one loaded table: its header, its data rows, and whether
// it existed at all.
type TableData struct {
	Name    string
	Header  []string
	Records []tablestore.Record
	Missing bool
}

// GlobalState is the global balance cell as loaded.
type GlobalState struct {
	Raw   string
	Ref   tablestore.CellRef
	Found bool
}

// Snapshot is the ledger as read at the start of a pass. All engines
// work from a snapshot; nothing re-reads the store mid-pass.
type Snapshot struct {
	Global    GlobalState
	Employees []Employee
	Balances  []BalanceRow
	Projects  []ProjectRow
	Log       []LogRow
	Tables    map[string]TableData
	Warnings  []Warning
}

// Header returns the loaded header of a table, or nil.
func (s *Snapshot) Header(table string) []string {
	return s.Tables[table].Header
}

// RequiredEmpty returns the required tables that are missing or have no
// data rows. A non-empty result means the ledger is not ready.
func (s *Snapshot) RequiredEmpty() []string {
	var empty []string
	for _, name := range requiredTables {
		td, ok := s.Tables[name]
		if !ok || td.Missing || len(td.Records) == 0 {
			empty = append(empty, name)
		}
	}
	return empty
}

// GlobalBalance parses the shared global cell. There is no zero
// default here: a missing column is a ConfigurationError and an
// unparsable value an InvalidStateError.
func (s *Snapshot) GlobalBalance() (decimal.Decimal, error) {
	if !s.Global.Found {
		return decimal.Zero, &ConfigurationError{Table: TableGlobalBudget, Column: ColGlobalBalance}
	}
	value, ok := ParseNumericOrDefault(s.Global.Raw, decimal.Zero)
	if !ok {
		return decimal.Zero, &InvalidStateError{
			Table: TableGlobalBudget,
			Cell:  s.Global.Ref,
			Raw:   s.Global.Raw,
		}
	}
	return value, nil
}

// BalanceFor finds the balance row of an employee.
func (s *Snapshot) BalanceFor(id EmployeeID) (BalanceRow, bool) {
	for _, b := range s.Balances {
		if b.ID == id {
			return b, true
		}
	}
	return BalanceRow{}, false
}

// EmployeeByID finds an employee row.
func (s *Snapshot) EmployeeByID(id EmployeeID) (Employee, bool) {
	for _, e := range s.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

// Regions returns the distinct region names, preferring the Regions
// reference table and falling back to the projects.
func (s *Snapshot) Regions() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, rec := range s.Tables[TableRegions].Records {
		add(rec.Get(ColRegionName))
	}
	if len(out) == 0 {
		for _, p := range s.Projects {
			add(p.Region)
		}
	}
	return out
}

// =============================================================================
// PENDING UPDATES
// =============================================================================

// CellUpdate is one in-place cell write waiting for the batched writer.
type CellUpdate struct {
	Ref   tablestore.CellRef
	Value string
}

// NumericUpdate builds a CellUpdate from a decimal value.
func NumericUpdate(ref tablestore.CellRef, v decimal.Decimal) CellUpdate {
	return CellUpdate{Ref: ref, Value: v.String()}
}
