/*
loader.go - Reads the whole ledger into a Snapshot

PURPOSE:
  Every pass starts by reading everything it could touch, in one sweep,
  before any computation. Reads are the cheap half of the rate budget;
  re-reading mid-pass would race concurrent editors AND waste quota.

LOADING RULES:
  - A missing table loads as empty (with a warning), it is not an error.
  - Numeric-looking cells are canonicalized ("35.0" -> "35") so later
    comparisons and id lookups behave.
  - The pass may only proceed when GlobalBudget, Employees and Projects
    all have data; EmployeeBalances and the distribution log may be
    empty on a first run.

SEE ALSO:
  - types.go: Snapshot and the row views built here
  - session.go: Turns a not-ready snapshot into a ConfigurationError
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/keystone/ads-ledger/tablestore"
)

// loadedTables is everything a pass may read.
var loadedTables = []string{
	TableGlobalBudget,
	TableEmployees,
	TableEmployeeBalances,
	TableProjects,
	TableDistributionLog,
	TableDevelopers,
	TableRegions,
	TableUnitTypes,
}

// LoadAll reads the ledger from the store. The bool reports readiness:
// true only when every required table has at least one data row. Store
// I/O failures are returned as errors; a missing table is not a failure.
func LoadAll(ctx context.Context, st tablestore.Store) (*Snapshot, bool, error) {
	snap := &Snapshot{Tables: make(map[string]TableData, len(loadedTables))}

	for _, name := range loadedTables {
		td, err := loadTable(ctx, st, name)
		if err != nil {
			return nil, false, err
		}
		if td.Missing {
			snap.Warnings = append(snap.Warnings, Warning{
				Kind:  WarnMissingTable,
				Table: name,
			})
		}
		snap.Tables[name] = td
	}

	snap.Global = globalState(snap.Tables[TableGlobalBudget])
	snap.Employees = employeeRows(snap.Tables[TableEmployees])
	snap.Balances = balanceRows(snap.Tables[TableEmployeeBalances])
	snap.Projects = projectRows(snap.Tables[TableProjects])
	snap.Log = logRows(snap.Tables[TableDistributionLog])

	return snap, len(snap.RequiredEmpty()) == 0, nil
}

func loadTable(ctx context.Context, st tablestore.Store, name string) (TableData, error) {
	tbl, err := st.Open(ctx, name)
	if err != nil {
		if errors.Is(err, tablestore.ErrTableNotFound) {
			return TableData{Name: name, Missing: true}, nil
		}
		return TableData{}, fmt.Errorf("load %q: %w", name, err)
	}

	header, err := tbl.Header(ctx)
	if err != nil {
		return TableData{}, fmt.Errorf("load %q: %w", name, err)
	}
	raw, err := tbl.ReadAll(ctx)
	if err != nil {
		return TableData{}, fmt.Errorf("load %q: %w", name, err)
	}

	records := make([]tablestore.Record, 0, len(raw))
	for _, rec := range raw {
		coerced := make(tablestore.Record, len(rec))
		for col, v := range rec {
			coerced[col] = CanonicalNumber(v)
		}
		records = append(records, coerced)
	}

	return TableData{Name: name, Header: header, Records: records}, nil
}

// =============================================================================
// VIEW BUILDERS
// =============================================================================

func globalState(td TableData) GlobalState {
	col, ok := tablestore.ColumnIndex(td.Header, ColGlobalBalance)
	if !ok || len(td.Records) == 0 {
		return GlobalState{}
	}
	return GlobalState{
		Raw:   td.Records[0].Get(ColGlobalBalance),
		Ref:   tablestore.CellRef{Row: tablestore.DataRow(0), Col: col},
		Found: true,
	}
}

func employeeRows(td TableData) []Employee {
	out := make([]Employee, 0, len(td.Records))
	for i, rec := range td.Records {
		out = append(out, Employee{
			Index:   i,
			ID:      EmployeeID(NormalizeID(rec.Get(ColEmployeeID))),
			Name:    rec.Get(ColEmployeeName),
			Percent: rec.Get(ColBudgetPercent),
		})
	}
	return out
}

func balanceRows(td TableData) []BalanceRow {
	out := make([]BalanceRow, 0, len(td.Records))
	for i, rec := range td.Records {
		out = append(out, BalanceRow{
			Index:   i,
			ID:      EmployeeID(NormalizeID(rec.Get(ColEmployeeID))),
			Balance: rec.Get(ColAdsBalance),
		})
	}
	return out
}

func projectRows(td TableData) []ProjectRow {
	out := make([]ProjectRow, 0, len(td.Records))
	for i, rec := range td.Records {
		out = append(out, ProjectRow{
			Index:          i,
			ID:             ProjectID(NormalizeID(rec.Get(ColProjectID))),
			Name:           rec.Get(ColProjectName),
			DeveloperID:    rec.Get(ColDeveloperID),
			Region:         rec.Get(ColRegionName),
			UnitTypes:      rec.Get(ColUnitTypes),
			Order:          rec.Get(ColProjectOrder),
			Req:            rec.Get(ColReq),
			Excellence:     rec.Get(ColExcellence),
			MarketingSize:  rec.Get(ColMarketingSize),
			AdsDistributed: rec.Get(ColAdsDistributed),
		})
	}
	return out
}

func logRows(td TableData) []LogRow {
	out := make([]LogRow, 0, len(td.Records))
	for i, rec := range td.Records {
		out = append(out, LogRow{
			Index:          i,
			DistributionID: rec.Get(ColDistributionID),
			EmployeeID:     EmployeeID(NormalizeID(rec.Get(ColEmployeeID))),
			ProjectID:      ProjectID(NormalizeID(rec.Get(ColProjectID))),
			Region:         rec.Get(ColRegionName),
			UnitType:       rec.Get(ColUnitTypeName),
			Ads:            rec.Get(ColAdsAllocated),
			Date:           rec.Get(ColDistributionDate),
		})
	}
	return out
}
