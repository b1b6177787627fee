/*
seed.go - Demo dataset loader

PURPOSE:
  Populates an empty store with a small, realistic dataset for demos and
  manual testing: a global budget, two employees, four projects across
  two regions, and the reference tables.

HOW SEEDING WORKS:
 1. Refuse if any ledger table already exists (no resets on a remote
    store; wipe the backing database to start over)
 2. Create each table with its header
 3. Append the demo rows

  EmployeeBalances and AdsDistributionLog are deliberately NOT seeded.
  The engine creates them on first use, which is part of what the demo
  shows: seed, then POST /api/balances/initialize, then
  POST /api/distributions.

USAGE VIA API:

	POST /api/admin/seed

NOTE:
  Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Mounts this under /api/admin
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/keystone/ads-ledger/ledger"
	"github.com/keystone/ads-ledger/tablestore"
)

// =============================================================================
// DEMO DATASET
// =============================================================================

// seedTable is one table of the demo dataset.
type seedTable struct {
	name   string
	header []string
	rows   []tablestore.Record
}

func demoDataset() []seedTable {
	return []seedTable{
		{
			name:   ledger.TableGlobalBudget,
			header: []string{ledger.ColGlobalBalance},
			rows: []tablestore.Record{
				{ledger.ColGlobalBalance: "1000"},
			},
		},
		{
			name:   ledger.TableEmployees,
			header: []string{ledger.ColEmployeeID, ledger.ColEmployeeName, ledger.ColBudgetPercent},
			rows: []tablestore.Record{
				{ledger.ColEmployeeID: "E101", ledger.ColEmployeeName: "Aaleyah Khan", ledger.ColBudgetPercent: "60"},
				{ledger.ColEmployeeID: "E102", ledger.ColEmployeeName: "Omar Haddad", ledger.ColBudgetPercent: "40"},
			},
		},
		{
			name: ledger.TableProjects,
			header: []string{
				ledger.ColProjectID, ledger.ColProjectName, ledger.ColDeveloperID,
				ledger.ColRegionName, ledger.ColUnitTypes, ledger.ColProjectOrder,
				ledger.ColReq, ledger.ColExcellence, ledger.ColMarketingSize,
				ledger.ColAdsDistributed,
			},
			rows: []tablestore.Record{
				{
					ledger.ColProjectID: "P1", ledger.ColProjectName: "Palm Gardens",
					ledger.ColDeveloperID: "D1", ledger.ColRegionName: "North",
					ledger.ColUnitTypes: "Apt, Studio", ledger.ColProjectOrder: "1",
					ledger.ColReq: "Yes", ledger.ColExcellence: "80",
					ledger.ColMarketingSize: "100", ledger.ColAdsDistributed: "20",
				},
				{
					ledger.ColProjectID: "P2", ledger.ColProjectName: "Marina Heights",
					ledger.ColDeveloperID: "D2", ledger.ColRegionName: "North",
					ledger.ColUnitTypes: "Villa, Apt", ledger.ColProjectOrder: "2",
					ledger.ColReq: "Yes", ledger.ColExcellence: "95",
					ledger.ColMarketingSize: "150", ledger.ColAdsDistributed: "30",
				},
				{
					ledger.ColProjectID: "P3", ledger.ColProjectName: "Cedar Court",
					ledger.ColDeveloperID: "D1", ledger.ColRegionName: "South",
					ledger.ColUnitTypes: "Studio", ledger.ColProjectOrder: "1",
					ledger.ColReq: "Yes", ledger.ColExcellence: "70",
					ledger.ColMarketingSize: "90", ledger.ColAdsDistributed: "0",
				},
				{
					ledger.ColProjectID: "P4", ledger.ColProjectName: "Harbor View",
					ledger.ColDeveloperID: "D2", ledger.ColRegionName: "North",
					ledger.ColUnitTypes: "Apt", ledger.ColProjectOrder: "3",
					ledger.ColReq: "No", ledger.ColExcellence: "60",
					ledger.ColMarketingSize: "40", ledger.ColAdsDistributed: "0",
				},
			},
		},
		{
			name:   ledger.TableDevelopers,
			header: []string{ledger.ColDeveloperID, "DeveloperName"},
			rows: []tablestore.Record{
				{ledger.ColDeveloperID: "D1", "DeveloperName": "Keystone Developments"},
				{ledger.ColDeveloperID: "D2", "DeveloperName": "Northgate Estates"},
			},
		},
		{
			name:   ledger.TableRegions,
			header: []string{ledger.ColRegionName},
			rows: []tablestore.Record{
				{ledger.ColRegionName: "North"},
				{ledger.ColRegionName: "South"},
			},
		},
		{
			name:   ledger.TableUnitTypes,
			header: []string{ledger.ColUnitTypeName},
			rows: []tablestore.Record{
				{ledger.ColUnitTypeName: "Apt"},
				{ledger.ColUnitTypeName: "Studio"},
				{ledger.ColUnitTypeName: "Villa"},
			},
		},
	}
}

// =============================================================================
// SEED HANDLER
// =============================================================================

// SeedDemo loads the demo dataset into an empty store.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataset := demoDataset()

	// Refuse before creating anything, so a conflict never leaves a
	// half-seeded store behind.
	existing, err := h.Store.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to inspect store", err)
		return
	}
	names := make(map[string]bool, len(existing))
	for _, n := range existing {
		names[n] = true
	}
	for _, t := range dataset {
		if names[t.name] {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("Table %q already exists; seeding needs an empty store", t.name), nil)
			return
		}
	}

	created := 0
	rows := 0
	for _, t := range dataset {
		table, err := h.Store.Create(ctx, t.name, t.header)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create %q", t.name), err)
			return
		}
		created++
		if len(t.rows) == 0 {
			continue
		}
		if err := table.Append(ctx, t.rows); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to seed %q", t.name), err)
			return
		}
		rows += len(t.rows)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "seeded",
		"tables": created,
		"rows":   rows,
	})
}
