package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone/ads-ledger/ledger"
	"github.com/keystone/ads-ledger/tablestore"
	"github.com/keystone/ads-ledger/tablestore/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// seedTable creates a table and fills it with rows given in header order.
func seedTable(t *testing.T, store tablestore.Store, name string, header []string, rows ...[]string) {
	t.Helper()
	ctx := context.Background()

	tbl, err := store.Create(ctx, name, header)
	require.NoError(t, err)

	records := make([]tablestore.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(tablestore.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	if len(records) > 0 {
		require.NoError(t, tbl.Append(ctx, records))
	}
}

func seedRequiredTables(t *testing.T, store tablestore.Store) {
	t.Helper()
	seedTable(t, store, ledger.TableGlobalBudget,
		[]string{ledger.ColGlobalBalance},
		[]string{"1000"})
	seedTable(t, store, ledger.TableEmployees, employeesHeader(),
		[]string{"E101", "Aaleyah Khan", "60"},
		[]string{"E102", "Omar Haddad", "40"})
	seedTable(t, store, ledger.TableProjects, projectsHeader(),
		[]string{"P1", "Palm Gardens", "20"})
}

// =============================================================================
// READINESS
// =============================================================================

func TestLoadAll_EmptyStore_NotReady(t *testing.T) {
	// GIVEN: A store with no tables at all
	// WHEN: Loading
	// THEN: Every table is reported missing and the ledger is not ready

	snap, ready, err := ledger.LoadAll(context.Background(), memory.New())
	require.NoError(t, err)

	assert.False(t, ready)
	assert.ElementsMatch(t,
		[]string{ledger.TableGlobalBudget, ledger.TableEmployees, ledger.TableProjects},
		snap.RequiredEmpty())

	for _, w := range snap.Warnings {
		assert.Equal(t, ledger.WarnMissingTable, w.Kind)
	}
	assert.Len(t, snap.Warnings, 8, "one warning per loadable table")
}

func TestLoadAll_RequiredRowsPresent_Ready(t *testing.T) {
	store := memory.New()
	seedRequiredTables(t, store)

	snap, ready, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)

	assert.True(t, ready)
	assert.Empty(t, snap.RequiredEmpty())

	require.True(t, snap.Global.Found)
	assert.Equal(t, "1000", snap.Global.Raw)
	assert.Equal(t, tablestore.CellRef{Row: 2, Col: 1}, snap.Global.Ref)

	require.Len(t, snap.Employees, 2)
	assert.Equal(t, ledger.EmployeeID("E101"), snap.Employees[0].ID)
	assert.Equal(t, "60", snap.Employees[0].Percent)

	require.Len(t, snap.Projects, 1)
	assert.Equal(t, ledger.ProjectID("P1"), snap.Projects[0].ID)
}

func TestLoadAll_RequiredTableWithoutRows_NotReady(t *testing.T) {
	// A created-but-empty Projects table is as unusable as a missing one.
	store := memory.New()
	seedTable(t, store, ledger.TableGlobalBudget,
		[]string{ledger.ColGlobalBalance}, []string{"1000"})
	seedTable(t, store, ledger.TableEmployees, employeesHeader(),
		[]string{"E101", "Aaleyah Khan", "60"})
	seedTable(t, store, ledger.TableProjects, projectsHeader())

	snap, ready, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)

	assert.False(t, ready)
	assert.Equal(t, []string{ledger.TableProjects}, snap.RequiredEmpty())
}

// =============================================================================
// CANONICALIZATION - Store artifacts must not break id matching
// =============================================================================

func TestLoadAll_CanonicalizesNumericCells(t *testing.T) {
	// GIVEN: The store rendered ids and numbers as "101.0" and "600.00"
	// WHEN: Loading
	// THEN: Ids compare equal across tables and numbers read canonical

	store := memory.New()
	seedTable(t, store, ledger.TableGlobalBudget,
		[]string{ledger.ColGlobalBalance}, []string{"1000.0"})
	seedTable(t, store, ledger.TableEmployees, employeesHeader(),
		[]string{"101.0", "Aaleyah Khan", "60"})
	seedTable(t, store, ledger.TableProjects, projectsHeader(),
		[]string{"P1", "Palm Gardens", "20"})
	seedTable(t, store, ledger.TableEmployeeBalances, balancesHeader(),
		[]string{" 101 ", "600.00"})

	snap, ready, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)
	require.True(t, ready)

	assert.Equal(t, "1000", snap.Global.Raw)
	require.Len(t, snap.Employees, 1)
	assert.Equal(t, ledger.EmployeeID("101"), snap.Employees[0].ID)

	row, found := snap.BalanceFor("101")
	require.True(t, found, "balance row must match the employee after canonicalization")
	assert.Equal(t, "600", row.Balance)

	// Text cells pass through untouched.
	assert.Equal(t, "Aaleyah Khan", snap.Employees[0].Name)
}

// =============================================================================
// SNAPSHOT VIEWS
// =============================================================================

func TestSnapshot_Lookups(t *testing.T) {
	store := memory.New()
	seedRequiredTables(t, store)
	seedTable(t, store, ledger.TableEmployeeBalances, balancesHeader(),
		[]string{"E101", "600"})

	snap, _, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)

	emp, found := snap.EmployeeByID("E102")
	require.True(t, found)
	assert.Equal(t, "Omar Haddad", emp.Name)

	_, found = snap.EmployeeByID("E999")
	assert.False(t, found)

	row, found := snap.BalanceFor("E101")
	require.True(t, found)
	assert.Equal(t, "600", row.Balance)

	_, found = snap.BalanceFor("E102")
	assert.False(t, found)
}

func TestSnapshot_Regions_PrefersReferenceTable(t *testing.T) {
	store := memory.New()
	seedRequiredTables(t, store)
	seedTable(t, store, ledger.TableRegions,
		[]string{ledger.ColRegionName},
		[]string{"North"}, []string{"South"})

	snap, _, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, snap.Regions())
}

func TestSnapshot_Regions_FallsBackToProjects(t *testing.T) {
	store := memory.New()
	seedTable(t, store, ledger.TableProjects,
		[]string{ledger.ColProjectID, ledger.ColRegionName},
		[]string{"P1", "North"},
		[]string{"P2", "North"},
		[]string{"P3", "South"})

	snap, _, err := ledger.LoadAll(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, snap.Regions())
}

func TestSnapshot_GlobalBalance(t *testing.T) {
	t.Run("parses the shared cell", func(t *testing.T) {
		store := memory.New()
		seedRequiredTables(t, store)

		snap, _, err := ledger.LoadAll(context.Background(), store)
		require.NoError(t, err)

		global, err := snap.GlobalBalance()
		require.NoError(t, err)
		assert.Equal(t, "1000", global.String())
	})

	t.Run("missing cell is a configuration error", func(t *testing.T) {
		snap, _, err := ledger.LoadAll(context.Background(), memory.New())
		require.NoError(t, err)

		_, err = snap.GlobalBalance()
		assert.True(t, ledger.IsConfiguration(err), "got %v", err)
	})

	t.Run("unparsable cell is an invalid state", func(t *testing.T) {
		store := memory.New()
		seedTable(t, store, ledger.TableGlobalBudget,
			[]string{ledger.ColGlobalBalance}, []string{"plenty"})

		snap, _, err := ledger.LoadAll(context.Background(), store)
		require.NoError(t, err)

		_, err = snap.GlobalBalance()
		assert.True(t, ledger.IsInvalidState(err), "got %v", err)
	})
}
