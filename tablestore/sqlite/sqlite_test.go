package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone/ads-ledger/tablestore"
	"github.com/keystone/ads-ledger/tablestore/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// STORE LIFECYCLE TESTS
// =============================================================================

func TestStore_CreateOpenList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Open(ctx, "Employees")
	assert.ErrorIs(t, err, tablestore.ErrTableNotFound)

	_, err = store.Create(ctx, "Employees", []string{"EmployeeID", "Name"})
	require.NoError(t, err)

	_, err = store.Create(ctx, "Employees", []string{"EmployeeID"})
	assert.ErrorIs(t, err, tablestore.ErrTableExists)

	table, err := store.Open(ctx, "Employees")
	require.NoError(t, err)
	header, err := table.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EmployeeID", "Name"}, header)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Employees"}, names)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file-backed store with one table and one row
	// WHEN: Closing and reopening the same file
	// THEN: The table and its data are still there

	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)

	table, err := store.Create(ctx, "GlobalBudget", []string{"GlobalAdsBalance"})
	require.NoError(t, err)
	require.NoError(t, table.Append(ctx, []tablestore.Record{{"GlobalAdsBalance": "1000"}}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	table, err = reopened.Open(ctx, "GlobalBudget")
	require.NoError(t, err)
	records, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1000", records[0].Get("GlobalAdsBalance"))
}

// =============================================================================
// READ/WRITE TESTS
// =============================================================================

func TestTable_AppendAndReadAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	table, err := store.Create(ctx, "Projects", []string{"ProjectID", "RegionName"})
	require.NoError(t, err)

	require.NoError(t, table.Append(ctx, []tablestore.Record{
		{"ProjectID": "P1", "RegionName": "North"},
		{"ProjectID": "P2"},
	}))

	records, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "P1", records[0].Get("ProjectID"))
	assert.Equal(t, "North", records[0].Get("RegionName"))
	assert.Equal(t, "", records[1].Get("RegionName"))
}

func TestTable_AppendEmptyRecord_KeepsRowPosition(t *testing.T) {
	// Every header column is written on append, so a row of empty values
	// still occupies its row index.
	store := newTestStore(t)
	ctx := context.Background()

	table, err := store.Create(ctx, "Employees", []string{"EmployeeID"})
	require.NoError(t, err)

	require.NoError(t, table.Append(ctx, []tablestore.Record{{}}))
	require.NoError(t, table.Append(ctx, []tablestore.Record{{"EmployeeID": "E2"}}))

	records, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "", records[0].Get("EmployeeID"))
	assert.Equal(t, "E2", records[1].Get("EmployeeID"))
}

func TestTable_ReadCell(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	table, err := store.Create(ctx, "GlobalBudget", []string{"GlobalAdsBalance"})
	require.NoError(t, err)
	require.NoError(t, table.Append(ctx, []tablestore.Record{{"GlobalAdsBalance": "1000"}}))

	got, err := table.ReadCell(ctx, tablestore.CellRef{Row: 1, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, "GlobalAdsBalance", got, "row 1 is the header")

	got, err = table.ReadCell(ctx, tablestore.CellRef{Row: 2, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, "1000", got)

	got, err = table.ReadCell(ctx, tablestore.CellRef{Row: 7, Col: 7})
	require.NoError(t, err)
	assert.Equal(t, "", got, "unset cells read as empty")

	_, err = table.ReadCell(ctx, tablestore.CellRef{Row: 0, Col: 1})
	assert.ErrorIs(t, err, tablestore.ErrBadRange)
}

func TestTable_BatchWrite_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	table, err := store.Create(ctx, "EmployeeBalances", []string{"EmployeeID", "AdsBalance"})
	require.NoError(t, err)
	require.NoError(t, table.Append(ctx, []tablestore.Record{
		{"EmployeeID": "E1", "AdsBalance": "600"},
	}))

	// Overwrite one existing cell, write one brand-new cell below.
	require.NoError(t, table.BatchWrite(ctx, []tablestore.CellWrite{
		tablestore.Write(tablestore.CellRef{Row: 2, Col: 2}, "550"),
		tablestore.Write(tablestore.CellRef{Row: 3, Col: 2}, "0"),
	}))

	records, err := table.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "550", records[0].Get("AdsBalance"))
	assert.Equal(t, "0", records[1].Get("AdsBalance"))
}

func TestTable_BatchWrite_BadShapeRejectsBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	table, err := store.Create(ctx, "Projects", []string{"ProjectID"})
	require.NoError(t, err)

	err = table.BatchWrite(ctx, []tablestore.CellWrite{
		tablestore.Write(tablestore.CellRef{Row: 2, Col: 1}, "P1"),
		{
			Range: tablestore.Range{
				From: tablestore.CellRef{Row: 2, Col: 0},
				To:   tablestore.CellRef{Row: 2, Col: 0},
			},
			Values: [][]string{{"bad"}},
		},
	})
	assert.ErrorIs(t, err, tablestore.ErrBadRange)

	records, err := table.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records, "nothing from a rejected batch may land")
}
