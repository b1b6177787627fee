package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone/ads-ledger/ledger"
	"github.com/keystone/ads-ledger/tablestore"
	"github.com/keystone/ads-ledger/tablestore/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================
// Note: seedTable lives in loader_test.go

func newTestSession(store tablestore.Store) *ledger.Session {
	s := ledger.NewSession(store)
	// No pacing in tests; the chunking itself is covered in writer_test.go.
	s.Writer = &ledger.BatchWriter{ChunkSize: 5, Pause: 0}
	s.Clock = func() time.Time {
		return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func ledgerProjectsHeader() []string {
	return []string{
		ledger.ColProjectID, ledger.ColProjectName,
		ledger.ColRegionName, ledger.ColAdsDistributed,
	}
}

// seedLedgerFixture makes the ledger ready: a 1000-ad global budget, two
// employees on a 60/40 split, two projects with running counters.
func seedLedgerFixture(t *testing.T, store tablestore.Store) {
	t.Helper()
	seedTable(t, store, ledger.TableGlobalBudget,
		[]string{ledger.ColGlobalBalance},
		[]string{"1000"})
	seedTable(t, store, ledger.TableEmployees, employeesHeader(),
		[]string{"E101", "Aaleyah Khan", "60"},
		[]string{"E102", "Omar Haddad", "40"})
	seedTable(t, store, ledger.TableProjects, ledgerProjectsHeader(),
		[]string{"P1", "Palm Gardens", "North", "20"},
		[]string{"P2", "Marina Heights", "North", "30"})
}

func seedBalanceRows(t *testing.T, store tablestore.Store) {
	t.Helper()
	seedTable(t, store, ledger.TableEmployeeBalances, balancesHeader(),
		[]string{"E101", "600"},
		[]string{"E102", "400"})
}

func readCell(t *testing.T, store tablestore.Store, table string, ref tablestore.CellRef) string {
	t.Helper()
	ctx := context.Background()
	tbl, err := store.Open(ctx, table)
	require.NoError(t, err)
	v, err := tbl.ReadCell(ctx, ref)
	require.NoError(t, err)
	return v
}

// =============================================================================
// INITIALIZE BALANCES
// =============================================================================

func TestSession_InitializeBalances_FirstRun_CreatesTable(t *testing.T) {
	// GIVEN: A ready ledger with no EmployeeBalances table yet
	// WHEN: Initializing
	// THEN: The table is created and both shares appended

	store := memory.New()
	seedLedgerFixture(t, store)
	session := newTestSession(store)

	result, err := session.InitializeBalances(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Appended)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, "1000", result.TotalAllocated.String())

	ctx := context.Background()
	tbl, err := store.Open(ctx, ledger.TableEmployeeBalances)
	require.NoError(t, err)
	header, err := tbl.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ledger.ColEmployeeID, ledger.ColAdsBalance}, header)

	records, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "E101", records[0].Get(ledger.ColEmployeeID))
	assert.Equal(t, "600", records[0].Get(ledger.ColAdsBalance))
	assert.Equal(t, "400", records[1].Get(ledger.ColAdsBalance))
}

func TestSession_InitializeBalances_Rerun_CorrectsInPlace(t *testing.T) {
	// GIVEN: Balances exist but E101's cell was edited to 1
	// WHEN: Initializing again
	// THEN: Both cells are rewritten in place; no rows are added

	store := memory.New()
	seedLedgerFixture(t, store)
	session := newTestSession(store)
	ctx := context.Background()

	_, err := session.InitializeBalances(ctx)
	require.NoError(t, err)

	tbl, err := store.Open(ctx, ledger.TableEmployeeBalances)
	require.NoError(t, err)
	require.NoError(t, tbl.BatchWrite(ctx, []tablestore.CellWrite{
		tablestore.Write(tablestore.CellRef{Row: 2, Col: 2}, "1"),
	}))

	result, err := session.InitializeBalances(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Appended)
	assert.Equal(t, 2, result.Updated)

	records, err := tbl.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2, "rerun must not add rows")
	assert.Equal(t, "600", records[0].Get(ledger.ColAdsBalance))
	assert.Equal(t, "400", records[1].Get(ledger.ColAdsBalance))
}

func TestSession_InitializeBalances_NotReady_Fails(t *testing.T) {
	session := newTestSession(memory.New())

	result, err := session.InitializeBalances(context.Background())
	assert.Nil(t, result)
	assert.True(t, ledger.IsConfiguration(err), "got %v", err)
}

func TestSession_InitializeBalances_BalancesWithoutColumn_Fails(t *testing.T) {
	store := memory.New()
	seedLedgerFixture(t, store)
	seedTable(t, store, ledger.TableEmployeeBalances,
		[]string{ledger.ColEmployeeID},
		[]string{"E101"})
	session := newTestSession(store)

	_, err := session.InitializeBalances(context.Background())
	assert.True(t, ledger.IsConfiguration(err), "got %v", err)
}

// =============================================================================
// CONSUMPTION PASS
// =============================================================================

func consumptionFixture() ledger.ConsumptionInput {
	entry := func(id string, project ledger.ProjectID, unit string, n int64) ledger.LogEntry {
		return ledger.LogEntry{
			DistributionID: id,
			EmployeeID:     "E101",
			ProjectID:      project,
			Region:         "North",
			UnitType:       unit,
			Ads:            decimal.NewFromInt(n),
			Date:           "2025-06-01 12:00:00",
		}
	}
	return ledger.ConsumptionInput{
		Deductions: map[ledger.EmployeeID]decimal.Decimal{
			"E101": decimal.NewFromInt(50),
		},
		Attributions: map[ledger.ProjectID]decimal.Decimal{
			"P1": decimal.NewFromInt(21),
			"P2": decimal.NewFromInt(29),
		},
		LogEntries: []ledger.LogEntry{
			entry("d-1", "P1", "Apt", 11),
			entry("d-2", "P1", "Studio", 10),
			entry("d-3", "P2", "Villa", 15),
			entry("d-4", "P2", "Apt", 14),
		},
	}
}

func TestSession_ApplyConsumption_MovesEveryBalance(t *testing.T) {
	// GIVEN: E101 holds 600, P1/P2 count 20/30, the global holds 1000
	// WHEN: Consuming 50 ads split 21/29 across the projects
	// THEN: Log rows land first, then 550 / 41 / 59 / 950

	store := memory.New()
	seedLedgerFixture(t, store)
	seedBalanceRows(t, store)
	session := newTestSession(store)
	ctx := context.Background()

	result, err := session.ApplyConsumption(ctx, consumptionFixture())
	require.NoError(t, err)

	assert.Equal(t, 4, result.LogAppended)
	assert.Equal(t, 1, result.EmployeeCells)
	assert.Equal(t, 2, result.ProjectCells)
	assert.Equal(t, 1, result.GlobalCells)
	assert.Equal(t, "50", result.TotalDeducted.String())

	assert.Equal(t, "550", readCell(t, store, ledger.TableEmployeeBalances, tablestore.CellRef{Row: 2, Col: 2}))
	assert.Equal(t, "41", readCell(t, store, ledger.TableProjects, tablestore.CellRef{Row: 2, Col: 4}))
	assert.Equal(t, "59", readCell(t, store, ledger.TableProjects, tablestore.CellRef{Row: 3, Col: 4}))
	assert.Equal(t, "950", readCell(t, store, ledger.TableGlobalBudget, tablestore.CellRef{Row: 2, Col: 1}))

	logTable, err := store.Open(ctx, ledger.TableDistributionLog)
	require.NoError(t, err)
	records, err := logTable.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "d-1", records[0].Get(ledger.ColDistributionID))
	assert.Equal(t, "E101", records[0].Get(ledger.ColEmployeeID))
	assert.Equal(t, "Apt", records[0].Get(ledger.ColUnitTypeName))
	assert.Equal(t, "11", records[0].Get(ledger.ColAdsAllocated))
	assert.Equal(t, "2025-06-01 12:00:00", records[0].Get(ledger.ColDistributionDate))
}

func TestSession_ApplyConsumption_SecondPass_KeepsDeducting(t *testing.T) {
	store := memory.New()
	seedLedgerFixture(t, store)
	seedBalanceRows(t, store)
	session := newTestSession(store)
	ctx := context.Background()

	_, err := session.ApplyConsumption(ctx, consumptionFixture())
	require.NoError(t, err)
	_, err = session.ApplyConsumption(ctx, ledger.ConsumptionInput{
		Deductions: map[ledger.EmployeeID]decimal.Decimal{
			"E102": decimal.NewFromInt(10),
		},
		Attributions: map[ledger.ProjectID]decimal.Decimal{
			"P1": decimal.NewFromInt(10),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "390", readCell(t, store, ledger.TableEmployeeBalances, tablestore.CellRef{Row: 3, Col: 2}))
	assert.Equal(t, "51", readCell(t, store, ledger.TableProjects, tablestore.CellRef{Row: 2, Col: 4}))
	assert.Equal(t, "940", readCell(t, store, ledger.TableGlobalBudget, tablestore.CellRef{Row: 2, Col: 1}))
}

func TestSession_ApplyConsumption_NegativeInput_WritesNothing(t *testing.T) {
	store := memory.New()
	seedLedgerFixture(t, store)
	seedBalanceRows(t, store)
	session := newTestSession(store)

	result, err := session.ApplyConsumption(context.Background(), ledger.ConsumptionInput{
		Deductions: map[ledger.EmployeeID]decimal.Decimal{
			"E101": decimal.NewFromInt(-5),
		},
	})
	assert.Nil(t, result)
	require.ErrorIs(t, err, ledger.ErrNegativeAmount)

	assert.Equal(t, "600", readCell(t, store, ledger.TableEmployeeBalances, tablestore.CellRef{Row: 2, Col: 2}))
	assert.Equal(t, "1000", readCell(t, store, ledger.TableGlobalBudget, tablestore.CellRef{Row: 2, Col: 1}))
}

// =============================================================================
// PARTIAL FAILURE - Committed steps stay, later steps never run
// =============================================================================

// failingStore passes reads through and fails BatchWrite on one table.
type failingStore struct {
	tablestore.Store
	failTable string
	err       error
}

func (s *failingStore) Open(ctx context.Context, name string) (tablestore.Table, error) {
	tbl, err := s.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if name == s.failTable {
		return &failingTable{Table: tbl, err: s.err}, nil
	}
	return tbl, nil
}

type failingTable struct {
	tablestore.Table
	err error
}

func (t *failingTable) BatchWrite(context.Context, []tablestore.CellWrite) error {
	return t.err
}

func TestSession_ApplyConsumption_AbortsAtFirstFailedStep(t *testing.T) {
	// GIVEN: Project-counter writes fail
	// WHEN: Running a consumption pass
	// THEN: The log and the employee deduction stay committed; the
	//       counters and the global balance are untouched

	backing := memory.New()
	seedLedgerFixture(t, backing)
	seedBalanceRows(t, backing)
	store := &failingStore{
		Store:     backing,
		failTable: ledger.TableProjects,
		err:       assert.AnError,
	}
	session := newTestSession(store)
	ctx := context.Background()

	result, err := session.ApplyConsumption(ctx, consumptionFixture())
	require.Error(t, err)
	we, ok := ledger.AsWriteError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, ledger.TableProjects, we.Table)

	require.NotNil(t, result, "a failed pass still reports its progress")
	assert.Equal(t, 4, result.LogAppended)
	assert.Equal(t, 1, result.EmployeeCells)
	assert.Equal(t, 0, result.ProjectCells)
	assert.Equal(t, 0, result.GlobalCells)

	// Committed steps stay; aborted steps never touched the store.
	assert.Equal(t, "550", readCell(t, backing, ledger.TableEmployeeBalances, tablestore.CellRef{Row: 2, Col: 2}))
	assert.Equal(t, "20", readCell(t, backing, ledger.TableProjects, tablestore.CellRef{Row: 2, Col: 4}))
	assert.Equal(t, "1000", readCell(t, backing, ledger.TableGlobalBudget, tablestore.CellRef{Row: 2, Col: 1}))

	logTable, err := backing.Open(ctx, ledger.TableDistributionLog)
	require.NoError(t, err)
	records, err := logTable.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 4, "the audit trail is written before any balance moves")
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSession_Summary_NotReadyLedger(t *testing.T) {
	session := newTestSession(memory.New())

	summary, err := session.Summary(context.Background())
	require.NoError(t, err, "summary must work on an unusable ledger")
	assert.False(t, summary.Ready)
	assert.Equal(t, "0", summary.GlobalBalance.String())
	assert.Empty(t, summary.Employees)
}

func TestSession_Summary_JoinsBalances(t *testing.T) {
	store := memory.New()
	seedLedgerFixture(t, store)
	seedBalanceRows(t, store)
	session := newTestSession(store)

	summary, err := session.Summary(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Ready)
	assert.Equal(t, "1000", summary.GlobalBalance.String())
	assert.Equal(t, 2, summary.ProjectCount)
	assert.Equal(t, 0, summary.LogCount)
	assert.Equal(t, []string{"North"}, summary.Regions)

	require.Len(t, summary.Employees, 2)
	assert.Equal(t, ledger.EmployeeID("E101"), summary.Employees[0].ID)
	assert.Equal(t, "Aaleyah Khan", summary.Employees[0].Name)
	assert.Equal(t, "60", summary.Employees[0].Percent)
	assert.Equal(t, "600", summary.Employees[0].Balance)
	assert.Equal(t, "400", summary.Employees[1].Balance)
}
