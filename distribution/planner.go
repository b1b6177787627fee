/*
Package distribution plans how a batch of ads spreads across projects.

PURPOSE:
  An employee hands over N ads and a region; the planner decides which
  projects in that region get how many, splits each project's share
  across its unit types, and emits the audit-log entries. The split is
  driven by an importance score so older, better-rated, under-served
  projects pull more ads.

SCORING:
  For each eligible project (region matches, Req is "yes"):

    priority   = maxOrder - order + 1     older projects score higher
    demand     = 5                        flat base
    excellence = ProjectExcellenceScore / 10
    remaining  = max(0, MarketingSize - AdsDistributed)
    score      = priority + demand + excellence + remaining

  Ads are then allocated proportionally to score, floored to whole ads,
  with the remainder handed out one ad at a time by largest fractional
  part. Whole-ad math throughout: an ad is never split.

SEE ALSO:
  - distributor.go: Guards balances and commits the plan as a ledger pass
*/
package distribution

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keystone/ads-ledger/ledger"
	"github.com/keystone/ads-ledger/tablestore"
)

// Planner-side warning kinds, reported through ledger.Warning.
const (
	WarnNoProjects ledger.WarningKind = "no_matching_projects"
	WarnZeroScore  ledger.WarningKind = "zero_total_score"
	WarnNoUnits    ledger.WarningKind = "no_unit_types"
)

const logDateLayout = "2006-01-02 15:04:05"

var (
	demandScore = decimal.NewFromInt(5)
	ten         = decimal.NewFromInt(10)
	one         = decimal.NewFromInt(1)
)

// PlanInput is one distribution request against a loaded snapshot.
type PlanInput struct {
	Projects   []ledger.ProjectRow
	Region     string
	Ads        int
	EmployeeID ledger.EmployeeID
	Date       time.Time
}

// UnitAllocation is one unit type's share of a project's ads.
type UnitAllocation struct {
	UnitType string
	Ads      int
}

// Allocation is one project's share of the batch.
type Allocation struct {
	ProjectID   ledger.ProjectID
	ProjectName string
	Score       decimal.Decimal
	Ads         int
	Units       []UnitAllocation
}

// PlanResult is a complete plan, ready to feed a consumption pass.
type PlanResult struct {
	// Allocations in project order, zero-ad projects omitted.
	Allocations []Allocation

	// ProjectAds is the attribution map for the reconciler.
	ProjectAds map[ledger.ProjectID]decimal.Decimal

	// LogEntries is one audit row per (project, unit type) that received
	// ads.
	LogEntries []ledger.LogEntry

	TotalAllocated int
	Warnings       []ledger.Warning
}

// Planner computes distribution plans. Pure: the uuid per log entry is
// the only non-determinism.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Plan spreads in.Ads across the eligible projects of the region.
func (pl *Planner) Plan(in PlanInput) (*PlanResult, error) {
	if in.Ads <= 0 {
		return nil, fmt.Errorf("ads to distribute must be positive, got %d", in.Ads)
	}

	result := &PlanResult{ProjectAds: make(map[ledger.ProjectID]decimal.Decimal)}

	// 1. Eligibility: right region, explicitly requesting ads.
	region := strings.TrimSpace(in.Region)
	var eligible []ledger.ProjectRow
	for _, p := range in.Projects {
		if !strings.EqualFold(strings.TrimSpace(p.Region), region) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(p.Req), "yes") {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		result.Warnings = append(result.Warnings, ledger.Warning{
			Kind:    WarnNoProjects,
			Table:   ledger.TableProjects,
			Subject: region,
			Detail:  "no eligible projects in region, nothing distributed",
		})
		return result, nil
	}

	// 2. Importance scores. Numeric fields read best-effort to zero,
	// matching how the rest of the ledger treats messy cells.
	maxOrder := decimal.Zero
	orders := make([]decimal.Decimal, len(eligible))
	for i, p := range eligible {
		orders[i], _ = ledger.ParseNumericOrDefault(p.Order, decimal.Zero)
		if i == 0 || orders[i].GreaterThan(maxOrder) {
			maxOrder = orders[i]
		}
	}

	scores := make([]decimal.Decimal, len(eligible))
	totalScore := decimal.Zero
	for i, p := range eligible {
		excellence, _ := ledger.ParseNumericOrDefault(p.Excellence, decimal.Zero)
		size, _ := ledger.ParseNumericOrDefault(p.MarketingSize, decimal.Zero)
		distributed, _ := ledger.ParseNumericOrDefault(p.AdsDistributed, decimal.Zero)

		remaining := size.Sub(distributed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		score := maxOrder.Sub(orders[i]).Add(one).
			Add(demandScore).
			Add(excellence.Div(ten)).
			Add(remaining)
		if score.IsNegative() {
			score = decimal.Zero
		}
		scores[i] = score
		totalScore = totalScore.Add(score)
	}
	if totalScore.IsZero() {
		result.Warnings = append(result.Warnings, ledger.Warning{
			Kind:    WarnZeroScore,
			Table:   ledger.TableProjects,
			Subject: region,
			Detail:  "all eligible projects scored zero, nothing distributed",
		})
		return result, nil
	}

	// 3. Proportional allocation: floor everything, then hand out the
	// remainder by largest fractional part.
	adsTotal := decimal.NewFromInt(int64(in.Ads))
	ads := make([]int, len(eligible))
	fractions := make([]decimal.Decimal, len(eligible))
	allocated := 0
	for i := range eligible {
		exact := scores[i].Div(totalScore).Mul(adsTotal)
		floor := exact.Floor()
		ads[i] = int(floor.IntPart())
		fractions[i] = exact.Sub(floor)
		allocated += ads[i]
	}

	byFraction := make([]int, len(eligible))
	for i := range byFraction {
		byFraction[i] = i
	}
	sort.SliceStable(byFraction, func(a, b int) bool {
		return fractions[byFraction[a]].GreaterThan(fractions[byFraction[b]])
	})
	for k := 0; k < in.Ads-allocated; k++ {
		ads[byFraction[k%len(byFraction)]]++
	}

	// 4. Unit-type split and audit entries.
	date := in.Date.Format(logDateLayout)
	for i, p := range eligible {
		if ads[i] == 0 {
			continue
		}

		alloc := Allocation{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Score:       scores[i],
			Ads:         ads[i],
		}

		units := ledger.SplitList(p.UnitTypes)
		if len(units) == 0 {
			result.Warnings = append(result.Warnings, ledger.Warning{
				Kind:    WarnNoUnits,
				Table:   ledger.TableProjects,
				Row:     tablestore.DataRow(p.Index),
				Subject: string(p.ID),
				Detail:  "no unit types, ads counted but not logged per unit",
			})
		}
		for u, unit := range units {
			share := ads[i] / len(units)
			if u < ads[i]%len(units) {
				share++
			}
			if share == 0 {
				continue
			}
			alloc.Units = append(alloc.Units, UnitAllocation{UnitType: unit, Ads: share})
			result.LogEntries = append(result.LogEntries, ledger.LogEntry{
				DistributionID: "dist-" + uuid.NewString(),
				EmployeeID:     in.EmployeeID,
				ProjectID:      p.ID,
				Region:         strings.TrimSpace(p.Region),
				UnitType:       unit,
				Ads:            decimal.NewFromInt(int64(share)),
				Date:           date,
			})
		}

		result.Allocations = append(result.Allocations, alloc)
		result.ProjectAds[p.ID] = decimal.NewFromInt(int64(ads[i]))
		result.TotalAllocated += ads[i]
	}

	return result, nil
}
