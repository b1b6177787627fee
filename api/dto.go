/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's row views from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

CELL VALUES:
  Balances and percentages travel as strings, exactly as they sit in the
  sheet. Clients that want arithmetic parse them; clients that want
  display show them untouched.

VALIDATION:
  Validation is done in handlers and the distribution package. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/keystone/ads-ledger/distribution"
	"github.com/keystone/ads-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SummaryDTO is the ledger overview.
type SummaryDTO struct {
	Ready         bool          `json:"ready"`
	GlobalBalance string        `json:"global_balance"`
	Employees     []EmployeeDTO `json:"employees"`
	Regions       []string      `json:"regions"`
	ProjectCount  int           `json:"project_count"`
	LogCount      int           `json:"log_count"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// EmployeeDTO represents an employee and their ads balance.
type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BudgetPercent string `json:"budget_percent"`
	AdsBalance    string `json:"ads_balance"`
}

// ProjectDTO represents one project row.
type ProjectDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	DeveloperID    string   `json:"developer_id,omitempty"`
	Region         string   `json:"region"`
	UnitTypes      []string `json:"unit_types"`
	Order          string   `json:"order"`
	Req            string   `json:"req"`
	Excellence     string   `json:"excellence"`
	MarketingSize  string   `json:"marketing_size"`
	AdsDistributed string   `json:"ads_distributed"`
}

// InitializeResponse reports one balance-initialization pass.
type InitializeResponse struct {
	Appended       int      `json:"appended"`
	Updated        int      `json:"updated"`
	TotalAllocated string   `json:"total_allocated"`
	Warnings       []string `json:"warnings,omitempty"`
}

// DistributionRequest asks for an ads distribution.
type DistributionRequest struct {
	EmployeeID string `json:"employee_id"`
	Region     string `json:"region"`
	Ads        int    `json:"ads"`
}

// UnitAllocationDTO is one unit type's share of a project's ads.
type UnitAllocationDTO struct {
	UnitType string `json:"unit_type"`
	Ads      int    `json:"ads"`
}

// AllocationDTO is one project's share of a distribution.
type AllocationDTO struct {
	ProjectID   string              `json:"project_id"`
	ProjectName string              `json:"project_name"`
	Score       string              `json:"score"`
	Ads         int                 `json:"ads"`
	Units       []UnitAllocationDTO `json:"units"`
}

// PassDTO reports how far the balance writes of a distribution got.
type PassDTO struct {
	LogAppended   int    `json:"log_appended"`
	EmployeeCells int    `json:"employee_cells"`
	ProjectCells  int    `json:"project_cells"`
	GlobalCells   int    `json:"global_cells"`
	TotalDeducted string `json:"total_deducted"`
}

// DistributionResponse is the outcome of POST /api/distributions.
type DistributionResponse struct {
	EmployeeID     string          `json:"employee_id"`
	Region         string          `json:"region"`
	Requested      int             `json:"requested"`
	TotalAllocated int             `json:"total_allocated"`
	Allocations    []AllocationDTO `json:"allocations"`
	Pass           *PassDTO        `json:"pass,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// LogEntryDTO is one row of the distribution audit log.
type LogEntryDTO struct {
	DistributionID string `json:"distribution_id"`
	EmployeeID     string `json:"employee_id"`
	ProjectID      string `json:"project_id"`
	Region         string `json:"region"`
	UnitType       string `json:"unit_type"`
	Ads            string `json:"ads"`
	Date           string `json:"date"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func warningStrings(ws []ledger.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

func toSummaryDTO(sum *ledger.LedgerSummary) SummaryDTO {
	dto := SummaryDTO{
		Ready:         sum.Ready,
		GlobalBalance: sum.GlobalBalance.String(),
		Employees:     []EmployeeDTO{},
		Regions:       sum.Regions,
		ProjectCount:  sum.ProjectCount,
		LogCount:      sum.LogCount,
		Warnings:      warningStrings(sum.Warnings),
	}
	for _, eb := range sum.Employees {
		dto.Employees = append(dto.Employees, EmployeeDTO{
			ID:            string(eb.ID),
			Name:          eb.Name,
			BudgetPercent: eb.Percent,
			AdsBalance:    eb.Balance,
		})
	}
	return dto
}

func toProjectDTO(p ledger.ProjectRow) ProjectDTO {
	return ProjectDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		DeveloperID:    p.DeveloperID,
		Region:         p.Region,
		UnitTypes:      ledger.SplitList(p.UnitTypes),
		Order:          p.Order,
		Req:            p.Req,
		Excellence:     p.Excellence,
		MarketingSize:  p.MarketingSize,
		AdsDistributed: p.AdsDistributed,
	}
}

func toLogEntryDTO(row ledger.LogRow) LogEntryDTO {
	return LogEntryDTO{
		DistributionID: row.DistributionID,
		EmployeeID:     string(row.EmployeeID),
		ProjectID:      string(row.ProjectID),
		Region:         row.Region,
		UnitType:       row.UnitType,
		Ads:            row.Ads,
		Date:           row.Date,
	}
}

func toInitializeResponse(res *ledger.InitializeResult) InitializeResponse {
	return InitializeResponse{
		Appended:       res.Appended,
		Updated:        res.Updated,
		TotalAllocated: res.TotalAllocated.String(),
		Warnings:       warningStrings(res.Warnings),
	}
}

func toPassDTO(pass *ledger.PassResult) *PassDTO {
	if pass == nil {
		return nil
	}
	return &PassDTO{
		LogAppended:   pass.LogAppended,
		EmployeeCells: pass.EmployeeCells,
		ProjectCells:  pass.ProjectCells,
		GlobalCells:   pass.GlobalCells,
		TotalDeducted: pass.TotalDeducted.String(),
	}
}

func toDistributionResponse(res *distribution.Result) DistributionResponse {
	dto := DistributionResponse{
		EmployeeID:  string(res.EmployeeID),
		Region:      res.Region,
		Requested:   res.Requested,
		Allocations: []AllocationDTO{},
		Pass:        toPassDTO(res.Pass),
	}
	if res.Plan != nil {
		dto.TotalAllocated = res.Plan.TotalAllocated
		dto.Warnings = warningStrings(res.Plan.Warnings)
		for _, a := range res.Plan.Allocations {
			units := make([]UnitAllocationDTO, 0, len(a.Units))
			for _, u := range a.Units {
				units = append(units, UnitAllocationDTO{UnitType: u.UnitType, Ads: u.Ads})
			}
			dto.Allocations = append(dto.Allocations, AllocationDTO{
				ProjectID:   string(a.ProjectID),
				ProjectName: a.ProjectName,
				Score:       a.Score.String(),
				Ads:         a.Ads,
				Units:       units,
			})
		}
	}
	if res.Pass != nil {
		dto.Warnings = append(dto.Warnings, warningStrings(res.Pass.Warnings)...)
	}
	return dto
}
