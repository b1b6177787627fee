/*
handlers.go - HTTP API handlers for the ads budget ledger

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Read:
    GET    /api/health               Liveness probe
    GET    /api/summary              Ledger overview
    GET    /api/employees            Employees with balances
    GET    /api/projects             Projects, ?region= filter
    GET    /api/distributions/log    Audit log, ?employee_id= ?region=

  Write:
    POST   /api/balances/initialize  Split the global budget
    POST   /api/distributions        Distribute ads for an employee
    POST   /api/admin/seed           Load the demo dataset

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Cell-grid access
  - Session: Ledger passes (load, initialize, consume)
  - Distributor: Region planning on top of the session

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (session, distributor)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, negative amounts
  - 404: Unknown employee
  - 409: Insufficient balance, already-seeded store
  - 500: Unusable ledger layout, store failures, aborted writes
  Aborted writes include how far the pass got, since committed chunks
  are not rolled back.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo dataset loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/keystone/ads-ledger/distribution"
	"github.com/keystone/ads-ledger/ledger"
	"github.com/keystone/ads-ledger/tablestore"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       tablestore.Store
	Session     *ledger.Session
	Distributor *distribution.Distributor
}

// NewHandler creates a new handler on top of the given store.
func NewHandler(store tablestore.Store) *Handler {
	session := ledger.NewSession(store)
	return &Handler{
		Store:       store,
		Session:     session,
		Distributor: distribution.NewDistributor(session),
	}
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// GetSummary returns the ledger overview without writing anything.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Session.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// ListEmployees returns all employees with their current ads balances.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Session.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum).Employees)
}

// ListProjects returns project rows, optionally filtered by region.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	snap, _, err := h.Session.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	region := strings.TrimSpace(r.URL.Query().Get("region"))
	dtos := []ProjectDTO{}
	for _, p := range snap.Projects {
		if region != "" && !strings.EqualFold(strings.TrimSpace(p.Region), region) {
			continue
		}
		dtos = append(dtos, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDistributionLog returns audit rows, optionally filtered by employee
// and region. Rows come back in sheet order, oldest first.
func (h *Handler) GetDistributionLog(w http.ResponseWriter, r *http.Request) {
	snap, _, err := h.Session.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read distribution log", err)
		return
	}

	employeeID := ledger.NormalizeID(r.URL.Query().Get("employee_id"))
	region := strings.TrimSpace(r.URL.Query().Get("region"))

	dtos := []LogEntryDTO{}
	for _, row := range snap.Log {
		if employeeID != "" && string(row.EmployeeID) != employeeID {
			continue
		}
		if region != "" && !strings.EqualFold(strings.TrimSpace(row.Region), region) {
			continue
		}
		dtos = append(dtos, toLogEntryDTO(row))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

// InitializeBalances splits the global budget across employees by their
// configured percentages.
func (h *Handler) InitializeBalances(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.InitializeBalances(r.Context())
	if err != nil {
		status, code := statusFor(err)
		writeDomainError(w, status, code, "Failed to initialize balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toInitializeResponse(res))
}

// CreateDistribution runs one ads distribution for an employee in a
// region: plan by project importance, then deduct and attribute.
func (h *Handler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req DistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Distributor.Distribute(r.Context(), distribution.Request{
		EmployeeID: ledger.EmployeeID(req.EmployeeID),
		Region:     req.Region,
		Ads:        req.Ads,
	})
	if err != nil {
		status, code := statusFor(err)
		writeDomainError(w, status, code, "Failed to distribute ads", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionResponse(res))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	var writeErr *ledger.WriteError
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, distribution.ErrUnknownEmployee):
		return http.StatusNotFound, "unknown_employee"
	case errors.Is(err, distribution.ErrInvalidRequest),
		errors.Is(err, ledger.ErrNegativeAmount):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError, "write_aborted"
	case ledger.IsConfiguration(err):
		return http.StatusInternalServerError, "ledger_configuration"
	case ledger.IsInvalidState(err):
		return http.StatusInternalServerError, "ledger_state"
	default:
		return http.StatusInternalServerError, ""
	}
}

// writeDomainError writes an ErrorResponse, attaching structured detail
// for shortages and aborted writes so clients can act on them.
func writeDomainError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}

	var insufficient *ledger.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		resp.Details = map[string]any{
			"scope":       insufficient.Scope,
			"employee_id": string(insufficient.EmployeeID),
			"available":   insufficient.Available.String(),
			"requested":   insufficient.Requested.String(),
			"shortfall":   insufficient.Shortfall.String(),
		}
	}
	if writeErr, ok := ledger.AsWriteError(err); ok {
		resp.Details = map[string]any{
			"table":           writeErr.Table,
			"failed_chunk":    writeErr.FailedChunk,
			"cells_committed": writeErr.CellsCommitted,
			"cells_pending":   len(writeErr.Pending),
			"cause":           writeErr.Err.Error(),
		}
	}

	writeJSON(w, status, resp)
}
