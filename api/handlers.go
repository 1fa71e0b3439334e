/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes the portfolio service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every write to portfolio.Service.

ENDPOINTS:
  Agents:
    GET    /api/agents                       List agents
    POST   /api/agents                       Register or replace an agent

  Plans ({kind} = investment | rd | bonus | gift):
    GET    /api/plans/{kind}                 List a catalog in order
    POST   /api/plans/{kind}                 Define a plan from JSON

  Investments:
    POST   /api/customers                    Create pending investment
    GET    /api/customers/{id}               Customer details
    POST   /api/customers/{id}/approve       Generate schedule + commissions
    POST   /api/customers/{id}/reject        Reject pending investment
    GET    /api/customers/{id}/obligations   Payout schedule
    GET    /api/customers/{id}/settlement    Settlement preview
    POST   /api/obligations/{id}/pay         Mark payout paid

  Commissions:
    GET    /api/commissions?agent_id=        List commissions
    POST   /api/commissions/{id}/pay         Mark commission paid

  Recurring deposits:
    POST   /api/rd/customers                 Create pending deposit
    GET    /api/rd/customers/{id}            Deposit details
    POST   /api/rd/customers/{id}/approve    Generate installments + maturity
    POST   /api/rd/customers/{id}/reject     Reject pending deposit
    GET    /api/rd/customers/{id}/installments Installments + maturity
    POST   /api/rd/installments/{id}/pay     Pay installment (penalty, commission)

  Incentives:
    GET    /api/grants?period=YYYY-MM        List grants
    POST   /api/grants/{id}/fulfil           Mark grant rewarded

  Admin:
    POST   /api/admin/tick                   Run monthly gift/bonus tick
    POST   /api/admin/deactivate             Deactivate expired bonus plans
    POST   /api/admin/cleanup                Purge old rejected customers
    POST   /api/admin/reset                  Clear all data

ERROR HANDLING:
  Errors are returned in the envelope with an HTTP status by class:
  - 400: Validation errors, invalid input
  - 404: Referenced entity not found
  - 409: Invariant violation; error.code carries the violation code
  - 500: Internal errors (logged, details withheld)

TIME:
  Handlers read the service clock once per request and pass it explicitly,
  so one request never straddles two instants.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - validation.go: Request binding
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/schedule"
	"github.com/warp/payout-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *portfolio.Service
	Store   *sqlite.Store

	log      *zap.Logger
	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler over the service and its store.
func NewHandler(svc *portfolio.Service, store *sqlite.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Store:    store,
		log:      logger,
		validate: newValidator(),
	}
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

// ListAgents returns every agent ordered by id.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list agents", err)
		return
	}
	dtos := make([]AgentDTO, 0, len(agents))
	for _, a := range agents {
		dtos = append(dtos, toAgentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAgent registers an agent or replaces one with the same id.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !h.bind(w, r, &req) {
		return
	}
	pct, err := decimal.NewFromString(req.CommissionPercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid commission_percentage", nil)
		return
	}
	agent := commission.AgentNode{
		ID:       generic.AgentID(req.ID),
		Name:     req.Name,
		ParentID: generic.AgentID(req.ParentID),
		Percent:  pct,
		Approved: req.Approved,
	}
	if err := h.Service.RegisterAgent(r.Context(), agent); err != nil {
		h.writeServiceError(w, r, "Failed to register agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgentDTO(agent))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

func planKind(r *http.Request) (portfolio.PlanKind, bool) {
	switch k := portfolio.PlanKind(chi.URLParam(r, "kind")); k {
	case portfolio.KindInvestment, portfolio.KindRD, portfolio.KindBonus, portfolio.KindGift:
		return k, true
	}
	return "", false
}

// ListPlans returns one catalog in catalog order.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	kind, ok := planKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Unknown plan kind", nil)
		return
	}
	records, err := h.Store.ListPlans(r.Context(), kind)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list plans", err)
		return
	}
	dtos := make([]PlanDTO, 0, len(records))
	for _, p := range records {
		dtos = append(dtos, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DefinePlan stores the request body as a plan of the routed kind.
func (h *Handler) DefinePlan(w http.ResponseWriter, r *http.Request) {
	kind, ok := planKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Unknown plan kind", nil)
		return
	}
	var raw strings.Builder
	if _, err := copyBody(&raw, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", nil)
		return
	}
	rec, err := h.Service.DefinePlan(r.Context(), kind, raw.String())
	if err != nil {
		h.writeServiceError(w, r, "Failed to define plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(rec))
}

// =============================================================================
// INVESTMENT HANDLERS
// =============================================================================

// CreateCustomer records a pending investment.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.bind(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.InvestmentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid investment_amount", nil)
		return
	}
	date, err := generic.ParseDate(req.InvestmentDate)
	if err != nil {
		h.writeServiceError(w, r, "Invalid investment_date", err)
		return
	}
	c, err := h.Service.CreateCustomer(r.Context(), portfolio.Customer{
		ID:             generic.CustomerID(req.ID),
		Name:           req.Name,
		AgentID:        generic.AgentID(req.AgentID),
		PlanID:         generic.PlanID(req.PlanID),
		Amount:         amount,
		InvestmentDate: date,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// GetCustomer returns a single investment.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// ApproveCustomer approves an investment at the current instant.
func (h *Handler) ApproveCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	out, err := h.Service.ApproveInvestment(r.Context(), id, h.Service.Now())
	if err != nil {
		h.writeServiceError(w, r, "Failed to approve customer", err)
		return
	}
	writeJSON(w, http.StatusOK, ApprovalDTO{
		Customer:    toCustomerDTO(out.Customer),
		Obligations: toObligationDTOs(out.Obligations),
		Commissions: toCommissionDTOs(out.Commissions),
		Grants:      toGrantDTOs(out.Grants),
	})
}

// RejectCustomer rejects a pending investment.
func (h *Handler) RejectCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	if err := h.Service.RejectCustomer(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "Failed to reject customer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(portfolio.StatusRejected)})
}

// ListObligations returns a customer's payout schedule.
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "Customer not found", nil)
		return
	}
	obs, err := h.Store.ListObligations(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list obligations", err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTOs(obs))
}

// GetSettlement previews the settlement of a customer's principal.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	s, err := h.Service.Settlement(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(id, s))
}

// PayObligation marks a customer payout paid.
func (h *Handler) PayObligation(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if !h.bind(w, r, &req) {
		return
	}
	method, _ := generic.ParsePaymentMethod(req.Method)
	o, err := h.Service.PayObligation(r.Context(), chi.URLParam(r, "id"), h.Service.Now(), method, req.Reference)
	if err != nil {
		h.writeServiceError(w, r, "Failed to pay obligation", err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(o))
}

// QuoteCompanyInvestment derives the missing return field of a company
// investment and returns its monthly interest schedule. Nothing is stored.
func (h *Handler) QuoteCompanyInvestment(w http.ResponseWriter, r *http.Request) {
	var req CompanyQuoteRequest
	if !h.bind(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.InvestmentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid investment_amount", nil)
		return
	}
	date, err := generic.ParseDate(req.InvestmentDate)
	if err != nil {
		h.writeServiceError(w, r, "Invalid investment_date", err)
		return
	}
	expected, err := optionalDecimal(req.ExpectedReturn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid expected_return", nil)
		return
	}
	pct, err := optionalDecimal(req.ReturnPercentage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid return_percentage", nil)
		return
	}

	exp, rate, err := schedule.DeriveReturn(amount, req.DurationMonths, expected, pct)
	if err != nil {
		h.writeServiceError(w, r, "Failed to derive return", err)
		return
	}
	payments, err := schedule.CompanyInterest(schedule.Investment{
		Principal:      amount,
		InvestmentDate: date,
		Terms: schedule.PlanTerms{
			DurationMonths: req.DurationMonths,
			ReturnPercent:  decimal.NewNullDecimal(rate),
		},
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to build schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, CompanyQuoteDTO{
		ExpectedReturn:   money(exp),
		ReturnPercentage: rate.StringFixed(2),
		Payments:         toObligationDTOs(payments),
	})
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns commissions, optionally for one agent.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	agentID := generic.AgentID(r.URL.Query().Get("agent_id"))
	coms, err := h.Store.ListCommissions(r.Context(), agentID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(coms))
}

// PayCommission marks a commission paid.
func (h *Handler) PayCommission(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if !h.bind(w, r, &req) {
		return
	}
	method, _ := generic.ParsePaymentMethod(req.Method)
	c, err := h.Service.PayCommission(r.Context(), chi.URLParam(r, "id"), h.Service.Now(), method, req.Reference)
	if err != nil {
		h.writeServiceError(w, r, "Failed to pay commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(c))
}

// =============================================================================
// RECURRING DEPOSIT HANDLERS
// =============================================================================

// CreateRDCustomer records a pending recurring deposit.
func (h *Handler) CreateRDCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateRDCustomerRequest
	if !h.bind(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.InstallmentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Invalid installment_amount", nil)
		return
	}
	start, err := generic.ParseDate(req.InvestmentDate)
	if err != nil {
		h.writeServiceError(w, r, "Invalid investment_date", err)
		return
	}
	c, err := h.Service.CreateRDCustomer(r.Context(), portfolio.RDCustomer{
		ID:                generic.CustomerID(req.ID),
		Name:              req.Name,
		AgentID:           generic.AgentID(req.AgentID),
		PlanID:            generic.PlanID(req.PlanID),
		InstallmentAmount: amount,
		StartDate:         start,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to create deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRDCustomerDTO(c))
}

// GetRDCustomer returns a single recurring deposit.
func (h *Handler) GetRDCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetRDCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get deposit", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "Deposit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRDCustomerDTO(*c))
}

// ApproveRDCustomer generates installments and the maturity.
func (h *Handler) ApproveRDCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	sched, err := h.Service.ApproveDeposit(r.Context(), id, h.Service.Now())
	if err != nil {
		h.writeServiceError(w, r, "Failed to approve deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositScheduleDTO(sched.Installments, &sched.Maturity))
}

// RejectRDCustomer rejects a pending recurring deposit.
func (h *Handler) RejectRDCustomer(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	if err := h.Service.RejectDeposit(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "Failed to reject deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(portfolio.StatusRejected)})
}

// ListInstallments returns a deposit's installments and current maturity.
func (h *Handler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	id := generic.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetRDCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get deposit", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "Deposit not found", nil)
		return
	}
	insts, err := h.Store.ListInstallments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list installments", err)
		return
	}
	maturity, err := h.Store.GetMaturity(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get maturity", err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositScheduleDTO(insts, maturity))
}

// PayInstallment pays an installment, applying any late penalty.
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if !h.bind(w, r, &req) {
		return
	}
	method, _ := generic.ParsePaymentMethod(req.Method)
	res, err := h.Service.PayInstallment(r.Context(), chi.URLParam(r, "id"), h.Service.Now(), method, req.Reference)
	if err != nil {
		h.writeServiceError(w, r, "Failed to pay installment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(res))
}

// =============================================================================
// INCENTIVE HANDLERS
// =============================================================================

// ListGrants returns grants, optionally for one YYYY-MM period.
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period != "" {
		if _, err := generic.ParseMonth(period); err != nil {
			h.writeServiceError(w, r, "Invalid period", err)
			return
		}
	}
	grants, err := h.Store.ListGrants(r.Context(), period)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list grants", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTOs(grants))
}

// FulfilGrant marks a grant rewarded.
func (h *Handler) FulfilGrant(w http.ResponseWriter, r *http.Request) {
	var req FulfilRequest
	if !h.bind(w, r, &req) {
		return
	}
	method, _ := generic.ParsePaymentMethod(req.Method)
	g, err := h.Service.FulfilGrant(r.Context(), chi.URLParam(r, "id"), h.Service.Now(), method)
	if err != nil {
		h.writeServiceError(w, r, "Failed to fulfil grant", err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantDTO(g))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunTick evaluates gifts and bonuses for a month, the previous one by default.
func (h *Handler) RunTick(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if !h.bind(w, r, &req) {
		return
	}
	period := generic.MonthOf(generic.DateOf(h.Service.Now())).Previous()
	if req.Month != "" {
		p, err := generic.ParseMonth(req.Month)
		if err != nil {
			h.writeServiceError(w, r, "Invalid month", err)
			return
		}
		period = p
	}
	grants, err := h.Service.RunMonthlyTick(r.Context(), period)
	if err != nil {
		h.writeServiceError(w, r, "Failed to run monthly tick", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period.Key(),
		"grants": toGrantDTOs(grants),
	})
}

// DeactivatePlans switches off bonus plans past their validity.
func (h *Handler) DeactivatePlans(w http.ResponseWriter, r *http.Request) {
	expired, err := h.Service.DeactivateExpiredPlans(r.Context(), h.Service.Now())
	if err != nil {
		h.writeServiceError(w, r, "Failed to deactivate plans", err)
		return
	}
	ids := make([]string, 0, len(expired))
	for _, p := range expired {
		ids = append(ids, string(p.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": ids})
}

// PurgeRejected deletes rejected customers past the retention window.
func (h *Handler) PurgeRejected(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.PurgeRejected(r.Context(), h.Service.Now())
	if err != nil {
		h.writeServiceError(w, r, "Failed to purge rejected customers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeServiceError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details []ValidationDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

// writeServiceError maps the engine's error classes to HTTP statuses.
// Internal errors are logged and their text withheld from the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case generic.IsInvariant(err):
		code, _ := generic.ViolationCode(err)
		writeError(w, http.StatusConflict, string(code), err.Error(), nil)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), fieldError(err))
	default:
		h.log.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", message, nil)
	}
}

func copyBody(dst *strings.Builder, r *http.Request) (int64, error) {
	return io.Copy(dst, io.LimitReader(r.Body, maxPlanBytes))
}

// maxPlanBytes caps plan definitions read from request bodies.
const maxPlanBytes = 1 << 20

func optionalDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
