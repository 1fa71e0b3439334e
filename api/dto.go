/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as strings ("2000.00") in both directions so no value
  passes through float64. Requests accept any decimal string; responses
  always carry two places.

VALIDATION:
  Request types carry go-playground/validator tags. Handlers run them
  before touching the service; failures come back as 400 with one detail
  per field, keyed by the JSON name.

ENVELOPE:
  Every response is {"data": ...} or {"error": {"code", "message"}}.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plans.go: Plan JSON definitions (request bodies of /plans)
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/commission"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Response wraps every API payload.
type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail is one rejected request field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// CreateAgentRequest registers or replaces an agent.
type CreateAgentRequest struct {
	ID                string `json:"id" validate:"required,max=64"`
	Name              string `json:"name" validate:"required,max=200"`
	ParentID          string `json:"parent_id" validate:"omitempty,max=64"`
	CommissionPercent string `json:"commission_percentage" validate:"required,numeric"`
	Approved          bool   `json:"approved"`
}

// CreateCustomerRequest records a pending investment.
type CreateCustomerRequest struct {
	ID               string `json:"id" validate:"omitempty,max=64"`
	Name             string `json:"name" validate:"required,max=200"`
	AgentID          string `json:"agent_id" validate:"omitempty,max=64"`
	PlanID           string `json:"plan_id" validate:"required"`
	InvestmentAmount string `json:"investment_amount" validate:"required,numeric"`
	InvestmentDate   string `json:"investment_date" validate:"required,datetime=2006-01-02"`
}

// CreateRDCustomerRequest records a pending recurring deposit.
type CreateRDCustomerRequest struct {
	ID                string `json:"id" validate:"omitempty,max=64"`
	Name              string `json:"name" validate:"required,max=200"`
	AgentID           string `json:"agent_id" validate:"omitempty,max=64"`
	PlanID            string `json:"plan_id" validate:"required"`
	InstallmentAmount string `json:"installment_amount" validate:"required,numeric"`
	InvestmentDate    string `json:"investment_date" validate:"required,datetime=2006-01-02"`
}

// PayRequest marks an obligation, commission or installment paid.
type PayRequest struct {
	Method    string `json:"payment_method" validate:"omitempty,oneof=Cash Online Cheq Other None"`
	Reference string `json:"reference" validate:"max=200"`
}

// FulfilRequest marks a grant rewarded.
type FulfilRequest struct {
	Method string `json:"payment_method" validate:"omitempty,oneof=Cash Online Cheq Other None"`
}

// TickRequest runs the monthly incentive tick. An empty month means the
// month before the current one.
type TickRequest struct {
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

// CompanyQuoteRequest describes an investment the company books itself.
// One of expected_return and return_percentage is required.
type CompanyQuoteRequest struct {
	InvestmentAmount string `json:"investment_amount" validate:"required,numeric"`
	InvestmentDate   string `json:"investment_date" validate:"required,datetime=2006-01-02"`
	DurationMonths   int    `json:"duration_months" validate:"required,min=1,max=600"`
	ExpectedReturn   string `json:"expected_return" validate:"omitempty,numeric"`
	ReturnPercentage string `json:"return_percentage" validate:"omitempty,numeric"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type AgentDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ParentID          string `json:"parent_id,omitempty"`
	CommissionPercent string `json:"commission_percentage"`
	Approved          bool   `json:"approved"`
}

type PlanDTO struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Name     string          `json:"name"`
	Active   bool            `json:"is_active"`
	Position int             `json:"position"`
	Config   json.RawMessage `json:"config"`
}

type CustomerDTO struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	AgentID          string  `json:"agent_id,omitempty"`
	PlanID           string  `json:"plan_id"`
	InvestmentAmount string  `json:"investment_amount"`
	InvestmentDate   string  `json:"investment_date"`
	Status           string  `json:"status"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
}

type RDCustomerDTO struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	AgentID           string  `json:"agent_id,omitempty"`
	PlanID            string  `json:"plan_id"`
	InstallmentAmount string  `json:"installment_amount"`
	InvestmentDate    string  `json:"investment_date"`
	Status            string  `json:"status"`
	ApprovedAt        *string `json:"approved_at,omitempty"`
}

type ObligationDTO struct {
	ID              string  `json:"id"`
	CustomerID      string  `json:"customer_id"`
	PayoutMonth     int     `json:"payout_month"`
	PayoutDate      string  `json:"payout_date"`
	StartDate       string  `json:"start_date"`
	PaymentType     string  `json:"payment_type"`
	Amount          string  `json:"amount"`
	InterestAmount  string  `json:"interest_amount"`
	PrincipalAmount string  `json:"principal_amount"`
	IsPrincipal     bool    `json:"is_principal"`
	Paid            bool    `json:"paid"`
	PaidAt          *string `json:"paid_at,omitempty"`
	PaymentMethod   string  `json:"payment_method"`
	Reference       string  `json:"reference,omitempty"`
}

type CommissionDTO struct {
	ID            string  `json:"id"`
	AgentID       string  `json:"agent_id"`
	CustomerID    string  `json:"customer_id"`
	Source        string  `json:"source"`
	SourceRef     string  `json:"source_ref"`
	Percent       string  `json:"commission_percentage"`
	Amount        string  `json:"amount"`
	PayoutDate    string  `json:"payout_date"`
	Paid          bool    `json:"paid"`
	PaidAt        *string `json:"paid_at,omitempty"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference,omitempty"`
}

type InstallmentDTO struct {
	ID            string  `json:"id"`
	CustomerID    string  `json:"customer_id"`
	Seq           int     `json:"installment_no"`
	DueDate       string  `json:"due_date"`
	Amount        string  `json:"amount"`
	Paid          bool    `json:"paid"`
	PaidAt        *string `json:"paid_at,omitempty"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference,omitempty"`
}

type MaturityDTO struct {
	ID      string `json:"id"`
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
	Paid    bool   `json:"paid"`
}

type PenaltyDTO struct {
	ID            string `json:"id"`
	InstallmentID string `json:"installment_id"`
	Amount        string `json:"amount"`
	Month         string `json:"month"`
	Reason        string `json:"reason"`
}

type GrantDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	AgentID     string  `json:"agent_id"`
	PlanID      string  `json:"plan_id"`
	Period      string  `json:"period"`
	Investors   int     `json:"investors"`
	Amount      string  `json:"amount"`
	RewardType  string  `json:"reward_type"`
	RewardValue string  `json:"reward_value"`
	RewardItem  string  `json:"physical_description,omitempty"`
	Rewarded    bool    `json:"rewarded"`
	RewardedAt  *string `json:"rewarded_at,omitempty"`
}

type SettlementDTO struct {
	CustomerID string `json:"customer_id"`
	Invested   string `json:"investment_amount"`
	Principal  string `json:"principal"`
	TotalPaid  string `json:"total_paid"`
	Amount     string `json:"settlement_amount"`
	Type       string `json:"settlement_type"`
}

type ApprovalDTO struct {
	Customer    CustomerDTO     `json:"customer"`
	Obligations []ObligationDTO `json:"obligations"`
	Commissions []CommissionDTO `json:"commissions"`
	Grants      []GrantDTO      `json:"grants"`
}

type DepositScheduleDTO struct {
	Installments []InstallmentDTO `json:"installments"`
	Maturity     *MaturityDTO     `json:"maturity,omitempty"`
}

type PaymentDTO struct {
	Installment InstallmentDTO  `json:"installment"`
	Penalty     *PenaltyDTO     `json:"penalty,omitempty"`
	Maturity    *MaturityDTO    `json:"maturity,omitempty"`
	Deduction   string          `json:"deduction"`
	Commissions []CommissionDTO `json:"commissions"`
}

type CompanyQuoteDTO struct {
	ExpectedReturn   string          `json:"expected_return"`
	ReturnPercentage string          `json:"return_percentage"`
	Payments         []ObligationDTO `json:"payments"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toAgentDTO(a commission.AgentNode) AgentDTO {
	return AgentDTO{
		ID:                string(a.ID),
		Name:              a.Name,
		ParentID:          string(a.ParentID),
		CommissionPercent: a.Percent.String(),
		Approved:          a.Approved,
	}
}

func toPlanDTO(p portfolio.PlanRecord) PlanDTO {
	return PlanDTO{
		ID:       p.ID,
		Kind:     string(p.Kind),
		Name:     p.Name,
		Active:   p.Active,
		Position: p.Position,
		Config:   json.RawMessage(p.ConfigJSON),
	}
}

func toCustomerDTO(c portfolio.Customer) CustomerDTO {
	return CustomerDTO{
		ID:               string(c.ID),
		Name:             c.Name,
		AgentID:          string(c.AgentID),
		PlanID:           string(c.PlanID),
		InvestmentAmount: money(c.Amount),
		InvestmentDate:   c.InvestmentDate.String(),
		Status:           string(c.Status),
		ApprovedAt:       timestamp(c.ApprovedAt),
	}
}

func toRDCustomerDTO(c portfolio.RDCustomer) RDCustomerDTO {
	return RDCustomerDTO{
		ID:                string(c.ID),
		Name:              c.Name,
		AgentID:           string(c.AgentID),
		PlanID:            string(c.PlanID),
		InstallmentAmount: money(c.InstallmentAmount),
		InvestmentDate:    c.StartDate.String(),
		Status:            string(c.Status),
		ApprovedAt:        timestamp(c.ApprovedAt),
	}
}

func toObligationDTOs(obs []schedule.Obligation) []ObligationDTO {
	out := make([]ObligationDTO, 0, len(obs))
	for _, o := range obs {
		out = append(out, toObligationDTO(o))
	}
	return out
}

func toObligationDTO(o schedule.Obligation) ObligationDTO {
	return ObligationDTO{
		ID:              o.ID,
		CustomerID:      string(o.CustomerID),
		PayoutMonth:     o.PayoutMonth,
		PayoutDate:      o.DueDate.String(),
		StartDate:       o.StartDate.String(),
		PaymentType:     string(o.Kind),
		Amount:          money(o.Amount),
		InterestAmount:  money(o.InterestAmount),
		PrincipalAmount: money(o.PrincipalAmount),
		IsPrincipal:     o.IsPrincipal,
		Paid:            o.Paid,
		PaidAt:          timestamp(o.PaidAt),
		PaymentMethod:   string(methodOf(o.Method)),
		Reference:       o.Reference,
	}
}

func toCommissionDTOs(coms []commission.Obligation) []CommissionDTO {
	out := make([]CommissionDTO, 0, len(coms))
	for _, c := range coms {
		out = append(out, toCommissionDTO(c))
	}
	return out
}

func toCommissionDTO(c commission.Obligation) CommissionDTO {
	return CommissionDTO{
		ID:            c.ID,
		AgentID:       string(c.AgentID),
		CustomerID:    string(c.CustomerID),
		Source:        string(c.Source),
		SourceRef:     c.SourceRef,
		Percent:       c.Percent.String(),
		Amount:        money(c.Amount),
		PayoutDate:    c.DueDate.String(),
		Paid:          c.Paid,
		PaidAt:        timestamp(c.PaidAt),
		PaymentMethod: string(methodOf(c.Method)),
		Reference:     c.Reference,
	}
}

func toInstallmentDTO(i deposit.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:            i.ID,
		CustomerID:    string(i.CustomerID),
		Seq:           i.Seq,
		DueDate:       i.DueDate.String(),
		Amount:        money(i.Amount),
		Paid:          i.Paid,
		PaidAt:        timestamp(i.PaidAt),
		PaymentMethod: string(methodOf(i.Method)),
		Reference:     i.Reference,
	}
}

func toMaturityDTO(m *deposit.Maturity) *MaturityDTO {
	if m == nil {
		return nil
	}
	return &MaturityDTO{ID: m.ID, DueDate: m.DueDate.String(), Amount: money(m.Amount), Paid: m.Paid}
}

func toDepositScheduleDTO(insts []deposit.Installment, m *deposit.Maturity) DepositScheduleDTO {
	out := DepositScheduleDTO{Installments: make([]InstallmentDTO, 0, len(insts)), Maturity: toMaturityDTO(m)}
	for _, i := range insts {
		out.Installments = append(out.Installments, toInstallmentDTO(i))
	}
	return out
}

func toPaymentDTO(res deposit.PaymentResult) PaymentDTO {
	out := PaymentDTO{
		Installment: toInstallmentDTO(res.Installment),
		Maturity:    toMaturityDTO(res.Maturity),
		Deduction:   money(res.Deduction),
		Commissions: toCommissionDTOs(res.Commissions),
	}
	if p := res.Penalty; p != nil {
		out.Penalty = &PenaltyDTO{
			ID:            p.ID,
			InstallmentID: p.InstallmentID,
			Amount:        money(p.Amount),
			Month:         p.Month,
			Reason:        p.Reason,
		}
	}
	return out
}

func toGrantDTOs(grants []rewards.Grant) []GrantDTO {
	out := make([]GrantDTO, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantDTO(g))
	}
	return out
}

func toGrantDTO(g rewards.Grant) GrantDTO {
	return GrantDTO{
		ID:          g.ID,
		Kind:        string(g.Kind),
		AgentID:     string(g.AgentID),
		PlanID:      string(g.PlanID),
		Period:      g.Period,
		Investors:   g.Investors,
		Amount:      money(g.Amount),
		RewardType:  string(g.Reward.Type),
		RewardValue: money(g.Reward.Amount),
		RewardItem:  g.Reward.Description,
		Rewarded:    g.Rewarded,
		RewardedAt:  timestamp(g.RewardedAt),
	}
}

func toSettlementDTO(id generic.CustomerID, s schedule.Settlement) SettlementDTO {
	return SettlementDTO{
		CustomerID: string(id),
		Invested:   money(s.Invested),
		Principal:  money(s.Principal),
		TotalPaid:  money(s.TotalPaid),
		Amount:     money(s.Amount),
		Type:       string(s.Type),
	}
}

func methodOf(m generic.PaymentMethod) generic.PaymentMethod {
	if m == "" {
		return generic.MethodNone
	}
	return m
}
