/*
Package factory converts JSON plan definitions into engine types.

PURPOSE:
  Plans are configured, not coded. Operations staff define investment plans,
  RD plans, bonus plans and gift plans as JSON; the factory validates them
  and builds the structs the engines consume. The store keeps the original
  JSON so a plan reads back exactly as it was defined.

JSON SCHEMA (investment plan):
  {
    "id": "direct-12",
    "name": "Direct 12M",
    "segment": "DIRECT",
    "payment_mode": "Monthly",
    "duration_months": 12,
    "return_percentage": "1.5",
    "discount": "0"
  }

JSON SCHEMA (bonus plan):
  {
    "id": "q1-drive",
    "name": "Q1 Drive",
    "target_investors": 5,
    "target_amount": "500000",
    "reward_type": "BONUS",
    "reward_value": "10000",
    "start_date": "2025-01-01",
    "end_date": "2025-04-01"
  }

Amounts and percentages accept JSON numbers or strings.

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(jsonStr)

SEE ALSO:
  - presets.go: ready-made catalogs for demos and tests
  - schedule/types.go: PlanTerms
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/deposit"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"github.com/warp/payout-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of an investment plan.
type PlanJSON struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Segment          string              `json:"segment"`
	PaymentMode      string              `json:"payment_mode"`
	DurationMonths   int                 `json:"duration_months"`
	ReturnPercentage decimal.NullDecimal `json:"return_percentage"`
	Discount         decimal.NullDecimal `json:"discount,omitempty"`
}

// RDPlanJSON is the JSON representation of a recurring-deposit plan.
type RDPlanJSON struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	DurationMonths   int                 `json:"duration_months"`
	ReturnPercentage decimal.NullDecimal `json:"return_percentage"`
}

// IncentiveJSON is the JSON representation of a bonus or gift plan. Gift
// plans ignore the validity dates.
type IncentiveJSON struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	TargetInvestors     int                 `json:"target_investors"`
	TargetAmount        decimal.NullDecimal `json:"target_amount"`
	RewardType          string              `json:"reward_type"`
	RewardValue         decimal.NullDecimal `json:"reward_value,omitempty"`
	PhysicalDescription string              `json:"physical_description,omitempty"`
	StartDate           string              `json:"start_date,omitempty"`
	EndDate             string              `json:"end_date,omitempty"`
	DurationMonths      int                 `json:"duration_months,omitempty"`
	IsActive            *bool               `json:"is_active,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// PlanFactory builds engine plans from JSON.
type PlanFactory struct{}

func NewPlanFactory() *PlanFactory { return &PlanFactory{} }

// ParsePlan parses an investment plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (schedule.Plan, error) {
	var pj PlanJSON
	if err := decode(jsonStr, &pj); err != nil {
		return schedule.Plan{}, err
	}
	return f.BuildPlan(pj)
}

// BuildPlan validates pj and converts it. Schedule-level checks (duration,
// return percentage) are repeated at generation time.
func (f *PlanFactory) BuildPlan(pj PlanJSON) (schedule.Plan, error) {
	if err := requireIDName(pj.ID, pj.Name); err != nil {
		return schedule.Plan{}, err
	}
	if strings.TrimSpace(pj.Segment) == "" {
		return schedule.Plan{}, generic.Invalid("segment", "is required")
	}
	mode, err := schedule.ParseMode(pj.PaymentMode)
	if err != nil {
		return schedule.Plan{}, err
	}
	if pj.DurationMonths <= 0 {
		return schedule.Plan{}, generic.Invalid("duration_months", "is required and must be positive")
	}
	if !pj.ReturnPercentage.Valid {
		return schedule.Plan{}, generic.Invalid("return_percentage", "is required")
	}

	return schedule.Plan{
		ID:   generic.PlanID(pj.ID),
		Name: pj.Name,
		Terms: schedule.PlanTerms{
			Segment:        schedule.ParseSegment(pj.Segment),
			Mode:           mode,
			DurationMonths: pj.DurationMonths,
			ReturnPercent:  pj.ReturnPercentage,
			Discount:       pj.Discount.Decimal,
		},
	}, nil
}

// ParseRDPlan parses a recurring-deposit plan.
func (f *PlanFactory) ParseRDPlan(jsonStr string) (deposit.Plan, error) {
	var rj RDPlanJSON
	if err := decode(jsonStr, &rj); err != nil {
		return deposit.Plan{}, err
	}
	if err := requireIDName(rj.ID, rj.Name); err != nil {
		return deposit.Plan{}, err
	}
	if rj.DurationMonths <= 0 {
		return deposit.Plan{}, generic.Invalid("duration_months", "is required and must be positive")
	}
	if !rj.ReturnPercentage.Valid {
		return deposit.Plan{}, generic.Invalid("return_percentage", "is required")
	}
	return deposit.Plan{
		ID:             generic.PlanID(rj.ID),
		Name:           rj.Name,
		DurationMonths: rj.DurationMonths,
		ReturnPercent:  rj.ReturnPercentage,
	}, nil
}

// ParseBonusPlan parses a time-boxed bonus plan. end_date is exclusive.
func (f *PlanFactory) ParseBonusPlan(jsonStr string) (rewards.BonusPlan, error) {
	var ij IncentiveJSON
	if err := decode(jsonStr, &ij); err != nil {
		return rewards.BonusPlan{}, err
	}
	targets, reward, err := incentive(ij)
	if err != nil {
		return rewards.BonusPlan{}, err
	}

	start, err := generic.ParseDate(ij.StartDate)
	if err != nil {
		return rewards.BonusPlan{}, generic.Invalid("start_date", "must be YYYY-MM-DD")
	}
	end, err := generic.ParseDate(ij.EndDate)
	if err != nil {
		return rewards.BonusPlan{}, generic.Invalid("end_date", "must be YYYY-MM-DD")
	}
	validity, err := generic.NewPeriod(start, end)
	if err != nil {
		return rewards.BonusPlan{}, generic.Invalid("end_date", "must be after start_date")
	}

	return rewards.BonusPlan{
		ID:       generic.PlanID(ij.ID),
		Name:     ij.Name,
		Targets:  targets,
		Reward:   reward,
		Validity: validity,
		Active:   ij.IsActive == nil || *ij.IsActive,
	}, nil
}

// ParseGiftPlan parses a gift catalog entry.
func (f *PlanFactory) ParseGiftPlan(jsonStr string) (rewards.GiftPlan, error) {
	var ij IncentiveJSON
	if err := decode(jsonStr, &ij); err != nil {
		return rewards.GiftPlan{}, err
	}
	targets, reward, err := incentive(ij)
	if err != nil {
		return rewards.GiftPlan{}, err
	}
	return rewards.GiftPlan{
		ID:             generic.PlanID(ij.ID),
		Name:           ij.Name,
		Targets:        targets,
		Reward:         reward,
		DurationMonths: ij.DurationMonths,
		Active:         ij.IsActive == nil || *ij.IsActive,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(jsonStr string, v any) error {
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return generic.Invalid("json", err.Error())
	}
	return nil
}

func requireIDName(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return generic.Invalid("id", "is required")
	}
	if strings.TrimSpace(name) == "" {
		return generic.Invalid("name", "is required")
	}
	return nil
}

func incentive(ij IncentiveJSON) (rewards.Targets, rewards.Reward, error) {
	if err := requireIDName(ij.ID, ij.Name); err != nil {
		return rewards.Targets{}, rewards.Reward{}, err
	}
	if ij.TargetInvestors < 0 || ij.TargetAmount.Decimal.IsNegative() {
		return rewards.Targets{}, rewards.Reward{}, generic.Invalid("target", "must not be negative")
	}
	targets := rewards.Targets{Investors: ij.TargetInvestors, Amount: ij.TargetAmount.Decimal}

	var reward rewards.Reward
	switch rewards.RewardType(strings.ToUpper(ij.RewardType)) {
	case rewards.RewardBonus:
		if !ij.RewardValue.Valid || !ij.RewardValue.Decimal.IsPositive() {
			return targets, reward, generic.Invalid("reward_value", "BONUS rewards need a positive amount")
		}
		reward = rewards.Reward{Type: rewards.RewardBonus, Amount: ij.RewardValue.Decimal}
	case rewards.RewardPhysical:
		desc := ij.PhysicalDescription
		if desc == "" {
			desc = ij.Description
		}
		if desc == "" {
			return targets, reward, generic.Invalid("physical_description", "PHYSICAL rewards need a description")
		}
		reward = rewards.Reward{Type: rewards.RewardPhysical, Description: desc}
	default:
		return targets, reward, generic.Invalid("reward_type", fmt.Sprintf("must be BONUS or PHYSICAL, got %q", ij.RewardType))
	}
	return targets, reward, nil
}
