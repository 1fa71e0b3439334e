package factory

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// PRESETS - JSON builders for common plan shapes
// =============================================================================

// PlanJSONString renders an investment plan definition.
func PlanJSONString(id, name, segment, mode string, months int, rate string) string {
	return mustJSON(PlanJSON{
		ID:               id,
		Name:             name,
		Segment:          segment,
		PaymentMode:      mode,
		DurationMonths:   months,
		ReturnPercentage: decimal.NewNullDecimal(generic.MustParseDecimal(rate)),
	})
}

// RDPlanJSONString renders a recurring-deposit plan definition.
func RDPlanJSONString(id, name string, months int, rate string) string {
	return mustJSON(RDPlanJSON{
		ID:               id,
		Name:             name,
		DurationMonths:   months,
		ReturnPercentage: decimal.NewNullDecimal(generic.MustParseDecimal(rate)),
	})
}

// BonusPlanJSONString renders a cash bonus plan valid over [start, end).
func BonusPlanJSONString(id, name string, investors int, amount, reward, start, end string) string {
	return mustJSON(IncentiveJSON{
		ID:              id,
		Name:            name,
		TargetInvestors: investors,
		TargetAmount:    decimal.NewNullDecimal(generic.MustParseDecimal(amount)),
		RewardType:      "BONUS",
		RewardValue:     decimal.NewNullDecimal(generic.MustParseDecimal(reward)),
		StartDate:       start,
		EndDate:         end,
	})
}

// GiftPlanJSONString renders a physical gift catalog entry.
func GiftPlanJSONString(id, name, amount, item string) string {
	return mustJSON(IncentiveJSON{
		ID:                  id,
		Name:                name,
		TargetAmount:        decimal.NewNullDecimal(generic.MustParseDecimal(amount)),
		RewardType:          "PHYSICAL",
		PhysicalDescription: item,
	})
}

// StandardCatalog is one plan per segment and mode, as shipped to new installs.
func StandardCatalog() []string {
	return []string{
		PlanJSONString("preipo-12", "Pre-IPO 12M", "PRE-IPO", "Monthly", 12, "2"),
		PlanJSONString("preipo-bb-24", "Pre-IPO Buyback 24M", "PRE-IPO", "Buyback", 24, "36"),
		PlanJSONString("realestate-12", "Real Estate 12M", "REAL ESTATE", "Monthly", 12, "1.75"),
		PlanJSONString("direct-11", "Direct 11M", "DIRECT", "Monthly", 11, "1.5"),
		PlanJSONString("direct-12", "Direct 12M", "DIRECT", "Monthly", 12, "1.5"),
		PlanJSONString("infra-12", "Infrastructure 12M", "INFRASTRUCTURE", "Monthly", 12, "0"),
		PlanJSONString("travel-18", "Travel 18M", "TRAVEL", "Monthly", 18, "12"),
		PlanJSONString("investment-6", "Investment 6M", "INVESTMENT", "Monthly", 6, "1"),
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
