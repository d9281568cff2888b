package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campuseats/preptime/internal/model"
)

func ruleReq(items []model.OrderItem) model.PredictionRequest {
	return model.PredictionRequest{VendorID: "v1", Items: items}
}

func TestRuleBasedMinutes_OffPeak(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 1, BasePrepMinutes: 10},
	}
	// 10 base + 3*2.5 queue delay, no rush multiplier
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	got := RuleBasedMinutes(ruleReq(items), 3, now)

	assert.InDelta(t, 17.5, got, 1e-9)
}

func TestRuleBasedMinutes_LunchRushMultiplier(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 1, BasePrepMinutes: 10},
	}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	got := RuleBasedMinutes(ruleReq(items), 3, now)

	assert.InDelta(t, (10+7.5)*1.4, got, 1e-9)
}

func TestRuleBasedMinutes_DinnerRushNoMultiplier(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 2, BasePrepMinutes: 15},
	}
	now := time.Date(2025, 6, 10, 16, 30, 0, 0, time.UTC)

	got := RuleBasedMinutes(ruleReq(items), 7, now)

	assert.InDelta(t, 30+17.5, got, 1e-9)
}

func TestRuleBasedMinutes_LargerOrder(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 5, BasePrepMinutes: 8, Complexity: 3},
	}
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	got := RuleBasedMinutes(ruleReq(items), 3, now)

	assert.InDelta(t, 47.5, got, 1e-9)
}

func TestRuleBasedMinutes_QuantityScaling(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 3, BasePrepMinutes: 8},
		{Quantity: 1, BasePrepMinutes: 4},
	}
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	got := RuleBasedMinutes(ruleReq(items), 0, now)

	assert.InDelta(t, 28.0, got, 1e-9)
}

func TestRuleBasedMinutes_FallsBackToRequestTotal(t *testing.T) {
	req := model.PredictionRequest{VendorID: "v1", TotalBaseTimeMinutes: 22}
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	got := RuleBasedMinutes(req, 2, now)

	assert.InDelta(t, 27.0, got, 1e-9)
}

func TestRuleBasedMinutes_Deterministic(t *testing.T) {
	items := []model.OrderItem{
		{Quantity: 2, BasePrepMinutes: 12},
	}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	first := RuleBasedMinutes(ruleReq(items), 5, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, RuleBasedMinutes(ruleReq(items), 5, now))
	}
}
