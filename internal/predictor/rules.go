package predictor

import (
	"time"

	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
)

const (
	// Minutes of delay added per order already in the vendor's queue.
	queueDelayPerOrder = 2.5

	// Multiplier applied during the lunch rush. Dinner rush deliberately
	// does not affect the rule-based estimate, only the rush_detected flag.
	lunchRushMultiplier = 1.4
)

// RuleBasedMinutes is the deterministic fallback estimate. Pure function of
// its inputs; it never fails.
func RuleBasedMinutes(req model.PredictionRequest, queueDepth int, now time.Time) float64 {
	var baseTime float64
	for _, item := range req.Items {
		baseTime += item.BasePrepMinutes * float64(item.Quantity)
	}
	if baseTime <= 0 {
		baseTime = req.TotalBaseTimeMinutes
	}

	queueDelay := float64(queueDepth) * queueDelayPerOrder

	multiplier := 1.0
	if feature.IsLunchRush(now.Hour()) {
		multiplier = lunchRushMultiplier
	}

	return (baseTime + queueDelay) * multiplier
}
