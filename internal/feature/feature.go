// Package feature turns raw order data and vendor context into the fixed
// feature vector consumed by the regression model.
package feature

import (
	"time"

	"github.com/campuseats/preptime/internal/model"
)

// Names lists the features in the order they appear in Record.Vector.
// Model artifacts store this list; a loaded artifact with a different
// feature set is rejected.
var Names = []string{
	"total_base_time_minutes",
	"max_complexity",
	"total_items",
	"vendor_queue_depth",
	"recent_order_velocity",
	"vendor_avg_rate",
	"vendor_max_concurrent",
	"hour_of_day",
	"day_of_week",
	"is_lunch_rush",
	"is_dinner_rush",
}

// Defaults applied when vendor metrics are missing.
const (
	DefaultAvgFulfillmentRate  = 2.0
	DefaultMaxConcurrentOrders = 10
)

// Rush windows, inclusive on both ends.
const (
	LunchRushStart  = 11
	LunchRushEnd    = 13
	DinnerRushStart = 16
	DinnerRushEnd   = 17
)

// IsLunchRush reports whether the hour falls in the lunch rush window.
func IsLunchRush(hour int) bool {
	return hour >= LunchRushStart && hour <= LunchRushEnd
}

// IsDinnerRush reports whether the hour falls in the dinner rush window.
func IsDinnerRush(hour int) bool {
	return hour >= DinnerRushStart && hour <= DinnerRushEnd
}

// Record is one feature vector: a single prediction input or one training row.
type Record struct {
	TotalBaseTime       float64
	MaxComplexity       float64
	TotalItems          float64
	QueueDepth          float64
	RecentVelocity      float64
	VendorAvgRate       float64
	VendorMaxConcurrent float64
	HourOfDay           float64
	DayOfWeek           float64
	IsLunchRush         float64
	IsDinnerRush        float64
}

// Vector returns the record as a slice in Names order.
func (r Record) Vector() []float64 {
	return []float64{
		r.TotalBaseTime,
		r.MaxComplexity,
		r.TotalItems,
		r.QueueDepth,
		r.RecentVelocity,
		r.VendorAvgRate,
		r.VendorMaxConcurrent,
		r.HourOfDay,
		r.DayOfWeek,
		r.IsLunchRush,
		r.IsDinnerRush,
	}
}

// Build creates a Record from order items and vendor context. It never fails:
// empty items yield zero totals with max_complexity 1, and missing vendor
// metrics take the fixed defaults.
func Build(items []model.OrderItem, vc model.VendorContext, now time.Time) Record {
	var totalBase float64
	totalItems := 0
	maxComplexity := 1
	for _, item := range items {
		totalBase += item.BasePrepMinutes * float64(item.Quantity)
		totalItems += item.Quantity
		if item.Complexity > maxComplexity {
			maxComplexity = item.Complexity
		}
	}

	avgRate := vc.AvgFulfillmentRate
	if avgRate <= 0 {
		avgRate = DefaultAvgFulfillmentRate
	}
	maxConcurrent := vc.MaxConcurrentOrders
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentOrders
	}

	rec := Record{
		TotalBaseTime:       totalBase,
		MaxComplexity:       float64(maxComplexity),
		TotalItems:          float64(totalItems),
		QueueDepth:          float64(vc.QueueDepth),
		RecentVelocity:      float64(vc.RecentVelocity),
		VendorAvgRate:       avgRate,
		VendorMaxConcurrent: float64(maxConcurrent),
		HourOfDay:           float64(now.Hour()),
		DayOfWeek:           float64(now.Weekday()),
	}
	if IsLunchRush(now.Hour()) {
		rec.IsLunchRush = 1
	}
	if IsDinnerRush(now.Hour()) {
		rec.IsDinnerRush = 1
	}
	return rec
}

// FromHistorical rebuilds the feature vector for a fulfilled order using the
// queue and velocity values recorded at placement time.
func FromHistorical(o model.HistoricalOrder) Record {
	rec := Record{
		TotalBaseTime:       o.TotalBaseTimeMinutes,
		MaxComplexity:       float64(o.MaxComplexity),
		TotalItems:          float64(o.TotalItems),
		QueueDepth:          float64(o.QueueDepth),
		RecentVelocity:      float64(o.RecentVelocity),
		VendorAvgRate:       DefaultAvgFulfillmentRate,
		VendorMaxConcurrent: DefaultMaxConcurrentOrders,
		HourOfDay:           float64(o.PlacedAt.Hour()),
		DayOfWeek:           float64(o.PlacedAt.Weekday()),
	}
	if o.MaxComplexity < 1 {
		rec.MaxComplexity = 1
	}
	if IsLunchRush(o.PlacedAt.Hour()) {
		rec.IsLunchRush = 1
	}
	if IsDinnerRush(o.PlacedAt.Hour()) {
		rec.IsDinnerRush = 1
	}
	return rec
}
