package model

import "time"

// OrderStatus represents the lifecycle state of a placed order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCollected OrderStatus = "collected"
)

// QueueStatuses are the statuses that count toward a vendor's queue depth.
var QueueStatuses = []OrderStatus{OrderStatusPending, OrderStatusPreparing}

// FulfilledStatuses are the statuses eligible as training history.
var FulfilledStatuses = []OrderStatus{OrderStatusReady, OrderStatusCollected}

// OrderItem is a single line of an order as submitted for prediction.
type OrderItem struct {
	MenuItemID      string  `json:"menu_item_id"`
	Quantity        int     `json:"quantity"`
	BasePrepMinutes float64 `json:"base_preparation_time_minutes"`
	Complexity      int     `json:"preparation_complexity"`
}

// PredictionRequest is the inbound payload for a ready-time prediction.
// OrderID is empty for pre-check estimates that are not tied to a persisted
// order; those skip the logging side effects.
type PredictionRequest struct {
	OrderID              string      `json:"order_id,omitempty"`
	VendorID             string      `json:"vendor_id"`
	Items                []OrderItem `json:"items"`
	TotalBaseTimeMinutes float64     `json:"total_base_time_minutes"`
	MaxComplexity        int         `json:"max_complexity"`
	TotalItems           int         `json:"total_items"`
}

// VendorContext is the live vendor state fetched fresh for each prediction.
type VendorContext struct {
	QueueDepth          int     `json:"queue_depth"`
	RecentVelocity      int     `json:"recent_velocity"`
	AvgFulfillmentRate  float64 `json:"avg_fulfillment_rate"`
	MaxConcurrentOrders int     `json:"max_concurrent_orders"`
}

// HistoricalOrder is a fulfilled order row used to build training data.
// QueueDepth and RecentVelocity are the values recorded at placement time.
type HistoricalOrder struct {
	ID                   string      `json:"id"`
	VendorID             string      `json:"vendor_id"`
	Status               OrderStatus `json:"status"`
	TotalBaseTimeMinutes float64     `json:"total_base_time_minutes"`
	MaxComplexity        int         `json:"max_complexity"`
	TotalItems           int         `json:"total_items"`
	QueueDepth           int         `json:"queue_depth"`
	RecentVelocity       int         `json:"recent_velocity"`
	PlacedAt             time.Time   `json:"placed_at"`
	ReadyAt              *time.Time  `json:"ready_at,omitempty"`
}

// FulfillmentMinutes returns the observed placed-to-ready duration in
// minutes, or 0 if the order never reached ready.
func (o HistoricalOrder) FulfillmentMinutes() float64 {
	if o.ReadyAt == nil {
		return 0
	}
	return o.ReadyAt.Sub(o.PlacedAt).Minutes()
}
