package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentMinutes(t *testing.T) {
	placed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ready := placed.Add(23 * time.Minute)

	o := HistoricalOrder{PlacedAt: placed, ReadyAt: &ready}
	assert.InDelta(t, 23, o.FulfillmentMinutes(), 1e-9)

	open := HistoricalOrder{PlacedAt: placed}
	assert.Equal(t, 0.0, open.FulfillmentMinutes())
}

func TestPredictionRequest_ItemFieldNames(t *testing.T) {
	payload := `{
		"vendor_id": "vendor-1",
		"items": [{
			"menu_item_id": "burger",
			"quantity": 2,
			"base_preparation_time_minutes": 7.5,
			"preparation_complexity": 3
		}]
	}`

	var req PredictionRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	assert.Empty(t, req.OrderID)
	require.Len(t, req.Items, 1)
	assert.Equal(t, 7.5, req.Items[0].BasePrepMinutes)
	assert.Equal(t, 3, req.Items[0].Complexity)
}

func TestConfidenceOrdering(t *testing.T) {
	assert.Greater(t, ConfidenceML, ConfidenceRule)
	assert.Greater(t, ConfidenceRule, ConfidenceNoModel)
	assert.Greater(t, ConfidenceNoModel, ConfidenceEmergency)
}
