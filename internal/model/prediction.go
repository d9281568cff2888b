package model

import "time"

// Method identifies which estimator produced a prediction. Confidence is a
// fixed scalar per method, ordered ml_model > rule_based_fallback >
// rule_based_fallback_no_model > emergency_fallback.
type Method string

const (
	MethodMLModel             Method = "ml_model"
	MethodRuleFallback        Method = "rule_based_fallback"
	MethodRuleFallbackNoModel Method = "rule_based_fallback_no_model"
	MethodEmergencyFallback   Method = "emergency_fallback"
)

// Confidence levels per method.
const (
	ConfidenceML        = 0.85
	ConfidenceRule      = 0.5
	ConfidenceNoModel   = 0.4
	ConfidenceEmergency = 0.1
)

// PredictionResult is the outbound payload for a ready-time prediction.
type PredictionResult struct {
	PredictedReadyTime time.Time `json:"predicted_ready_time"`
	Confidence         float64   `json:"confidence"`
	EstimatedMinutes   float64   `json:"estimated_minutes"`
	QueuePosition      int       `json:"queue_position"`
	Method             Method    `json:"method"`
	RushDetected       bool      `json:"rush_detected"`
}

// PredictionLog records an issued prediction for later accuracy analysis.
type PredictionLog struct {
	ID                 string    `json:"id"`
	OrderID            string    `json:"order_id"`
	PredictedReadyTime time.Time `json:"predicted_ready_time"`
	Confidence         float64   `json:"confidence"`
	EstimatedMinutes   float64   `json:"estimated_minutes"`
	Method             Method    `json:"method"`
	CreatedAt          time.Time `json:"created_at"`
}

// TrainingMetrics holds holdout evaluation results from the last successful
// training run.
type TrainingMetrics struct {
	MeanAbsoluteError float64   `json:"mean_absolute_error"`
	R2                float64   `json:"r2"`
	SampleCount       int       `json:"sample_count"`
	LastTrained       time.Time `json:"last_trained"`
}

// Training run statuses.
const (
	TrainingStatusSuccess = "success"
	TrainingStatusFailed  = "failed"
	TrainingStatusSkipped = "skipped"
)

// Training failure reasons.
const (
	TrainingReasonNoData              = "no_data"
	TrainingReasonEmptyFeatures       = "empty_features"
	TrainingReasonInsufficientSamples = "insufficient_samples"
	TrainingReasonModelDisabled       = "model_disabled"
	TrainingReasonTrainError          = "train_error"
)

// TrainingReport is the structured outcome of a training run. Failed runs
// carry a reason instead of metrics; the previously loaded model is never
// affected by a failed run.
type TrainingReport struct {
	Status  string           `json:"status"`
	Reason  string           `json:"reason,omitempty"`
	Metrics *TrainingMetrics `json:"metrics,omitempty"`
}
