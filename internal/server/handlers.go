package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handlePredict serves POST /predict. Any failure below the decode step is
// converted into the emergency fallback payload with status 200: this
// endpoint never returns a 5xx for pipeline errors.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req model.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.VendorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vendor_id is required"})
		return
	}

	result := s.predict(r.Context(), req)

	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(string(result.Method)).Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

// predict invokes the pipeline, converting errors and panics into the
// emergency fallback.
func (s *Server) predict(ctx context.Context, req model.PredictionRequest) (result *model.PredictionResult) {
	start := s.now()
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("predict: panic in prediction pipeline",
				zap.String("vendor_id", req.VendorID),
				zap.Any("panic", rec),
			)
			result = s.emergencyFallback(req)
		}
		if s.metrics != nil {
			s.metrics.PredictionSeconds.Observe(time.Since(start).Seconds())
		}
	}()

	result, err := s.predictor.Predict(ctx, req)
	if err != nil {
		zap.L().Error("predict: pipeline failed, serving emergency fallback",
			zap.String("vendor_id", req.VendorID),
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		return s.emergencyFallback(req)
	}
	return result
}

// emergencyFallback is the last-resort estimate when the pipeline itself
// fails: total base time with a 1.5x buffer. The ready time is stamped with
// "now" rather than now plus the estimate; a known stop-gap kept for
// compatibility with existing consumers.
func (s *Server) emergencyFallback(req model.PredictionRequest) *model.PredictionResult {
	return &model.PredictionResult{
		PredictedReadyTime: s.now(),
		Confidence:         model.ConfidenceEmergency,
		EstimatedMinutes:   req.TotalBaseTimeMinutes * 1.5,
		QueuePosition:      -1,
		Method:             model.MethodEmergencyFallback,
		RushDetected:       false,
	}
}

// handleTrain serves POST /train: kicks off a background training run and
// returns immediately. A cooldown limiter drops redundant kicks; the
// response reports "processing" either way.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if s.trainLimiter.Allow() {
		go func() {
			report := s.trainer.Run(context.Background())
			if s.metrics != nil {
				s.metrics.TrainingRunsTotal.WithLabelValues(report.Status).Inc()
			}
		}()
	} else {
		zap.L().Info("train: trigger dropped, within cooldown window")
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Training task started in background",
		"status":  "processing",
	})
}

// handleMetrics serves GET /metrics: the last training report, or a
// no_metrics marker if training has never run.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report := s.trainer.LatestReport()
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_metrics"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": s.modelLoaded(),
		"version":      Version,
	})
}
