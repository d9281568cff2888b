package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
	"github.com/campuseats/preptime/internal/predictor"
	"github.com/campuseats/preptime/internal/store"
)

// Model output outside this band is discarded as an outlier and the
// rule-based estimate used instead.
const (
	minSaneMinutes = 1.0
	maxSaneMinutes = 120.0
)

// How long a detached logging goroutine may take before giving up.
const logTimeout = 5 * time.Second

// attemptOutcome classifies the result of asking the model for an estimate.
type attemptOutcome int

const (
	attemptAccepted attemptOutcome = iota
	attemptOutlier
	attemptNoModel
	attemptErrored
)

// Predictor sequences a single prediction: context fetch, feature build,
// model attempt, sanity check, rule fallback, response assembly, async
// logging.
type Predictor struct {
	context   *ContextProvider
	regressor predictor.Regressor
	store     store.Store // may be nil

	// now is injectable for tests.
	now func() time.Time

	// logDone is signalled after each detached logging attempt finishes.
	// Tests use it to wait for the fire-and-forget side effects.
	logDone chan struct{}
}

// NewPredictor creates a Predictor. st may be nil (degraded mode: no
// logging side effects).
func NewPredictor(cp *ContextProvider, reg predictor.Regressor, st store.Store) *Predictor {
	return &Predictor{
		context:   cp,
		regressor: reg,
		store:     st,
		now:       time.Now,
	}
}

// Predict produces a ready-time estimate for the request. Expected model
// problems (no model, outlier output, model error) are handled internally by
// falling back to the rule-based estimate; a non-nil error here means the
// pipeline itself failed and the transport boundary must substitute the
// emergency fallback.
func (p *Predictor) Predict(ctx context.Context, req model.PredictionRequest) (*model.PredictionResult, error) {
	receivedAt := p.now()

	vc := p.context.Fetch(ctx, req.VendorID)
	rec := feature.Build(req.Items, vc, receivedAt)

	minutes, method, confidence := p.estimate(req, rec, vc, receivedAt)
	if minutes < minSaneMinutes {
		minutes = minSaneMinutes
	}

	// Rush is evaluated at response time; it can disagree with the hour
	// used in feature building if the clock rolled over mid-request.
	hour := p.now().Hour()
	result := &model.PredictionResult{
		PredictedReadyTime: receivedAt.Add(time.Duration(minutes * float64(time.Minute))),
		Confidence:         confidence,
		EstimatedMinutes:   minutes,
		QueuePosition:      vc.QueueDepth + 1,
		Method:             method,
		RushDetected:       feature.IsLunchRush(hour) || feature.IsDinnerRush(hour),
	}

	// Pre-check estimates (no order ID) have no logging side effects.
	if req.OrderID != "" && p.store != nil {
		go p.logOutcome(req.OrderID, result)
	}

	zap.L().Info("predict: estimate produced",
		zap.String("vendor_id", req.VendorID),
		zap.String("method", string(method)),
		zap.Float64("estimated_minutes", minutes),
		zap.Int("queue_position", result.QueuePosition),
		zap.Int64("duration_ms", p.now().Sub(receivedAt).Milliseconds()),
	)

	return result, nil
}

// estimate tries the model and selects the fallback path per the attempt
// outcome.
func (p *Predictor) estimate(req model.PredictionRequest, rec feature.Record, vc model.VendorContext, now time.Time) (float64, model.Method, float64) {
	minutes, outcome := p.attemptModel(rec)

	switch outcome {
	case attemptAccepted:
		return minutes, model.MethodMLModel, model.ConfidenceML
	case attemptNoModel:
		return predictor.RuleBasedMinutes(req, vc.QueueDepth, now),
			model.MethodRuleFallbackNoModel, model.ConfidenceNoModel
	default: // attemptOutlier, attemptErrored
		return predictor.RuleBasedMinutes(req, vc.QueueDepth, now),
			model.MethodRuleFallback, model.ConfidenceRule
	}
}

func (p *Predictor) attemptModel(rec feature.Record) (float64, attemptOutcome) {
	minutes, _, err := p.regressor.Predict(rec)
	switch {
	case err != nil && predictor.IsModelUnavailable(err):
		return 0, attemptNoModel
	case err != nil:
		zap.L().Warn("predict: model error, falling back to rules", zap.Error(err))
		return 0, attemptErrored
	case minutes < minSaneMinutes || minutes > maxSaneMinutes:
		zap.L().Warn("predict: model output out of bounds, falling back to rules",
			zap.Float64("minutes", minutes),
		)
		return 0, attemptOutlier
	default:
		return minutes, attemptAccepted
	}
}

// logOutcome records the prediction and stamps it onto the order. Detached
// from the request: it runs on its own context and never propagates failure
// back to the response.
func (p *Predictor) logOutcome(orderID string, result *model.PredictionResult) {
	defer func() {
		if p.logDone != nil {
			p.logDone <- struct{}{}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), logTimeout)
	defer cancel()

	entry := model.PredictionLog{
		OrderID:            orderID,
		PredictedReadyTime: result.PredictedReadyTime,
		Confidence:         result.Confidence,
		EstimatedMinutes:   result.EstimatedMinutes,
		Method:             result.Method,
		CreatedAt:          p.now().UTC(),
	}
	if err := p.store.InsertPredictionLog(ctx, entry); err != nil {
		zap.L().Warn("predict: failed to log prediction", zap.String("order_id", orderID), zap.Error(err))
	}
	if err := p.store.UpdateOrderPrediction(ctx, orderID, result.PredictedReadyTime, result.Confidence); err != nil {
		zap.L().Warn("predict: failed to update order prediction", zap.String("order_id", orderID), zap.Error(err))
	}
}
