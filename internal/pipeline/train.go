package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/config"
	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
	"github.com/campuseats/preptime/internal/predictor"
	"github.com/campuseats/preptime/internal/store"
)

// Fulfillment durations above this are treated as data errors (orders left
// open overnight) and excluded from training.
const maxTrainableMinutes = 240.0

// Trainer runs the retraining pipeline: fetch history, build the feature
// matrix, fit, record metrics. Every stage short-circuits into a structured
// failure report; a failed run never touches the previously loaded model.
type Trainer struct {
	store     store.Store // may be nil
	regressor predictor.Regressor
	cfg       config.TrainingConfig

	mu   sync.RWMutex
	last *model.TrainingReport

	now func() time.Time
}

// NewTrainer creates a Trainer. st may be nil (degraded mode: training
// always reports no_data).
func NewTrainer(st store.Store, reg predictor.Regressor, cfg config.TrainingConfig) *Trainer {
	return &Trainer{store: st, regressor: reg, cfg: cfg, now: time.Now}
}

// Run executes one training pass and returns its report. The report is also
// retained, overwriting the previous one, for LatestReport. Concurrent Run
// calls are not serialized: the last model swap wins.
func (t *Trainer) Run(ctx context.Context) model.TrainingReport {
	report := t.run(ctx)

	t.mu.Lock()
	t.last = &report
	t.mu.Unlock()

	return report
}

func (t *Trainer) run(ctx context.Context) model.TrainingReport {
	log := zap.L()
	log.Info("train: starting training pipeline")

	if t.store == nil {
		log.Warn("train: no store configured, aborting")
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonNoData}
	}

	since := t.now().AddDate(0, 0, -t.cfg.LookbackDays)
	orders, err := t.store.FetchRecentOrders(ctx, model.FulfilledStatuses, since)
	if err != nil {
		log.Error("train: failed to fetch training data", zap.Error(err))
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonNoData}
	}
	if len(orders) == 0 {
		log.Warn("train: no historical orders in window, aborting",
			zap.Time("since", since),
		)
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonNoData}
	}

	records, targets := buildTrainingSet(orders)
	if len(records) == 0 {
		log.Warn("train: no usable rows after filtering, aborting",
			zap.Int("fetched", len(orders)),
		)
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonEmptyFeatures}
	}
	if len(records) < t.cfg.MinSamples {
		log.Warn("train: below sample floor, aborting",
			zap.Int("samples", len(records)),
			zap.Int("min_samples", t.cfg.MinSamples),
		)
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonInsufficientSamples}
	}

	metrics, err := t.regressor.Train(records, targets)
	if err != nil {
		if predictor.IsModelUnavailable(err) {
			log.Warn("train: learned model disabled (lite mode), skipping fit")
			return model.TrainingReport{Status: model.TrainingStatusSkipped, Reason: model.TrainingReasonModelDisabled}
		}
		log.Error("train: model fit failed", zap.Error(err))
		return model.TrainingReport{Status: model.TrainingStatusFailed, Reason: model.TrainingReasonTrainError}
	}
	metrics.LastTrained = t.now().UTC()

	log.Info("train: training complete",
		zap.Float64("mae", metrics.MeanAbsoluteError),
		zap.Float64("r2", metrics.R2),
		zap.Int("samples", metrics.SampleCount),
	)
	return model.TrainingReport{Status: model.TrainingStatusSuccess, Metrics: metrics}
}

// LatestReport returns the report of the most recent run, or nil if training
// has never run in this process.
func (t *Trainer) LatestReport() *model.TrainingReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// buildTrainingSet converts fulfilled orders into feature rows and observed
// fulfillment-minute targets, dropping rows with missing or absurd durations.
func buildTrainingSet(orders []model.HistoricalOrder) ([]feature.Record, []float64) {
	records := make([]feature.Record, 0, len(orders))
	targets := make([]float64, 0, len(orders))
	for _, o := range orders {
		minutes := o.FulfillmentMinutes()
		if minutes <= 0 || minutes > maxTrainableMinutes {
			continue
		}
		records = append(records, feature.FromHistorical(o))
		targets = append(targets, minutes)
	}
	return records, targets
}
