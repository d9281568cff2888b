// Package predictor holds the learned regression model and the deterministic
// rule-based estimator it falls back to.
package predictor

import (
	"github.com/rotisserie/eris"

	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
)

// Sentinel errors. ErrModelUnavailable is an expected state, not a fault:
// callers route to the rule-based estimator.
var (
	ErrModelUnavailable = eris.New("predictor: no model loaded")
	ErrInsufficientData = eris.New("predictor: insufficient training data")
)

// Regressor is the model capability consumed by the pipelines. A deployment
// without a learned model wires Disabled instead of conditionally branching
// at call sites.
type Regressor interface {
	// Available reports whether a trained model is loaded.
	Available() bool

	// Predict returns estimated minutes and a fixed confidence for one
	// feature record. Fails with ErrModelUnavailable when no model is
	// loaded. The estimate is raw model output; callers apply bounds.
	Predict(rec feature.Record) (minutes, confidence float64, err error)

	// Train fits a new model on the given rows, evaluates it on a fixed-seed
	// 80/20 holdout, then atomically replaces the live model and persists
	// the artifact. Fails with ErrInsufficientData on empty input; a failed
	// run leaves the current model untouched.
	Train(records []feature.Record, targets []float64) (*model.TrainingMetrics, error)

	// Load restores a persisted model. Absence is a normal state: it
	// returns false rather than an error.
	Load() bool
}

// IsModelUnavailable reports whether err is, or wraps, ErrModelUnavailable.
func IsModelUnavailable(err error) bool {
	return eris.Is(err, ErrModelUnavailable)
}

// Disabled is the Lite-mode Regressor: never available, never trains.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Predict(feature.Record) (float64, float64, error) {
	return 0, 0, ErrModelUnavailable
}

func (Disabled) Train([]feature.Record, []float64) (*model.TrainingMetrics, error) {
	return nil, ErrModelUnavailable
}

func (Disabled) Load() bool { return false }
