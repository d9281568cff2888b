package predictor

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/feature"
	"github.com/campuseats/preptime/internal/model"
)

// Fixed seed so the 80/20 holdout split is reproducible across runs.
const splitSeed = 42

const (
	learningRate = 0.1
	iterations   = 2000
)

// artifact is the persisted form of a trained model: linear weights over
// standardized features.
type artifact struct {
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
	TrainedAt time.Time `json:"trained_at"`
}

// LinearModel is a file-backed linear regression Regressor. The live model is
// swapped wholesale behind an atomic pointer; concurrent readers never see a
// partially trained model.
type LinearModel struct {
	path    string
	current atomic.Pointer[artifact]
}

// NewLinearModel creates a LinearModel persisting its artifact at path. No
// model is loaded until Load or Train succeeds.
func NewLinearModel(path string) *LinearModel {
	return &LinearModel{path: path}
}

func (m *LinearModel) Available() bool {
	return m.current.Load() != nil
}

func (m *LinearModel) Predict(rec feature.Record) (float64, float64, error) {
	art := m.current.Load()
	if art == nil {
		return 0, 0, ErrModelUnavailable
	}

	x := rec.Vector()
	if len(x) != len(art.Weights) {
		return 0, 0, eris.Errorf("predictor: model has %d features, input has %d", len(art.Weights), len(x))
	}

	pred := art.Intercept
	for i, v := range x {
		pred += art.Weights[i] * standardize(v, art.Means[i], art.Stds[i])
	}
	return pred, model.ConfidenceML, nil
}

func (m *LinearModel) Train(records []feature.Record, targets []float64) (*model.TrainingMetrics, error) {
	n := len(records)
	if n == 0 {
		return nil, ErrInsufficientData
	}
	if len(targets) != n {
		return nil, eris.Errorf("predictor: %d records but %d targets", n, len(targets))
	}

	// Fixed-seed shuffle, then 80/20 split.
	rng := rand.New(rand.NewSource(splitSeed))
	idx := rng.Perm(n)
	testN := n / 5
	if testN == 0 && n > 1 {
		testN = 1
	}
	trainIdx, testIdx := idx[testN:], idx[:testN]
	if len(testIdx) == 0 {
		// Too few rows for a holdout; evaluate on the training rows.
		testIdx = trainIdx
	}

	X := make([][]float64, n)
	for i, rec := range records {
		X[i] = rec.Vector()
	}
	dims := len(feature.Names)

	means, stds := columnStats(X, trainIdx, dims)
	weights, intercept := fit(X, targets, trainIdx, means, stds, dims)

	mae, r2 := evaluate(X, targets, testIdx, weights, intercept, means, stds)

	art := &artifact{
		Features:  feature.Names,
		Weights:   weights,
		Intercept: intercept,
		Means:     means,
		Stds:      stds,
		TrainedAt: time.Now().UTC(),
	}
	m.current.Store(art)

	if err := m.save(art); err != nil {
		// The in-memory model is already live; persistence failure only
		// costs durability across restarts.
		zap.L().Warn("predictor: failed to persist model artifact", zap.Error(err))
	}

	return &model.TrainingMetrics{
		MeanAbsoluteError: mae,
		R2:                r2,
		SampleCount:       n,
		LastTrained:       art.TrainedAt,
	}, nil
}

// Load restores the persisted artifact, if any.
func (m *LinearModel) Load() bool {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("predictor: failed to read model artifact", zap.String("path", m.path), zap.Error(err))
		}
		return false
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		zap.L().Warn("predictor: corrupt model artifact", zap.String("path", m.path), zap.Error(err))
		return false
	}
	if len(art.Weights) != len(feature.Names) || len(art.Means) != len(art.Weights) || len(art.Stds) != len(art.Weights) {
		zap.L().Warn("predictor: model artifact feature set mismatch, ignoring",
			zap.String("path", m.path),
			zap.Int("artifact_features", len(art.Weights)),
			zap.Int("expected_features", len(feature.Names)),
		)
		return false
	}

	m.current.Store(&art)
	zap.L().Info("predictor: model loaded",
		zap.String("path", m.path),
		zap.Time("trained_at", art.TrainedAt),
	)
	return true
}

// save writes the artifact via a temp file and rename so a crash mid-write
// never leaves a truncated artifact on disk.
func (m *LinearModel) save(art *artifact) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return eris.Wrap(err, "predictor: create model dir")
	}

	data, err := json.Marshal(art)
	if err != nil {
		return eris.Wrap(err, "predictor: marshal artifact")
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "predictor: write artifact")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return eris.Wrap(err, "predictor: rename artifact")
	}
	return nil
}

func standardize(v, mean, std float64) float64 {
	return (v - mean) / std
}

// columnStats computes per-feature mean and standard deviation over the
// training rows. Zero-variance columns get std 1 so they contribute nothing.
func columnStats(X [][]float64, trainIdx []int, dims int) (means, stds []float64) {
	means = make([]float64, dims)
	stds = make([]float64, dims)
	n := float64(len(trainIdx))

	for _, i := range trainIdx {
		for j, v := range X[i] {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}

	for _, i := range trainIdx {
		for j, v := range X[i] {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

// fit runs batch gradient descent on mean squared error over standardized
// features.
func fit(X [][]float64, y []float64, trainIdx []int, means, stds []float64, dims int) (weights []float64, intercept float64) {
	weights = make([]float64, dims)
	n := float64(len(trainIdx))

	// Pre-standardize the training rows once.
	Z := make([][]float64, len(trainIdx))
	for k, i := range trainIdx {
		z := make([]float64, dims)
		for j, v := range X[i] {
			z[j] = standardize(v, means[j], stds[j])
		}
		Z[k] = z
	}

	gradW := make([]float64, dims)
	for iter := 0; iter < iterations; iter++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for k, i := range trainIdx {
			pred := intercept
			for j, z := range Z[k] {
				pred += weights[j] * z
			}
			residual := pred - y[i]
			for j, z := range Z[k] {
				gradW[j] += residual * z
			}
			gradB += residual
		}

		for j := range weights {
			weights[j] -= learningRate * gradW[j] / n
		}
		intercept -= learningRate * gradB / n
	}
	return weights, intercept
}

// evaluate computes MAE and R² over the holdout rows.
func evaluate(X [][]float64, y []float64, testIdx []int, weights []float64, intercept float64, means, stds []float64) (mae, r2 float64) {
	n := float64(len(testIdx))

	var meanY float64
	for _, i := range testIdx {
		meanY += y[i]
	}
	meanY /= n

	var absErr, ssRes, ssTot float64
	for _, i := range testIdx {
		pred := intercept
		for j, v := range X[i] {
			pred += weights[j] * standardize(v, means[j], stds[j])
		}
		absErr += math.Abs(pred - y[i])
		ssRes += (pred - y[i]) * (pred - y[i])
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}

	mae = absErr / n
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return mae, r2
}
