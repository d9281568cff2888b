package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/config"
	"github.com/campuseats/preptime/internal/pipeline"
	"github.com/campuseats/preptime/internal/predictor"
	"github.com/campuseats/preptime/internal/store"
)

// env holds the composed service dependencies for a command invocation.
type env struct {
	store     store.Store // nil in degraded mode
	regressor predictor.Regressor
	predictor *pipeline.Predictor
	trainer   *pipeline.Trainer
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv constructs the store, regressor, and pipelines from configuration.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var reg predictor.Regressor
	if cfg.Model.Lite {
		zap.L().Warn("model: lite mode, rule-based estimation only")
		reg = predictor.Disabled{}
	} else {
		lm := predictor.NewLinearModel(cfg.Model.Path)
		if !lm.Load() {
			zap.L().Warn("model: no persisted model found, predictions fall back to rules until trained",
				zap.String("path", cfg.Model.Path),
			)
		}
		reg = lm
	}

	cp := pipeline.NewContextProvider(st, cfg.Context)

	return &env{
		store:     st,
		regressor: reg,
		predictor: pipeline.NewPredictor(cp, reg, st),
		trainer:   pipeline.NewTrainer(st, reg, cfg.Training),
	}, nil
}

// openStore opens the configured store backend. Driver "none" returns a nil
// store: the service runs with fixed context defaults and no logging side
// effects.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, sc.DatabaseURL, sc.MaxConns, sc.MinConns)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return store.WithBreaker(st), nil
	case "sqlite":
		st, err := store.NewSQLite(sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return store.WithBreaker(st), nil
	case "none", "":
		zap.L().Warn("store: no backend configured, running degraded")
		return nil, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}
