// Package server exposes the prediction service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/campuseats/preptime/internal/config"
	"github.com/campuseats/preptime/internal/model"
	"github.com/campuseats/preptime/internal/monitoring"
)

// Version is reported by GET /health.
const Version = "1.0.0"

// Predictor produces ready-time estimates.
type Predictor interface {
	Predict(ctx context.Context, req model.PredictionRequest) (*model.PredictionResult, error)
}

// Trainer runs the retraining pipeline and retains its last report.
type Trainer interface {
	Run(ctx context.Context) model.TrainingReport
	LatestReport() *model.TrainingReport
}

// Server wires the HTTP API to the prediction and training pipelines.
type Server struct {
	predictor   Predictor
	trainer     Trainer
	modelLoaded func() bool

	trainLimiter *rate.Limiter
	metrics      *monitoring.Metrics
	origins      []string

	now func() time.Time
}

// New creates a Server. metrics may be nil.
func New(p Predictor, t Trainer, modelLoaded func() bool, cfg config.ServerConfig, trainCfg config.TrainingConfig, m *monitoring.Metrics) *Server {
	cooldown := time.Duration(trainCfg.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Server{
		predictor:    p,
		trainer:      t,
		modelLoaded:  modelLoaded,
		trainLimiter: rate.NewLimiter(rate.Every(cooldown), 1),
		metrics:      m,
		origins:      cfg.AllowedOrigins,
		now:          time.Now,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Post("/predict", s.handlePredict)
	r.Post("/train", s.handleTrain)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/health", s.handleHealth)

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
