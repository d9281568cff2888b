package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campuseats/preptime/internal/monitoring"
	"github.com/campuseats/preptime/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := monitoring.New(reg)

		srv := server.New(
			env.predictor,
			env.trainer,
			env.regressor.Available,
			cfg.Server,
			cfg.Training,
			metrics,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		api := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		promMux := http.NewServeMux()
		promMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		prom := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler: promMux,
		}

		go func() {
			zap.L().Info("starting metrics server", zap.Int("port", cfg.Server.MetricsPort))
			if err := prom.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Error("metrics server", zap.Error(err))
			}
		}()

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			api.Shutdown(ctx)
			prom.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Bool("model_loaded", env.regressor.Available()),
			zap.String("store", cfg.Store.Driver),
		)
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
