package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

// healthHandler answers liveness probes.
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// handler serves /health and the app's own prometheus registry on /metrics.
func (app *App) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", app.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(app.promRegistry, promhttp.HandlerOpts{}))
	return mux
}

// startMetricsServer runs the health and metrics HTTP server in the background.
func (app *App) startMetricsServer() {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Configuring metrics server.")
	if app.config.MetricsPort <= 0 {
		logger.Debug("Metrics server not started: disabled")
		return
	}

	addr := fmt.Sprintf(":%d", app.config.MetricsPort)
	app.httpServer = &http.Server{
		Addr:              addr,
		Handler:           app.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Metrics server starting", "address", fmt.Sprintf("http://localhost%s/metrics", addr))
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed unexpectedly", "error", err)
		}
	}()
}

func (app *App) closeMetricsServer() error {
	logger := ctxlog.FromContext(app.ctx)
	if app.httpServer == nil {
		logger.Debug("Metrics server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(app.ctx, 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down metrics server...")
	if err := app.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", "error", err)
		return err
	}
	app.httpServer = nil
	logger.Debug("Metrics server shut down gracefully.")
	return nil
}
