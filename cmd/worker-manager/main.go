// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bureaucracy-oracle/internal/common/camunda"
	"bureaucracy-oracle/internal/common/config"
	"bureaucracy-oracle/internal/common/logger"
	"bureaucracy-oracle/internal/common/observability"
	"bureaucracy-oracle/internal/pipeline"

	as "bureaucracy-oracle/internal/workers/oracle/answer-specialist"
	ar "bureaucracy-oracle/internal/workers/oracle/audit-response"
	fr "bureaucracy-oracle/internal/workers/oracle/format-response"
	pq "bureaucracy-oracle/internal/workers/oracle/process-question"
	rq "bureaucracy-oracle/internal/workers/oracle/route-question"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	if err := cfg.ValidateForWorkers(); err != nil {
		zapLog.Fatal("invalid worker configuration", zap.Error(err))
	}

	obs := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		TracingEnabled: cfg.Observability.TracingEnabled,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Init Zeebe Client with retry ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Build pipeline components ---
	components, err := pipeline.Build(cfg, log, pipeline.Options{
		Tracer:   obs.Tracer(cfg.Observability.ServiceName),
		Recorder: obs,
	})
	if err != nil {
		zapLog.Fatal("pipeline setup failed", zap.Error(err))
	}
	zapLog.Info("Pipeline components ready",
		zap.Strings("domains", components.Registry.Slugs()),
		zap.Strings("prompts", components.Prompts.Names()),
		zap.Bool("searchEnabled", cfg.Search.Enabled),
		zap.String("searchBackend", cfg.Search.Backend),
	)

	// --- Check the regulation index with retry ---
	if components.Elastic != nil {
		err = retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := components.Elastic.Ping(pingCtx); err != nil {
				return err
			}
			exists, err := components.Elastic.IndexExists(pingCtx)
			if err != nil {
				return err
			}
			if !exists {
				zapLog.Warn("regulation index does not exist yet", zap.String("index", components.Elastic.Index))
			}
			return nil
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Prompts.Watch {
		go func() {
			if err := components.Prompts.Watch(ctx); err != nil {
				zapLog.Error("prompt watcher stopped", zap.Error(err))
			}
		}()
	}

	// --- Register oracle workers ---
	client := zeebe.Zeebe()
	workers := []*camunda.Worker{
		camunda.StartWorker(client, rq.TaskType, config.GetWorkerConfig(cfg, rq.TaskType), components.Router.Handle, zapLog),
		camunda.StartWorker(client, as.TaskType, config.GetWorkerConfig(cfg, as.TaskType), components.Specialist.Handle, zapLog),
		camunda.StartWorker(client, ar.TaskType, config.GetWorkerConfig(cfg, ar.TaskType), components.Auditor.Handle, zapLog),
		camunda.StartWorker(client, fr.TaskType, config.GetWorkerConfig(cfg, fr.TaskType), components.Formatter.Handle, zapLog),
		camunda.StartWorker(client, pq.TaskType, config.GetWorkerConfig(cfg, pq.TaskType), components.Orchestrator.Handle, zapLog),
	}
	zapLog.Info("Oracle workers registered")

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "zeebe unavailable", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		if w != nil {
			w.Stop()
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
