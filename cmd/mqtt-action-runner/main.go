package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-action-runner/config"
	"mqtt-action-runner/internal/broker"
	mqttbroker "mqtt-action-runner/internal/broker/mqtt"
	natsbroker "mqtt-action-runner/internal/broker/nats"
	"mqtt-action-runner/internal/dispatch"
	"mqtt-action-runner/internal/executor"
	"mqtt-action-runner/internal/logger"
	"mqtt-action-runner/internal/metrics"
	"mqtt-action-runner/internal/rule"
	"mqtt-action-runner/internal/stats"
)

func main() {
	// Command line flags for config and rules
	configPath := flag.String("config", "config/config.json", "path to config file")
	rulesPath := flag.String("rules", "", "path to rules directory (empty = use config)")

	// Optional override flags
	workersOverride := flag.Int("workers", 0, "override number of action workers (0 = use config)")
	queueSizeOverride := flag.Int("queue-size", 0, "override size of action queue (0 = use config)")
	timeoutOverride := flag.Duration("timeout", 0, "override per-action timeout (0 = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*workersOverride,
		*queueSizeOverride,
		*timeoutOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
	)
	if *rulesPath != "" {
		cfg.RulesPath = *rulesPath
	}

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	statsCollector := stats.NewCollector()

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsCollector *metrics.Collector
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector = metrics.NewCollector(metricsService, statsCollector, updateInterval)
		metricsCollector.Start()
		defer metricsCollector.Stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Load rules and build the topic index
	rulesLoader := rule.NewLoader(logger)
	rules, err := rulesLoader.LoadFromDirectory(cfg.RulesPath)
	if err != nil {
		logger.Fatal("failed to load rules", "error", err)
	}

	index, err := rule.NewIndex(rules)
	if err != nil {
		logger.Fatal("failed to build rule index", "error", err)
	}
	if metricsService != nil {
		metricsService.SetRulesActive(float64(index.Len()))
	}

	// Action executor and dispatcher
	runner := executor.New(logger, cfg.Execution.TimeoutDuration())

	dispatcher := dispatch.New(dispatch.Config{
		Workers:   cfg.Execution.Workers,
		QueueSize: cfg.Execution.QueueSize,
		Timeout:   cfg.Execution.TimeoutDuration(),
	}, index, runner, logger, metricsService, statsCollector)

	// Broker backend
	var messageBroker broker.Broker
	switch cfg.Broker.Type {
	case "nats":
		messageBroker, err = natsbroker.NewBroker(&cfg.Broker.NATS, logger, metricsService, dispatcher.HandleMessage)
	default:
		messageBroker, err = mqttbroker.NewBroker(&cfg.Broker.MQTT, logger, metricsService, dispatcher.HandleMessage)
	}
	if err != nil {
		logger.Fatal("failed to create broker", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := messageBroker.Start(ctx, index.Topics()); err != nil {
		logger.Fatal("failed to start broker", "error", err)
	}

	logger.Info("mqtt-action-runner started",
		"broker", cfg.Broker.Type,
		"workers", cfg.Execution.Workers,
		"queueSize", cfg.Execution.QueueSize,
		"timeout", cfg.Execution.Timeout,
		"rulesCount", index.Len(),
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, flushing logs")
			logger.Sync()
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			// Stop message delivery first so the dispatcher can drain
			// without new work arriving.
			messageBroker.Close()

			graceCtx, graceCancel := context.WithTimeout(context.Background(),
				cfg.Execution.GracePeriodDuration())
			if err := dispatcher.Close(graceCtx); err != nil {
				logger.Error("dispatcher did not drain within grace period", "error", err)
			}
			graceCancel()

			if cfg.Metrics.Enabled && metricsServer != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
				shutdownCancel()
			}

			cancel()
			return
		}
	}
}
