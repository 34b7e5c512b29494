package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/perfmond/internal/alert"
	"codeberg.org/mutker/perfmond/internal/config"
	"codeberg.org/mutker/perfmond/internal/gpu"
	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/monitor"
	"codeberg.org/mutker/perfmond/internal/pid"
	"codeberg.org/mutker/perfmond/internal/threshold"
)

const defaultSessionID = "default"

var (
	cfg       *config.Config
	gpuSource *gpu.Source
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer pid.Remove()

	source := selectSource()

	thresholds, err := threshold.NewManager(threshold.DefaultSet())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build threshold manager")
	}

	mon, err := monitor.New(cfg, source, thresholds)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize monitor")
	}
	defer mon.Close()

	mon.RegisterAlertCallback(logAlert)

	if result := mon.StartMonitoring(defaultSessionID); !result.IsSuccessful {
		logger.Fatal().Str("message", result.Message).Msg("failed to start session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := mon.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in scheduler")
	}

	cleanup(mon)
}

// selectSource prefers the NVML-backed GPU source and falls back to runtime
// metrics when no GPU is available.
func selectSource() metric.Source {
	src, err := gpu.NewSource()
	if err != nil {
		logger.Warn().Err(err).Msg("GPU source unavailable, using runtime metrics")
		return metric.NewRuntimeSource()
	}
	gpuSource = src

	return src
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func logAlert(event alert.Event) {
	for _, v := range event.Violations {
		logger.Warn().
			Str("session", event.SessionID).
			Str("metric", v.Kind.String()).
			Str("severity", v.Severity.String()).
			Float64("observed", v.Observed).
			Float64("limit", v.Limit).
			Float64("magnitude", v.Magnitude).
			Msg("threshold violation")
	}
}

func cleanup(mon *monitor.Monitor) {
	fmt.Println(mon.GenerateMonitoringReport(defaultSessionID))

	envelope, err := mon.ExportPerformanceData(defaultSessionID, "json", 24*time.Hour)
	if err != nil {
		logger.Error().Err(err).Msg("failed to export session data")
	} else {
		logger.Info().
			Int("data_points", envelope.DataPointsExported).
			Int("bytes", envelope.FileSizeBytes).
			Msg("session data exported")
	}

	if gpuSource != nil {
		if err := gpuSource.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("failed to shut down GPU source")
		}
	}

	logger.Info().Msg("Exiting...")
}
