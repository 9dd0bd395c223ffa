// Command engine runs the online Avellaneda-Stoikov market maker against a
// live exchange feed: flag-driven config path, explicit component wiring,
// no DI framework.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"asmm-engine/internal/asmm"
	"asmm-engine/internal/config"
	"asmm-engine/internal/latency"
	"asmm-engine/internal/logging"
	"asmm-engine/internal/marketdata"
	"asmm-engine/internal/pipeline"
	"asmm-engine/internal/pnl"
	"asmm-engine/internal/risk"
	"asmm-engine/internal/telemetry"
	"asmm-engine/internal/transport"
	"asmm-engine/internal/volatility"
	"asmm-engine/metrics"
)

const defaultDurationSeconds = 120

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "path to YAML config; defaults built in if omitted")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	duration := parseDurationArg(flag.Arg(0))

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Printf("warning: failed to load config %s, using defaults: %v", *cfgPath, err)
		} else {
			cfg = loaded
		}
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Printf("failed to construct logger: %v", err)
		return 1
	}
	defer logger.Close()

	metrics.StartServer(*metricsAddr)

	quoter, err := asmm.New(asmm.Params{
		Gamma: cfg.Strategy.Gamma, Sigma: cfg.Strategy.Sigma, T: cfg.Strategy.T, Kappa: cfg.Strategy.Kappa,
	})
	if err != nil {
		logger.LogError("construct quoter", err)
		return 1
	}

	riskSup, err := risk.New(risk.Config{
		MaxInventory:        cfg.Risk.MaxInventory,
		MaxSpreadMultiplier: cfg.Risk.MaxSpreadMultiplier,
		KillFloor:           cfg.Risk.KillFloor,
	})
	if err != nil {
		logger.LogError("construct risk supervisor", err)
		return 1
	}

	vol := volatility.New(volatility.Config{
		Alpha:             cfg.Volatility.Alpha,
		AnnualisationFreq: volatility.SecondsPerYear,
		Floor:             cfg.Volatility.Floor,
		InitialSigma:      cfg.Strategy.Sigma,
	})

	latReg := latency.NewRegistry(metrics.OperationLatency)

	sink := connectSink(cfg, logger)

	source := transport.NewLiveSource(transport.SubscribeURL(cfg.Transport.WSURL, cfg.Symbol))
	dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDial()
	if err := source.Dial(dialCtx); err != nil {
		logger.LogError("dial live transport", err)
		return 1
	}
	defer source.Close()

	pl := pipeline.New(pipeline.Config{
		Symbol:               cfg.Symbol,
		QuoteEveryK:          cfg.Pipeline.QuoteEveryK,
		TelemetryEveryK:      cfg.Pipeline.TelemetryEveryK,
		StatusEveryK:         cfg.Pipeline.StatusEveryK,
		CompetitiveTolerance: cfg.FillModel.CompetitiveTolerance,
		BaseFillProbability:  cfg.FillModel.BaseFillProbability,
		MakerFeeBps:          cfg.FillModel.MakerFeeBps,
		HistoryWindow:        cfg.Pipeline.HistoryWindow,
		Seed:                 time.Now().UnixNano(),
	}, pipeline.Deps{
		Source:  source,
		Quoter:  quoter,
		Vol:     vol,
		Risk:    riskSup,
		Tracker: pnl.New(),
		Latency: latReg,
		History: marketdata.NewStore(),
		Sink:    sink,
		Log:     logger,
	})

	if *cfgPath != "" {
		go watchConfig(*cfgPath, pl, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(duration)*time.Second)
	defer cancel()

	if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); ok {
		logger.Info("notified systemd readiness")
	}
	stopWatchdog := startWatchdog(ctx)
	defer stopWatchdog()

	if err := pl.Run(ctx); err != nil {
		logger.LogError("pipeline run", err)
		return 1
	}

	logger.Info("engine terminated",
		zap.String("state", pl.State().String()),
		zap.String("simulation_id", pl.SimulationID()),
	)
	return 0
}

func parseDurationArg(arg string) int {
	if arg == "" {
		return defaultDurationSeconds
	}
	v, err := strconv.Atoi(arg)
	if err != nil || v <= 0 {
		log.Printf("warning: invalid duration %q, falling back to %ds", arg, defaultDurationSeconds)
		return defaultDurationSeconds
	}
	return v
}

func connectSink(cfg config.Config, logger *logging.Logger) telemetry.Sink {
	sink, err := telemetry.NewClickHouseSink(cfg.ClickHouse, cfg.Pipeline.BatchSize, logger)
	if err != nil {
		logger.LogError("connect clickhouse sink, falling back to no-op", err)
		return telemetry.NoopSink{}
	}
	return sink
}

func watchConfig(path string, pl *pipeline.Pipeline, logger *logging.Logger) {
	w := config.Watcher{
		Path: path,
		OnReload: func(cfg config.Config) {
			pl.QueueParamUpdate(asmm.Params{
				Gamma: cfg.Strategy.Gamma, Sigma: cfg.Strategy.Sigma, T: cfg.Strategy.T, Kappa: cfg.Strategy.Kappa,
			})
			pl.QueueRiskUpdate(risk.Config{
				MaxInventory:        cfg.Risk.MaxInventory,
				MaxSpreadMultiplier: cfg.Risk.MaxSpreadMultiplier,
				KillFloor:           cfg.Risk.KillFloor,
			})
			logger.Info("applied reloaded config")
		},
		OnError: func(err error) { logger.LogError("config watcher", err) },
	}
	if err := w.Run(context.Background()); err != nil {
		logger.LogError("config watcher exited", err)
	}
}

// startWatchdog notifies systemd's watchdog at half the requested interval
// when running under a unit with WatchdogSec set; it is a no-op otherwise.
func startWatchdog(ctx context.Context) func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval / 2)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			case <-ctx.Done():
				close(done)
				return
			}
		}
	}()
	return func() { <-done }
}
