// Command backtest runs the quoting pipeline against the synthetic
// Brownian-motion driver instead of a live exchange feed, driving the same
// pipeline cmd/engine runs against a live connection.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"asmm-engine/internal/asmm"
	"asmm-engine/internal/backtest"
	"asmm-engine/internal/config"
	"asmm-engine/internal/instrument"
	"asmm-engine/internal/latency"
	"asmm-engine/internal/logging"
	"asmm-engine/internal/marketdata"
	"asmm-engine/internal/pipeline"
	"asmm-engine/internal/pnl"
	"asmm-engine/internal/risk"
	"asmm-engine/internal/telemetry"
	"asmm-engine/internal/volatility"
	"asmm-engine/metrics"
)

const defaultDurationSeconds = 120

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "path to YAML config; defaults built in if omitted")
	seed := flag.Int64("seed", 1, "backtest RNG seed")
	startPrice := flag.Float64("start-price", 45000, "synthetic starting price")
	sigmaAnnual := flag.Float64("sigma-annual", 0.5, "annualised volatility driving the synthetic walk")
	metricsAddr := flag.String("metrics-addr", ":9091", "address to serve /metrics on")
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

	driver := backtest.NewDriver(backtest.Config{
		Instrument:   instrument.FromString(cfg.Symbol),
		StartPrice:   *startPrice,
		SigmaAnnual:  *sigmaAnnual,
		TickInterval: time.Second,
		SpreadBps:    2,
		Seed:         *seed,
	})

	sink := connectSink(cfg, logger)

	fillModel := backtest.NewFillModel(cfg.FillModel.BaseFillProbability, cfg.FillModel.AggressiveFillBonus, *seed)

	pl := pipeline.New(pipeline.Config{
		Symbol:               cfg.Symbol,
		QuoteEveryK:          cfg.Pipeline.QuoteEveryK,
		TelemetryEveryK:      cfg.Pipeline.TelemetryEveryK,
		StatusEveryK:         cfg.Pipeline.StatusEveryK,
		CompetitiveTolerance: cfg.FillModel.CompetitiveTolerance,
		BaseFillProbability:  cfg.FillModel.BaseFillProbability,
		MakerFeeBps:          cfg.FillModel.MakerFeeBps,
		HistoryWindow:        cfg.Pipeline.HistoryWindow,
		Seed:                 *seed,
	}, pipeline.Deps{
		Source:  driver,
		Quoter:  quoter,
		Vol:     vol,
		Risk:    riskSup,
		Tracker: pnl.New(),
		Latency: latency.NewRegistry(metrics.OperationLatency),
		History: marketdata.NewStore(),
		Matcher: fillModel,
		Sink:    sink,
		Log:     logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(duration)*time.Second)
	defer cancel()

	if err := pl.Run(ctx); err != nil {
		logger.LogError("pipeline run", err)
		return 1
	}

	log.Printf("backtest complete: simulation_id=%s state=%s", pl.SimulationID(), pl.State())
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
