package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/config"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/emit"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sim"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sink"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code so deferred cleanup, including the
// final span flush, runs before os.Exit.
func realMain() int {
	envLoaded := godotenv.Load() == nil

	log := logging.NewFromEnv()

	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, log = logging.WithRunLogger(ctx, log)
	if envLoaded {
		log.Debug(ctx, "loaded configuration from .env file")
	}

	tracing, err := observability.StartTracing(ctx, cfg.Tracing(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return 1
	}
	defer tracing.Shutdown(context.Background())

	err = run(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "generator failed", logging.Err(err))
	} else if err != nil {
		log.Info(ctx, "generator interrupted")
	}
	return exitCode(err)
}

// exitCode maps a run result to a process status. An interrupted run is a
// clean stop.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}

// run wires the sinks, the emission pipeline and the engine, and runs the
// simulation to completion or cancellation.
func run(ctx context.Context, cfg config.Config, log logging.Logger, reg *prometheus.Registry) error {
	emitMetrics, err := observability.NewEmitterCollector(reg)
	if err != nil {
		return fmt.Errorf("emitter metrics: %w", err)
	}
	loopMetrics, err := observability.NewLoopCollector(reg)
	if err != nil {
		return fmt.Errorf("loop metrics: %w", err)
	}

	metricsSrv := serveMetrics(cfg.MetricsAddr, emitMetrics, log)
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	out, err := openSink(cfg, log, emitMetrics)
	if err != nil {
		return err
	}

	entities, impacts := cfg.Datasets()
	pipeline, err := emit.New(
		emit.Destination{Dataset: entities, Sink: out},
		emit.Destination{Dataset: impacts, Sink: out},
		log,
		emitMetrics,
	)
	if err != nil {
		_ = out.Close()
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn(context.Background(), "closing sinks", logging.Err(err))
		}
	}()

	simCfg, err := cfg.Sim()
	if err != nil {
		return err
	}
	engine, err := sim.NewEngine(simCfg, pipeline,
		sim.WithLogger(log),
		sim.WithLoopMetrics(loopMetrics),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	stats, err := engine.Run(ctx)
	log.Info(ctx, "run summary",
		logging.String("sink", out.Name()),
		logging.Int("days", stats.Days),
		logging.Int("batches", stats.Batches),
		logging.Int("impacts", stats.Impacts),
		logging.Duration("elapsed", time.Since(start)),
	)
	return err
}

// openSink builds the configured destination, teeing into the SQLite archive
// when one is configured.
func openSink(cfg config.Config, log logging.Logger, metrics *observability.EmitterCollector) (sink.Sink, error) {
	var (
		primary sink.Sink
		err     error
	)
	switch cfg.Sink {
	case config.SinkUpload:
		primary, err = sink.NewUploader(cfg.Upload(), log, metrics)
	case config.SinkNATS:
		primary, err = sink.NewNATSSink(cfg.NATS(), log)
	case config.SinkKafka:
		primary, err = sink.NewKafkaSink(cfg.Kafka())
	default:
		var format sink.Format
		if format, err = sink.ParseFormat(cfg.Sink); err == nil {
			primary, err = sink.OpenFileSink(cfg.Output, format)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s sink: %w", cfg.Sink, err)
	}

	archiveCfg, ok := cfg.Archive()
	if !ok {
		return primary, nil
	}
	archive, err := sink.NewSQLiteSink(archiveCfg)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}
	log.Info(context.Background(), "archiving batches", logging.String("path", archiveCfg.Path))
	return sink.NewTee(primary, archive), nil
}

func serveMetrics(addr string, collector *observability.EmitterCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
