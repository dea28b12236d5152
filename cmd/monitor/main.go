package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/speedwagon-io/coldwatch/internal/alert"
	"github.com/speedwagon-io/coldwatch/internal/buffer"
	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/health"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/metrics"
	"github.com/speedwagon-io/coldwatch/internal/monitor"
	"github.com/speedwagon-io/coldwatch/internal/sender"
	"github.com/speedwagon-io/coldwatch/internal/sensor"
	"github.com/speedwagon-io/coldwatch/internal/sensor/adapters"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	dryRun := pflag.Bool("dry-run", false, "log readings instead of sending them")
	pflag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting coldwatch",
		slog.String("env", cfg.Env),
		slog.String("device", cfg.Device.Name),
		slog.Bool("dry_run", *dryRun),
	)

	var source sensor.Source
	switch cfg.Sensor.Adapter {
	case "simulator":
		source = sensor.NewSimulator(cfg.Sensor.Simulator)
	case "http_gateway":
		source = adapters.NewHTTPGateway(log, cfg.Sensor.Gateway)
	default:
		log.Error("unknown sensor adapter", slog.String("adapter", cfg.Sensor.Adapter))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Use LogSender for dry-run mode, the configured sink otherwise
	var dataSender sender.Sender
	if *dryRun {
		dataSender = sender.NewLogSender(log)
		log.Info("dry-run mode: readings will be logged instead of sent")
	} else {
		var err error
		dataSender, err = newSender(ctx, log, cfg)
		if err != nil {
			log.Error("failed to create sender", slog.String("kind", cfg.Sender.Kind), sl.Err(err))
			os.Exit(1)
		}
	}

	buf, err := buffer.Open(log, cfg.Buffer.Backend, cfg.Buffer.Path)
	if err != nil {
		log.Error("failed to open buffer", sl.Err(err))
		os.Exit(1)
	}
	log.Info("buffer opened",
		slog.String("backend", cfg.Buffer.Backend),
		slog.String("path", cfg.Buffer.Path),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mon := monitor.New(log, cfg, source, dataSender, buf, alert.NewLogAction(log), m)

	healthServer := health.NewServer(log, cfg.Health.Address, reg)
	healthServer.AddChecker(health.NewSenderHealthChecker(dataSender.Health))
	healthServer.AddChecker(health.NewBufferHealthChecker(buf.Count, cfg.Buffer.DegradedThreshold))
	healthServer.AddChecker(health.NewSensorHealthChecker(mon.LastValidReading, 30*cfg.Monitor.Interval))
	healthServer.SetReadiness(func() bool { return !mon.LastValidReading().IsZero() })

	if err := healthServer.Start(); err != nil {
		log.Error("failed to start health server", sl.Err(err))
		os.Exit(1)
	}

	mon.Start(ctx)
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	mon.Stop()

	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop health server", sl.Err(err))
	}

	if err := dataSender.Close(); err != nil {
		log.Error("failed to close sender", sl.Err(err))
	}

	if err := buf.Close(); err != nil {
		log.Error("failed to close buffer", sl.Err(err))
	}

	log.Info("coldwatch stopped")
}

func newSender(ctx context.Context, log *slog.Logger, cfg *config.Config) (sender.Sender, error) {
	switch cfg.Sender.Kind {
	case "http":
		return sender.NewHTTPSender(log, &cfg.Sender), nil
	case "mqtt":
		return sender.NewMQTTSender(log, cfg.Sender.MQTT), nil
	case "kafka":
		return sender.NewKafkaSender(log, cfg.Sender.Kafka, cfg.Sender.Timeout), nil
	case "otlp":
		return sender.NewOTLPSender(ctx, log, cfg.Device.Name, cfg.Sender.OTLP)
	case "log":
		return sender.NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown sender kind %q", cfg.Sender.Kind)
	}
}
