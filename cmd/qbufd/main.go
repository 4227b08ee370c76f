package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/INLOpen/nexusqbuf/config"
	"github.com/INLOpen/nexusqbuf/manager"
	"github.com/INLOpen/nexusqbuf/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// initTracerProvider creates and configures an OpenTelemetry TracerProvider.
func initTracerProvider(cfg config.TracingConfig, logger *slog.Logger) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Enabled {
		logger.Info("distributed tracing is disabled")
		return sdktrace.NewTracerProvider(), func() {}, nil
	}

	logger.Info("initializing distributed tracing", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error

	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("nexusqbuf")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		logger.Info("shutting down tracer provider")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down tracer provider", "error", err)
		}
	}

	return tp, cleanup, nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	if cfg.Manager.RootPath == "" {
		logger.Error("manager.root_path must be specified in the configuration file")
		os.Exit(1)
	}
	logger.Info("using qbuf root path", "path", cfg.Manager.RootPath)

	_, tracerCleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to initialize tracer provider", "error", err)
		os.Exit(1)
	}

	var metricsMgr *metrics.Manager
	if cfg.SelfMonitoring.Enabled {
		metricsMgr, err = metrics.NewManager(cfg.SelfMonitoring.MetricPrefix)
		if err != nil {
			logger.Error("failed to create metrics manager", "error", err)
			os.Exit(1)
		}
	}

	var debugSrv *metrics.DebugServer
	if cfg.Debug.Enabled {
		debugSrv = metrics.NewDebugServer(metrics.DebugServerOptions{
			ListenAddress:  cfg.Debug.ListenAddress,
			EnablePprof:    cfg.Debug.PProfEnabled,
			EnableExpvar:   cfg.Debug.ExpvarEnabled,
			EnableStatsviz: cfg.Debug.StatsvizEnabled,
		}, logger)
		go func() {
			if err := debugSrv.Start(); err != nil {
				logger.Error("debug server exited with an error", "error", err)
			}
		}()
	}

	tickInterval := config.ParseDuration(cfg.Manager.TickInterval, time.Second, logger)
	defaultExpire := config.ParseDuration(cfg.Manager.DefaultExpire, 30*time.Second, logger)
	incompleteRelease := config.ParseDuration(cfg.Manager.IncompleteRelease, 60*time.Second, logger)

	mgr := manager.New(manager.Options{
		RootPath:            cfg.Manager.RootPath,
		MaxQueryDataSize:    cfg.Manager.MaxQueryDataSizeBytes,
		SoftWatermark:       cfg.Manager.SoftWatermarkBytes,
		HardWatermark:       cfg.Manager.HardWatermarkBytes,
		InmemMax:            cfg.Manager.InmemMaxBytes,
		DefaultExpireMs:     defaultExpire.Milliseconds(),
		IncompleteReleaseMs: incompleteRelease.Milliseconds(),
		TickInterval:        tickInterval,
		Logger:              logger,
		Metrics:             metricsMgr,
	})

	logger.Info("qbuf manager running. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, stopping manager")
	if err := mgr.Close(); err != nil {
		logger.Error("error closing manager", "error", err)
	}
	if debugSrv != nil {
		debugSrv.Stop()
	}
	tracerCleanup()

	logger.Info("qbufd exited gracefully")
}
