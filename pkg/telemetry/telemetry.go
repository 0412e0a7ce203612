package telemetry

import (
	"context"
	"fmt"
	"os"

	"fuzzrunner/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// instrumentation scope of the campaign and per-target spans
const scopeName = "fuzzrunner/campaign"

type Telemetry interface {
	GetTracer() trace.Tracer
	GetLogger() log.Logger
}

type TelemetryImpl struct {
	tracer trace.Tracer
	logger log.Logger
}

type TelemetryParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.AppConfig
}

// NewTelemetry exports campaign spans, and log records when the log exporter
// is available, over OTLP/gRPC. Endpoints come from the standard
// OTEL_EXPORTER_OTLP_* variables. It returns nil when OTEL_ENABLED is off.
func NewTelemetry(p TelemetryParams) (Telemetry, error) {
	if !p.Config.OtelEnabled {
		return nil, nil
	}

	telemetryCtx, cancel := context.WithCancel(context.Background())
	res := campaignResource(p.Config)

	tracerExp, err := otlptracegrpc.New(telemetryCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tracerExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)

	// the log bridge is best effort, campaigns are traced without it
	var logProvider *sdklog.LoggerProvider
	var logger log.Logger
	if logExp, err := otlploggrpc.New(telemetryCtx); err == nil {
		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
			sdklog.WithResource(res),
		)
		logger = logProvider.Logger(scopeName)
	} else {
		zap.L().Warn("OTLP log exporter unavailable", zap.Error(err))
	}

	// flush spans and logs once the campaign is over
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			defer cancel()
			if err := traceProvider.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to flush spans: %w", err)
			}
			if logProvider != nil {
				return logProvider.Shutdown(ctx)
			}
			return nil
		},
	})

	return &TelemetryImpl{traceProvider.Tracer(scopeName), logger}, nil
}

// campaignResource describes this harness instance: who runs it and with
// which campaign-wide settings.
func campaignResource(cfg *config.AppConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ProcessPIDKey.Int(os.Getpid()),
		attribute.String("fuzz.artifact_dir", cfg.ArtifactDir),
		attribute.String("fuzz.crash_dir", cfg.CrashDir),
		attribute.Float64("fuzz.grace_period_sec", cfg.GracePeriod.Seconds()),
		attribute.StringSlice("fuzz.dict_candidates", cfg.DictPaths),
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostNameKey.String(host))
	}
	if cfg.RabbitMQURL != "" {
		attrs = append(attrs, attribute.String("fuzz.results_queue", cfg.ResultsQueue))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func (t *TelemetryImpl) GetTracer() trace.Tracer {
	return t.tracer
}

func (t *TelemetryImpl) GetLogger() log.Logger {
	return t.logger
}
