package main

import (
	"context"
	"fmt"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/analyze"
	"fuzzrunner/internal/crash"
	"fuzzrunner/internal/dict"
	"fuzzrunner/internal/fuzz"
	"fuzzrunner/internal/publish"
	"fuzzrunner/internal/report"
	"fuzzrunner/internal/scheduler"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/database"
	"fuzzrunner/pkg/logger"
	"fuzzrunner/pkg/mq"
	"fuzzrunner/pkg/telemetry"
	"fuzzrunner/pkg/watchdog"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	startTimeout   = 30 * time.Second
	stopTimeout    = 2 * time.Minute
	publishTimeout = 30 * time.Second
)

// newApp wires the application and fills the populate targets.
func newApp(populate ...any) *fx.App {
	return fx.New(
		fx.Provide(
			config.LoadConfig,           // inject config
			database.NewDBConnection,    // inject db connection
			database.NewRedisClient,     // inject redis client
			logger.NewLogger,            // inject logger
			mq.NewRabbitMQ,              // inject rabbitmq service
			telemetry.NewTelemetry,      // inject telemetry
			telemetry.NewTracerFactory,  // inject telemetry tracer factory
			watchdog.NewWatchDogFactory, // inject watchdog factory
			types.DefaultRegistry,       // inject target and signature registry
			analyze.NewAnalyzer,         // inject output analyzer
			dict.NewDictLocator,         // inject dictionary locator
			crash.NewCrashManager,       // inject crash manager
			fuzz.NewFuzzRunner,          // inject fuzz runner
			scheduler.NewScheduler,      // inject scheduler
			report.NewReporter,          // inject reporter
			publish.NewPublisher,        // inject result publisher
		),
		fx.Provide(
			fx.Annotate(fuzz.NewSupervisor, fx.As(new(fuzz.Fuzzer))),
		),
		fx.Populate(populate...),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
}

// runCampaign runs one campaign and returns the exit status of the verdict.
// An error means the campaign could not be set up at all.
func runCampaign(ctx context.Context, opts *runOptions) (int, error) {
	var (
		log       *zap.Logger
		locator   *dict.DictLocator
		sched     *scheduler.Scheduler
		reporter  *report.Reporter
		publisher *publish.Publisher
	)
	app := newApp(&log, &locator, &sched, &reporter, &publisher)
	if err := app.Err(); err != nil {
		return 1, fmt.Errorf("failed to initialize: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return 1, fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			log.Error("failed to stop cleanly", zap.Error(err))
		}
	}()

	dictPath, err := locator.Locate()
	if err != nil {
		log.Warn("dictionary unavailable, fuzzing without one", zap.Error(err))
		dictPath = ""
	}

	campaignID := uuid.NewString()
	targets, err := sched.Targets(&opts.RunConfig, dictPath, campaignID)
	if err != nil {
		return 1, err
	}

	reporter.PrintConfig(opts.out, &opts.RunConfig, dictPath, targets)
	results := sched.RunAll(ctx, targets)
	code := reporter.Render(opts.out, results)

	// results are published even when the campaign was interrupted
	publishCtx, cancelPublish := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancelPublish()
	if failed := publisher.Publish(publishCtx, report.Summarize(campaignID, results)); failed > 0 {
		log.Warn("some result sinks failed", zap.Int("failed", failed))
	}

	return code, nil
}
