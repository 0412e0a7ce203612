package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/fuzz"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler fans a campaign out into one fuzz pipeline per target and
// collects every result.
type Scheduler struct {
	registry      types.Registry
	logger        *zap.Logger
	fuzzRunner    *fuzz.FuzzRunner
	tracerFactory *telemetry.TracerFactory
	artifactDir   string
}

type SchedulerParams struct {
	fx.In

	Registry      types.Registry
	Logger        *zap.Logger
	FuzzRunner    *fuzz.FuzzRunner
	TracerFactory *telemetry.TracerFactory `optional:"true"`
	AppConfig     *config.AppConfig
}

func NewScheduler(params SchedulerParams) *Scheduler {
	return &Scheduler{
		params.Registry,
		params.Logger,
		params.FuzzRunner,
		params.TracerFactory,
		params.AppConfig.ArtifactDir,
	}
}

// Targets resolves the --fuzzer selector against the registry. "*" selects
// every known target in registry order.
func (s *Scheduler) Targets(runCfg *config.RunConfig, dictPath, campaignID string) ([]types.FuzzTargetSpec, error) {
	var names []string
	switch {
	case runCfg.Fuzzer == config.AllFuzzers:
		names = s.registry.Targets
	case s.registry.Known(runCfg.Fuzzer):
		names = []string{runCfg.Fuzzer}
	default:
		return nil, fmt.Errorf("unknown fuzzer %q, expected one of %v or %q", runCfg.Fuzzer, s.registry.Targets, config.AllFuzzers)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no fuzz targets registered")
	}

	fuzzerDir, err := filepath.Abs(runCfg.FuzzerDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fuzzer directory %s: %w", runCfg.FuzzerDir, err)
	}

	opts := types.FuzzOptions{
		RSSLimitMB:  runCfg.RSSLimitMB,
		Verbosity:   runCfg.Verbosity,
		DetectLeaks: runCfg.DetectLeaks,
		DictPath:    dictPath,
	}
	if runCfg.ByDuration {
		opts.Mode = types.DurationMode
		opts.Duration = time.Duration(runCfg.Duration) * time.Second
	} else {
		opts.Mode = types.RunsMode
		opts.Runs = runCfg.Runs
	}

	targets := make([]types.FuzzTargetSpec, 0, len(names))
	for _, name := range names {
		targets = append(targets, types.FuzzTargetSpec{
			Name:       name,
			Path:       filepath.Join(fuzzerDir, name),
			WorkDir:    filepath.Join(s.artifactDir, campaignID, name),
			CampaignID: campaignID,
			Options:    opts,
		})
	}
	return targets, nil
}

// RunAll runs every target concurrently and blocks until all of them are done.
// The result at index i belongs to targets[i]. A failing target never stops
// its siblings.
func (s *Scheduler) RunAll(ctx context.Context, targets []types.FuzzTargetSpec) []types.FuzzResult {
	var campaignID string
	if len(targets) > 0 {
		campaignID = targets[0].CampaignID
	}
	tracer := s.tracerFactory.NewTracer(ctx, fmt.Sprintf("fuzz campaign %s", campaignID)).
		WithAttributes(
			telemetry.NewSpanAttributes(telemetry.Fuzzing).
				WithCampaignID(campaignID).
				WithExtraAttribute("fuzz.targets", len(targets)),
		)
	tracer.Start()
	defer tracer.End()
	ctx = context.WithValue(ctx, telemetry.TracerKey{}, tracer)

	s.logger.Info("starting fuzz campaign",
		zap.String("campaign_id", campaignID),
		zap.Int("targets", len(targets)))

	results := make([]types.FuzzResult, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			results[i] = s.fuzzRunner.RunTarget(ctx, target)
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	failed := 0
	for _, result := range results {
		if result.Failed() {
			failed++
		}
	}
	if failed > 0 {
		tracer.SetStatus(codes.Error, fmt.Sprintf("%d of %d targets failed", failed, len(results)))
	} else {
		tracer.SetStatus(codes.Ok, "")
	}

	s.logger.Info("fuzz campaign finished",
		zap.String("campaign_id", campaignID),
		zap.Int("failed", failed))
	return results
}
