package fuzz

import (
	"context"
	"fmt"
	"strings"

	"fuzzrunner/internal/analyze"
	"fuzzrunner/internal/crash"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FuzzRunner turns one target into a FuzzResult: it supervises the process,
// analyzes the captured output and hands crash artifacts to the crash manager.
type FuzzRunner struct {
	logger       *zap.Logger
	fuzzer       Fuzzer
	analyzer     *analyze.Analyzer
	crashManager *crash.CrashManager
}

type FuzzRunnerParams struct {
	fx.In

	Logger       *zap.Logger
	Fuzzer       Fuzzer
	Analyzer     *analyze.Analyzer
	CrashManager *crash.CrashManager `optional:"true"`
}

func NewFuzzRunner(params FuzzRunnerParams) *FuzzRunner {
	return &FuzzRunner{
		params.Logger,
		params.Fuzzer,
		params.Analyzer,
		params.CrashManager,
	}
}

// RunTarget never fails; every problem ends up in the returned result.
func (f *FuzzRunner) RunTarget(ctx context.Context, spec types.FuzzTargetSpec) types.FuzzResult {
	logger := f.logger.With(zap.String("fuzzer", spec.Name))
	logger.Info(fmt.Sprintf("[%s] Starting: %s", spec.Name, strings.Join(BuildCommand(spec), " ")))

	tracer := telemetry.FromContext(ctx).
		Spawn(fmt.Sprintf("fuzzing %s", spec.Name)).
		WithAttributes(
			telemetry.NewSpanAttributes(telemetry.Fuzzing).
				WithTarget(spec.Name).
				WithCampaignID(spec.CampaignID).
				WithRunMode(spec.Options.Mode.String()),
		)
	tracer.Start()
	defer tracer.End()
	ctx = context.WithValue(ctx, telemetry.TracerKey{}, tracer)

	capture := f.fuzzer.Run(ctx, spec)
	result := f.analyze(spec, capture)

	tracer.WithAttributes(telemetry.EmptySpanAttributes().WithExtraAttributes(map[string]any{
		"fuzz.exit_code":      result.ExitCode,
		"fuzz.runs_completed": result.RunsCompleted,
		"fuzz.findings":       len(result.Findings),
		"fuzz.timed_out":      result.TimedOut,
	}))
	if result.Failed() {
		tracer.SetStatus(codes.Error, fmt.Sprintf("%s failed with exit code %d", spec.Name, result.ExitCode))
	} else {
		tracer.SetStatus(codes.Ok, "")
	}

	if f.crashManager != nil {
		for _, artifact := range result.Artifacts {
			f.crashManager.Submit(types.CrashMessage{CrashFile: artifact, Target: &spec})
		}
	}

	logger.Info("fuzz target completed",
		zap.Bool("passed", !result.Failed()),
		zap.Int("runs", result.RunsCompleted),
		zap.Int("findings", len(result.Findings)))

	return result
}

// analyze scans the combined output for signatures and the run count. The run
// count only comes from the process output, never from supervisor messages.
func (f *FuzzRunner) analyze(spec types.FuzzTargetSpec, capture types.RawCapture) types.FuzzResult {
	text := capture.Output
	if capture.ErrorText != "" {
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += capture.ErrorText
	}

	return types.FuzzResult{
		Name:          spec.Name,
		ExitCode:      capture.ExitCode,
		Output:        capture.Output,
		ErrorText:     capture.ErrorText,
		Duration:      capture.Elapsed,
		RunsCompleted: f.analyzer.ExtractRunCount(capture.Output),
		Findings:      f.analyzer.FindErrors(text),
		TimedOut:      capture.TimedOut,
		Artifacts:     capture.Artifacts,
	}
}
