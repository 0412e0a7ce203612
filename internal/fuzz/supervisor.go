package fuzz

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/telemetry"
	"fuzzrunner/pkg/watchdog"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// drainTimeout bounds how long output is read once the target has exited.
const drainTimeout = 5 * time.Second

// Supervisor runs fuzz target processes. It drains their merged output while
// they run and kills them once the time budget plus a grace period is spent.
type Supervisor struct {
	logger      *zap.Logger
	gracePeriod time.Duration
	watchDogFac *watchdog.WatchDogFactory
}

type SupervisorParams struct {
	fx.In

	Logger      *zap.Logger
	AppConfig   *config.AppConfig
	WatchDogFac *watchdog.WatchDogFactory
}

func NewSupervisor(params SupervisorParams) *Supervisor {
	return &Supervisor{
		params.Logger,
		params.AppConfig.GracePeriod,
		params.WatchDogFac,
	}
}

// Run launches the target described by spec and blocks until it exits. The
// outcome is always a RawCapture:
//
//  1. If the process cannot be started, ExitCode is types.SpawnFailureExitCode
//     and ErrorText carries the reason.
//  2. In duration mode the process gets Duration + grace period of wall clock.
//     When that elapses before the process exits it is killed, the output
//     written so far is drained and the exit code is normalized to 0 with
//     TimedOut set. A process that exits on its own keeps its exit code even
//     if children it spawned still hold the output pipe.
//  3. If ctx is cancelled the process is killed as well; its exit status is
//     reported as observed.
//
// The process is never left running once Run returns.
func (s *Supervisor) Run(ctx context.Context, spec types.FuzzTargetSpec) types.RawCapture {
	logger := s.logger.With(zap.String("fuzzer", spec.Name))
	tracer := telemetry.FromContext(ctx)
	argv := BuildCommand(spec)
	start := time.Now()

	if spec.WorkDir != "" {
		if err := os.MkdirAll(spec.WorkDir, 0o755); err != nil {
			logger.Error("failed to create working directory", zap.String("dir", spec.WorkDir), zap.Error(err))
			return spawnFailure(err, start)
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.WorkDir
	setProcessGroup(cmd)

	// stderr shares the stdout pipe so the output keeps its interleaving. The
	// pipe is ours rather than cmd's so that Wait reports the target's exit
	// without waiting for children that inherited the write end.
	outR, outW, err := os.Pipe()
	if err != nil {
		logger.Error("failed to create output pipe", zap.Error(err))
		return spawnFailure(err, start)
	}
	defer outR.Close()
	cmd.Stdout = outW
	cmd.Stderr = outW

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := s.watchArtifacts(watchCtx, spec, logger, tracer)
	defer func() {
		stopWatch()
		<-watchDone
	}()

	logger.Info("running fuzzer", zap.String("command", strings.Join(argv, " ")))
	if err := cmd.Start(); err != nil {
		outW.Close()
		logger.Error("failed to start fuzzer", zap.Error(err))
		return spawnFailure(err, start)
	}
	outW.Close()

	var output strings.Builder
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drain(outR, &output, logger)
	}()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if spec.Options.Mode == types.DurationMode {
		timer := time.NewTimer(spec.Options.Duration + s.gracePeriod)
		defer timer.Stop()
		timeout = timer.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-exited:
	case <-timeout:
		timedOut = true
		logger.Warn("fuzzer exceeded its time budget, killing it",
			zap.Duration("budget", spec.Options.Duration),
			zap.Duration("grace", s.gracePeriod))
		tracer.AddEvent("fuzzer.killed", telemetry.NewEventAttributes(map[string]string{"reason": "timeout"}))
		killProcess(cmd)
		waitErr = <-exited
	case <-ctx.Done():
		logger.Warn("campaign cancelled, killing fuzzer")
		killProcess(cmd)
		waitErr = <-exited
	}

	// the target is gone; anything it left behind in its group goes too
	killProcess(cmd)
	finishDrain(outR, drained, logger)

	capture := types.RawCapture{
		Output:   output.String(),
		Elapsed:  elapsedSince(start),
		TimedOut: timedOut,
	}

	switch {
	case timedOut:
		// running past the budget is expected for time-bounded fuzzing
		capture.ExitCode = 0
	case waitErr == nil:
		capture.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			capture.ExitCode = exitCode(exitErr)
		} else {
			capture.ExitCode = types.SpawnFailureExitCode
			capture.ErrorText = fmt.Sprintf("Failed to run fuzzer: %v", waitErr)
		}
	}

	capture.Artifacts = collectArtifacts(spec.WorkDir, logger)

	logger.Info("fuzzer finished",
		zap.Int("exit_code", capture.ExitCode),
		zap.Bool("timed_out", capture.TimedOut),
		zap.Duration("elapsed", capture.Elapsed),
		zap.Int("artifacts", len(capture.Artifacts)))

	return capture
}

// finishDrain waits for the reader to hit EOF. If a process outside the
// target's group still holds the pipe open, the read side is closed after
// drainTimeout so the reader gives up.
func finishDrain(r *os.File, drained <-chan struct{}, logger *zap.Logger) {
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		logger.Warn("output pipe still open after the fuzzer exited, abandoning it")
		r.Close()
		<-drained
	}
}

// drain copies r into out line by line until the writer side is closed.
// bufio.Reader is used instead of a Scanner so that overlong lines never
// stop the draining.
func drain(r io.Reader, out *strings.Builder, logger *zap.Logger) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			out.WriteString(line)
			if ce := logger.Check(zap.DebugLevel, "fuzzer output"); ce != nil {
				ce.Write(zap.String("line", strings.TrimRight(line, "\r\n")))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Debug("output stream closed", zap.Error(err))
			}
			return
		}
	}
}

// watchArtifacts reports crash artifacts as libFuzzer writes them. The
// returned channel is closed once the watcher has shut down.
func (s *Supervisor) watchArtifacts(ctx context.Context, spec types.FuzzTargetSpec, logger *zap.Logger, tracer telemetry.Tracer) <-chan struct{} {
	done := make(chan struct{})
	if s.watchDogFac == nil || spec.WorkDir == "" {
		close(done)
		return done
	}

	notify := make(chan string, 64)
	wd, err := s.watchDogFac.New(ctx, notify, isArtifact)
	if err != nil {
		logger.Warn("artifact watcher unavailable", zap.Error(err))
		close(done)
		return done
	}
	if err := wd.AddDir(spec.WorkDir); err != nil {
		logger.Warn("cannot watch working directory", zap.Error(err))
	}

	go func() {
		defer close(done)
		first := true
		for artifact := range notify {
			logger.Warn("fuzzer wrote an artifact", zap.String("artifact", artifact))
			if first {
				tracer.AddEvent("first_artifact_found", telemetry.NewEventAttributes(map[string]string{
					"artifact": filepath.Base(artifact),
				}))
				first = false
			}
		}
	}()
	return done
}

// collectArtifacts lists the artifacts present in dir once the process is gone.
func collectArtifacts(dir string, logger *zap.Logger) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("failed to list working directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	var artifacts []string
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		artifacts = append(artifacts, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(artifacts)
	return artifacts
}

func spawnFailure(err error, start time.Time) types.RawCapture {
	return types.RawCapture{
		ExitCode:  types.SpawnFailureExitCode,
		ErrorText: fmt.Sprintf("Failed to run fuzzer: %v", err),
		Elapsed:   elapsedSince(start),
	}
}

// elapsedSince never reports a zero duration, even on coarse clocks.
func elapsedSince(start time.Time) time.Duration {
	return max(time.Since(start), time.Nanosecond)
}
