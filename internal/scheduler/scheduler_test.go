package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/analyze"
	"fuzzrunner/internal/fuzz"
	"fuzzrunner/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedFuzzer answers per target name; unknown names behave like a missing binary.
type scriptedFuzzer struct {
	captures map[string]types.RawCapture
	delays   map[string]time.Duration
	running  atomic.Int32
	peak     atomic.Int32
}

func (f *scriptedFuzzer) Run(ctx context.Context, spec types.FuzzTargetSpec) types.RawCapture {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	start := time.Now()
	if d, ok := f.delays[spec.Name]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
	capture, ok := f.captures[spec.Name]
	if !ok {
		return types.RawCapture{
			ExitCode:  types.SpawnFailureExitCode,
			ErrorText: fmt.Sprintf("Failed to run fuzzer: fork/exec %s: no such file or directory", spec.Path),
			Elapsed:   time.Millisecond,
		}
	}
	capture.Elapsed = time.Since(start)
	return capture
}

func newTestScheduler(t *testing.T, registry types.Registry, fuzzer fuzz.Fuzzer) *Scheduler {
	logger := zaptest.NewLogger(t)
	runner := fuzz.NewFuzzRunner(fuzz.FuzzRunnerParams{
		Logger:   logger,
		Fuzzer:   fuzzer,
		Analyzer: analyze.NewAnalyzer(registry),
	})
	return NewScheduler(SchedulerParams{
		Registry:   registry,
		Logger:     logger,
		FuzzRunner: runner,
		AppConfig:  &config.AppConfig{ArtifactDir: "/tmp/artifacts"},
	})
}

func TestTargetsResolvesSelector(t *testing.T) {
	s := newTestScheduler(t, types.DefaultRegistry(), &scriptedFuzzer{})

	all, err := s.Targets(&config.RunConfig{
		ByDuration: true, Duration: 30, RSSLimitMB: 8192, Verbosity: 1, Fuzzer: "*", FuzzerDir: "/opt/fuzz",
	}, "/opt/fuzz/fuzz.dict", "c1")
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "FUZZ_BasicTypes", all[0].Name)
	assert.Equal(t, "/opt/fuzz/FUZZ_BasicTypes", all[0].Path)
	assert.Equal(t, filepath.Join("/tmp/artifacts", "c1", "FUZZ_BasicTypes"), all[0].WorkDir)
	assert.Equal(t, types.DurationMode, all[0].Options.Mode)
	assert.Equal(t, 30*time.Second, all[0].Options.Duration)
	assert.Equal(t, "/opt/fuzz/fuzz.dict", all[0].Options.DictPath)

	one, err := s.Targets(&config.RunConfig{Runs: 100, Fuzzer: "FUZZ_QueueStress", FuzzerDir: "/opt/fuzz"}, "", "c1")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, types.RunsMode, one[0].Options.Mode)
	assert.Equal(t, 100, one[0].Options.Runs)

	_, err = s.Targets(&config.RunConfig{Runs: 1, Fuzzer: "FUZZ_Nope", FuzzerDir: "."}, "", "c1")
	assert.ErrorContains(t, err, "unknown fuzzer")
}

func TestRunAllProducesOneResultPerTarget(t *testing.T) {
	registry := types.Registry{
		Targets:    []string{"FUZZ_A", "FUZZ_B", "FUZZ_C"},
		Signatures: []string{"ERROR: AddressSanitizer"},
	}
	fuzzer := &scriptedFuzzer{
		captures: map[string]types.RawCapture{
			"FUZZ_A": {Output: "Done 500 runs in 2s\n"},
			"FUZZ_B": {Output: "==1==ERROR: AddressSanitizer: heap-buffer-overflow\n", ExitCode: 1},
		},
	}
	s := newTestScheduler(t, registry, fuzzer)
	targets, err := s.Targets(&config.RunConfig{Runs: 500, Fuzzer: "*", FuzzerDir: "."}, "", "c1")
	require.NoError(t, err)

	results := s.RunAll(context.Background(), targets)

	require.Len(t, results, 3)
	assert.Equal(t, "FUZZ_A", results[0].Name)
	assert.False(t, results[0].Failed())
	assert.Equal(t, 500, results[0].RunsCompleted)
	assert.Equal(t, "FUZZ_B", results[1].Name)
	assert.True(t, results[1].Failed())
	assert.Len(t, results[1].Findings, 1)
	assert.Equal(t, "FUZZ_C", results[2].Name)
	assert.Equal(t, types.SpawnFailureExitCode, results[2].ExitCode)
	assert.True(t, results[2].Failed())
}

func TestRunAllTargetsAreIndependent(t *testing.T) {
	registry := types.Registry{Targets: []string{"FUZZ_Fast", "FUZZ_Slow"}}
	fuzzer := &scriptedFuzzer{
		captures: map[string]types.RawCapture{
			"FUZZ_Fast": {Output: "fast\n"},
			"FUZZ_Slow": {Output: "slow\n"},
		},
		delays: map[string]time.Duration{"FUZZ_Fast": 50 * time.Millisecond, "FUZZ_Slow": 300 * time.Millisecond},
	}
	s := newTestScheduler(t, registry, fuzzer)
	targets, err := s.Targets(&config.RunConfig{Runs: 1, Fuzzer: "*", FuzzerDir: "."}, "", "c1")
	require.NoError(t, err)

	start := time.Now()
	results := s.RunAll(context.Background(), targets)
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.Equal(t, "fast\n", results[0].Output)
	assert.Equal(t, "slow\n", results[1].Output)
	assert.Less(t, results[0].Duration, 300*time.Millisecond)
	assert.GreaterOrEqual(t, results[1].Duration, 300*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, int32(2), fuzzer.peak.Load())
}
