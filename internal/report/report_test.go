package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/analyze"
	"fuzzrunner/internal/types"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func queueStressResult() types.FuzzResult {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("#%d NEW cov: 10", i)
	}
	lines[40] = "==42==ERROR: AddressSanitizer: heap-buffer-overflow on address 0x602000000011"
	output := strings.Join(lines, "\n")

	analyzer := analyze.NewAnalyzer(types.DefaultRegistry())
	return types.FuzzResult{
		Name:          "FUZZ_QueueStress",
		ExitCode:      1,
		Output:        output,
		Duration:      3 * time.Second,
		RunsCompleted: analyzer.ExtractRunCount(output),
		Findings:      analyzer.FindErrors(output),
	}
}

func TestSummarize(t *testing.T) {
	results := []types.FuzzResult{
		{Name: "FUZZ_B", RunsCompleted: 100, Duration: 5 * time.Second},
		{Name: "FUZZ_A", RunsCompleted: 250, Duration: 9 * time.Second, Findings: []types.ErrorFinding{{Pattern: "deadly signal"}, {Pattern: "runtime error:"}}},
		{Name: "FUZZ_C", RunsCompleted: 0, Duration: time.Second, ExitCode: types.SpawnFailureExitCode},
	}

	summary := Summarize("c1", results)

	assert.Equal(t, 350, summary.TotalRuns)
	assert.Equal(t, 9*time.Second, summary.TotalDuration)
	assert.Equal(t, 2, summary.TotalFindings)
	assert.False(t, summary.Passed)
	assert.Equal(t, 1, summary.ExitCode())
	require.Len(t, summary.Targets, 3)
	assert.Equal(t, []string{"FUZZ_A", "FUZZ_B", "FUZZ_C"},
		[]string{summary.Targets[0].Name, summary.Targets[1].Name, summary.Targets[2].Name})
	assert.False(t, summary.Targets[0].Passed)
	assert.True(t, summary.Targets[1].Passed)
	assert.False(t, summary.Targets[2].Passed)

	// input order is untouched
	assert.Equal(t, "FUZZ_B", results[0].Name)
}

func TestRenderPassingTarget(t *testing.T) {
	var buf bytes.Buffer
	code := NewReporter().Render(&buf, []types.FuzzResult{{
		Name:          "FUZZ_BasicTypes",
		Output:        "Done 500 runs in 2s",
		Duration:      2 * time.Second,
		RunsCompleted: 500,
	}})

	assert.Equal(t, 0, code)
	out := buf.String()
	assert.Contains(t, out, "FUZZING SUMMARY")
	assert.Contains(t, out, "Total runs completed: 500\n")
	assert.Contains(t, out, "Total time: 2.0 seconds\n")
	assert.Contains(t, out, "Total errors found: 0\n")
	assert.Contains(t, out, "✓ PASS FUZZ_BasicTypes\n  Runs: 500 in 2.0s (250 runs/s)\n  Exit code: 0\n")
	assert.Contains(t, out, "FUZZING PASSED - No errors detected")
	assert.NotContains(t, out, "FAIL")
}

func TestRenderFindingFailsCampaign(t *testing.T) {
	result := queueStressResult()
	require.Len(t, result.Findings, 1)
	lines := strings.Split(result.Output, "\n")
	assert.Equal(t, lines[38:44], result.Findings[0].Context)

	var buf bytes.Buffer
	code := NewReporter().Render(&buf, []types.FuzzResult{
		{Name: "FUZZ_BasicTypes", Duration: time.Second, RunsCompleted: 12345},
		result,
	})

	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "Total runs completed: 12,345\n")
	assert.Contains(t, out, "✗ FAIL FUZZ_QueueStress\n")
	assert.Contains(t, out, "  Errors: 1\n\n  Error 1:\n    Error pattern 'ERROR: AddressSanitizer' found:\n    #38 NEW cov: 10\n")
	assert.Contains(t, out, "    ==42==ERROR: AddressSanitizer: heap-buffer-overflow")
	assert.Contains(t, out, "FUZZING FAILED - Errors detected")
	assert.Less(t, strings.Index(out, "FUZZ_BasicTypes"), strings.Index(out, "FUZZ_QueueStress"))
}

func TestRenderSpawnFailure(t *testing.T) {
	var buf bytes.Buffer
	code := NewReporter().Render(&buf, []types.FuzzResult{{
		Name:      "FUZZ_BinaryData",
		ExitCode:  types.SpawnFailureExitCode,
		ErrorText: "Failed to run fuzzer: fork/exec ./FUZZ_BinaryData: no such file or directory",
		Duration:  time.Millisecond,
	}})

	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "✗ FAIL FUZZ_BinaryData\n")
	assert.Contains(t, out, "  Exit code: -1\n")
	assert.Contains(t, out, "  Stderr: Failed to run fuzzer: fork/exec ./FUZZ_BinaryData")
}

func TestRenderTimedOutTarget(t *testing.T) {
	var buf bytes.Buffer
	code := NewReporter().Render(&buf, []types.FuzzResult{{
		Name:      "FUZZ_StlContainers",
		Duration:  70 * time.Second,
		TimedOut:  true,
		Artifacts: []string{"/tmp/work/timeout-abc"},
	}})

	assert.Equal(t, 0, code)
	out := buf.String()
	assert.Contains(t, out, "✓ PASS FUZZ_StlContainers\n")
	assert.Contains(t, out, "  Timed out: killed after the grace period\n")
	assert.Contains(t, out, "  Artifacts:\n    /tmp/work/timeout-abc\n")
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	NewReporter().PrintConfig(&buf, &config.RunConfig{
		ByDuration: true, Duration: 60, RSSLimitMB: 8192, Verbosity: 1, FuzzerDir: "build/fuzz",
	}, "build/fuzz/fuzz.dict", []types.FuzzTargetSpec{{Name: "FUZZ_A"}, {Name: "FUZZ_B"}})

	assert.Equal(t, `Using fuzzer directory: build/fuzz
Using dictionary: build/fuzz/fuzz.dict
Configuration:
  Duration: 60 seconds per fuzzer
  RSS limit: 8192 MB
  Verbosity: 1
  Leak detection: disabled

Running fuzzers: FUZZ_A, FUZZ_B

`, buf.String())
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "summary.yaml")
	summary := Summarize("c1", []types.FuzzResult{queueStressResult()})

	require.NoError(t, WriteYAML(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "c1", decoded["campaign_id"])
	assert.Equal(t, false, decoded["passed"])
	assert.Equal(t, 1, decoded["total_findings"])
	assert.Contains(t, string(data), "ERROR: AddressSanitizer")
}
