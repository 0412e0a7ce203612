package types

import (
	"fmt"
	"strings"
	"time"
)

// SpawnFailureExitCode marks a process that could not be started or whose
// exit status could not be collected.
const SpawnFailureExitCode = -1

// RawCapture is what the supervisor observed of one process run.
type RawCapture struct {
	Output    string // stdout with stderr merged in
	ErrorText string // supervisor-level failure message
	ExitCode  int
	Elapsed   time.Duration
	TimedOut  bool     // killed after the grace period
	Artifacts []string // crash/leak/timeout files written by the target
}

// ErrorFinding is a matched defect signature with the surrounding output lines.
type ErrorFinding struct {
	Pattern string   `yaml:"pattern" json:"pattern"`
	Context []string `yaml:"context" json:"context"`
}

func (e ErrorFinding) String() string {
	return fmt.Sprintf("Error pattern '%s' found:\n%s", e.Pattern, strings.Join(e.Context, "\n"))
}

// FuzzResult is the outcome of one target in one campaign.
type FuzzResult struct {
	Name          string
	ExitCode      int
	Output        string
	ErrorText     string
	Duration      time.Duration
	RunsCompleted int
	Findings      []ErrorFinding
	TimedOut      bool
	Artifacts     []string
}

func (r FuzzResult) Failed() bool {
	return len(r.Findings) > 0 || r.ExitCode != 0
}

// RunsPerSecond is zero when no time elapsed.
func (r FuzzResult) RunsPerSecond() float64 {
	secs := r.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.RunsCompleted) / secs
}
