package report

import (
	"slices"
	"strings"
	"time"

	"fuzzrunner/internal/types"
)

// Summary is the campaign verdict with its totals and per-target rows.
type Summary struct {
	CampaignID    string          `yaml:"campaign_id"`
	Passed        bool            `yaml:"passed"`
	TotalRuns     int             `yaml:"total_runs"`
	TotalDuration time.Duration   `yaml:"-"`
	DurationSec   float64         `yaml:"duration_sec"`
	TotalFindings int             `yaml:"total_findings"`
	Targets       []TargetSummary `yaml:"targets"`
}

type TargetSummary struct {
	Name          string               `yaml:"name"`
	Passed        bool                 `yaml:"passed"`
	ExitCode      int                  `yaml:"exit_code"`
	RunsCompleted int                  `yaml:"runs_completed"`
	DurationSec   float64              `yaml:"duration_sec"`
	RunsPerSecond float64              `yaml:"runs_per_second"`
	TimedOut      bool                 `yaml:"timed_out,omitempty"`
	ErrorText     string               `yaml:"error_text,omitempty"`
	Findings      []types.ErrorFinding `yaml:"findings,omitempty"`
	Artifacts     []string             `yaml:"artifacts,omitempty"`
}

// Summarize aggregates results. Targets run concurrently, so the campaign
// duration is the longest target duration rather than the sum.
func Summarize(campaignID string, results []types.FuzzResult) Summary {
	summary := Summary{CampaignID: campaignID, Passed: true}
	for _, result := range SortedByName(results) {
		summary.TotalRuns += result.RunsCompleted
		summary.TotalDuration = max(summary.TotalDuration, result.Duration)
		summary.TotalFindings += len(result.Findings)
		if result.Failed() {
			summary.Passed = false
		}
		summary.Targets = append(summary.Targets, TargetSummary{
			Name:          result.Name,
			Passed:        !result.Failed(),
			ExitCode:      result.ExitCode,
			RunsCompleted: result.RunsCompleted,
			DurationSec:   result.Duration.Seconds(),
			RunsPerSecond: result.RunsPerSecond(),
			TimedOut:      result.TimedOut,
			ErrorText:     result.ErrorText,
			Findings:      result.Findings,
			Artifacts:     result.Artifacts,
		})
	}
	summary.DurationSec = summary.TotalDuration.Seconds()
	return summary
}

// ExitCode is the process exit status for the verdict.
func (s Summary) ExitCode() int {
	if s.Passed {
		return 0
	}
	return 1
}

// SortedByName returns a sorted copy; the input order is left untouched.
func SortedByName(results []types.FuzzResult) []types.FuzzResult {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b types.FuzzResult) int {
		return strings.Compare(a.Name, b.Name)
	})
	return sorted
}
