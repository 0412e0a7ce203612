package report

import (
	"fmt"
	"io"
	"strings"

	"fuzzrunner/config"
	"fuzzrunner/internal/types"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	passColor   = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.Bold)
	rule        = strings.Repeat("=", 80)
)

// Reporter renders campaign results as text. Colours are dropped
// automatically when the output is not a terminal.
type Reporter struct {
	printer *message.Printer
}

func NewReporter() *Reporter {
	return &Reporter{message.NewPrinter(language.English)}
}

// PrintConfig prints the campaign configuration before any target starts.
func (r *Reporter) PrintConfig(w io.Writer, runCfg *config.RunConfig, dictPath string, targets []types.FuzzTargetSpec) {
	fmt.Fprintf(w, "Using fuzzer directory: %s\n", runCfg.FuzzerDir)
	if dictPath != "" {
		fmt.Fprintf(w, "Using dictionary: %s\n", dictPath)
	}
	fmt.Fprintln(w, "Configuration:")
	if runCfg.ByDuration {
		fmt.Fprintf(w, "  Duration: %d seconds per fuzzer\n", runCfg.Duration)
	} else {
		fmt.Fprintf(w, "  Runs: %d iterations per fuzzer\n", runCfg.Runs)
	}
	fmt.Fprintf(w, "  RSS limit: %d MB\n", runCfg.RSSLimitMB)
	fmt.Fprintf(w, "  Verbosity: %d\n", runCfg.Verbosity)
	leaks := "disabled"
	if runCfg.DetectLeaks {
		leaks = "enabled"
	}
	fmt.Fprintf(w, "  Leak detection: %s\n", leaks)
	fmt.Fprintln(w)

	names := make([]string, 0, len(targets))
	for _, target := range targets {
		names = append(names, target.Name)
	}
	fmt.Fprintf(w, "Running fuzzers: %s\n\n", strings.Join(names, ", "))
}

// Render writes the summary of results to w and returns the exit status:
// 0 when every target passed, 1 otherwise.
func (r *Reporter) Render(w io.Writer, results []types.FuzzResult) int {
	summary := Summarize("", results)

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, headerColor.Sprint("FUZZING SUMMARY"))
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\nTotal runs completed: %s\n", r.printer.Sprintf("%d", summary.TotalRuns))
	fmt.Fprintf(w, "Total time: %.1f seconds\n", summary.DurationSec)
	fmt.Fprintf(w, "Total errors found: %d\n\n", summary.TotalFindings)

	for _, target := range summary.Targets {
		r.renderTarget(w, target)
	}

	fmt.Fprintln(w, rule)
	if summary.Passed {
		fmt.Fprintln(w, passColor.Sprint("FUZZING PASSED - No errors detected"))
	} else {
		fmt.Fprintln(w, failColor.Sprint("FUZZING FAILED - Errors detected"))
	}
	fmt.Fprintln(w, rule)

	return summary.ExitCode()
}

func (r *Reporter) renderTarget(w io.Writer, target TargetSummary) {
	status := passColor.Sprint("✓ PASS")
	if !target.Passed {
		status = failColor.Sprint("✗ FAIL")
	}

	fmt.Fprintf(w, "%s %s\n", status, target.Name)
	fmt.Fprintf(w, "  Runs: %s in %.1fs (%s runs/s)\n",
		r.printer.Sprintf("%d", target.RunsCompleted),
		target.DurationSec,
		r.printer.Sprintf("%.0f", target.RunsPerSecond))
	fmt.Fprintf(w, "  Exit code: %d\n", target.ExitCode)
	if target.TimedOut {
		fmt.Fprintln(w, "  Timed out: killed after the grace period")
	}

	if len(target.Findings) > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", len(target.Findings))
		for i, finding := range target.Findings {
			fmt.Fprintf(w, "\n  Error %d:\n", i+1)
			for _, line := range strings.Split(finding.String(), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	if target.ErrorText != "" {
		fmt.Fprintf(w, "  Stderr: %s\n", target.ErrorText)
	}

	if len(target.Artifacts) > 0 {
		fmt.Fprintln(w, "  Artifacts:")
		for _, artifact := range target.Artifacts {
			fmt.Fprintf(w, "    %s\n", artifact)
		}
	}

	fmt.Fprintln(w)
}
