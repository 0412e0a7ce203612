// Package analyze turns the console output of a libFuzzer-style target into
// run statistics and defect findings. Everything here is pure text processing.
package analyze

import (
	"strconv"
	"strings"

	"fuzzrunner/internal/types"
)

const (
	contextBefore = 2
	contextAfter  = 3
)

type Analyzer struct {
	signatures []string
}

func NewAnalyzer(registry types.Registry) *Analyzer {
	return &Analyzer{signatures: append([]string(nil), registry.Signatures...)}
}

// ExtractRunCount returns the number of fuzzing iterations reported by the
// engine. Two markers are recognised:
//
//	Done 12345 runs in 60 second(s)
//	#12345	DONE   cov: 123 ft: 456 ...
//
// The first line carrying either marker decides the result; 0 is returned
// when no line matches or the count does not parse.
func (a *Analyzer) ExtractRunCount(text string) int {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Done") && strings.Contains(line, "runs in") {
			return countAfterDone(line)
		}
		trimmed := strings.TrimSpace(line)
		if strings.Contains(line, "DONE") && strings.HasPrefix(trimmed, "#") {
			return countAfterHash(trimmed)
		}
	}
	return 0
}

func countAfterDone(line string) int {
	fields := strings.Fields(line)
	for i, field := range fields {
		if field != "Done" {
			continue
		}
		if i+1 >= len(fields) {
			return 0
		}
		return parseCount(fields[i+1])
	}
	return 0
}

func countAfterHash(trimmed string) int {
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return 0
	}
	return parseCount(fields[0])
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FindErrors reports every line that contains a known signature, in line
// order. Each line yields at most one finding, attributed to the first
// matching signature.
func (a *Analyzer) FindErrors(text string) []types.ErrorFinding {
	var findings []types.ErrorFinding
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		pattern, ok := a.match(line)
		if !ok {
			continue
		}
		start := max(0, i-contextBefore)
		end := min(len(lines), i+contextAfter+1)
		findings = append(findings, types.ErrorFinding{
			Pattern: pattern,
			Context: append([]string(nil), lines[start:end]...),
		})
	}
	return findings
}

func (a *Analyzer) match(line string) (string, bool) {
	for _, signature := range a.signatures {
		if strings.Contains(line, signature) {
			return signature, true
		}
	}
	return "", false
}
