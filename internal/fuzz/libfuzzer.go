package fuzz

import (
	"fmt"
	"path/filepath"
	"strings"

	"fuzzrunner/internal/types"
)

// artifact file prefixes written by libFuzzer into its working directory
var artifactPrefixes = []string{"crash-", "leak-", "timeout-", "oom-", "slow-unit-"}

// BuildCommand builds the libFuzzer command line for spec. The first element
// is the executable.
func BuildCommand(spec types.FuzzTargetSpec) []string {
	opts := spec.Options
	cmd := []string{spec.Path}

	switch opts.Mode {
	case types.DurationMode:
		cmd = append(cmd, fmt.Sprintf("-max_total_time=%d", int64(opts.Duration.Seconds())))
	case types.RunsMode:
		cmd = append(cmd, fmt.Sprintf("-runs=%d", opts.Runs))
	}

	cmd = append(cmd,
		fmt.Sprintf("-rss_limit_mb=%d", opts.RSSLimitMB),
		fmt.Sprintf("-verbosity=%d", opts.Verbosity),
	)

	if !opts.DetectLeaks {
		cmd = append(cmd, "-detect_leaks=0")
	}

	if opts.DictPath != "" {
		cmd = append(cmd, fmt.Sprintf("-dict=%s", opts.DictPath))
	}

	return cmd
}

func isArtifact(name string) bool {
	base := filepath.Base(name)
	for _, prefix := range artifactPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}
