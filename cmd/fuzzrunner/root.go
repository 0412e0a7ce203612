package main

import (
	"context"
	"io"

	"fuzzrunner/config"

	"github.com/spf13/cobra"
)

// runOptions is the parsed command line plus where the report goes.
type runOptions struct {
	config.RunConfig
	out io.Writer
}

func newRootCmd(run func(ctx context.Context, opts *runOptions) error) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "fuzzrunner",
		Short: "Run the libFuzzer targets in parallel and report the verdict",
		Long: `fuzzrunner starts every selected fuzz target concurrently, bounded either by
time (--duration) or by iteration count (--runs), scans their output for
sanitizer reports and crashes, and exits non-zero when any target failed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ByDuration = cmd.Flags().Changed("duration")
			opts.out = cmd.OutOrStdout()
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Duration, "duration", 0, "fuzz every target for this many seconds")
	flags.IntVar(&opts.Runs, "runs", 0, "fuzz every target for this many iterations")
	flags.IntVar(&opts.RSSLimitMB, "rss-limit", config.DefaultRSSLimitMB, "memory limit per target in MB")
	flags.IntVar(&opts.Verbosity, "verbosity", config.DefaultVerbosity, "libFuzzer verbosity (0-3)")
	flags.BoolVar(&opts.DetectLeaks, "detect-leaks", false, "enable LeakSanitizer leak detection")
	flags.StringVar(&opts.Fuzzer, "fuzzer", config.AllFuzzers, `target to run, or "*" for all`)
	flags.StringVar(&opts.FuzzerDir, "fuzzer-dir", ".", "directory containing the fuzz target binaries")
	cmd.MarkFlagsMutuallyExclusive("duration", "runs")
	cmd.MarkFlagsOneRequired("duration", "runs")

	return cmd
}
