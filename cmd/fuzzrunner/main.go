package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line and maps the outcome to an exit status.
func execute(ctx context.Context, args []string) int {
	exitCode := 0
	rootCmd := newRootCmd(func(ctx context.Context, runCfg *runOptions) error {
		code, err := runCampaign(ctx, runCfg)
		exitCode = code
		return err
	})
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "ERROR:", err)
		return 1
	}
	return exitCode
}
