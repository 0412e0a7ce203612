//go:build !unix

package fuzz

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func exitCode(exitErr *exec.ExitError) int {
	return exitErr.ExitCode()
}
