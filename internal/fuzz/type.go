package fuzz

import (
	"context"

	"fuzzrunner/internal/types"
)

// Fuzzer runs one fuzz target process to completion or forced termination.
//
// Run never fails: a process that cannot be started is reported through
// RawCapture.ExitCode == types.SpawnFailureExitCode and RawCapture.ErrorText.
// The process has exited by the time Run returns.
type Fuzzer interface {
	Run(ctx context.Context, spec types.FuzzTargetSpec) types.RawCapture
}
