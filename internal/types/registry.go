package types

import "slices"

// Registry is the table of known fuzz targets and defect signatures.
// Signature order matters: the first signature found on a line wins.
type Registry struct {
	Targets    []string
	Signatures []string
}

func DefaultRegistry() Registry {
	return Registry{
		Targets: []string{
			"FUZZ_BasicTypes",
			"FUZZ_StlContainers",
			"FUZZ_UserDefinedDeferredFormat",
			"FUZZ_UserDefinedDirectFormat",
			"FUZZ_QueueStress",
			"FUZZ_BinaryData",
		},
		Signatures: []string{
			"assertion failed",
			"ERROR: AddressSanitizer",
			"ERROR: LeakSanitizer",
			"ERROR: UndefinedBehaviorSanitizer",
			"ERROR: libFuzzer",
			"deadly signal",
			"runtime error:",
			"SUMMARY: AddressSanitizer",
			"SUMMARY: UndefinedBehaviorSanitizer",
			"SUMMARY: LeakSanitizer",
		},
	}
}

func (r Registry) Known(name string) bool {
	return slices.Contains(r.Targets, name)
}
