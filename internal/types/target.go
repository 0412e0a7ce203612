package types

import "time"

type RunMode int

const (
	DurationMode RunMode = iota // bounded by -max_total_time
	RunsMode                    // bounded by -runs
)

func (m RunMode) String() string {
	switch m {
	case DurationMode:
		return "duration"
	case RunsMode:
		return "runs"
	default:
		return "unknown"
	}
}

// FuzzOptions is the per-campaign configuration shared by every target.
type FuzzOptions struct {
	Mode        RunMode
	Duration    time.Duration // DurationMode only, whole seconds
	Runs        int           // RunsMode only
	RSSLimitMB  int
	Verbosity   int
	DetectLeaks bool
	DictPath    string // empty when no dictionary is available
}

// FuzzTargetSpec describes one fuzz target binary. It is never mutated after creation.
type FuzzTargetSpec struct {
	Name       string `json:"name"`     // also the executable's base name
	Path       string `json:"path"`     // resolved executable path
	WorkDir    string `json:"work_dir"` // libFuzzer drops crash artifacts here
	CampaignID string `json:"campaign_id"`
	Options    FuzzOptions
}
