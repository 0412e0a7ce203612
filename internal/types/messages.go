package types

// CrashMessage announces an artifact file written by a fuzz target.
type CrashMessage struct {
	CrashFile string // path to the crash file on local filesystem
	Target    *FuzzTargetSpec
}

// ResultMessage is the per-target payload published to the results queue.
type ResultMessage struct {
	CampaignID    string         `json:"campaign_id"`
	Name          string         `json:"name"`
	Passed        bool           `json:"passed"`
	ExitCode      int            `json:"exit_code"`
	DurationSec   float64        `json:"duration_sec"`
	RunsCompleted int            `json:"runs_completed"`
	TimedOut      bool           `json:"timed_out"`
	Findings      []ErrorFinding `json:"findings,omitempty"`
	Artifacts     []string       `json:"artifacts,omitempty"`
}

// CampaignMessage summarises a whole campaign.
type CampaignMessage struct {
	CampaignID    string          `json:"campaign_id"`
	Passed        bool            `json:"passed"`
	TotalRuns     int             `json:"total_runs"`
	TotalFindings int             `json:"total_findings"`
	DurationSec   float64         `json:"duration_sec"`
	Results       []ResultMessage `json:"results"`
}
