package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ArtifactKind is the kind of file libFuzzer left behind, taken from its name prefix
type ArtifactKind string

const (
	CrashArtifact    ArtifactKind = "crash"
	LeakArtifact     ArtifactKind = "leak"
	TimeoutArtifact  ArtifactKind = "timeout"
	OOMArtifact      ArtifactKind = "oom"
	SlowUnitArtifact ArtifactKind = "slow-unit"
)

// FuzzRun represents a record in the public.fuzz_runs table
type FuzzRun struct {
	ID            int         `gorm:"primaryKey;column:id"`
	CampaignID    string      `gorm:"column:campaign_id;not null;index"`
	CreatedAt     time.Time   `gorm:"column:created_at;default:now()"`
	Target        string      `gorm:"column:target;not null"`
	Passed        bool        `gorm:"column:passed"`
	ExitCode      int         `gorm:"column:exit_code"`
	DurationSec   float64     `gorm:"column:duration_sec"`
	RunsCompleted int         `gorm:"column:runs_completed"`
	TimedOut      bool        `gorm:"column:timed_out"`
	Findings      FindingList `gorm:"column:findings;type:jsonb"`
}

// Bug represents a record in the public.bugs table
type Bug struct {
	ID         int          `gorm:"primaryKey;column:id"`
	CampaignID string       `gorm:"column:campaign_id;not null;index"`
	CreatedAt  time.Time    `gorm:"column:created_at;default:now()"`
	Kind       ArtifactKind `gorm:"column:kind;not null"`
	POC        string       `gorm:"column:poc;not null"`
	Target     string       `gorm:"column:target;not null"`
}

type Finding struct {
	Pattern string   `json:"pattern"`
	Context []string `json:"context"`
}

// FindingList represents the jsonb findings field in the fuzz_runs table
type FindingList []Finding

// Value implements the driver.Valuer interface for the FindingList type
func (f FindingList) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for the FindingList type
func (f *FindingList) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, f)
}
