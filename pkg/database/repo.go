package database

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

// inserts multiple bug records into the database
func AddBugs(ctx context.Context, db *gorm.DB, bugs []*Bug) error {
	if len(bugs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(bugs).Error
}

// NewBug creates a new Bug object; the kind is derived from the artifact's
// original file name.
func NewBug(
	campaignID string,
	poc string,
	target string,
	artifactName string,
) *Bug {
	return &Bug{
		CampaignID: campaignID,
		CreatedAt:  time.Now(),
		Kind:       KindOf(artifactName),
		POC:        poc,
		Target:     target,
	}
}

// KindOf maps a libFuzzer artifact file name to its kind. Unknown names are crashes.
func KindOf(artifactName string) ArtifactKind {
	base := filepath.Base(artifactName)
	for _, kind := range []ArtifactKind{LeakArtifact, TimeoutArtifact, OOMArtifact, SlowUnitArtifact} {
		if strings.HasPrefix(base, string(kind)+"-") {
			return kind
		}
	}
	return CrashArtifact
}

// inserts the per-target records of one campaign in a single transaction
func AddFuzzRuns(ctx context.Context, db *gorm.DB, runs []*FuzzRun) error {
	if len(runs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(runs).Error
	})
}

// GetFuzzRuns returns the records of a campaign ordered by target name
func GetFuzzRuns(ctx context.Context, db *gorm.DB, campaignID string) ([]FuzzRun, error) {
	var runs []FuzzRun
	err := db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("target").
		Find(&runs).Error
	return runs, err
}
