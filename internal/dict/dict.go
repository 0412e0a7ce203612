package dict

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"fuzzrunner/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type DictLocator struct {
	logger     *zap.Logger
	candidates []string
	mergeDir   string

	mu     sync.Mutex
	merged []string // files written by Locate, removed on stop
}

type DictLocatorParams struct {
	fx.In

	Logger    *zap.Logger
	AppConfig *config.AppConfig
	LifeCycle fx.Lifecycle
}

func NewDictLocator(params DictLocatorParams) *DictLocator {
	d := &DictLocator{
		logger:     params.Logger,
		candidates: params.AppConfig.DictPaths,
		mergeDir:   params.AppConfig.ArtifactDir,
	}

	params.LifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			d.Cleanup()
			return nil
		},
	})
	return d
}

// Cleanup removes the merged dictionaries written so far.
func (d *DictLocator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, path := range d.merged {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("failed to remove merged dictionary", zap.String("path", path), zap.Error(err))
		}
	}
	d.merged = nil
}

// Locate returns the dictionary to hand to every fuzz target, or "" when none
// of the candidate files exists.
//
// A single existing candidate is used as is. Several existing candidates are
// merged: lines are trimmed, empty lines and comments dropped, duplicates
// removed, and the result written to a new file under the artifact directory.
func (d *DictLocator) Locate() (string, error) {
	var existing []string
	for _, path := range d.candidates {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				d.logger.Warn("cannot stat dictionary", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		existing = append(existing, path)
	}

	switch len(existing) {
	case 0:
		d.logger.Debug("no dictionary found", zap.Strings("candidates", d.candidates))
		return "", nil
	case 1:
		return existing[0], nil
	}

	d.logger.Info("merging dictionaries", zap.Int("numDicts", len(existing)))

	var mergedLines []string
	for _, path := range existing {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read dict file %s: %w", path, err)
		}
		mergedLines = append(mergedLines, strings.Split(string(content), "\n")...)
	}

	lineSet := make(map[string]struct{})
	var finalLines []string
	for _, line := range mergedLines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := lineSet[line]; !ok {
			lineSet[line] = struct{}{}
			finalLines = append(finalLines, line)
		}
	}

	if err := os.MkdirAll(d.mergeDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dict directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(d.mergeDir, "merged_dict_*.dict")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dict file: %w", err)
	}
	defer tmpFile.Close()

	d.mu.Lock()
	d.merged = append(d.merged, tmpFile.Name())
	d.mu.Unlock()

	if _, err := tmpFile.WriteString(strings.Join(finalLines, "\n") + "\n"); err != nil {
		return "", fmt.Errorf("failed to write merged dict file: %w", err)
	}

	return tmpFile.Name(), nil
}
