package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fuzzrunner/config"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CrashManager stores the artifacts fuzz targets leave behind, deduplicated
// by content, and records them as bugs when a database is configured.
type CrashManager struct {
	db     *gorm.DB
	logger *zap.Logger

	crashFolder string
	crashChan   chan types.CrashMessage
	mu          sync.Mutex
	closed      bool
	done        chan struct{}
}

type CrashManagerParams struct {
	fx.In

	DB        *gorm.DB `optional:"true"`
	Logger    *zap.Logger
	AppConfig *config.AppConfig
	LifeCycle fx.Lifecycle
}

func NewCrashManager(params CrashManagerParams) (*CrashManager, error) {
	c, err := newCrashManager(params.DB, params.Logger, params.AppConfig.CrashDir)
	if err != nil {
		return nil, err
	}

	params.LifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.logger.Debug("starting crash manager")
			go c.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.logger.Debug("stopping crash manager")
			c.close()
			select {
			case <-c.done: // wait until all crashes are processed
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	return c, nil
}

func newCrashManager(db *gorm.DB, logger *zap.Logger, crashFolder string) (*CrashManager, error) {
	if err := os.MkdirAll(crashFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create crash folder: %w", err)
	}
	return &CrashManager{
		db:          db,
		logger:      logger,
		crashFolder: crashFolder,
		crashChan:   make(chan types.CrashMessage, 1024),
		done:        make(chan struct{}),
	}, nil
}

// Submit queues an artifact for storage. Messages submitted after shutdown are dropped.
func (c *CrashManager) Submit(msg types.CrashMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Warn("crash manager stopped, dropping artifact", zap.String("file", msg.CrashFile))
		return
	}
	c.logger.Debug("new crash message received", zap.String("file", msg.CrashFile))
	c.crashChan <- msg
}

func (c *CrashManager) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.crashChan)
	}
}

func (c *CrashManager) start() {
	defer close(c.done)
	for crash := range c.crashChan {
		err := c.processCrashFile(crash)
		if err != nil {
			c.logger.Error("failed to process crash file", zap.Error(err))
			continue
		}
	}
}

// processCrashFile processes a single crash file
func (c *CrashManager) processCrashFile(msg types.CrashMessage) error {
	if msg.Target == nil {
		return fmt.Errorf("crash file %s has no target", msg.CrashFile)
	}
	crashStore := filepath.Join(c.crashFolder, msg.Target.CampaignID, msg.Target.Name)
	if err := os.MkdirAll(crashStore, 0755); err != nil {
		return fmt.Errorf("failed to create crash store directory: %w", err)
	}

	// Read the crash file and get the md5 hash
	crashData, err := os.ReadFile(msg.CrashFile)
	if err != nil {
		return fmt.Errorf("failed to read crash file: %w", err)
	}
	crashMd5 := md5.Sum(crashData)
	crashPath := filepath.Join(crashStore, hex.EncodeToString(crashMd5[:]))
	if _, err := os.Stat(crashPath); err == nil {
		c.logger.Debug("duplicate crash ignored", zap.String("file", msg.CrashFile), zap.String("stored", crashPath))
		return nil
	}
	err = os.WriteFile(crashPath, crashData, 0644)
	if err != nil {
		return fmt.Errorf("failed to write crash file: %w", err)
	}
	c.logger.Info("crash stored", zap.String("target", msg.Target.Name), zap.String("path", crashPath))

	if c.db == nil {
		return nil
	}

	bug := database.NewBug(
		msg.Target.CampaignID,
		crashPath,
		msg.Target.Name,
		msg.CrashFile,
	)

	// Use the global context for database operations
	if err := database.AddBugs(context.Background(), c.db, []*database.Bug{bug}); err != nil {
		return fmt.Errorf("failed to add bug: %w", err)
	}

	return nil
}
