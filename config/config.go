package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	DefaultRSSLimitMB  = 8192
	DefaultVerbosity   = 1
	DefaultGracePeriod = 60 * time.Second
	AllFuzzers         = "*"
	DictFileName       = "fuzz.dict"
)

type AppConfig struct {
	LogLevel     string
	ServiceName  string
	OtelEnabled  bool
	DatabaseURL  string // optional, results are persisted when set
	RedisUrl     string // optional
	RabbitMQURL  string // optional
	ResultsQueue string
	ReportPath   string   // optional, YAML summary destination
	DictPaths    []string // candidate dictionaries, merged when more than one exists
	ArtifactDir  string   // per-target working directories live here
	CrashDir     string
	GracePeriod  time.Duration
}

// RunConfig holds the command line of a single campaign.
type RunConfig struct {
	ByDuration  bool // true when --duration was given, false for --runs
	Duration    int  // seconds
	Runs        int
	RSSLimitMB  int
	Verbosity   int
	DetectLeaks bool
	Fuzzer      string
	FuzzerDir   string
}

func LoadConfig() *AppConfig {
	logger := bootstrapLogger()

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found")
	}

	artifactDir := os.Getenv("ARTIFACT_DIR")
	if artifactDir == "" {
		artifactDir = filepath.Join(os.TempDir(), "fuzzrunner")
	}

	config := &AppConfig{
		LogLevel:     os.Getenv("LOG_LEVEL"),
		ServiceName:  os.Getenv("SERVICE_NAME"),
		OtelEnabled:  parseBool(os.Getenv("OTEL_ENABLED"), false),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisUrl:     os.Getenv("REDIS_URL"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		ResultsQueue: os.Getenv("RESULTS_QUEUE"),
		ReportPath:   os.Getenv("REPORT_PATH"),
		DictPaths:    parseList(os.Getenv("FUZZ_DICT_PATH")),
		ArtifactDir:  artifactDir,
		CrashDir:     os.Getenv("CRASH_DIR"),
		GracePeriod:  parseDuration(os.Getenv("GRACE_PERIOD"), DefaultGracePeriod),
	}

	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}
	if config.ServiceName == "" {
		config.ServiceName = "fuzzrunner"
	}
	if config.ResultsQueue == "" {
		config.ResultsQueue = "fuzz_results"
	}
	if config.CrashDir == "" {
		config.CrashDir = filepath.Join(config.ArtifactDir, "crashes")
	}
	if len(config.DictPaths) == 0 {
		config.DictPaths = []string{defaultDictPath()}
	}

	return config
}

// bootstrapLogger logs to stderr until the real logger exists; stdout is
// reserved for the report.
func bootstrapLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("config")
}

// the dictionary conventionally sits next to the harness executable
func defaultDictPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DictFileName
	}
	return filepath.Join(filepath.Dir(exe), DictFileName)
}

// Validate checks the flag combination. Mutual exclusion of --duration and
// --runs is enforced by the flag parser; the ranges are checked here.
func (r *RunConfig) Validate() error {
	if r.ByDuration && r.Duration <= 0 {
		return fmt.Errorf("--duration must be positive, got %d", r.Duration)
	}
	if !r.ByDuration && r.Runs < 0 {
		return fmt.Errorf("--runs must not be negative, got %d", r.Runs)
	}
	if r.RSSLimitMB < 0 {
		return fmt.Errorf("--rss-limit must not be negative, got %d", r.RSSLimitMB)
	}
	if r.Verbosity < 0 || r.Verbosity > 3 {
		return fmt.Errorf("--verbosity must be one of 0, 1, 2, 3, got %d", r.Verbosity)
	}
	if r.Fuzzer == "" {
		return errors.New("--fuzzer must not be empty")
	}
	return nil
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseBool(val string, defaultVal bool) bool {
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
