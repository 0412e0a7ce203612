package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "SERVICE_NAME", "OTEL_ENABLED", "RESULTS_QUEUE", "CRASH_DIR", "FUZZ_DICT_PATH", "GRACE_PERIOD"} {
		t.Setenv(key, "")
	}
	t.Setenv("ARTIFACT_DIR", "/var/fuzz")

	cfg := LoadConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fuzzrunner", cfg.ServiceName)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "fuzz_results", cfg.ResultsQueue)
	assert.Equal(t, "/var/fuzz", cfg.ArtifactDir)
	assert.Equal(t, filepath.Join("/var/fuzz", "crashes"), cfg.CrashDir)
	assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
	if assert.Len(t, cfg.DictPaths, 1) {
		assert.Equal(t, DictFileName, filepath.Base(cfg.DictPaths[0]))
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("CRASH_DIR", "/crashes")
	t.Setenv("FUZZ_DICT_PATH", " a.dict, ,b.dict ")
	t.Setenv("GRACE_PERIOD", "90s")

	cfg := LoadConfig()

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "/crashes", cfg.CrashDir)
	assert.Equal(t, []string{"a.dict", "b.dict"}, cfg.DictPaths)
	assert.Equal(t, 90*time.Second, cfg.GracePeriod)
}

func TestParseFallbacks(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.True(t, parseBool("maybe", true))
	assert.Empty(t, parseList(""))
}

func TestRunConfigValidate(t *testing.T) {
	valid := RunConfig{ByDuration: true, Duration: 10, RSSLimitMB: DefaultRSSLimitMB, Verbosity: DefaultVerbosity, Fuzzer: AllFuzzers}
	assert.NoError(t, valid.Validate())

	tests := map[string]func(r *RunConfig){
		"zero duration":     func(r *RunConfig) { r.Duration = 0 },
		"negative runs":     func(r *RunConfig) { r.ByDuration = false; r.Runs = -5 },
		"negative rss":      func(r *RunConfig) { r.RSSLimitMB = -1 },
		"verbosity too big": func(r *RunConfig) { r.Verbosity = 4 },
		"empty fuzzer":      func(r *RunConfig) { r.Fuzzer = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	runs := RunConfig{Runs: 0, Verbosity: 0, Fuzzer: "FUZZ_BasicTypes"}
	assert.NoError(t, runs.Validate())
}

func TestLoadConfigKeepsStdoutClean(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	LoadConfig()
	os.Stdout = stdout
	require.NoError(t, w.Close())

	written, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, string(written))
	assert.False(t, bootstrapLogger().Core().Enabled(zap.DebugLevel))
}
