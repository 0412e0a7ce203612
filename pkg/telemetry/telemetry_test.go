package telemetry

import (
	"testing"
	"time"

	"fuzzrunner/config"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx/fxtest"
)

func TestCampaignResource(t *testing.T) {
	res := campaignResource(&config.AppConfig{
		ServiceName:  "fuzzrunner",
		ArtifactDir:  "/var/fuzz",
		CrashDir:     "/var/fuzz/crashes",
		GracePeriod:  90 * time.Second,
		DictPaths:    []string{"fuzz.dict"},
		RabbitMQURL:  "amqp://localhost",
		ResultsQueue: "fuzz_results",
	})

	set := res.Set()
	value := func(key string) attribute.Value {
		v, ok := set.Value(attribute.Key(key))
		assert.True(t, ok, key)
		return v
	}
	assert.Equal(t, "fuzzrunner", value("service.name").AsString())
	assert.Equal(t, "/var/fuzz", value("fuzz.artifact_dir").AsString())
	assert.Equal(t, "/var/fuzz/crashes", value("fuzz.crash_dir").AsString())
	assert.Equal(t, 90.0, value("fuzz.grace_period_sec").AsFloat64())
	assert.Equal(t, []string{"fuzz.dict"}, value("fuzz.dict_candidates").AsStringSlice())
	assert.Equal(t, "fuzz_results", value("fuzz.results_queue").AsString())

	_, ok := campaignResource(&config.AppConfig{ServiceName: "fuzzrunner"}).Set().Value("fuzz.results_queue")
	assert.False(t, ok)
}

func TestNewTelemetryDisabled(t *testing.T) {
	telem, err := NewTelemetry(TelemetryParams{
		Lifecycle: fxtest.NewLifecycle(t),
		Config:    &config.AppConfig{OtelEnabled: false},
	})
	assert.NoError(t, err)
	assert.Nil(t, telem)
}
