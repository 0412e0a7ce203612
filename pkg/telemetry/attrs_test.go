package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpanAttributesMergeKeepsExistingValues(t *testing.T) {
	base := NewSpanAttributes(Fuzzing).WithTarget("FUZZ_BasicTypes").WithExtraAttribute("fuzz.runs", 10)
	other := EmptySpanAttributes().WithTarget("FUZZ_BinaryData").WithCampaignID("c1").WithExtraAttribute("fuzz.runs", 20)

	base.Merge(other)

	attrs := base.Attributes()
	assert.Contains(t, attrs, attribute.String("fuzz.action.category", "fuzzing"))
	assert.Contains(t, attrs, attribute.String("fuzz.target", "FUZZ_BasicTypes"))
	assert.Contains(t, attrs, attribute.String("fuzz.campaign.id", "c1"))
	assert.Contains(t, attrs, attribute.Int("fuzz.runs", 10))
}

func TestFromContextFallsBackToDummy(t *testing.T) {
	assert.IsType(t, &DummyTracer{}, FromContext(context.Background()))

	var factory *TracerFactory
	tracer := factory.NewTracer(context.Background(), "campaign")
	assert.IsType(t, &DummyTracer{}, tracer)

	ctx := context.WithValue(context.Background(), TracerKey{}, tracer)
	assert.Same(t, tracer, FromContext(ctx))
}

func TestActionCategoryString(t *testing.T) {
	assert.Equal(t, "fuzzing", Fuzzing.String())
	assert.Equal(t, "unknown", ActionCategory(1).String())
}

var (
	_ Tracer = (*DummyTracer)(nil)
	_ Tracer = (*TelemetryTracer)(nil)
)
