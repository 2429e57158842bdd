package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("racecore"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "racecore"})
	assert.Error(t, err)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "racecore",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_DefaultsApplied(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "racecore", LogWriter: &buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.Equal(t, DefaultBatchTimeout, p.Config().BatchTimeout)
	assert.Equal(t, DefaultQueueSize, p.Config().QueueSize)
}

func TestSessionResource(t *testing.T) {
	res, err := sessionResource(context.Background(), Config{
		ServiceName:    "racecore",
		ServiceVersion: "1.2.3",
		SessionID:      "2C8Fj9sZk1aRwOeZtWqf6wEnP1j",
		MapPath:        "maps/harbor.json",
		Ticks:          3600,
	})
	require.NoError(t, err)

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "racecore", got[string(semconv.ServiceNameKey)])
	assert.Equal(t, "racecore", got[string(semconv.ServiceNamespaceKey)])
	assert.Equal(t, "1.2.3", got[string(semconv.ServiceVersionKey)])
	assert.Equal(t, "2C8Fj9sZk1aRwOeZtWqf6wEnP1j", got[string(semconv.ServiceInstanceIDKey)])
	assert.Equal(t, "maps/harbor.json", got[string(MapKey)])
	assert.Equal(t, "3600", got[string(TicksKey)])
}

func TestSessionResource_OmitsEmpty(t *testing.T) {
	res, err := sessionResource(context.Background(), Config{ServiceName: "racecore"})
	require.NoError(t, err)

	_, hasMap := res.Set().Value(MapKey)
	assert.False(t, hasMap)
	_, hasVersion := res.Set().Value(semconv.ServiceVersionKey)
	assert.False(t, hasVersion)
}
