package race

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tiledrace/racecore/internal/race"

type metrics struct {
	ticks    metric.Int64Counter
	laps     metric.Int64Counter
	respawns metric.Int64Counter
	finishes metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)
	if out.ticks, err = m.Int64Counter("race.ticks", metric.WithDescription("Simulation steps while running")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if out.laps, err = m.Int64Counter("race.laps", metric.WithDescription("Laps completed by any vehicle")); err != nil {
		return nil, fmt.Errorf("creating laps counter: %w", err)
	}
	if out.respawns, err = m.Int64Counter("race.respawns", metric.WithDescription("Respawns forced by skipped checkpoints")); err != nil {
		return nil, fmt.Errorf("creating respawns counter: %w", err)
	}
	if out.finishes, err = m.Int64Counter("race.finishes", metric.WithDescription("Vehicles that completed the race")); err != nil {
		return nil, fmt.Errorf("creating finishes counter: %w", err)
	}
	return &out, nil
}
