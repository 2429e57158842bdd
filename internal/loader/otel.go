package loader

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tiledrace/racecore/internal/loader"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
