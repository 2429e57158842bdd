// Package otel wires the simulator's log records into OpenTelemetry. Records
// go to a JSON writer (normally the session log file) and optionally to an
// OTLP/HTTP collector.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	namespace = "racecore"

	// DefaultQueueSize holds a few seconds of per-tick race events.
	DefaultQueueSize = 4096
	// DefaultBatchTimeout bounds one export call.
	DefaultBatchTimeout = 5 * time.Second
)

// Resource attribute keys describing a simulator session.
const (
	MapKey   = attribute.Key("racecore.map")
	TicksKey = attribute.Key("racecore.ticks")
)

// Config holds OTel configuration. LogWriter or Endpoint is required when
// Enabled.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	SessionID      string // service.instance.id; one per racesim run
	MapPath        string
	Ticks          int

	BatchTimeout time.Duration
	QueueSize    int

	LogWriter io.Writer // receives OTel log records as JSON
	Endpoint  string    // OTLP/HTTP endpoint, optional
	Insecure  bool
	Compress  bool // gzip OTLP payloads
}

// Provider owns the OpenTelemetry log pipeline of a simulator session.
type Provider struct {
	logProvider *sdklog.LoggerProvider
	config      Config
}

// New builds the log pipeline. A disabled config yields a provider whose
// methods are no-ops.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	p.config = cfg

	ctx := context.Background()
	res, err := sessionResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exp,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
			sdklog.WithMaxQueueSize(cfg.QueueSize),
			sdklog.WithExportMaxBatchSize(min(cfg.QueueSize, 512)),
		)))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// sessionResource describes the run: which build, which map, how many ticks.
func sessionResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace(namespace),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.SessionID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(cfg.SessionID))
	}
	if cfg.MapPath != "" {
		attrs = append(attrs, MapKey.String(cfg.MapPath))
	}
	if cfg.Ticks > 0 {
		attrs = append(attrs, TicksKey.Int(cfg.Ticks))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithProcessRuntimeVersion(),
	)
}

func newExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter))
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, exp)
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{
			otlploghttp.WithEndpoint(cfg.Endpoint),
			otlploghttp.WithTimeout(cfg.BatchTimeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		if cfg.Compress {
			opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}

	if len(out) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return out, nil
}

// LoggerProvider returns the provider for the otelslog bridge, or nil when
// disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter from the global meter provider. The dispatcher,
// loader and race counters use the same provider.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Flush exports buffered records. racesim calls it when a race finishes.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// Config returns the effective configuration, defaults applied.
func (p *Provider) Config() Config {
	return p.config
}
