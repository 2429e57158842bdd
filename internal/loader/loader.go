// Package loader is the asynchronous boundary of track loading. It fetches a
// map document, parses it off to the side, resolves tileset atlases
// concurrently and publishes the finished model in one swap.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/tiledrace/racecore/internal/cache"
	"github.com/tiledrace/racecore/internal/tilemap"
	"github.com/tiledrace/racecore/internal/track"
)

var (
	// ErrSuperseded is returned when a newer load was published first.
	ErrSuperseded = errors.New("load superseded by a newer map")
	// ErrFetch wraps failures reading the map document.
	ErrFetch = errors.New("fetching map")
)

// Fetcher reads a map document.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, path string) ([]byte, error) { return f(ctx, path) }

// Logger is the logging surface the loader needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config wires a Loader.
type Config struct {
	Store    *track.Store
	Fetcher  Fetcher
	Resolver cache.Resolver // optional; without it atlases stay unresolved
	Images   *cache.ImageCache
	Options  tilemap.Options
	Logger   Logger
	// Concurrency caps parallel atlas resolution; 0 means 4.
	Concurrency int
}

// Loader loads maps into a track.Store.
type Loader struct {
	store       *track.Store
	fetcher     Fetcher
	resolver    cache.Resolver
	images      *cache.ImageCache
	opts        tilemap.Options
	logger      Logger
	concurrency int

	loads   metric.Int64Counter
	skipped metric.Int64Counter
}

// Outcome is the result of an asynchronous load.
type Outcome struct {
	Path    string
	Model   *track.Model
	Skipped []tilemap.SkippedLayer
	Err     error
}

// New creates a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Store == nil {
		return nil, errors.New("loader: store is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("loader: fetcher is required")
	}
	l := &Loader{
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		resolver:    cfg.Resolver,
		images:      cfg.Images,
		opts:        cfg.Options,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
	if l.images == nil {
		l.images = cache.NewImageCache()
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.concurrency <= 0 {
		l.concurrency = 4
	}

	m := meter()
	var err error
	l.loads, err = m.Int64Counter(
		"loader.loads",
		metric.WithDescription("Map loads by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loads counter: %w", err)
	}
	l.skipped, err = m.Int64Counter(
		"loader.layers.skipped",
		metric.WithDescription("Tile layers skipped during decoding"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	return l, nil
}

// Load fetches, parses and publishes the map at mapPath. On any error the
// store keeps its current model.
func (l *Loader) Load(ctx context.Context, mapPath string) (Outcome, error) {
	out := Outcome{Path: mapPath}
	gen := l.store.Begin()

	data, err := l.fetcher.Fetch(ctx, mapPath)
	if err != nil {
		return l.fail(ctx, out, "fetch_error", fmt.Errorf("%w %s: %v", ErrFetch, mapPath, err))
	}

	opts := l.opts
	if opts.Name == "" {
		opts.Name = mapName(mapPath)
	}
	res, err := tilemap.Parse(data, l.store.Current(), opts)
	if err != nil {
		return l.fail(ctx, out, "parse_error", fmt.Errorf("parsing %s: %w", mapPath, err))
	}
	out.Skipped = res.Skipped
	for _, s := range res.Skipped {
		l.logger.Warn("skipped tile layer", "map", mapPath, "layer", s.Name, "error", s.Err)
	}
	if n := len(res.Skipped); n > 0 {
		l.skipped.Add(ctx, int64(n))
	}

	if l.store.Superseded(gen) {
		return l.fail(ctx, out, "superseded", ErrSuperseded)
	}

	if err := l.resolveImages(ctx, mapPath, res.Model); err != nil {
		return l.fail(ctx, out, "canceled", err)
	}
	hits, misses := l.images.Stats()
	l.logger.Debug("tileset images", "map", mapPath, "cached", l.images.Len(), "hits", hits, "misses", misses)

	if !l.store.Publish(res.Model, gen) {
		return l.fail(ctx, out, "superseded", ErrSuperseded)
	}
	out.Model = res.Model
	l.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	l.logger.Info("track loaded",
		"map", mapPath,
		"name", res.Model.Name,
		"generation", gen,
		"layers", len(res.Model.Layers),
		"checkpoints", len(res.Model.Checkpoints),
		"obstacles", len(res.Model.Obstacles),
		"laps", res.Model.Laps,
		"unknownObjects", res.Unknown,
	)
	return out, nil
}

// LoadAsync runs Load in a goroutine. The channel receives exactly one Outcome.
func (l *Loader) LoadAsync(ctx context.Context, mapPath string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		out, err := l.Load(ctx, mapPath)
		out.Err = err
		ch <- out
		close(ch)
	}()
	return ch
}

func (l *Loader) fail(ctx context.Context, out Outcome, outcome string, err error) (Outcome, error) {
	l.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if errors.Is(err, ErrSuperseded) {
		l.logger.Debug("discarding superseded load", "map", out.Path)
	} else {
		l.logger.Warn("map load failed", "map", out.Path, "error", err)
	}
	out.Err = err
	return out, err
}

// resolveImages attaches atlases to the model's tilesets. Missing or broken
// images leave the tileset without an atlas; only cancellation fails the load.
func (l *Loader) resolveImages(ctx context.Context, mapPath string, m *track.Model) error {
	if l.resolver == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i := range m.Tilesets {
		ts := &m.Tilesets[i]
		if ts.ImagePath == "" {
			continue
		}
		src := imagePath(mapPath, ts.ImagePath)
		g.Go(func() error {
			img, err := l.images.Resolve(gctx, src, l.resolver)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.logger.Warn("tileset image unavailable", "tileset", ts.Name, "image", src, "error", err)
				return nil
			}
			if img == nil {
				l.logger.Debug("tileset image absent", "tileset", ts.Name, "image", src)
				return nil
			}
			ts.Image = img
			return nil
		})
	}
	return g.Wait()
}

// imagePath resolves a tileset image reference against the map's location.
func imagePath(mapPath, ref string) string {
	if path.IsAbs(ref) || strings.Contains(ref, "://") {
		return ref
	}
	return path.Join(path.Dir(mapPath), ref)
}

// mapName derives a display name from the map path.
func mapName(mapPath string) string {
	base := path.Base(mapPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
