package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider is a function that returns dynamic context attributes.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds dynamic context attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}

// RaceContext tracks the race a session is driving so log records can carry
// it. It is updated by the frame loop and read from any goroutine that logs,
// including code holding the race lock.
type RaceContext struct {
	mu    sync.RWMutex
	id    string
	phase string
	tick  uint64
}

// Set records the current race state.
func (c *RaceContext) Set(id, phase string, tick uint64) {
	c.mu.Lock()
	c.id, c.phase, c.tick = id, phase, tick
	c.mu.Unlock()
}

// Provider returns a ContextProvider emitting race.id, race.phase and
// race.tick. Nothing is added before the first race starts.
func (c *RaceContext) Provider() ContextProvider {
	return func() []slog.Attr {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.id == "" {
			return nil
		}
		return []slog.Attr{
			slog.Group("race",
				slog.String("id", c.id),
				slog.String("phase", c.phase),
				slog.Uint64("tick", c.tick),
			),
		}
	}
}
