// Package control binds driver commands to the race, the loader and the
// track store.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/tiledrace/racecore/internal/dispatcher"
	"github.com/tiledrace/racecore/internal/loader"
	"github.com/tiledrace/racecore/internal/race"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/internal/vehicle"
)

const (
	CmdMapLoad       = ":MAP:LOAD:"
	CmdRaceStart     = ":RACE:START:"
	CmdCountdownDone = ":COUNTDOWN:DONE:"
	CmdInput         = ":INPUT:"
	CmdStatus        = ":STATUS:"
)

// ErrBadArgs is returned when a command's arguments cannot be used.
var ErrBadArgs = errors.New("bad command arguments")

// MapLoader loads a map into the store.
type MapLoader interface {
	Load(ctx context.Context, path string) (loader.Outcome, error)
}

// Dependencies holds everything the handlers act on.
type Dependencies struct {
	Race   *race.Race
	Store  *track.Store
	Loader MapLoader
}

// Manager owns the command handlers.
type Manager struct {
	ctx  context.Context
	deps Dependencies
}

// NewManager creates a manager. ctx bounds queued map loads.
func NewManager(ctx context.Context, deps Dependencies) *Manager {
	return &Manager{ctx: ctx, deps: deps}
}

// RegisterHandlers registers every command with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// map loads run on their own worker so the frame loop never waits on I/O
	d.Register(CmdMapLoad, m.handleMapLoad, dispatcher.Buffered(8), dispatcher.Blocking(), dispatcher.Logged())

	d.Register(CmdRaceStart, m.handleRaceStart, dispatcher.Logged())
	d.Register(CmdCountdownDone, m.handleCountdownDone, dispatcher.Logged())
	d.Register(CmdInput, m.handleInput)
	d.Register(CmdStatus, m.handleStatus)
}

func (m *Manager) handleMapLoad(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%w: %s needs a map path", ErrBadArgs, e.Command)
	}
	path := trimQuotes(strings.Join(e.Args, " "))
	out, err := m.deps.Loader.Load(m.ctx, path)
	if err != nil {
		return nil, err
	}
	return out.Model.Name, nil
}

func (m *Manager) handleRaceStart(e dispatcher.Event) (any, error) {
	if err := m.deps.Race.Start(m.deps.Store.Current()); err != nil {
		return nil, err
	}
	return m.deps.Race.ID(), nil
}

func (m *Manager) handleCountdownDone(e dispatcher.Event) (any, error) {
	m.deps.Race.CountdownElapsed()
	return m.deps.Race.Phase().String(), nil
}

// handleInput takes "<steer> <throttle>", each in [-1, 1].
func (m *Manager) handleInput(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("%w: %s wants steer and throttle, got %d values", ErrBadArgs, e.Command, len(e.Args))
	}
	steer, err := cast.ToFloat64E(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: steer %q: %v", ErrBadArgs, e.Args[0], err)
	}
	throttle, err := cast.ToFloat64E(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: throttle %q: %v", ErrBadArgs, e.Args[1], err)
	}
	m.deps.Race.SetInput(vehicle.Input{Steer: steer, Throttle: throttle})
	return nil, nil
}

// handleStatus returns the race snapshot as JSON.
func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	b, err := json.Marshal(m.deps.Race.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return string(b), nil
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
