package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledrace/racecore/internal/dispatcher"
	"github.com/tiledrace/racecore/internal/loader"
	"github.com/tiledrace/racecore/internal/race"
	"github.com/tiledrace/racecore/internal/track"
)

const testMap = `{
  "width": 4, "height": 1, "tilewidth": 64, "tileheight": 64,
  "properties": [{"name": "name", "value": "Pit Lane"}, {"name": "laps", "value": 2}],
  "layers": [
    {"type": "objectgroup", "name": "gameplay", "objects": [
      {"name": "car", "x": 10, "y": 32},
      {"name": "checkpoint0", "x": 100, "y": 0, "width": 4, "height": 64},
      {"name": "checkpoint1", "x": 200, "y": 0, "width": 4, "height": 64}
    ]}
  ]
}`

type fixture struct {
	d     *dispatcher.Dispatcher
	race  *race.Race
	store *track.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := track.NewStore()
	l, err := loader.New(loader.Config{
		Store: store,
		Fetcher: loader.FetchFunc(func(ctx context.Context, path string) ([]byte, error) {
			if path == "maps/pit lane.json" {
				return []byte(testMap), nil
			}
			return nil, errors.New("no such file")
		}),
		Logger: logger,
	})
	require.NoError(t, err)

	cfg := race.DefaultConfig()
	cfg.AICount = 1
	cfg.Countdown = 0
	r, err := race.New(cfg, logger)
	require.NoError(t, err)

	d, err := dispatcher.New(logger)
	require.NoError(t, err)

	NewManager(context.Background(), Dependencies{Race: r, Store: store, Loader: l}).RegisterHandlers(d)
	return &fixture{d: d, race: r, store: store}
}

func TestRegisterHandlers(t *testing.T) {
	f := newFixture(t)
	defer f.d.Close()

	for _, cmd := range []string{CmdMapLoad, CmdRaceStart, CmdCountdownDone, CmdInput, CmdStatus} {
		assert.True(t, f.d.HasHandler(cmd), cmd)
	}
}

func TestMapLoadThenRace(t *testing.T) {
	f := newFixture(t)

	result, err := f.d.DispatchLine(`:MAP:LOAD: "maps/pit lane.json"`)
	require.NoError(t, err)
	assert.Equal(t, "queued", result)
	f.d.Close() // drains the load worker

	require.Equal(t, "Pit Lane", f.store.Current().Name)

	id, err := f.d.DispatchLine(":RACE:START:")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, race.PhaseCountdown, f.race.Phase())

	phase, err := f.d.DispatchLine(":COUNTDOWN:DONE:")
	require.NoError(t, err)
	assert.Equal(t, "running", phase)

	_, err = f.d.DispatchLine(":INPUT: 0 1")
	require.NoError(t, err)
	for range 30 {
		f.race.Step(1.0 / 60)
	}

	raw, err := f.d.DispatchLine(":STATUS:")
	require.NoError(t, err)

	var snap struct {
		Track    string `json:"track"`
		Phase    string `json:"phase"`
		Laps     int    `json:"laps"`
		Vehicles []struct {
			ID    string
			Speed float64
		} `json:"vehicles"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw.(string)), &snap))
	assert.Equal(t, "Pit Lane", snap.Track)
	assert.Equal(t, "running", snap.Phase)
	assert.Equal(t, 2, snap.Laps)
	require.Len(t, snap.Vehicles, 2)
	assert.Equal(t, race.PlayerID, snap.Vehicles[0].ID)
	assert.Greater(t, snap.Vehicles[0].Speed, 0.0)
}

func TestInput_BadArgs(t *testing.T) {
	f := newFixture(t)
	defer f.d.Close()

	tests := []string{
		":INPUT:",
		":INPUT: 0.5",
		":INPUT: left 1",
		":INPUT: 0 full",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			_, err := f.d.DispatchLine(line)
			assert.ErrorIs(t, err, ErrBadArgs)
		})
	}
}

func TestMapLoad_AsyncFailureKeepsTrack(t *testing.T) {
	f := newFixture(t)
	before := f.store.Current()

	_, err := f.d.DispatchLine(":MAP:LOAD: missing.json")
	require.NoError(t, err, "queued loads report failures through the log")
	f.d.Close()

	assert.Same(t, before, f.store.Current())
}

func TestMapLoad_RequiresPath(t *testing.T) {
	m := NewManager(context.Background(), Dependencies{})
	_, err := m.handleMapLoad(dispatcher.Event{Command: CmdMapLoad})
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "a b.json", trimQuotes(` "a b.json" `))
	assert.Equal(t, "x.json", trimQuotes(`'x.json'`))
	assert.Equal(t, "x.json", trimQuotes("x.json"))
}
