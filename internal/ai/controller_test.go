package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/internal/vehicle"
	"github.com/tiledrace/racecore/pkg/core"
)

func loopModel() *track.Model {
	m := track.Empty()
	m.Centerline = geo.Build([]core.Vec2{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0}})
	m.Laps = 2
	return m
}

func waypointModel() *track.Model {
	m := track.Empty()
	m.Waypoints = []core.Vec2{{X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 0, Y: 0}}
	m.Laps = 1
	return m
}

func TestChooseMode(t *testing.T) {
	loop := loopModel()
	bare := waypointModel()

	assert.Equal(t, ModeTrack, ChooseMode("auto", loop))
	assert.Equal(t, ModeWaypoint, ChooseMode("auto", bare))
	assert.Equal(t, ModeWaypoint, ChooseMode("Waypoint", loop))
	assert.Equal(t, ModeTrack, ChooseMode("track", loop))
	assert.Equal(t, ModeWaypoint, ChooseMode("track", bare))
}

func TestParams_Rating(t *testing.T) {
	p := DefaultParams()
	p.SpeedRatings = []float64{1.1, 0}

	assert.Equal(t, 1.1, p.Rating(0))
	assert.Equal(t, 0.93, p.Rating(1), "non-positive entries use the spread")
	assert.Equal(t, 0.97, p.Rating(5))
}

func TestStepTrack_AdvancesAlongCenterline(t *testing.T) {
	m := loopModel()
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 0)
	a := c.Spawn("ai-1", core.Pose{Position: core.Vec2{X: 50, Y: -5}}, ModeTrack, 1)

	require.Equal(t, ModeTrack, a.Mode)
	assert.InDelta(t, 0.125, a.T, 1e-9)

	dt := 1.0 / 60
	c.Step(a, dt, core.Circle{}, nil)

	wantT := 0.125 + 300*dt/400
	assert.InDelta(t, wantT, a.T, 1e-9)
	want := m.Centerline.SampleAt(wantT)
	assert.InDelta(t, want.Position.X, a.Car.Position.X, 1e-9)
	assert.InDelta(t, want.Position.Y, a.Car.Position.Y, 1e-9)
}

func TestStepTrack_WrapCountsLapAndFinishes(t *testing.T) {
	m := loopModel()
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 0)
	a := c.Spawn("ai-1", core.Pose{}, ModeTrack, 1)
	a.T, a.Distance = 0.999, 0.999

	u := c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.True(t, u.LapCompleted)
	assert.False(t, u.Finished)
	assert.Equal(t, 2, a.Lap)
	assert.Less(t, a.T, 0.1)

	a.T, a.Distance = 0.999, 1.999
	u = c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.True(t, u.Finished)
	assert.True(t, a.Finished)

	before := a.Car.Position
	c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.Equal(t, before, a.Car.Position, "finished agents stay put")
}

func TestSpawn_BehindStartLineDoesNotCountLap(t *testing.T) {
	m := loopModel()
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 0)
	// on the closing leg, 20px before the start
	a := c.Spawn("ai-1", core.Pose{Position: core.Vec2{X: 0, Y: 20}}, ModeTrack, 1)
	assert.InDelta(t, -0.05, a.Distance, 1e-9)

	for range 10 {
		u := c.Step(a, 1.0/60, core.Circle{}, nil)
		assert.False(t, u.LapCompleted)
	}
	assert.Equal(t, 1, a.Lap)
	assert.Less(t, a.T, 0.5, "crossed the start line")
}

func TestSpawn_TrackModeWithoutCenterlineFallsBack(t *testing.T) {
	c := NewController(DefaultParams(), vehicle.DefaultParams(), waypointModel(), 0)
	a := c.Spawn("ai-1", core.Pose{}, ModeTrack, 1)
	assert.Equal(t, ModeWaypoint, a.Mode)
}

func TestStepWaypoint_TurnRateCapped(t *testing.T) {
	m := track.Empty()
	m.Waypoints = []core.Vec2{{X: 0, Y: 500}}
	p := DefaultParams()
	c := NewController(p, vehicle.DefaultParams(), m, 1)
	a := c.Spawn("ai-1", core.Pose{Heading: 0}, ModeWaypoint, 1)

	dt := 1.0 / 60
	c.Step(a, dt, core.Circle{}, nil)

	assert.InDelta(t, p.MaxTurnRate*dt, a.Car.Heading, 1e-9)
	assert.Greater(t, a.Car.Position.X, 0.0)
}

func TestStepWaypoint_ShortestTurn(t *testing.T) {
	m := track.Empty()
	m.Waypoints = []core.Vec2{{X: -100, Y: -1}}
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 1)
	// heading just below +π; target sits just past -π, so the short way is positive
	a := c.Spawn("ai-1", core.Pose{Heading: math.Pi - 0.01}, ModeWaypoint, 1)

	c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.InDelta(t, -math.Pi+0.01, a.Car.Heading, 1e-4)
}

func TestStepWaypoint_CaptureAdvancesAndWrapsLap(t *testing.T) {
	m := waypointModel()
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 0)
	a := c.Spawn("ai-1", core.Pose{Position: core.Vec2{X: 90, Y: 0}}, ModeWaypoint, 1)

	c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.Equal(t, 1, a.Target)

	a.Target = 3
	a.Car.Position = core.Vec2{X: 0, Y: 10}
	u := c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.Equal(t, 0, a.Target)
	assert.True(t, u.LapCompleted)
	assert.True(t, u.Finished, "one-lap race")
	assert.Equal(t, 2, a.Lap)
}

func TestStepWaypoint_AvoidsObstacle(t *testing.T) {
	m := track.Empty()
	m.Waypoints = []core.Vec2{{X: 1000, Y: 0}}
	m.Obstacles = []core.Obstacle{core.CircleObstacle(60, 10, 10)}
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 1)
	a := c.Spawn("ai-1", core.Pose{}, ModeWaypoint, 1)

	c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.Less(t, a.Car.Heading, 0.0, "steers away from an obstacle below the line")
}

func TestStepWaypoint_CollidesWithPlayer(t *testing.T) {
	m := track.Empty()
	m.Waypoints = []core.Vec2{{X: 1000, Y: 0}}
	c := NewController(DefaultParams(), vehicle.DefaultParams(), m, 1)
	a := c.Spawn("ai-1", core.Pose{}, ModeWaypoint, 1)

	player := core.Circle{Center: core.Vec2{X: 10, Y: 0}, Radius: 18}
	c.Step(a, 1.0/60, player, nil)

	assert.GreaterOrEqual(t, a.Car.Position.Dist(player.Center), 36-1e-9)
}

func TestStepWaypoint_NoWaypointsIdles(t *testing.T) {
	c := NewController(DefaultParams(), vehicle.DefaultParams(), track.Empty(), 1)
	a := c.Spawn("ai-1", core.Pose{Position: core.Vec2{X: 3, Y: 4}}, ModeWaypoint, 1)

	c.Step(a, 1.0/60, core.Circle{}, nil)
	assert.Equal(t, core.Vec2{X: 3, Y: 4}, a.Car.Position)
	assert.Zero(t, a.Car.Speed)
}
