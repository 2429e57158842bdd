// Package ai drives non-player cars, either along the centerline or by seeking
// waypoints with obstacle and agent avoidance.
package ai

import (
	"strings"

	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/internal/vehicle"
	"github.com/tiledrace/racecore/pkg/core"
)

// Mode is an agent's drive mode, fixed at spawn.
type Mode int

const (
	// ModeTrack derives the pose from progress along the centerline.
	ModeTrack Mode = iota
	// ModeWaypoint steers toward waypoints with avoidance.
	ModeWaypoint
)

func (m Mode) String() string {
	if m == ModeTrack {
		return "track"
	}
	return "waypoint"
}

// ChooseMode resolves a configured mode name against the track. "auto" and
// unknown names pick track mode when a centerline exists. Track mode without a
// centerline falls back to waypoints.
func ChooseMode(name string, m *track.Model) Mode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "waypoint", "waypoints":
		return ModeWaypoint
	default:
		if m.HasCenterline() {
			return ModeTrack
		}
		return ModeWaypoint
	}
}

// Params tune the controller.
type Params struct {
	BaseSpeed        float64 // px/s before rating and surface factor
	AvoidRadius      float64 // obstacle repulsion range
	AgentAvoidRadius float64 // vehicle repulsion range
	AgentWeight      float64
	PlayerWeight     float64
	MaxTurnRate      float64 // rad/s
	CaptureRadius    float64 // waypoint reach distance
	SpeedRatings     []float64
}

// DefaultParams returns the stock AI tuning.
func DefaultParams() Params {
	return Params{
		BaseSpeed:        300,
		AvoidRadius:      90,
		AgentAvoidRadius: 55,
		AgentWeight:      0.9,
		PlayerWeight:     0.6,
		MaxTurnRate:      3.2,
		CaptureRadius:    48,
	}
}

// Rating returns the speed rating of agent i: the configured value when
// present, else a fixed spread around 0.93.
func (p Params) Rating(i int) float64 {
	if i >= 0 && i < len(p.SpeedRatings) && p.SpeedRatings[i] > 0 {
		return p.SpeedRatings[i]
	}
	spread := [...]float64{0.97, 0.93, 0.9, 0.95, 0.88}
	return spread[i%len(spread)]
}

// Agent is one AI car.
type Agent struct {
	ID          string
	Mode        Mode
	Car         vehicle.Vehicle
	T           float64 // centerline progress in [0,1), track mode only
	Distance    float64 // laps driven from the start line, track mode only
	Target      int     // waypoint index, waypoint mode only
	Lap         int
	Finished    bool
	FinishTime  float64
	SpeedRating float64
}

// Update reports lap events from one Step.
type Update struct {
	LapCompleted bool
	Finished     bool
}

// Controller steps agents on one track.
type Controller struct {
	params  Params
	vehicle vehicle.Params
	model   *track.Model
	laps    int
	origin  float64 // centerline progress of the start line
}

// NewController creates a controller for model. laps is the race length.
func NewController(p Params, vp vehicle.Params, model *track.Model, laps int) *Controller {
	if model == nil {
		model = track.Empty()
	}
	if laps <= 0 {
		laps = model.Laps
	}
	c := &Controller{params: p, vehicle: vp, model: model, laps: laps}
	if model.HasCenterline() {
		c.origin = model.Centerline.ProjectNearest(model.Spawn.Position)
	}
	return c
}

// Spawn creates an agent at pose. Track-mode agents snap to the nearest point
// on the centerline; one placed within half a lap behind the start line begins
// with negative Distance so crossing the line does not count a lap.
func (c *Controller) Spawn(id string, pose core.Pose, mode Mode, rating float64) *Agent {
	if mode == ModeTrack && !c.model.HasCenterline() {
		mode = ModeWaypoint
	}
	a := &Agent{
		ID:          id,
		Mode:        mode,
		Car:         vehicle.Vehicle{Position: pose.Position, Heading: pose.Heading, Radius: c.vehicle.Radius},
		Lap:         1,
		SpeedRating: rating,
	}
	if mode == ModeTrack {
		a.T = c.model.Centerline.ProjectNearest(pose.Position)
		a.Distance = geo.Wrap(a.T - c.origin)
		if a.Distance > 0.5 {
			a.Distance--
		}
		s := c.model.Centerline.SampleAt(a.T)
		a.Car.Position, a.Car.Heading = s.Position, s.Heading
	}
	return a
}

// Step advances a by one tick. player is the player's committed collision
// circle; others are the other agents' positions at the start of the AI phase.
func (c *Controller) Step(a *Agent, dt float64, player core.Circle, others []core.Circle) Update {
	if a.Finished {
		a.Car.Speed = 0
		return Update{}
	}
	dt = c.vehicle.ClampDt(dt)
	if dt == 0 {
		return Update{}
	}
	if a.Mode == ModeTrack {
		return c.stepTrack(a, dt)
	}
	return c.stepWaypoint(a, dt, player, others)
}

func (c *Controller) surfaceFactor(p core.Vec2) float64 {
	return c.model.SurfaceAt(p).SpeedFactor(c.vehicle.GroundFactor)
}

func (c *Controller) stepTrack(a *Agent, dt float64) Update {
	path := c.model.Centerline
	if path.TotalLength <= 0 {
		return Update{}
	}
	speed := c.params.BaseSpeed * a.SpeedRating * c.surfaceFactor(a.Car.Position)
	a.Car.Speed = speed

	var u Update
	delta := speed * dt / path.TotalLength
	a.T = geo.Wrap(a.T + delta)
	a.Distance += delta
	if a.Distance >= float64(a.Lap) {
		u = c.completeLap(a)
	}
	s := path.SampleAt(a.T)
	a.Car.Position, a.Car.Heading = s.Position, s.Heading
	return u
}

func (c *Controller) stepWaypoint(a *Agent, dt float64, player core.Circle, others []core.Circle) Update {
	wps := c.model.Waypoints
	if len(wps) == 0 {
		a.Car.Speed = 0
		return Update{}
	}
	if a.Target < 0 || a.Target >= len(wps) {
		a.Target = 0
	}
	pos := a.Car.Position
	target := wps[a.Target]

	dir := target.Sub(pos).Normalize().Add(c.avoidance(a, player, others))
	if dir.LengthSq() > 0 {
		delta := core.AngleDelta(a.Car.Heading, dir.Heading())
		limit := c.params.MaxTurnRate * dt
		a.Car.Heading = core.WrapAngle(a.Car.Heading + core.ClampF(delta, -limit, limit))
	}

	a.Car.Speed = c.params.BaseSpeed * a.SpeedRating * c.surfaceFactor(pos)
	a.Car.Position = pos.Add(core.FromHeading(a.Car.Heading).Scale(a.Car.Speed * dt))
	vehicle.Collide(&a.Car, c.vehicle, vehicle.Environment{
		Obstacles: c.model.Obstacles,
		Others:    []core.Circle{player},
	})

	if a.Car.Position.Dist(target) > c.params.CaptureRadius {
		return Update{}
	}
	a.Target++
	if a.Target < len(wps) {
		return Update{}
	}
	a.Target = 0
	return c.completeLap(a)
}

// avoidance sums repulsion from nearby obstacles, other agents and the player.
func (c *Controller) avoidance(a *Agent, player core.Circle, others []core.Circle) core.Vec2 {
	pos := a.Car.Position
	var sum core.Vec2

	if r := c.params.AvoidRadius; r > 0 {
		for _, o := range c.model.Obstacles {
			sum = sum.Add(repel(pos, o.ClosestPoint(pos), r, 1))
		}
	}
	if r := c.params.AgentAvoidRadius; r > 0 {
		for _, o := range others {
			sum = sum.Add(repel(pos, o.Center, r, c.params.AgentWeight))
		}
		if player.Radius > 0 {
			sum = sum.Add(repel(pos, player.Center, r, c.params.PlayerWeight))
		}
	}
	return sum
}

// repel returns a push away from q scaled by (1 - d/radius) and weight.
// Coincident points contribute nothing.
func repel(pos, q core.Vec2, radius, weight float64) core.Vec2 {
	d := pos.Dist(q)
	if d >= radius || d == 0 {
		return core.Vec2{}
	}
	return pos.Sub(q).Normalize().Scale((1 - d/radius) * weight)
}

func (c *Controller) completeLap(a *Agent) Update {
	a.Lap++
	u := Update{LapCompleted: true}
	if a.Lap > c.laps {
		a.Finished = true
		a.Car.Speed = 0
		u.Finished = true
	}
	return u
}
