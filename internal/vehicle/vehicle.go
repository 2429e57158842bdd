// Package vehicle integrates throttle and steering into vehicle motion. The
// same model drives the player and free-steering AI cars.
package vehicle

import (
	"math"

	"github.com/tiledrace/racecore/internal/collision"
	"github.com/tiledrace/racecore/pkg/core"
)

// Params are the tuning constants of the motion model.
type Params struct {
	MaxSpeed        float64 // px/s on road
	Acceleration    float64 // px/s²
	Braking         float64 // px/s², applied while throttle is negative and moving forward
	Drag            float64 // exponential decay rate with no throttle, 1/s
	TurnRateLow     float64 // rad/s at standstill
	TurnRateHigh    float64 // rad/s at max speed
	SteerDeadzone   float64 // px/s; steering is ignored below this speed
	MaxDt           float64 // s
	GroundFactor    float64 // max-speed multiplier on ground tiles
	ObstacleDamping float64 // speed multiplier per obstacle hit
	VehicleDamping  float64 // speed multiplier per vehicle hit
	Radius          float64
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		MaxSpeed:        420,
		Acceleration:    260,
		Braking:         620,
		Drag:            1.4,
		TurnRateLow:     1.6,
		TurnRateHigh:    3.0,
		SteerDeadzone:   6,
		MaxDt:           1.0 / 30,
		GroundFactor:    0.55,
		ObstacleDamping: 0.5,
		VehicleDamping:  0.75,
		Radius:          18,
	}
}

// Input is one tick of driver control, each axis in [-1, 1].
type Input struct {
	Steer    float64
	Throttle float64
}

// Clamp limits both axes to [-1, 1].
func (in Input) Clamp() Input {
	return Input{Steer: core.ClampF(in.Steer, -1, 1), Throttle: core.ClampF(in.Throttle, -1, 1)}
}

// Vehicle is the mutable motion state of one car.
type Vehicle struct {
	Position core.Vec2
	Heading  float64
	Speed    float64
	Radius   float64
}

// Circle returns the vehicle's collision circle.
func (v *Vehicle) Circle() core.Circle {
	return core.Circle{Center: v.Position, Radius: v.Radius}
}

// SurfaceLookup classifies the ground at a position.
type SurfaceLookup interface {
	SurfaceAt(p core.Vec2) core.Surface
}

// Environment is what a vehicle collides with during one tick. Others holds
// the committed positions of the other vehicles.
type Environment struct {
	Surface   SurfaceLookup
	Obstacles []core.Obstacle
	Others    []core.Circle
}

// StepResult reports what happened during Integrate.
type StepResult struct {
	From         core.Vec2 // position before the step
	To           core.Vec2 // position after collisions
	Surface      core.Surface
	ObstacleHits int
	VehicleHits  int
}

// ClampDt bounds a frame delta to [0, p.MaxDt].
func (p Params) ClampDt(dt float64) float64 {
	if dt <= 0 || math.IsNaN(dt) {
		return 0
	}
	if p.MaxDt > 0 && dt > p.MaxDt {
		return p.MaxDt
	}
	return dt
}

// SurfaceFactor returns the max-speed multiplier at pos.
func (p Params) SurfaceFactor(env Environment, pos core.Vec2) (core.Surface, float64) {
	if env.Surface == nil {
		return core.SurfaceNone, 1
	}
	s := env.Surface.SurfaceAt(pos)
	return s, s.SpeedFactor(p.GroundFactor)
}

// Integrate advances v by one tick.
func Integrate(v *Vehicle, in Input, dt float64, p Params, env Environment) StepResult {
	dt = p.ClampDt(dt)
	in = in.Clamp()
	res := StepResult{From: v.Position}

	surface, factor := p.SurfaceFactor(env, v.Position)
	res.Surface = surface
	top := p.MaxSpeed * factor

	switch {
	case in.Throttle > 0:
		v.Speed += p.Acceleration * in.Throttle * dt
	case in.Throttle < 0 && v.Speed > 0:
		v.Speed += p.Braking * in.Throttle * dt
	case in.Throttle < 0:
		v.Speed += p.Acceleration * in.Throttle * dt
	default:
		v.Speed *= math.Exp(-p.Drag * dt)
	}
	v.Speed = core.ClampF(v.Speed, -0.5*top, top)

	if math.Abs(v.Speed) > p.SteerDeadzone && in.Steer != 0 {
		frac := 0.0
		if p.MaxSpeed > 0 {
			frac = core.ClampF(math.Abs(v.Speed)/p.MaxSpeed, 0, 1)
		}
		rate := core.Lerp(p.TurnRateLow, p.TurnRateHigh, frac)
		dir := 1.0
		if v.Speed < 0 {
			dir = -1
		}
		v.Heading = core.WrapAngle(v.Heading + in.Steer*rate*dt*dir)
	}

	v.Position = v.Position.Add(core.FromHeading(v.Heading).Scale(v.Speed * dt))

	res.ObstacleHits, res.VehicleHits = Collide(v, p, env)
	res.To = v.Position
	return res
}

// Collide pushes v out of every overlapping obstacle and vehicle. Each overlap
// is resolved on its own, in order, and damps speed once.
func Collide(v *Vehicle, p Params, env Environment) (obstacleHits, vehicleHits int) {
	for _, o := range env.Obstacles {
		if mtv, ok := collision.ResolveObstacle(v.Position, v.Radius, o); ok {
			v.Position = v.Position.Add(mtv)
			v.Speed *= p.ObstacleDamping
			obstacleHits++
		}
	}
	for _, other := range env.Others {
		if mtv, ok := collision.ResolveCircleCircle(v.Position, other.Center, v.Radius+other.Radius); ok {
			v.Position = v.Position.Add(mtv)
			v.Speed *= p.VehicleDamping
			vehicleHits++
		}
	}
	return obstacleHits, vehicleHits
}
