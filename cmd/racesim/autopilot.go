package main

import (
	"math"

	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/internal/vehicle"
	"github.com/tiledrace/racecore/pkg/core"
)

const (
	lookAhead     = 140.0       // px along the centerline
	fullLockAngle = math.Pi / 4 // heading error that saturates steering
)

// autopilot drives the player toward a point ahead on the centerline, or
// toward the next checkpoint on tracks without one.
func autopilot(m *track.Model, v core.VehicleView) vehicle.Input {
	target, ok := autopilotTarget(m, v)
	if !ok {
		return vehicle.Input{Throttle: 1}
	}
	to := target.Sub(v.Pose.Position)
	if to.LengthSq() < 1e-9 {
		return vehicle.Input{Throttle: 1}
	}
	errAngle := core.AngleDelta(v.Pose.Heading, to.Heading())
	in := vehicle.Input{
		Steer:    core.ClampF(errAngle/fullLockAngle, -1, 1),
		Throttle: 1,
	}
	// ease off in hairpins
	if math.Abs(errAngle) > math.Pi/2 {
		in.Throttle = 0.4
	}
	return in
}

func autopilotTarget(m *track.Model, v core.VehicleView) (core.Vec2, bool) {
	if m.HasCenterline() && m.Centerline.TotalLength > 0 {
		t := m.Centerline.ProjectNearest(v.Pose.Position)
		ahead := geo.Wrap(t + lookAhead/m.Centerline.TotalLength)
		return m.Centerline.SampleAt(ahead).Position, true
	}
	if v.Next >= 0 && v.Next < len(m.Checkpoints) {
		return m.Checkpoints[v.Next].Midpoint(), true
	}
	return core.Vec2{}, false
}
