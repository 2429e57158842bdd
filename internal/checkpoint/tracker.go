// Package checkpoint tracks ordered checkpoint progress and laps for a vehicle.
package checkpoint

import (
	"github.com/tiledrace/racecore/internal/collision"
	"github.com/tiledrace/racecore/pkg/core"
)

// DefaultRespawnOffset is how far behind a checkpoint a skipping car is placed.
const DefaultRespawnOffset = 40

// Progress is one vehicle's position in the checkpoint sequence.
type Progress struct {
	Next       int // next required checkpoint index
	LastPassed int // -1 until the first checkpoint is passed
	Lap        int // starts at 1
}

// NewProgress returns the progress of a car on the grid.
func NewProgress() Progress {
	return Progress{Next: 0, LastPassed: -1, Lap: 1}
}

// Outcome is the result of evaluating one movement segment.
type Outcome int

const (
	// None means no checkpoint was crossed, or a passed one was re-crossed.
	None Outcome = iota
	// Passed means the required checkpoint was crossed.
	Passed
	// LapCompleted means the last checkpoint was crossed and the lap advanced.
	LapCompleted
	// Skipped means a checkpoint ahead of the required one was crossed.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case LapCompleted:
		return "lap_completed"
	case Skipped:
		return "skipped"
	default:
		return "none"
	}
}

// Crossing describes what happened on a tick.
type Crossing struct {
	Outcome Outcome
	Index   int // crossed checkpoint, -1 for None without a crossing
	Respawn core.Pose
}

// Tracker evaluates checkpoint crossings against one track's checkpoint list.
// It holds no per-vehicle state.
type Tracker struct {
	checkpoints   []core.Segment
	spawn         core.Pose
	respawnOffset float64
}

// NewTracker creates a tracker. spawn is used for respawns before the first
// checkpoint has been passed.
func NewTracker(checkpoints []core.Segment, spawn core.Pose, respawnOffset float64) *Tracker {
	if respawnOffset <= 0 {
		respawnOffset = DefaultRespawnOffset
	}
	return &Tracker{checkpoints: checkpoints, spawn: spawn, respawnOffset: respawnOffset}
}

// Count returns the number of checkpoints.
func (t *Tracker) Count() int { return len(t.checkpoints) }

// Evaluate tests the movement from -> to against every checkpoint in index
// order. The first crossed checkpoint decides the outcome; p is updated in
// place for Passed and LapCompleted and left unchanged otherwise.
func (t *Tracker) Evaluate(p *Progress, from, to core.Vec2) Crossing {
	n := len(t.checkpoints)
	if n == 0 || from == to {
		return Crossing{Outcome: None, Index: -1}
	}
	for i, cp := range t.checkpoints {
		if !collision.MoveCrosses(from, to, cp.A, cp.B) {
			continue
		}
		switch {
		case i == p.Next:
			p.LastPassed = i
			p.Next = (i + 1) % n
			if p.Next == 0 {
				p.Lap++
				return Crossing{Outcome: LapCompleted, Index: i}
			}
			return Crossing{Outcome: Passed, Index: i}
		case i > p.Next:
			return Crossing{Outcome: Skipped, Index: i, Respawn: t.RespawnPose(*p)}
		default:
			return Crossing{Outcome: None, Index: i}
		}
	}
	return Crossing{Outcome: None, Index: -1}
}

// RespawnPose returns where a skipping car is put back: behind the last passed
// checkpoint, facing the midpoint of the one after it.
func (t *Tracker) RespawnPose(p Progress) core.Pose {
	n := len(t.checkpoints)
	if p.LastPassed < 0 || p.LastPassed >= n {
		return t.spawn
	}
	last := t.checkpoints[p.LastPassed]
	mid := last.Midpoint()
	target := t.checkpoints[(p.LastPassed+1)%n].Midpoint()

	normal := last.Direction().Perp().Normalize()
	if normal.Dot(target.Sub(mid)) > 0 {
		normal = normal.Scale(-1)
	}
	pos := mid.Add(normal.Scale(t.respawnOffset))

	heading := target.Sub(pos).Heading()
	if target == pos {
		heading = t.spawn.Heading
	}
	return core.Pose{Position: pos, Heading: heading}
}
