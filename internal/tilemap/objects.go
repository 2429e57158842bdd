package tilemap

import (
	"math"
	"regexp"
	"strconv"

	"github.com/tiledrace/racecore/pkg/core"
)

// Kind is the semantic role of a map object.
type Kind int

const (
	KindUnknown Kind = iota
	KindSpawnPoint
	KindCheckpoint        // generic, ordered by encounter
	KindIndexedCheckpoint // "checkpointN": checkpoint plus AI waypoint
	KindObstacle
	KindTrackLimit
	KindAISpawn
	KindTrackPath
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindSpawnPoint:        "spawn",
	KindCheckpoint:        "checkpoint",
	KindIndexedCheckpoint: "indexed_checkpoint",
	KindObstacle:          "obstacle",
	KindTrackLimit:        "track_limit",
	KindAISpawn:           "ai_spawn",
	KindTrackPath:         "track_path",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

var indexedCheckpoint = regexp.MustCompile(`^checkpoint[_-]?(\d+)$`)

// Classified is an object tagged with its semantic kind.
type Classified struct {
	Kind   Kind
	Index  int // checkpoint index for KindIndexedCheckpoint
	Object Object
}

// Classify tags o by its name, falling back to its type or class.
func Classify(o Object) Classified {
	for _, label := range []string{o.Name, o.Type, o.Class} {
		if k, idx := classifyLabel(normalizeName(label), o); k != KindUnknown {
			return Classified{Kind: k, Index: idx, Object: o}
		}
	}
	return Classified{Kind: KindUnknown, Object: o}
}

func classifyLabel(label string, o Object) (Kind, int) {
	switch label {
	case "":
		return KindUnknown, 0
	case "car":
		return KindSpawnPoint, 0
	case "checkpoint":
		return KindCheckpoint, 0
	case "obstacle":
		return KindObstacle, 0
	case "ai_spawn", "aispawn":
		return KindAISpawn, 0
	case "track_path", "trackpath":
		return KindTrackPath, 0
	case "track_limit", "tracklimit", "wall", "barrier", "limit":
		if o.IsRect() {
			return KindTrackLimit, 0
		}
		return KindUnknown, 0
	}
	if m := indexedCheckpoint.FindStringSubmatch(label); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return KindIndexedCheckpoint, n
		}
	}
	return KindUnknown, 0
}

// origin returns the object's top-left corner. Tile objects are anchored at
// their bottom-left, so their box extends upward from y.
func (o Object) origin() core.Vec2 {
	if o.GID != 0 {
		return core.Vec2{X: o.X, Y: o.Y - o.Height}
	}
	return core.Vec2{X: o.X, Y: o.Y}
}

// anchor is the point the object rotates about.
func (o Object) anchor() core.Vec2 {
	return core.Vec2{X: o.X, Y: o.Y}
}

func (o Object) rotation() float64 {
	return o.Rotation * math.Pi / 180
}

// local maps an offset relative to the object frame into the world,
// applying the object's rotation about its anchor.
func (o Object) local(p core.Vec2) core.Vec2 {
	a := o.anchor()
	world := o.origin().Add(p)
	return a.Add(world.Sub(a).Rotate(o.rotation()))
}

// Center returns the world-space center of the object's box.
func (o Object) Center() core.Vec2 {
	return o.local(core.Vec2{X: o.Width / 2, Y: o.Height / 2})
}

// PolylinePoints returns the polyline (or polygon) vertices in world space.
func (o Object) PolylinePoints() []core.Vec2 {
	pts := o.Polyline
	if len(pts) == 0 {
		pts = o.Polygon
	}
	out := make([]core.Vec2, 0, len(pts))
	a := o.anchor()
	for _, p := range pts {
		w := a.Add(core.Vec2{X: p.X, Y: p.Y}.Rotate(o.rotation()))
		out = append(out, w)
	}
	return out
}

// CheckpointSegment returns the gate line of a checkpoint object: the ends of
// its polyline, or else the long axis of its box through the center.
func (o Object) CheckpointSegment() (core.Segment, bool) {
	if pts := o.PolylinePoints(); len(pts) >= 2 {
		seg := core.Segment{A: pts[0], B: pts[len(pts)-1]}
		if seg.A == seg.B {
			return core.Segment{}, false
		}
		return seg, true
	}
	if o.Width <= 0 && o.Height <= 0 {
		return core.Segment{}, false
	}
	var a, b core.Vec2
	if o.Width >= o.Height {
		a = core.Vec2{X: 0, Y: o.Height / 2}
		b = core.Vec2{X: o.Width, Y: o.Height / 2}
	} else {
		a = core.Vec2{X: o.Width / 2, Y: 0}
		b = core.Vec2{X: o.Width / 2, Y: o.Height}
	}
	return core.Segment{A: o.local(a), B: o.local(b)}, true
}

// Heading returns the object's facing in radians: a "heading" property in
// degrees when present, else its rotation.
func (o Object) Heading() float64 {
	if deg, ok := o.Properties.Float("heading"); ok {
		return core.WrapAngle(deg * math.Pi / 180)
	}
	return core.WrapAngle(o.rotation())
}

// Pose returns the object's center and heading. Point objects sit at x,y.
func (o Object) Pose() core.Pose {
	pos := o.Center()
	if o.Point || (o.Width == 0 && o.Height == 0) {
		pos = o.anchor()
	}
	return core.Pose{Position: pos, Heading: o.Heading()}
}
