// Package geo turns a centerline polyline into an arc-length parametrized path.
package geo

import (
	"math"

	"github.com/tiledrace/racecore/pkg/core"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Segment is one non-degenerate span of the centerline.
type Segment struct {
	Start  core.Vec2
	End    core.Vec2
	Dir    core.Vec2 // unit direction Start -> End
	Length float64
	// Offset is the cumulative path length at Start.
	Offset float64
}

// Path is a piecewise-linear centerline. The zero value is an empty path.
type Path struct {
	Segments    []Segment
	TotalLength float64
	line        geom.LineString
	origin      core.Vec2
}

// Build constructs the path from an ordered point list, dropping zero-length spans.
func Build(points []core.Vec2) Path {
	var p Path
	if len(points) == 0 {
		return p
	}
	p.origin = points[0]

	kept := []core.Vec2{points[0]}
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		l := b.Dist(a)
		if l == 0 {
			continue
		}
		p.Segments = append(p.Segments, Segment{
			Start:  a,
			End:    b,
			Dir:    b.Sub(a).Scale(1 / l),
			Length: l,
			Offset: p.TotalLength,
		})
		p.TotalLength += l
		kept = append(kept, b)
	}
	// kept has no zero-length spans, so only a single point can fail.
	if ls, err := LineFromPoints(kept); err == nil {
		p.line = ls
	}
	return p
}

// Empty reports whether the path has no usable length.
func (p Path) Empty() bool {
	return len(p.Segments) == 0
}

// Line returns the deduplicated centerline as a line string.
func (p Path) Line() geom.LineString {
	return p.line
}

// Points returns the path vertices (deduplicated).
func (p Path) Points() []core.Vec2 {
	if len(p.Segments) == 0 {
		return []core.Vec2{p.origin}
	}
	out := make([]core.Vec2, 0, len(p.Segments)+1)
	out = append(out, p.Segments[0].Start)
	for _, s := range p.Segments {
		out = append(out, s.End)
	}
	return out
}

// SampleAt maps progress t to a pose on the path. t is wrapped into [0,1),
// except that exactly 1 returns the final endpoint.
func (p Path) SampleAt(t float64) core.Pose {
	if len(p.Segments) == 0 {
		return core.Pose{Position: p.origin}
	}
	last := p.Segments[len(p.Segments)-1]
	if t == 1 {
		return core.Pose{Position: last.End, Heading: last.Dir.Heading()}
	}
	t = Wrap(t)

	target := t * p.TotalLength
	for _, s := range p.Segments {
		if target <= s.Offset+s.Length {
			local := (target - s.Offset) / s.Length
			local = core.ClampF(local, 0, 1)
			return core.Pose{
				Position: s.Start.Add(s.Dir.Scale(s.Length * local)),
				Heading:  s.Dir.Heading(),
			}
		}
	}
	return core.Pose{Position: last.End, Heading: last.Dir.Heading()}
}

// ProjectNearest returns the progress value of the point on the path closest to pt.
// Exact ties go to the earlier segment.
func (p Path) ProjectNearest(pt core.Vec2) float64 {
	if len(p.Segments) == 0 || p.TotalLength == 0 {
		return 0
	}
	bestD2 := math.Inf(1)
	bestS := 0.0
	for _, s := range p.Segments {
		u := pt.Sub(s.Start).Dot(s.Dir)
		u = core.ClampF(u, 0, s.Length)
		d2 := s.Start.Add(s.Dir.Scale(u)).DistSq(pt)
		if d2 < bestD2 {
			bestD2 = d2
			bestS = s.Offset + u
		}
	}
	return bestS / p.TotalLength
}

// Wrap maps t into [0,1).
func Wrap(t float64) float64 {
	t -= math.Floor(t)
	if t >= 1 {
		t = 0
	}
	return t
}
