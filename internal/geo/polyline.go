package geo

import (
	"encoding/json"
	"fmt"

	"github.com/tiledrace/racecore/pkg/core"

	geom "github.com/peterstace/simplefeatures/geom"
)

// LineFromPoints builds a geom.LineString from an ordered point list.
// Fewer than two points yields an empty line string.
func LineFromPoints(points []core.Vec2) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, nil
	}
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("invalid line string: %w", err)
	}
	return ls, nil
}

// PointsFromLine returns the vertices of a line string in order.
func PointsFromLine(ls geom.LineString) []core.Vec2 {
	seq := ls.Coordinates()
	out := make([]core.Vec2, 0, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		c := seq.Get(i)
		out = append(out, core.Vec2{X: c.X, Y: c.Y})
	}
	return out
}

// ParsePolyline parses a JSON array of coordinates into a geom.LineString.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	points := make([]core.Vec2, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Vec2{X: coord[0], Y: coord[1]}
	}

	return LineFromPoints(points)
}
