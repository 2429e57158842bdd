// Package track holds the simulation-ready track model. A Model is built once
// per map load and never modified after it is published.
package track

import (
	"math"

	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/pkg/core"
)

// DefaultLaps is the race length when a map does not set one.
const DefaultLaps = 3

// TileLayer is one decoded tile grid.
type TileLayer struct {
	Name    string
	Width   int
	Height  int
	Opacity float64
	Visible bool
	Data    []uint32
	// Surface is the gameplay tag of the layer; SurfaceNone for decoration.
	Surface core.Surface
}

// At returns the raw cell at col,row, or 0 when out of range.
func (l TileLayer) At(col, row int) GID {
	if col < 0 || row < 0 || col >= l.Width || row >= l.Height {
		return 0
	}
	i := row*l.Width + col
	if i >= len(l.Data) {
		return 0
	}
	return GID(l.Data[i])
}

// Model is the published track. Treat every field as read-only.
type Model struct {
	Name       string
	Width      int // tiles
	Height     int // tiles
	TileWidth  int
	TileHeight int

	Tilesets []Tileset // sorted by FirstGID
	Layers   []TileLayer

	Centerline geo.Path
	TrackWidth float64

	Obstacles   []core.Obstacle
	Checkpoints []core.Segment // index order is passing order
	Waypoints   []core.Vec2    // AI waypoints from indexed checkpoints

	Spawn    core.Pose
	AISpawns []core.Pose

	Laps int
}

// PixelWidth returns the map width in world pixels.
func (m *Model) PixelWidth() float64 { return float64(m.Width * m.TileWidth) }

// PixelHeight returns the map height in world pixels.
func (m *Model) PixelHeight() float64 { return float64(m.Height * m.TileHeight) }

// ResolveTile resolves a raw cell to its tileset and local id.
func (m *Model) ResolveTile(raw uint32) (TileRef, bool) {
	g := GID(raw)
	id := g.ID()
	if id == 0 {
		return TileRef{}, false
	}
	i := ResolveTileset(m.Tilesets, id)
	if i < 0 {
		return TileRef{}, false
	}
	return TileRef{Tileset: i, LocalID: id - m.Tilesets[i].FirstGID, GID: g}, true
}

// SurfaceAt classifies the ground at world position p. Road-tagged layers take
// precedence over ground-tagged ones.
func (m *Model) SurfaceAt(p core.Vec2) core.Surface {
	if m == nil || m.TileWidth <= 0 || m.TileHeight <= 0 {
		return core.SurfaceNone
	}
	col := int(math.Floor(p.X / float64(m.TileWidth)))
	row := int(math.Floor(p.Y / float64(m.TileHeight)))

	ground := false
	for _, l := range m.Layers {
		if l.Surface == core.SurfaceNone || l.At(col, row).Empty() {
			continue
		}
		if l.Surface == core.SurfaceRoad {
			return core.SurfaceRoad
		}
		ground = true
	}
	if ground {
		return core.SurfaceGround
	}
	return core.SurfaceNone
}

// HasCenterline reports whether track-parametric driving is possible.
func (m *Model) HasCenterline() bool {
	return m != nil && !m.Centerline.Empty()
}

// Empty returns a model with no geometry, used before the first load.
func Empty() *Model {
	return &Model{Name: "No track loaded", Laps: DefaultLaps}
}
