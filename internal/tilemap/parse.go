package tilemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/pkg/core"
)

var (
	// ErrMalformedDocument is returned when the bytes are not a usable map.
	ErrMalformedDocument = errors.New("malformed map document")
	// ErrEmptyMap is returned for a document without any layers.
	ErrEmptyMap = errors.New("map has no layers")
)

const (
	defaultTrackWidth     = 120
	defaultObstacleRadius = 18
)

// Options tunes Parse. Zero values fall back to package defaults.
type Options struct {
	// Name is used when the document has no "name" property.
	Name                  string
	DefaultLaps           int
	DefaultTrackWidth     float64
	DefaultObstacleRadius float64
}

func (o Options) withDefaults() Options {
	if o.DefaultLaps <= 0 {
		o.DefaultLaps = track.DefaultLaps
	}
	if o.DefaultTrackWidth <= 0 {
		o.DefaultTrackWidth = defaultTrackWidth
	}
	if o.DefaultObstacleRadius <= 0 {
		o.DefaultObstacleRadius = defaultObstacleRadius
	}
	return o
}

// SkippedLayer records a tile layer that could not be decoded.
type SkippedLayer struct {
	Name string
	Err  error
}

// Result is the outcome of a successful Parse.
type Result struct {
	Model      *track.Model
	Skipped    []SkippedLayer
	Recognized int // objects with a known kind
	Unknown    int // objects ignored
}

// Parse decodes a tile-map document into a new track model.
//
// prev is the currently published model, or nil. Object layers that define no
// obstacles or checkpoints leave prev's lists in place; a layer that defines
// any replaces the whole list. prev itself is never modified.
func Parse(data []byte, prev *track.Model, opts Options) (Result, error) {
	opts = opts.withDefaults()

	var doc Map
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Width <= 0 || doc.Height <= 0 || doc.TileWidth <= 0 || doc.TileHeight <= 0 {
		return Result{}, fmt.Errorf("%w: grid %dx%d of %dx%d tiles", ErrMalformedDocument,
			doc.Width, doc.Height, doc.TileWidth, doc.TileHeight)
	}
	if len(doc.Layers) == 0 {
		return Result{}, ErrEmptyMap
	}

	b := newBuilder(doc, prev, opts)
	for _, l := range flatten(doc.Layers, 1, true) {
		switch l.Type {
		case "tilelayer":
			b.tileLayer(l)
		case "objectgroup":
			b.objectLayer(l)
		}
	}
	return b.finish(), nil
}

// flatten expands group layers depth-first. Group opacity multiplies into
// children and a hidden group hides everything under it.
func flatten(layers []Layer, opacity float64, visible bool) []Layer {
	var out []Layer
	for _, l := range layers {
		l.Opacity *= opacity
		l.Visible = l.Visible && visible
		if l.Type == "group" {
			out = append(out, flatten(l.Layers, l.Opacity, l.Visible)...)
			continue
		}
		out = append(out, l)
	}
	return out
}

type indexedSegment struct {
	index int
	seg   core.Segment
}

type indexedPoint struct {
	index int
	pos   core.Vec2
}

type builder struct {
	doc   Map
	opts  Options
	model *track.Model
	res   Result

	tileLayers int
	spawnSet   bool
	trackWidth float64
	centerline []core.Vec2
}

func newBuilder(doc Map, prev *track.Model, opts Options) *builder {
	m := &track.Model{
		Name:       opts.Name,
		Width:      doc.Width,
		Height:     doc.Height,
		TileWidth:  doc.TileWidth,
		TileHeight: doc.TileHeight,
		Tilesets:   convertTilesets(doc.Tilesets),
	}
	if prev != nil {
		m.Obstacles = append([]core.Obstacle(nil), prev.Obstacles...)
		m.Checkpoints = append([]core.Segment(nil), prev.Checkpoints...)
		m.Waypoints = append([]core.Vec2(nil), prev.Waypoints...)
	}
	if s, ok := doc.Properties.String("name"); ok && s != "" {
		m.Name = s
	}
	return &builder{doc: doc, opts: opts, model: m}
}

func (b *builder) tileLayer(l Layer) {
	cells, err := DecodeLayerData(l)
	if err != nil {
		b.res.Skipped = append(b.res.Skipped, SkippedLayer{Name: l.Name, Err: err})
		return
	}
	w, h := l.Width, l.Height
	if w <= 0 || h <= 0 {
		w, h = b.doc.Width, b.doc.Height
	}
	b.model.Layers = append(b.model.Layers, track.TileLayer{
		Name:    l.Name,
		Width:   w,
		Height:  h,
		Opacity: l.Opacity,
		Visible: l.Visible,
		Data:    cells,
		Surface: layerSurface(l),
	})
	b.tileLayers++
}

// layerSurface tags a tile layer from its "surface" property or its name.
func layerSurface(l Layer) core.Surface {
	if s, ok := l.Properties.String("surface"); ok {
		switch normalizeName(s) {
		case "road", "track":
			return core.SurfaceRoad
		case "ground":
			return core.SurfaceGround
		}
	}
	name := normalizeName(l.Name)
	for _, k := range []string{"road", "track"} {
		if strings.Contains(name, k) {
			return core.SurfaceRoad
		}
	}
	for _, k := range []string{"ground", "grass", "terrain", "sand", "dirt"} {
		if strings.Contains(name, k) {
			return core.SurfaceGround
		}
	}
	return core.SurfaceNone
}

func (b *builder) objectLayer(l Layer) {
	var (
		obstacles   []core.Obstacle
		checkpoints []indexedSegment
		waypoints   []indexedPoint
	)
	for _, o := range l.Objects {
		c := Classify(o)
		if c.Kind == KindUnknown {
			b.res.Unknown++
			continue
		}
		b.res.Recognized++

		switch c.Kind {
		case KindSpawnPoint:
			b.model.Spawn = o.Pose()
			b.spawnSet = true
		case KindAISpawn:
			b.model.AISpawns = append(b.model.AISpawns, o.Pose())
		case KindTrackPath:
			b.trackPath(o)
		case KindObstacle:
			r, ok := o.Properties.Float("radius")
			if !ok || r <= 0 {
				r = b.opts.DefaultObstacleRadius
			}
			p := o.Center()
			if o.Point || (o.Width == 0 && o.Height == 0) {
				p = o.anchor()
			}
			obstacles = append(obstacles, core.CircleObstacle(p.X, p.Y, r))
		case KindTrackLimit:
			org := o.origin()
			obstacles = append(obstacles, core.RectObstacle(org.X, org.Y, o.Width, o.Height))
		case KindCheckpoint:
			if seg, ok := o.CheckpointSegment(); ok {
				checkpoints = append(checkpoints, indexedSegment{index: len(checkpoints), seg: seg})
			}
		case KindIndexedCheckpoint:
			// Point markers still order the AI route without forming a gate.
			seg, ok := o.CheckpointSegment()
			if !ok {
				waypoints = append(waypoints, indexedPoint{index: c.Index, pos: o.Pose().Position})
				continue
			}
			checkpoints = append(checkpoints, indexedSegment{index: c.Index, seg: seg})
			waypoints = append(waypoints, indexedPoint{index: c.Index, pos: seg.Midpoint()})
		}
	}

	if len(obstacles) > 0 {
		b.model.Obstacles = obstacles
	}
	if len(checkpoints) > 0 {
		b.model.Checkpoints = sortedSegments(checkpoints)
		b.model.Waypoints = nil
	}
	if len(waypoints) > 0 {
		b.model.Waypoints = sortedPoints(waypoints)
	}
}

// trackPath takes the centerline from the object's polyline, or from a
// "points" property holding absolute coordinates as [[x,y],...].
func (b *builder) trackPath(o Object) {
	pts := o.PolylinePoints()
	if len(pts) < 2 {
		raw, ok := o.Properties.String("points")
		if !ok {
			return
		}
		ls, err := geo.ParsePolyline(raw)
		if err != nil {
			return
		}
		pts = geo.PointsFromLine(ls)
	}
	b.centerline = pts
	if w, ok := o.Properties.Float("track_width", "trackwidth", "width"); ok && w > 0 {
		b.trackWidth = w
	}
}

// sortedSegments stable-sorts by declared index; the result position becomes
// the checkpoint's index.
func sortedSegments(in []indexedSegment) []core.Segment {
	sort.SliceStable(in, func(i, j int) bool { return in[i].index < in[j].index })
	out := make([]core.Segment, len(in))
	for i, s := range in {
		out[i] = s.seg
	}
	return out
}

func sortedPoints(in []indexedPoint) []core.Vec2 {
	sort.SliceStable(in, func(i, j int) bool { return in[i].index < in[j].index })
	out := make([]core.Vec2, len(in))
	for i, p := range in {
		out[i] = p.pos
	}
	return out
}

func (b *builder) finish() Result {
	m := b.model

	if b.tileLayers > 0 && b.res.Recognized == 0 {
		m.Obstacles = nil
		m.Checkpoints = nil
		m.Waypoints = nil
	}
	if len(m.Waypoints) == 0 && len(m.Checkpoints) > 0 {
		m.Waypoints = make([]core.Vec2, len(m.Checkpoints))
		for i, c := range m.Checkpoints {
			m.Waypoints[i] = c.Midpoint()
		}
	}

	m.Centerline = geo.Build(b.centerline)

	m.TrackWidth = b.trackWidth
	if m.TrackWidth <= 0 {
		if w, ok := b.doc.Properties.Float("track_width", "trackwidth"); ok && w > 0 {
			m.TrackWidth = w
		} else {
			m.TrackWidth = b.opts.DefaultTrackWidth
		}
	}

	m.Laps = b.opts.DefaultLaps
	if laps, ok := b.doc.Properties.Float("laps"); ok && laps > 0 {
		m.Laps = max(int(math.Floor(laps)), 1)
	}

	if !b.spawnSet {
		m.Spawn = defaultSpawn(m)
	}

	b.res.Model = m
	return b.res
}

// defaultSpawn places the car at the centerline start facing along it, or at
// the map center.
func defaultSpawn(m *track.Model) core.Pose {
	if m.HasCenterline() {
		return m.Centerline.SampleAt(0)
	}
	return core.Pose{Position: core.Vec2{X: m.PixelWidth() / 2, Y: m.PixelHeight() / 2}}
}

func convertTilesets(in []Tileset) []track.Tileset {
	out := make([]track.Tileset, 0, len(in))
	for _, ts := range in {
		t := track.Tileset{
			Name:        ts.Name,
			FirstGID:    ts.FirstGID,
			ImagePath:   ts.Image,
			ImageWidth:  ts.ImageWidth,
			ImageHeight: ts.ImageHeight,
			TileWidth:   ts.TileWidth,
			TileHeight:  ts.TileHeight,
			Columns:     ts.Columns,
			TileCount:   ts.TileCount,
			Spacing:     ts.Spacing,
			Margin:      ts.Margin,
		}
		if t.Columns <= 0 {
			t.Columns = fit(t.ImageWidth, t.TileWidth, t.Spacing, t.Margin)
		}
		if t.TileCount <= 0 {
			t.TileCount = t.Columns * fit(t.ImageHeight, t.TileHeight, t.Spacing, t.Margin)
		}
		out = append(out, t)
	}
	track.SortTilesets(out)
	return out
}

// fit returns how many tiles of size tile fit along an atlas edge.
func fit(edge, tile, spacing, margin int) int {
	if edge <= 0 || tile <= 0 {
		return 0
	}
	n := (edge - 2*margin + spacing) / (tile + spacing)
	return max(n, 0)
}
