package tilemap

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/pkg/core"
)

const fullMap = `{
  "width": 4, "height": 4, "tilewidth": 32, "tileheight": 32,
  "properties": [{"name": "laps", "type": "float", "value": 2.7}, {"name": "name", "value": "Harbor Loop"}],
  "tilesets": [
    {"firstgid": 17, "name": "props", "image": "props.png", "imagewidth": 64, "imageheight": 64, "tilewidth": 32, "tileheight": 32},
    {"firstgid": 1, "name": "terrain", "image": "terrain.png", "imagewidth": 128, "imageheight": 128, "tilewidth": 32, "tileheight": 32, "columns": 4, "tilecount": 16}
  ],
  "layers": [
    {"type": "tilelayer", "name": "Grass", "width": 4, "height": 4, "data": [1,1,1,1, 1,1,1,1, 1,1,1,1, 1,1,1,1]},
    {"type": "tilelayer", "name": "Road", "width": 4, "height": 4, "opacity": 0.5, "data": [2,2,0,0, 0,0,0,0, 0,0,0,0, 0,0,0,0]},
    {"type": "objectgroup", "name": "gameplay", "objects": [
      {"name": "track_path", "x": 0, "y": 0, "polyline": [{"x":0,"y":0},{"x":100,"y":0},{"x":100,"y":100}],
       "properties": [{"name": "track_width", "value": 96}]},
      {"name": "car", "x": 10, "y": 20, "rotation": 90},
      {"name": "checkpoint2", "x": 90, "y": 60, "width": 20, "height": 10},
      {"name": "checkpoint0", "x": 30, "y": 0, "width": 10, "height": 40},
      {"name": "checkpoint1", "x": 50, "y": 0, "width": 10, "height": 40},
      {"name": "obstacle", "x": 4, "y": 6, "point": true, "properties": [{"name": "radius", "value": "12"}]},
      {"name": "obstacle", "x": 100, "y": 100, "width": 20, "height": 20, "ellipse": true},
      {"name": "wall", "x": 0, "y": 120, "width": 128, "height": 8},
      {"name": "ai_spawn", "x": 5, "y": 5},
      {"name": "tree", "x": 1, "y": 1}
    ]}
  ]
}`

func TestParse_FullMap(t *testing.T) {
	res, err := Parse([]byte(fullMap), nil, Options{})
	require.NoError(t, err)
	m := res.Model
	require.NotNil(t, m)

	assert.Equal(t, "Harbor Loop", m.Name)
	assert.Equal(t, 2, m.Laps)
	assert.Equal(t, 9, res.Recognized)
	assert.Equal(t, 1, res.Unknown)
	assert.Empty(t, res.Skipped)

	require.Len(t, m.Tilesets, 2)
	assert.Equal(t, "terrain", m.Tilesets[0].Name)
	assert.Equal(t, 2, m.Tilesets[1].Columns, "columns derived from image width")
	assert.Equal(t, 4, m.Tilesets[1].TileCount, "tilecount derived from the atlas")

	require.Len(t, m.Layers, 2)
	assert.Equal(t, core.SurfaceGround, m.Layers[0].Surface)
	assert.Equal(t, core.SurfaceRoad, m.Layers[1].Surface)
	assert.Equal(t, 0.5, m.Layers[1].Opacity)
	assert.True(t, m.Layers[1].Visible)
	assert.Equal(t, core.SurfaceRoad, m.SurfaceAt(core.Vec2{X: 40, Y: 10}))
	assert.Equal(t, core.SurfaceGround, m.SurfaceAt(core.Vec2{X: 80, Y: 10}))

	assert.InDelta(t, 200, m.Centerline.TotalLength, 1e-9)
	assert.Equal(t, 96.0, m.TrackWidth)

	assert.Equal(t, core.Vec2{X: 10, Y: 20}, m.Spawn.Position)
	assert.InDelta(t, math.Pi/2, m.Spawn.Heading, 1e-9)
	require.Len(t, m.AISpawns, 1)

	require.Len(t, m.Checkpoints, 3)
	assert.Equal(t, core.Vec2{X: 35, Y: 20}, m.Checkpoints[0].Midpoint())
	assert.Equal(t, core.Vec2{X: 55, Y: 20}, m.Checkpoints[1].Midpoint())
	assert.Equal(t, core.Vec2{X: 100, Y: 65}, m.Checkpoints[2].Midpoint())
	assert.Equal(t, []core.Vec2{{X: 35, Y: 20}, {X: 55, Y: 20}, {X: 100, Y: 65}}, m.Waypoints)

	require.Len(t, m.Obstacles, 3)
	assert.Equal(t, core.CircleObstacle(4, 6, 12), m.Obstacles[0])
	assert.Equal(t, core.CircleObstacle(110, 110, 18), m.Obstacles[1])
	assert.Equal(t, core.RectObstacle(0, 120, 128, 8), m.Obstacles[2])
}

func TestParse_Laps(t *testing.T) {
	tests := []struct {
		name  string
		props string
		opts  Options
		want  int
	}{
		{"default", `[]`, Options{}, track.DefaultLaps},
		{"option default", `[]`, Options{DefaultLaps: 5}, 5},
		{"floored", `[{"name":"laps","value":4.9}]`, Options{}, 4},
		{"fraction keeps a minimum of one", `[{"name":"laps","value":0.4}]`, Options{}, 1},
		{"zero ignored", `[{"name":"laps","value":0}]`, Options{}, track.DefaultLaps},
		{"negative ignored", `[{"name":"laps","value":-2}]`, Options{}, track.DefaultLaps},
		{"string coerced", `[{"name":"Laps","value":"6"}]`, Options{}, 6},
		{"garbage ignored", `[{"name":"laps","value":"many"}]`, Options{}, track.DefaultLaps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"width":1,"height":1,"tilewidth":8,"tileheight":8,"properties":` + tt.props +
				`,"layers":[{"type":"tilelayer","name":"a","width":1,"height":1,"data":[0]}]}`
			res, err := Parse([]byte(doc), nil, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Model.Laps)
		})
	}
}

func TestParse_DocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"not json", `{"width":`, ErrMalformedDocument},
		{"zero size", `{"width":0,"height":4,"tilewidth":8,"tileheight":8,"layers":[{"type":"tilelayer"}]}`, ErrMalformedDocument},
		{"no layers", `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[]}`, ErrEmptyMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), nil, Options{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_UnsupportedLayerIsSkipped(t *testing.T) {
	doc := `{"width":2,"height":1,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"tilelayer","name":"packed","width":2,"height":1,"encoding":"base64","compression":"brotli","data":"AAAAAAAAAAA="},
	  {"type":"tilelayer","name":"road","width":2,"height":1,"data":[1,1]}
	]}`
	res, err := Parse([]byte(doc), nil, Options{})
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "packed", res.Skipped[0].Name)
	assert.ErrorIs(t, res.Skipped[0].Err, ErrUnsupportedCompression)
	require.Len(t, res.Model.Layers, 1)
	assert.Equal(t, "road", res.Model.Layers[0].Name)
}

func TestParse_GroupLayersFlatten(t *testing.T) {
	doc := `{"width":1,"height":1,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"group","name":"g","opacity":0.5,"visible":false,"layers":[
	    {"type":"tilelayer","name":"inner","width":1,"height":1,"opacity":0.5,"data":[1]}
	  ]}
	]}`
	res, err := Parse([]byte(doc), nil, Options{})
	require.NoError(t, err)
	require.Len(t, res.Model.Layers, 1)
	assert.Equal(t, 0.25, res.Model.Layers[0].Opacity)
	assert.False(t, res.Model.Layers[0].Visible)
}

func prevModel() *track.Model {
	return &track.Model{
		Obstacles:   []core.Obstacle{core.CircleObstacle(1, 1, 5)},
		Checkpoints: []core.Segment{{A: core.Vec2{X: 0, Y: 0}, B: core.Vec2{X: 0, Y: 10}}},
		Waypoints:   []core.Vec2{{X: 0, Y: 5}},
	}
}

func TestParse_PartialLayersKeepPreviousLists(t *testing.T) {
	prev := prevModel()
	doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"spawn","objects":[{"name":"car","x":3,"y":4}]}
	]}`
	res, err := Parse([]byte(doc), prev, Options{})
	require.NoError(t, err)

	assert.Equal(t, prev.Obstacles, res.Model.Obstacles)
	assert.Equal(t, prev.Checkpoints, res.Model.Checkpoints)
	assert.Equal(t, prev.Waypoints, res.Model.Waypoints)

	res.Model.Obstacles[0] = core.CircleObstacle(9, 9, 9)
	assert.Equal(t, core.CircleObstacle(1, 1, 5), prev.Obstacles[0], "previous model is never mutated")
}

func TestParse_LayerWithObstaclesReplacesList(t *testing.T) {
	prev := prevModel()
	doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"a","objects":[{"name":"obstacle","x":3,"y":4}]}
	]}`
	res, err := Parse([]byte(doc), prev, Options{DefaultObstacleRadius: 7})
	require.NoError(t, err)

	assert.Equal(t, []core.Obstacle{core.CircleObstacle(3, 4, 7)}, res.Model.Obstacles)
	assert.Equal(t, prev.Checkpoints, res.Model.Checkpoints)
}

func TestParse_TileArtOnlyClearsLists(t *testing.T) {
	prev := prevModel()
	doc := `{"width":1,"height":1,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"tilelayer","name":"art","width":1,"height":1,"data":[1]},
	  {"type":"objectgroup","name":"decor","objects":[{"name":"tree","x":1,"y":1}]}
	]}`
	res, err := Parse([]byte(doc), prev, Options{})
	require.NoError(t, err)

	assert.Empty(t, res.Model.Obstacles)
	assert.Empty(t, res.Model.Checkpoints)
	assert.Empty(t, res.Model.Waypoints)
}

func TestParse_GenericCheckpointsKeepEncounterOrder(t *testing.T) {
	doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"cps","objects":[
	    {"name":"checkpoint","polyline":[{"x":0,"y":0},{"x":0,"y":10}],"x":20,"y":0},
	    {"name":"checkpoint","polyline":[{"x":0,"y":0},{"x":0,"y":10}],"x":10,"y":0}
	  ]}
	]}`
	res, err := Parse([]byte(doc), nil, Options{})
	require.NoError(t, err)

	require.Len(t, res.Model.Checkpoints, 2)
	assert.Equal(t, 20.0, res.Model.Checkpoints[0].A.X)
	assert.Equal(t, 10.0, res.Model.Checkpoints[1].A.X)
	assert.Equal(t, []core.Vec2{{X: 20, Y: 5}, {X: 10, Y: 5}}, res.Model.Waypoints)
}

func TestParse_DefaultSpawn(t *testing.T) {
	t.Run("centerline start", func(t *testing.T) {
		doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
		  {"type":"objectgroup","name":"p","objects":[
		    {"name":"track_path","x":5,"y":5,"polyline":[{"x":0,"y":0},{"x":0,"y":20}]}
		  ]}
		]}`
		res, err := Parse([]byte(doc), nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, core.Vec2{X: 5, Y: 5}, res.Model.Spawn.Position)
		assert.InDelta(t, math.Pi/2, res.Model.Spawn.Heading, 1e-9)
		assert.Equal(t, float64(defaultTrackWidth), res.Model.TrackWidth)
	})

	t.Run("map center", func(t *testing.T) {
		doc := `{"width":4,"height":2,"tilewidth":8,"tileheight":8,"layers":[
		  {"type":"tilelayer","name":"a","width":4,"height":2,"data":[0,0,0,0,0,0,0,0]}
		]}`
		res, err := Parse([]byte(doc), nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, core.Pose{Position: core.Vec2{X: 16, Y: 8}}, res.Model.Spawn)
	})
}

func TestParse_FlipFlagsResolveWithinTileset(t *testing.T) {
	res, err := Parse([]byte(fullMap), nil, Options{})
	require.NoError(t, err)

	for _, raw := range []uint32{1, 16, 17, 20, 0x80000011, 0xE0000003} {
		ref, ok := res.Model.ResolveTile(raw)
		require.True(t, ok, "gid %#x", raw)
		ts := res.Model.Tilesets[ref.Tileset]
		assert.Less(t, ref.LocalID, uint32(ts.TileCount), "gid %#x", raw)
	}
}

func TestLayer_UnmarshalDefaults(t *testing.T) {
	var l Layer
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","type":"tilelayer"}`), &l))
	assert.True(t, l.Visible)
	assert.Equal(t, 1.0, l.Opacity)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","visible":false,"opacity":0.2}`), &l))
	assert.False(t, l.Visible)
	assert.Equal(t, 0.2, l.Opacity)
}

func TestProperties_Lookup(t *testing.T) {
	ps := Properties{{Name: "Track Width", Value: 80}, {Name: "surface", Value: "road"}}

	w, ok := ps.Float("trackwidth")
	assert.True(t, ok)
	assert.Equal(t, 80.0, w)

	s, ok := ps.String("SURFACE")
	assert.True(t, ok)
	assert.Equal(t, "road", s)

	_, ok = ps.Float("missing")
	assert.False(t, ok)
}

func TestParse_TrackPathFromPointsProperty(t *testing.T) {
	doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"p","objects":[
	    {"name":"track_path","x":500,"y":500,"properties":[{"name":"points","value":"[[0,0],[30,0],[30,40]]"}]}
	  ]}
	]}`
	res, err := Parse([]byte(doc), nil, Options{})
	require.NoError(t, err)

	require.True(t, res.Model.HasCenterline())
	assert.InDelta(t, 70, res.Model.Centerline.TotalLength, 1e-9)
	assert.Equal(t, core.Vec2{}, res.Model.Spawn.Position, "points are absolute")

	bad := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"p","objects":[
	    {"name":"track_path","x":0,"y":0,"properties":[{"name":"points","value":"[[0,0]]"}]}
	  ]}
	]}`
	res, err = Parse([]byte(bad), nil, Options{})
	require.NoError(t, err)
	assert.False(t, res.Model.HasCenterline())
}

func TestParse_PointCheckpointsBecomeWaypoints(t *testing.T) {
	doc := `{"width":4,"height":4,"tilewidth":8,"tileheight":8,"layers":[
	  {"type":"objectgroup","name":"ai","objects":[
	    {"name":"checkpoint2","x":30,"y":30,"point":true},
	    {"name":"checkpoint0","x":10,"y":10,"point":true},
	    {"name":"checkpoint1","x":20,"y":10,"point":true}
	  ]}
	]}`
	res, err := Parse([]byte(doc), nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Recognized)
	assert.Empty(t, res.Model.Checkpoints)
	assert.Equal(t, []core.Vec2{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 30}}, res.Model.Waypoints)
}
