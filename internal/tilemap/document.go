// Package tilemap decodes JSON tile-map documents into a track.Model.
// It does no I/O; fetching bytes and images is the loader's job.
package tilemap

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/spf13/cast"
)

// Map is the root of a tile-map JSON document.
type Map struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	TileWidth  int        `json:"tilewidth"`
	TileHeight int        `json:"tileheight"`
	Layers     []Layer    `json:"layers"`
	Tilesets   []Tileset  `json:"tilesets"`
	Properties Properties `json:"properties,omitempty"`
}

// Layer is a tile layer, object group or group layer.
type Layer struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"` // "tilelayer" | "objectgroup" | "group" | "imagelayer"
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Opacity     float64         `json:"opacity"`
	Visible     bool            `json:"visible"`
	Data        json.RawMessage `json:"data,omitempty"` // []uint32 or a base64 string
	Encoding    string          `json:"encoding,omitempty"`
	Compression string          `json:"compression,omitempty"`
	Objects     []Object        `json:"objects,omitempty"`
	Layers      []Layer         `json:"layers,omitempty"`
	Properties  Properties      `json:"properties,omitempty"`
}

// UnmarshalJSON applies the format's defaults for fields older exporters omit.
func (l *Layer) UnmarshalJSON(b []byte) error {
	type rawLayer Layer
	r := rawLayer{Visible: true, Opacity: 1}
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*l = Layer(r)
	return nil
}

// Point is a polyline or polygon vertex relative to its object's origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is a single entry of an object group.
type Object struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Class      string     `json:"class,omitempty"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Rotation   float64    `json:"rotation,omitempty"` // degrees, clockwise
	GID        uint32     `json:"gid,omitempty"`
	Ellipse    bool       `json:"ellipse,omitempty"`
	Point      bool       `json:"point,omitempty"`
	Polyline   []Point    `json:"polyline,omitempty"`
	Polygon    []Point    `json:"polygon,omitempty"`
	Properties Properties `json:"properties,omitempty"`
}

// IsRect reports whether the object is a plain rectangle.
func (o Object) IsRect() bool {
	return o.Width > 0 && o.Height > 0 && !o.Ellipse && !o.Point &&
		len(o.Polyline) == 0 && len(o.Polygon) == 0 && o.GID == 0
}

// Tileset is an embedded tileset entry.
type Tileset struct {
	FirstGID    uint32 `json:"firstgid"`
	Name        string `json:"name,omitempty"`
	Source      string `json:"source,omitempty"`
	Image       string `json:"image,omitempty"`
	ImageWidth  int    `json:"imagewidth,omitempty"`
	ImageHeight int    `json:"imageheight,omitempty"`
	TileWidth   int    `json:"tilewidth,omitempty"`
	TileHeight  int    `json:"tileheight,omitempty"`
	TileCount   int    `json:"tilecount,omitempty"`
	Columns     int    `json:"columns,omitempty"`
	Spacing     int    `json:"spacing,omitempty"`
	Margin      int    `json:"margin,omitempty"`
}

// Property is one custom {name, value} pair.
type Property struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Properties is a custom property list looked up by name.
type Properties []Property

// Get returns the value of the named property. Names compare case- and
// whitespace-insensitively.
func (ps Properties) Get(name string) (any, bool) {
	want := normalizeName(name)
	for _, p := range ps {
		if normalizeName(p.Name) == want {
			return p.Value, true
		}
	}
	return nil, false
}

// Float returns the first named property that converts to a number.
func (ps Properties) Float(names ...string) (float64, bool) {
	for _, n := range names {
		v, ok := ps.Get(n)
		if !ok {
			continue
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

// String returns the named property as a string.
func (ps Properties) String(name string) (string, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// normalizeName lowercases s and strips all whitespace.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
