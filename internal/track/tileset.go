package track

import "sort"

// Image is a resolved tileset atlas. Handle is whatever the image resolver
// returned and is opaque to the simulation.
type Image struct {
	Path   string
	Handle any
}

// Tileset describes one atlas and the global id range it serves.
type Tileset struct {
	Name        string
	FirstGID    uint32
	ImagePath   string
	ImageWidth  int
	ImageHeight int
	TileWidth   int
	TileHeight  int
	Columns     int
	TileCount   int
	Spacing     int
	Margin      int

	// Image is nil when the resolver could not provide the atlas.
	Image *Image
}

// SourceRect returns the atlas rectangle (x, y, w, h) of a tileset-local id.
func (ts Tileset) SourceRect(localID uint32) (x, y, w, h int) {
	cols := ts.Columns
	if cols <= 0 {
		cols = 1
	}
	id := int(localID)
	x = ts.Margin + (id%cols)*(ts.TileWidth+ts.Spacing)
	y = ts.Margin + (id/cols)*(ts.TileHeight+ts.Spacing)
	return x, y, ts.TileWidth, ts.TileHeight
}

// TileRef is a resolved tile cell.
type TileRef struct {
	Tileset int // index into Model.Tilesets
	LocalID uint32
	GID     GID
}

// SortTilesets orders tilesets ascending by FirstGID.
func SortTilesets(sets []Tileset) {
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].FirstGID < sets[j].FirstGID })
}

// ResolveTileset returns the index of the tileset with the greatest FirstGID
// not above id, or -1 when id is below every tileset. sets must be sorted.
func ResolveTileset(sets []Tileset, id uint32) int {
	// first index whose FirstGID is greater than id
	i := sort.Search(len(sets), func(i int) bool { return sets[i].FirstGID > id })
	return i - 1
}
