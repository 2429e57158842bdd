package track

// Raw tile cells pack a global tile id with three flip flags in the top bits.
const (
	FlipHorizontal uint32 = 0x80000000
	FlipVertical   uint32 = 0x40000000
	FlipDiagonal   uint32 = 0x20000000

	flipMask = FlipHorizontal | FlipVertical | FlipDiagonal
)

// GID is a raw 32-bit tile cell value.
type GID uint32

// ID returns the global tile id with the flip flags masked off.
func (g GID) ID() uint32 {
	return uint32(g) &^ flipMask
}

func (g GID) FlippedHorizontally() bool {
	return uint32(g)&FlipHorizontal != 0
}

func (g GID) FlippedVertically() bool {
	return uint32(g)&FlipVertical != 0
}

func (g GID) FlippedDiagonally() bool {
	return uint32(g)&FlipDiagonal != 0
}

// Empty reports whether the cell holds no tile.
func (g GID) Empty() bool {
	return g.ID() == 0
}

