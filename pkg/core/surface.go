package core

// Surface classifies the ground under a vehicle.
type Surface uint8

const (
	// SurfaceNone means no tagged tile is present (off the tile grid or empty cells).
	SurfaceNone Surface = iota
	SurfaceRoad
	SurfaceGround
)

func (s Surface) String() string {
	switch s {
	case SurfaceRoad:
		return "road"
	case SurfaceGround:
		return "ground"
	default:
		return "none"
	}
}

// SpeedFactor returns the max-speed multiplier for the surface.
// groundFactor is the penalty applied on ground tiles.
func (s Surface) SpeedFactor(groundFactor float64) float64 {
	if s == SurfaceGround {
		return groundFactor
	}
	return 1.0
}
