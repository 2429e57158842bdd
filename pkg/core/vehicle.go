package core

// VehicleView is the read-only per-vehicle state handed to the presentation layer.
type VehicleView struct {
	Pose
	ID         string
	IsPlayer   bool
	Speed      float64
	Radius     float64
	Lap        int
	Next       int // next required checkpoint (player) or waypoint target (AI)
	Finished   bool
	FinishTime float64 // seconds since race start, 0 until Finished
}
