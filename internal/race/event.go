package race

import "fmt"

// EventKind tags an Event.
type EventKind int

const (
	EventCountdownStarted EventKind = iota
	EventRaceStarted
	EventCheckpointPassed
	EventLapCompleted
	EventRespawn
	EventVehicleFinished
	EventRaceFinished
)

func (k EventKind) String() string {
	switch k {
	case EventCountdownStarted:
		return "countdown_started"
	case EventRaceStarted:
		return "race_started"
	case EventCheckpointPassed:
		return "checkpoint_passed"
	case EventLapCompleted:
		return "lap_completed"
	case EventRespawn:
		return "respawn"
	case EventVehicleFinished:
		return "vehicle_finished"
	case EventRaceFinished:
		return "race_finished"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one notable race occurrence queued for the presentation layer.
type Event struct {
	Kind       EventKind `json:"kind"`
	Tick       uint64    `json:"tick"`
	Time       float64   `json:"time"` // race seconds
	VehicleID  string    `json:"vehicleId,omitempty"`
	Lap        int       `json:"lap,omitempty"`
	Checkpoint int       `json:"checkpoint,omitempty"`
	Position   int       `json:"position,omitempty"` // finishing position
}

// MarshalText renders the kind as its name in JSON snapshots.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
