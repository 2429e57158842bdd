// Package race owns one race: the countdown gate, per-tick orchestration of the
// player and AI cars, checkpoint progress, events and standings.
package race

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tiledrace/racecore/internal/ai"
	"github.com/tiledrace/racecore/internal/checkpoint"
	"github.com/tiledrace/racecore/internal/geo"
	"github.com/tiledrace/racecore/internal/queue"
	"github.com/tiledrace/racecore/internal/track"
	"github.com/tiledrace/racecore/internal/vehicle"
	"github.com/tiledrace/racecore/pkg/core"
)

// PlayerID identifies the player's car in views, events and results.
const PlayerID = "player"

const eventBacklog = 1024

var ErrNoTrack = errors.New("no track to race on")

// Phase is the race lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseCountdown:
		return "countdown"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

// MarshalText renders the phase name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Logger is the logging surface the race needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config tunes a race.
type Config struct {
	// Laps overrides the track's lap count when positive.
	Laps int
	// Countdown is the pre-race delay counted down by Step. Zero waits for
	// CountdownElapsed.
	Countdown     time.Duration
	AICount       int
	AIMode        string // auto, track or waypoint
	RespawnOffset float64
	Vehicle       vehicle.Params
	AI            ai.Params
}

// DefaultConfig returns the stock race setup.
func DefaultConfig() Config {
	return Config{
		Countdown:     3 * time.Second,
		AICount:       3,
		AIMode:        "auto",
		RespawnOffset: checkpoint.DefaultRespawnOffset,
		Vehicle:       vehicle.DefaultParams(),
		AI:            ai.DefaultParams(),
	}
}

// Result is one line of the standings.
type Result struct {
	Position   int     `json:"position"`
	VehicleID  string  `json:"vehicleId"`
	IsPlayer   bool    `json:"isPlayer"`
	Finished   bool    `json:"finished"`
	FinishTime float64 `json:"finishTime,omitempty"`
	Lap        int     `json:"lap"`
}

// Snapshot is the presentation-facing state after a tick.
type Snapshot struct {
	RaceID    string             `json:"raceId"`
	Track     string             `json:"track"`
	Phase     Phase              `json:"phase"`
	Tick      uint64             `json:"tick"`
	Elapsed   float64            `json:"elapsed"`
	Countdown float64            `json:"countdown"`
	Laps      int                `json:"laps"`
	Vehicles  []core.VehicleView `json:"vehicles"`
	Results   []Result           `json:"results"`
}

type player struct {
	car        vehicle.Vehicle
	progress   checkpoint.Progress
	finished   bool
	finishTime float64
}

// Race is the simulation state of one race. All methods are safe for
// concurrent use; Step is expected to be driven from a single loop.
type Race struct {
	mu sync.Mutex

	cfg     Config
	logger  Logger
	metrics *metrics
	events  *queue.Queue[Event]

	id        ksuid.KSUID
	model     *track.Model
	laps      int
	phase     Phase
	countdown float64
	elapsed   float64
	tick      uint64

	input      vehicle.Input
	player     player
	agents     []*ai.Agent
	tracker    *checkpoint.Tracker
	controller *ai.Controller
	finishers  []string // vehicle ids in finishing order
}

// New creates an idle race.
func New(cfg Config, logger Logger) (*Race, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Race{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		events:  queue.NewBounded[Event](eventBacklog),
		model:   track.Empty(),
	}, nil
}

// Start resets all race state on model and enters the countdown. A running
// race is discarded.
func (r *Race) Start(model *track.Model) error {
	if model == nil {
		return ErrNoTrack
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.id = ksuid.New()
	r.model = model
	r.laps = r.cfg.Laps
	if r.laps <= 0 {
		r.laps = model.Laps
	}
	if r.laps <= 0 {
		r.laps = track.DefaultLaps
	}
	r.phase = PhaseCountdown
	r.countdown = r.cfg.Countdown.Seconds()
	r.elapsed = 0
	r.tick = 0
	r.input = vehicle.Input{}
	r.finishers = nil
	r.events.Clear()

	r.player = player{
		car: vehicle.Vehicle{
			Position: model.Spawn.Position,
			Heading:  model.Spawn.Heading,
			Radius:   r.cfg.Vehicle.Radius,
		},
		progress: checkpoint.NewProgress(),
	}
	r.tracker = checkpoint.NewTracker(model.Checkpoints, model.Spawn, r.cfg.RespawnOffset)
	r.controller = ai.NewController(r.cfg.AI, r.cfg.Vehicle, model, r.laps)
	r.agents = r.spawnAgents()

	r.emit(Event{Kind: EventCountdownStarted})
	r.logger.Info("race countdown started",
		"race", r.id.String(),
		"track", model.Name,
		"laps", r.laps,
		"agents", len(r.agents),
		"checkpoints", r.tracker.Count(),
	)
	return nil
}

// CountdownElapsed releases the grid. It is a no-op outside the countdown.
func (r *Race) CountdownElapsed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beginRunning()
}

func (r *Race) beginRunning() {
	if r.phase != PhaseCountdown {
		return
	}
	r.phase = PhaseRunning
	r.countdown = 0
	r.emit(Event{Kind: EventRaceStarted})
	r.logger.Info("race started", "race", r.id.String())
}

// SetInput stores the player's controls for the following ticks.
func (r *Race) SetInput(in vehicle.Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = in.Clamp()
}

// Phase returns the current phase.
func (r *Race) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// ID returns the race identifier, empty before the first Start.
func (r *Race) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id.IsNil() {
		return ""
	}
	return r.id.String()
}

// Model returns the track the race was started on, an empty model before the
// first Start.
// Loads published after Start do not change it.
func (r *Race) Model() *track.Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

// Tick returns the number of running steps taken.
func (r *Race) Tick() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Events drains queued events in order.
func (r *Race) Events() []Event {
	return r.events.Drain()
}

// Step advances the simulation by dt seconds. Cars stay inert outside the
// running phase.
func (r *Race) Step(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case PhaseCountdown:
		if r.cfg.Countdown > 0 && dt > 0 {
			r.countdown -= dt
			if r.countdown <= 0 {
				r.beginRunning()
			}
		}
		return
	case PhaseRunning:
	default:
		return
	}

	dt = r.cfg.Vehicle.ClampDt(dt)
	if dt == 0 {
		return
	}
	r.tick++
	r.elapsed += dt
	r.metrics.ticks.Add(context.Background(), 1)

	r.stepPlayer(dt)
	r.stepAgents(dt)

	if r.player.finished {
		r.phase = PhaseFinished
		r.emit(Event{Kind: EventRaceFinished})
		r.logger.Info("race finished", "race", r.id.String(), "elapsed", r.elapsed, "finishers", len(r.finishers))
	}
}

func (r *Race) stepPlayer(dt float64) {
	p := &r.player
	if p.finished {
		return
	}
	others := make([]core.Circle, 0, len(r.agents))
	for _, a := range r.agents {
		others = append(others, a.Car.Circle())
	}
	res := vehicle.Integrate(&p.car, r.input, dt, r.cfg.Vehicle, vehicle.Environment{
		Surface:   r.model,
		Obstacles: r.model.Obstacles,
		Others:    others,
	})

	c := r.tracker.Evaluate(&p.progress, res.From, res.To)
	switch c.Outcome {
	case checkpoint.Passed:
		r.emit(Event{Kind: EventCheckpointPassed, VehicleID: PlayerID, Checkpoint: c.Index, Lap: p.progress.Lap})
	case checkpoint.LapCompleted:
		r.emit(Event{Kind: EventCheckpointPassed, VehicleID: PlayerID, Checkpoint: c.Index, Lap: p.progress.Lap})
		r.lapCompleted(PlayerID, p.progress.Lap-1)
		if p.progress.Lap > r.laps {
			p.finished = true
			p.finishTime = r.elapsed
			p.car.Speed = 0
			r.vehicleFinished(PlayerID)
		}
	case checkpoint.Skipped:
		p.car.Position = c.Respawn.Position
		p.car.Heading = c.Respawn.Heading
		p.car.Speed = 0
		r.metrics.respawns.Add(context.Background(), 1)
		r.emit(Event{Kind: EventRespawn, VehicleID: PlayerID, Checkpoint: c.Index, Lap: p.progress.Lap})
		r.logger.Debug("checkpoint skipped, respawning",
			"race", r.id.String(), "crossed", c.Index, "next", p.progress.Next)
	}
}

// stepAgents moves every AI car against the positions committed at the start
// of the AI phase.
func (r *Race) stepAgents(dt float64) {
	if len(r.agents) == 0 {
		return
	}
	committed := make([]core.Circle, len(r.agents))
	for i, a := range r.agents {
		committed[i] = a.Car.Circle()
	}
	playerCircle := r.player.car.Circle()

	others := make([]core.Circle, 0, len(r.agents)-1)
	for i, a := range r.agents {
		others = others[:0]
		others = append(others, committed[:i]...)
		others = append(others, committed[i+1:]...)

		u := r.controller.Step(a, dt, playerCircle, others)
		if u.LapCompleted {
			r.lapCompleted(a.ID, a.Lap-1)
		}
		if u.Finished {
			a.FinishTime = r.elapsed
			r.vehicleFinished(a.ID)
		}
	}
}

func (r *Race) lapCompleted(id string, lap int) {
	r.metrics.laps.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("player", id == PlayerID)))
	r.emit(Event{Kind: EventLapCompleted, VehicleID: id, Lap: lap})
	r.logger.Debug("lap completed", "race", r.id.String(), "vehicle", id, "lap", lap)
}

func (r *Race) vehicleFinished(id string) {
	r.finishers = append(r.finishers, id)
	r.metrics.finishes.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("player", id == PlayerID)))
	r.emit(Event{Kind: EventVehicleFinished, VehicleID: id, Position: len(r.finishers)})
	r.logger.Info("vehicle finished", "race", r.id.String(), "vehicle", id, "position", len(r.finishers), "time", r.elapsed)
}

func (r *Race) emit(e Event) {
	e.Tick = r.tick
	e.Time = r.elapsed
	r.events.Push(e)
}

// Snapshot returns a copy of the presentation-facing state.
func (r *Race) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Track:     r.model.Name,
		Phase:     r.phase,
		Tick:      r.tick,
		Elapsed:   r.elapsed,
		Countdown: math.Max(r.countdown, 0),
		Laps:      r.laps,
	}
	if !r.id.IsNil() {
		s.RaceID = r.id.String()
	}
	if r.phase == PhaseIdle {
		return s
	}

	p := r.player
	s.Vehicles = append(s.Vehicles, core.VehicleView{
		ID:         PlayerID,
		IsPlayer:   true,
		Pose:       core.Pose{Position: p.car.Position, Heading: p.car.Heading},
		Speed:      p.car.Speed,
		Radius:     p.car.Radius,
		Lap:        p.progress.Lap,
		Next:       p.progress.Next,
		Finished:   p.finished,
		FinishTime: p.finishTime,
	})
	for _, a := range r.agents {
		s.Vehicles = append(s.Vehicles, core.VehicleView{
			ID:         a.ID,
			Pose:       core.Pose{Position: a.Car.Position, Heading: a.Car.Heading},
			Speed:      a.Car.Speed,
			Radius:     a.Car.Radius,
			Lap:        a.Lap,
			Next:       r.agentNext(a),
			Finished:   a.Finished,
			FinishTime: a.FinishTime,
		})
	}
	s.Results = r.standings(s.Vehicles)
	return s
}

func (r *Race) agentNext(a *ai.Agent) int {
	if a.Mode == ai.ModeWaypoint {
		return a.Target
	}
	return 0
}

// standings ranks finishers by finishing order, then everyone else by lap
// and progress within the lap.
func (r *Race) standings(views []core.VehicleView) []Result {
	order := make(map[string]int, len(r.finishers))
	for i, id := range r.finishers {
		order[id] = i
	}
	type ranked struct {
		view     core.VehicleView
		progress float64
	}
	rows := make([]ranked, len(views))
	for i, v := range views {
		rows[i] = ranked{view: v, progress: r.lapProgress(v)}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		oa, fa := order[a.view.ID]
		ob, fb := order[b.view.ID]
		if fa != fb {
			return fa
		}
		if fa {
			return oa < ob
		}
		if a.view.Lap != b.view.Lap {
			return a.view.Lap > b.view.Lap
		}
		return a.progress > b.progress
	})

	out := make([]Result, len(rows))
	for i, row := range rows {
		_, finished := order[row.view.ID]
		out[i] = Result{
			Position:   i + 1,
			VehicleID:  row.view.ID,
			IsPlayer:   row.view.IsPlayer,
			Finished:   finished,
			FinishTime: row.view.FinishTime,
			Lap:        row.view.Lap,
		}
	}
	return out
}

// lapProgress estimates how far into the current lap a car is, in [0,1).
func (r *Race) lapProgress(v core.VehicleView) float64 {
	if r.model.HasCenterline() {
		return r.model.Centerline.ProjectNearest(v.Position)
	}
	if n := len(r.model.Checkpoints); n > 0 {
		return float64(v.Next) / float64(n)
	}
	return 0
}

// spawnAgents builds the AI roster from the track's AI spawns, filling the rest
// of the grid behind the player.
func (r *Race) spawnAgents() []*ai.Agent {
	n := r.cfg.AICount
	if n <= 0 {
		return nil
	}
	mode := ai.ChooseMode(r.cfg.AIMode, r.model)
	agents := make([]*ai.Agent, 0, n)
	for i := range n {
		pose := r.gridPose(i)
		id := fmt.Sprintf("ai-%d", i+1)
		agents = append(agents, r.controller.Spawn(id, pose, mode, r.cfg.AI.Rating(i)))
	}
	return agents
}

// gridPose returns the start pose of agent i.
func (r *Race) gridPose(i int) core.Pose {
	m := r.model
	if i < len(m.AISpawns) {
		return m.AISpawns[i]
	}
	slot := i - len(m.AISpawns) + 1
	radius := r.cfg.Vehicle.Radius
	if radius <= 0 {
		radius = 18
	}
	back := float64(slot) * radius * 3
	side := radius * 1.2
	if slot%2 == 0 {
		side = -side
	}

	if m.HasCenterline() {
		total := m.Centerline.TotalLength
		t := geo.Wrap(m.Centerline.ProjectNearest(m.Spawn.Position) - back/total)
		s := m.Centerline.SampleAt(t)
		s.Position = s.Position.Add(core.FromHeading(s.Heading).Perp().Scale(side))
		return s
	}
	dir := core.FromHeading(m.Spawn.Heading)
	pos := m.Spawn.Position.Sub(dir.Scale(back)).Add(dir.Perp().Scale(side))
	return core.Pose{Position: pos, Heading: m.Spawn.Heading}
}
