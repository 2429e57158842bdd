// Command racesim runs a headless race on a map file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tiledrace/racecore/internal/cache"
	"github.com/tiledrace/racecore/internal/config"
	"github.com/tiledrace/racecore/internal/control"
	"github.com/tiledrace/racecore/internal/dispatcher"
	"github.com/tiledrace/racecore/internal/loader"
	"github.com/tiledrace/racecore/internal/logging"
	"github.com/tiledrace/racecore/internal/monitor"
	intOtel "github.com/tiledrace/racecore/internal/otel"
	"github.com/tiledrace/racecore/internal/race"
	"github.com/tiledrace/racecore/internal/track"
)

// BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// Logger is what the simulator packages log through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// session holds everything one run owns.
type session struct {
	opts options
	id   string

	slog     *logging.SlogManager
	log      Logger
	raceCtx  *logging.RaceContext
	otel     *intOtel.Provider
	logFile  *os.File
	started  time.Time
	shutdown []func(context.Context) error
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "racesim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, fs, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "usage: racesim --map <file> [flags]")
			fs.PrintDefaults()
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &session{
		opts:    opts,
		id:      ksuid.New().String(),
		started: time.Now(),
		raceCtx: &logging.RaceContext{},
	}
	configErr := config.Load(opts.configDir)
	if err := bindFlags(fs); err != nil {
		return err
	}
	s.setupLogging()
	defer s.close()

	if configErr != nil {
		s.log.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		s.log.Info("Loaded config", "dir", opts.configDir)
	}
	s.log.Info("racesim starting", "session", s.id, "version", Version, "build", BuildDate, "map", opts.mapPath)

	return s.race(ctx)
}

// setupLogging mirrors the config: a session log file under logsDir, an
// optional OTel pipeline writing to the same file, and a slog or zerolog
// front end.
func (s *session) setupLogging() {
	level := viper.GetString("logLevel")
	s.slog = logging.NewSlogManager().WithContext(s.raceCtx.Provider())

	var file io.Writer
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logs dir %s: %v\n", logsDir, err)
	} else {
		path := logging.LogFilePath(logsDir, logging.AppName, s.started)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", path, err)
		} else {
			s.logFile = f
			file = io.MultiWriter(os.Stdout, f)
		}
	}

	var provider *sdklog.LoggerProvider
	otelCfg := config.OTelConfig()
	if otelCfg.Enabled {
		otelCfg.LogWriter = s.logFile
		otelCfg.ServiceVersion = Version
		otelCfg.SessionID = s.id
		otelCfg.MapPath = s.opts.mapPath
		otelCfg.Ticks = s.opts.ticks
		p, err := intOtel.New(otelCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		} else {
			s.otel = p
			provider = p.LoggerProvider()
			s.shutdown = append(s.shutdown, p.Shutdown)
		}
	}

	s.slog.Setup(file, level, provider)
	switch viper.GetString("logFormat") {
	case "zerolog":
		out := io.Writer(os.Stdout)
		if file != nil {
			out = file
		}
		s.log = logging.NewZerologAdapter(logging.NewZerolog(out, level))
	default:
		s.log = s.slog.Logger()
	}
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.slog.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	for _, fn := range s.shutdown {
		if err := fn(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
		}
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// race loads the map, wires the command handlers and runs the frame loop.
func (s *session) race(ctx context.Context) error {
	store := track.NewStore()
	ld, err := loader.New(loader.Config{
		Store:    store,
		Fetcher:  loader.FetchFunc(readMapFile),
		Resolver: resolveAtlas,
		Images:   cache.NewImageCache(),
		Options:  config.ParseOptions(),
		Logger:   s.log,
	})
	if err != nil {
		return fmt.Errorf("creating loader: %w", err)
	}

	cfg := config.RaceConfig()
	if s.opts.laps > 0 {
		cfg.Laps = s.opts.laps
	}
	r, err := race.New(cfg, s.log)
	if err != nil {
		return fmt.Errorf("creating race: %w", err)
	}

	d, err := dispatcher.New(s.log)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer d.Close()
	control.NewManager(ctx, control.Dependencies{Race: r, Store: store, Loader: ld}).RegisterHandlers(d)

	loaded := ld.LoadAsync(ctx, s.opts.mapPath)

	sc := defaultScript()
	if s.opts.script != "" {
		f, err := os.Open(s.opts.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		sc, err = parseScript(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	if out := <-loaded; out.Err != nil {
		return out.Err
	}

	if path := viper.GetString("monitor.statusFile"); path != "" {
		mon := monitor.NewService(monitor.Dependencies{
			Source:     r,
			Logger:     s.log,
			StatusFile: path,
			Interval:   viper.GetDuration("monitor.interval"),
		})
		if err := mon.Start(); err != nil {
			s.log.Error("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	dt := s.opts.dt.Seconds()
	for tick := range s.opts.ticks {
		if ctx.Err() != nil {
			s.log.Warn("interrupted", "tick", tick)
			break
		}
		for _, line := range sc.due(tick) {
			result, err := d.DispatchLine(line)
			if err != nil {
				s.log.Warn("command rejected", "line", line, "error", err)
				continue
			}
			if result != nil {
				s.log.Debug("command result", "line", line, "result", result)
			}
		}

		if s.opts.autopilot && r.Phase() == race.PhaseRunning {
			snap := r.Snapshot()
			if len(snap.Vehicles) > 0 {
				r.SetInput(autopilot(r.Model(), snap.Vehicles[0]))
			}
		}

		r.Step(dt)
		s.raceCtx.Set(r.ID(), r.Phase().String(), r.Tick())
		s.logEvents(r.Events())

		if r.Phase() == race.PhaseFinished {
			break
		}
	}

	s.logStandings(r.Snapshot())
	if s.otel != nil {
		if err := s.otel.Flush(ctx); err != nil {
			s.log.Warn("otel flush failed", "error", err)
		}
	}
	return nil
}

func (s *session) logEvents(events []race.Event) {
	for _, e := range events {
		kv := []any{"kind", e.Kind.String(), "tick", e.Tick, "time", e.Time}
		if e.VehicleID != "" {
			kv = append(kv, "vehicle", e.VehicleID)
		}
		switch e.Kind {
		case race.EventCheckpointPassed, race.EventRespawn:
			s.log.Debug("race event", append(kv, "checkpoint", e.Checkpoint)...)
		case race.EventLapCompleted:
			s.log.Info("race event", append(kv, "lap", e.Lap)...)
		case race.EventVehicleFinished:
			s.log.Info("race event", append(kv, "position", e.Position)...)
		default:
			s.log.Info("race event", kv...)
		}
	}
}

func (s *session) logStandings(snap race.Snapshot) {
	s.log.Info("race summary",
		"race", snap.RaceID,
		"track", snap.Track,
		"phase", snap.Phase.String(),
		"ticks", snap.Tick,
		"elapsed", snap.Elapsed,
	)
	for _, res := range snap.Results {
		s.log.Info("standing",
			"position", res.Position,
			"vehicle", res.VehicleID,
			"player", res.IsPlayer,
			"lap", res.Lap,
			"finished", res.Finished,
			"time", res.FinishTime,
		)
	}
}

var _ Logger = (*slog.Logger)(nil)
