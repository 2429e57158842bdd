package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// options are the command-line settings that are not config keys.
type options struct {
	configDir string
	mapPath   string
	ticks     int
	dt        time.Duration
	script    string
	autopilot bool
	laps      int
	help      bool
}

var errUsage = errors.New("usage")

// parseFlags parses args and binds the config-backed flags into viper.
func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("racesim", pflag.ContinueOnError)

	fs.StringVar(&opts.configDir, "config", ".", "directory containing racecore.cfg.json")
	fs.StringVarP(&opts.mapPath, "map", "m", "", "map file to race on")
	fs.IntVar(&opts.ticks, "ticks", 3600, "maximum number of ticks to simulate")
	fs.DurationVar(&opts.dt, "dt", time.Second/60, "simulated time per tick")
	fs.StringVar(&opts.script, "script", "", "command script, one \"[tick] :COMMAND: args\" per line")
	fs.BoolVar(&opts.autopilot, "autopilot", false, "drive the player along the centerline")
	fs.IntVar(&opts.laps, "laps", 0, "lap count override (0 uses the map's laps)")
	fs.BoolVarP(&opts.help, "help", "h", false, "show usage")

	fs.Int("ai", 3, "number of AI opponents")
	fs.String("ai-mode", "auto", "AI driving mode: auto, track or waypoint")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "slog", "log backend: slog or zerolog")
	fs.String("status", "", "file rewritten with the race status every monitor interval")

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if opts.help {
		return opts, fs, errUsage
	}
	if opts.mapPath == "" && fs.NArg() > 0 {
		opts.mapPath = fs.Arg(0)
	}
	if opts.mapPath == "" {
		return opts, fs, fmt.Errorf("%w: a map file is required", errUsage)
	}
	if opts.ticks <= 0 {
		return opts, fs, fmt.Errorf("%w: --ticks must be positive", errUsage)
	}
	if opts.dt <= 0 {
		return opts, fs, fmt.Errorf("%w: --dt must be positive", errUsage)
	}
	return opts, fs, nil
}

// bindFlags lets explicitly set flags win over the config file.
func bindFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"race.aiCount":       "ai",
		"race.aiMode":        "ai-mode",
		"logLevel":           "log-level",
		"logFormat":          "log-format",
		"monitor.statusFile": "status",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}
