package config

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/tiledrace/racecore/internal/ai"
	"github.com/tiledrace/racecore/internal/otel"
	"github.com/tiledrace/racecore/internal/race"
	"github.com/tiledrace/racecore/internal/tilemap"
	"github.com/tiledrace/racecore/internal/vehicle"
)

// FileName is the config file looked up in the config directory.
const FileName = "racecore.cfg.json"

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./racelogs")
	viper.SetDefault("logFormat", "slog")

	viper.SetDefault("race.laps", 3)
	viper.SetDefault("race.countdown", "3s")
	viper.SetDefault("race.aiCount", 3)
	viper.SetDefault("race.aiMode", "auto")
	viper.SetDefault("race.respawnOffset", 40.0)

	v := vehicle.DefaultParams()
	viper.SetDefault("vehicle.maxSpeed", v.MaxSpeed)
	viper.SetDefault("vehicle.acceleration", v.Acceleration)
	viper.SetDefault("vehicle.braking", v.Braking)
	viper.SetDefault("vehicle.drag", v.Drag)
	viper.SetDefault("vehicle.turnRateLow", v.TurnRateLow)
	viper.SetDefault("vehicle.turnRateHigh", v.TurnRateHigh)
	viper.SetDefault("vehicle.steerDeadzone", v.SteerDeadzone)
	viper.SetDefault("vehicle.maxDt", v.MaxDt)
	viper.SetDefault("vehicle.groundFactor", v.GroundFactor)
	viper.SetDefault("vehicle.obstacleDamping", v.ObstacleDamping)
	viper.SetDefault("vehicle.vehicleDamping", v.VehicleDamping)
	viper.SetDefault("vehicle.radius", v.Radius)

	a := ai.DefaultParams()
	viper.SetDefault("ai.baseSpeed", a.BaseSpeed)
	viper.SetDefault("ai.avoidRadius", a.AvoidRadius)
	viper.SetDefault("ai.agentAvoidRadius", a.AgentAvoidRadius)
	viper.SetDefault("ai.agentWeight", a.AgentWeight)
	viper.SetDefault("ai.playerWeight", a.PlayerWeight)
	viper.SetDefault("ai.maxTurnRate", a.MaxTurnRate)
	viper.SetDefault("ai.captureRadius", a.CaptureRadius)
	viper.SetDefault("ai.speedRatings", []float64{})

	viper.SetDefault("map.trackWidth", 120.0)
	viper.SetDefault("map.obstacleRadius", 18.0)

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racecore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.compress", false)
	viper.SetDefault("otel.queueSize", 4096)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// VehicleParams returns the configured handling model.
func VehicleParams() vehicle.Params {
	return vehicle.Params{
		MaxSpeed:        viper.GetFloat64("vehicle.maxSpeed"),
		Acceleration:    viper.GetFloat64("vehicle.acceleration"),
		Braking:         viper.GetFloat64("vehicle.braking"),
		Drag:            viper.GetFloat64("vehicle.drag"),
		TurnRateLow:     viper.GetFloat64("vehicle.turnRateLow"),
		TurnRateHigh:    viper.GetFloat64("vehicle.turnRateHigh"),
		SteerDeadzone:   viper.GetFloat64("vehicle.steerDeadzone"),
		MaxDt:           viper.GetFloat64("vehicle.maxDt"),
		GroundFactor:    viper.GetFloat64("vehicle.groundFactor"),
		ObstacleDamping: viper.GetFloat64("vehicle.obstacleDamping"),
		VehicleDamping:  viper.GetFloat64("vehicle.vehicleDamping"),
		Radius:          viper.GetFloat64("vehicle.radius"),
	}
}

// AIParams returns the configured opponent tuning. Unparseable speed
// ratings fall back to the derived spread.
func AIParams() ai.Params {
	ratings, err := cast.ToFloat64SliceE(viper.Get("ai.speedRatings"))
	if err != nil || len(ratings) == 0 {
		ratings = nil
	}
	return ai.Params{
		BaseSpeed:        viper.GetFloat64("ai.baseSpeed"),
		AvoidRadius:      viper.GetFloat64("ai.avoidRadius"),
		AgentAvoidRadius: viper.GetFloat64("ai.agentAvoidRadius"),
		AgentWeight:      viper.GetFloat64("ai.agentWeight"),
		PlayerWeight:     viper.GetFloat64("ai.playerWeight"),
		MaxTurnRate:      viper.GetFloat64("ai.maxTurnRate"),
		CaptureRadius:    viper.GetFloat64("ai.captureRadius"),
		SpeedRatings:     ratings,
	}
}

// RaceConfig returns the race setup. The lap count is left to the track;
// race.laps only applies to maps without a laps property, see ParseOptions.
func RaceConfig() race.Config {
	return race.Config{
		Countdown:     viper.GetDuration("race.countdown"),
		AICount:       max(viper.GetInt("race.aiCount"), 0),
		AIMode:        viper.GetString("race.aiMode"),
		RespawnOffset: viper.GetFloat64("race.respawnOffset"),
		Vehicle:       VehicleParams(),
		AI:            AIParams(),
	}
}

// ParseOptions returns the defaults applied while parsing maps.
func ParseOptions() tilemap.Options {
	return tilemap.Options{
		DefaultLaps:           viper.GetInt("race.laps"),
		DefaultTrackWidth:     viper.GetFloat64("map.trackWidth"),
		DefaultObstacleRadius: viper.GetFloat64("map.obstacleRadius"),
	}
}

// OTelConfig returns the OpenTelemetry settings. LogWriter is left for the
// caller to attach.
func OTelConfig() otel.Config {
	timeout := viper.GetDuration("otel.batchTimeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: timeout,
		QueueSize:    viper.GetInt("otel.queueSize"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		Compress:     viper.GetBool("otel.compress"),
	}
}
