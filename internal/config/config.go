package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// FileName is the config file looked up in the config directory.
const FileName = "tracksim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpDir      string
}

// StorageConfig selects and configures the telemetry storage backend.
type StorageConfig struct {
	Type   string // memory, sqlite, postgres, websocket
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// OTelConfig mirrors the otel section.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ReplicationConfig configures the authority server and its clients.
type ReplicationConfig struct {
	Listen  string
	URL     string
	Secret  string
	Vehicle string
}

// ScenarioConfig drives the fixed-step runner.
type ScenarioConfig struct {
	Name     string
	TickRate float64
	Duration time.Duration
	Realtime bool
	Origin   OriginConfig
	Steps    []ScenarioStep
}

// OriginConfig anchors the local frame.
type OriginConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Altitude  float64 `mapstructure:"altitude"`
}

// ScenarioStep sets driver inputs at a point of the timeline. Nil fields keep
// the previous value.
type ScenarioStep struct {
	At        float64  `json:"at" mapstructure:"at"` // seconds
	Throttle  *float64 `json:"throttle" mapstructure:"throttle"`
	Steering  *float64 `json:"steering" mapstructure:"steering"`
	Handbrake *bool    `json:"handbrake" mapstructure:"handbrake"`
	Shift     string   `json:"shift" mapstructure:"shift"` // "up" or "down"
	Note      string   `json:"note" mapstructure:"note"`
}

// APIConfig points at the collector that receives exported sessions.
type APIConfig struct {
	ServerURL string
	APIKey    string
	Upload    bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Test")
	viper.SetDefault("logsDir", "./tracksimlogs")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tracksim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "tracksim")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpDir", "./recordings")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tracksim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("replication.listen", ":8090")
	viper.SetDefault("replication.url", "ws://localhost:8090/replicate")
	viper.SetDefault("replication.secret", "")
	viper.SetDefault("replication.vehicle", "tank")

	viper.SetDefault("scenario.name", "straight_and_pivot")
	viper.SetDefault("scenario.tickRate", 60)
	viper.SetDefault("scenario.duration", "30s")
	viper.SetDefault("scenario.realtime", false)
	viper.SetDefault("scenario.origin.latitude", 52.52)
	viper.SetDefault("scenario.origin.longitude", 13.405)
	viper.SetDefault("scenario.origin.altitude", 34)

	viper.SetDefault("layout.wheelsPerSide", 6)
	viper.SetDefault("layout.length", 5.0)
	viper.SetDefault("layout.width", 3.0)
	viper.SetDefault("layout.height", 0.0)
	viper.SetDefault("layout.mass", 30000.0)
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

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpDir:      viper.GetString("storage.sqlite.dumpDir"),
		},
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetReplicationConfig returns the replication section.
func GetReplicationConfig() ReplicationConfig {
	return ReplicationConfig{
		Listen:  viper.GetString("replication.listen"),
		URL:     viper.GetString("replication.url"),
		Secret:  viper.GetString("replication.secret"),
		Vehicle: viper.GetString("replication.vehicle"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
	}
}

// GetScenarioConfig returns the scenario section. A missing step list yields
// the built-in drive: straight, pivot, coast.
func GetScenarioConfig() (ScenarioConfig, error) {
	sc := ScenarioConfig{
		Name:     viper.GetString("scenario.name"),
		TickRate: viper.GetFloat64("scenario.tickRate"),
		Duration: viper.GetDuration("scenario.duration"),
		Realtime: viper.GetBool("scenario.realtime"),
	}
	if err := viper.UnmarshalKey("scenario.origin", &sc.Origin); err != nil {
		return sc, fmt.Errorf("scenario.origin: %w", err)
	}
	if err := viper.UnmarshalKey("scenario.steps", &sc.Steps); err != nil {
		return sc, fmt.Errorf("scenario.steps: %w", err)
	}
	if len(sc.Steps) == 0 {
		sc.Steps = DefaultSteps()
	}
	if sc.TickRate <= 0 {
		return sc, fmt.Errorf("scenario.tickRate must be positive, got %v", sc.TickRate)
	}
	return sc, nil
}

// DefaultSteps is the built-in drive.
func DefaultSteps() []ScenarioStep {
	one, zero, half := 1.0, 0.0, 0.5
	on, off := true, false
	return []ScenarioStep{
		{At: 0, Throttle: &one, Steering: &zero, Note: "straight"},
		{At: 8, Throttle: &zero, Steering: &one, Note: "pivot"},
		{At: 14, Throttle: &half, Steering: &half, Note: "arc"},
		{At: 20, Throttle: &zero, Steering: &zero, Handbrake: &on, Note: "stop"},
		{At: 23, Handbrake: &off, Note: "coast"},
	}
}

// GetVehicleConfig builds the vehicle setup: the stock tank overlaid with the
// "vehicle" tree, and a generated track layout when no wheels are listed.
func GetVehicleConfig() (vehicle.Config, error) {
	cfg := vehicle.DefaultConfig()
	if viper.IsSet("vehicle") {
		if err := viper.UnmarshalKey("vehicle", &cfg); err != nil {
			return cfg, fmt.Errorf("decoding vehicle config: %w", err)
		}
	}
	if len(cfg.Wheels) == 0 {
		cfg.Wheels = vehicle.TankWheels(
			viper.GetInt("layout.wheelsPerSide"),
			viper.GetFloat64("layout.length"),
			viper.GetFloat64("layout.width"),
			viper.GetFloat64("layout.height"),
		)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetMass returns the reference body mass in kg.
func GetMass() float64 {
	return viper.GetFloat64("layout.mass")
}
