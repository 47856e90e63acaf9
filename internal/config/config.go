package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Runtime drivers understood by xr.NewModule.
const (
	DriverSimulated = "simulated"
	DriverRemote    = "remote"
)

var (
	sessionModes    = []string{"inline", "immersive-vr", "immersive-ar"}
	referenceSpaces = []string{"viewer", "local", "local-floor", "bounded-floor", "unbounded"}
)

// Config is the root configuration for xrboot.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Report    ReportConfig    `mapstructure:"report"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
}

// BootstrapConfig controls the sequencer. InitTimeout of zero waits for the
// runtime indefinitely (bounded only by Timeout).
type BootstrapConfig struct {
	InitTimeout time.Duration `mapstructure:"init_timeout"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Auto        bool          `mapstructure:"auto"`
}

type RuntimeConfig struct {
	Driver    string          `mapstructure:"driver"`
	Session   SessionConfig   `mapstructure:"session"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Simulated SimulatedConfig `mapstructure:"simulated"`
}

// SessionConfig mirrors the WebXR session request: mode, optional features
// and the reference space requested once the session is granted.
type SessionConfig struct {
	Mode             string   `mapstructure:"mode"`
	OptionalFeatures []string `mapstructure:"optional_features"`
	ReferenceSpace   string   `mapstructure:"reference_space"`
}

type RemoteConfig struct {
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type SimulatedConfig struct {
	Supported bool          `mapstructure:"supported"`
	Delay     time.Duration `mapstructure:"delay"`
	Hang      bool          `mapstructure:"hang"`
}

type ReportConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the XRBOOT_ prefix (e.g. XRBOOT_RUNTIME_DRIVER).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("XRBOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the runtime drivers cannot act on.
func (c *Config) Validate() error {
	switch c.Runtime.Driver {
	case DriverSimulated:
	case DriverRemote:
		if c.Runtime.Remote.URL == "" {
			return fmt.Errorf("runtime.remote.url is required for the %s driver", DriverRemote)
		}
	default:
		return fmt.Errorf("unknown runtime driver %q", c.Runtime.Driver)
	}

	if !slices.Contains(sessionModes, c.Runtime.Session.Mode) {
		return fmt.Errorf("unknown session mode %q", c.Runtime.Session.Mode)
	}
	if !slices.Contains(referenceSpaces, c.Runtime.Session.ReferenceSpace) {
		return fmt.Errorf("unknown reference space %q", c.Runtime.Session.ReferenceSpace)
	}
	if c.Bootstrap.InitTimeout < 0 {
		return fmt.Errorf("bootstrap.init_timeout must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Empty endpoint disables OTEL export.
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "xrboot")
	v.SetDefault("telemetry.log_level", "info")

	v.SetDefault("bootstrap.init_timeout", 30*time.Second)
	v.SetDefault("bootstrap.timeout", 2*time.Minute)
	v.SetDefault("bootstrap.auto", true)

	v.SetDefault("runtime.driver", DriverSimulated)
	v.SetDefault("runtime.session.mode", "immersive-vr")
	v.SetDefault("runtime.session.optional_features", []string{"bounded-floor"})
	v.SetDefault("runtime.session.reference_space", "bounded-floor")
	v.SetDefault("runtime.remote.url", "http://localhost:7070")
	v.SetDefault("runtime.remote.request_timeout", 10*time.Second)
	v.SetDefault("runtime.simulated.supported", true)
	v.SetDefault("runtime.simulated.delay", 250*time.Millisecond)
	v.SetDefault("runtime.simulated.hang", false)

	v.SetDefault("report.redis.enabled", false)
	v.SetDefault("report.redis.host", "localhost")
	v.SetDefault("report.redis.port", 6379)
	v.SetDefault("report.redis.db", 0)
	v.SetDefault("report.redis.ttl", 24*time.Hour)

	v.SetDefault("report.nats.enabled", false)
	v.SetDefault("report.nats.url", "nats://localhost:4222")
	v.SetDefault("report.nats.stream", "XR_BOOTSTRAP")
	v.SetDefault("report.nats.subject_prefix", "xr.bootstrap")

	v.SetDefault("report.postgres.enabled", false)
	v.SetDefault("report.postgres.host", "localhost")
	v.SetDefault("report.postgres.port", 5432)
	v.SetDefault("report.postgres.user", "xrboot")
	v.SetDefault("report.postgres.db", "xrboot")
	v.SetDefault("report.postgres.ssl_mode", "disable")
	v.SetDefault("report.postgres.max_conns", 4)
}
