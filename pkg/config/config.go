// Package config loads the obstacled server configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/obstacled/pkg/logging"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Scene   SceneConfig   `toml:"scene"`
	Planner PlannerConfig `toml:"planner"`
}

// ServerConfig holds gRPC listener settings.
type ServerConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	MaxRecvMsgSize    int      `toml:"max_recv_msg_size"`
	MaxSendMsgSize    int      `toml:"max_send_msg_size"`
	EnableReflection  bool     `toml:"enable_reflection"`
	KeepaliveInterval Duration `toml:"keepalive_interval"`
	KeepaliveTimeout  Duration `toml:"keepalive_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SceneConfig holds scene script settings.
type SceneConfig struct {
	// Path is a script evaluated once at startup. Empty means none.
	Path        string   `toml:"path"`
	EvalTimeout Duration `toml:"eval_timeout"`
	// MaxConcurrent caps evaluations in flight, including scripts that
	// timed out but are still running.
	MaxConcurrent int `toml:"max_concurrent"`
}

// PlannerConfig holds settings for the active obstacle set views.
type PlannerConfig struct {
	// IncludeHidden makes ActiveMeshes return invisible polyhedra too.
	IncludeHidden bool `toml:"include_hidden"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              9400,
			MaxRecvMsgSize:    16 * 1024 * 1024,
			MaxSendMsgSize:    16 * 1024 * 1024,
			EnableReflection:  true,
			KeepaliveInterval: Duration{30 * time.Second},
			KeepaliveTimeout:  Duration{10 * time.Second},
			ShutdownTimeout:   Duration{30 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scene: SceneConfig{
			EvalTimeout:   Duration{5 * time.Second},
			MaxConcurrent: 4,
		},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvHost     = "OBSTACLED_HOST"
	EnvPort     = "OBSTACLED_PORT"
	EnvLogLevel = "OBSTACLED_LOG_LEVEL"
	EnvScene    = "OBSTACLED_SCENE"
)

// ApplyEnv overrides fields from OBSTACLED_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvScene); v != "" {
		c.Scene.Path = v
	}
	return nil
}

// Address returns host:port for the listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxRecvMsgSize <= 0 {
		errs = append(errs, errors.New("server.max_recv_msg_size must be positive"))
	}
	if c.Server.MaxSendMsgSize <= 0 {
		errs = append(errs, errors.New("server.max_send_msg_size must be positive"))
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Scene.EvalTimeout.Duration <= 0 {
		errs = append(errs, errors.New("scene.eval_timeout must be positive"))
	}
	if c.Scene.MaxConcurrent < 1 {
		errs = append(errs, errors.New("scene.max_concurrent must be at least 1"))
	}
	return errors.Join(errs...)
}
