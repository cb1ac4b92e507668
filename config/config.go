// Package config loads the ringwire node configuration with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/format"
	"github.com/arloliu/ringwire/internal/hash"
)

// EnvPrefix prefixes environment overrides, e.g. RINGWIRE_LOG_LEVEL=debug.
const EnvPrefix = "RINGWIRE"

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "RINGWIRE_CONFIG"

// Config is the root configuration of a ringwire node.
type Config struct {
	// Node is a logical name attached to log lines
	Node string `mapstructure:"node"`

	Log       LogConfig       `mapstructure:"log"`
	Ring      RingConfig      `mapstructure:"ring"`
	Sender    SenderConfig    `mapstructure:"sender"`
	Transport TransportConfig `mapstructure:"transport"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RingConfig sizes the outgoing ring.
type RingConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// SenderConfig configures the drain loop.
type SenderConfig struct {
	Topic int32 `mapstructure:"topic"`
	// TopicName, when set, replaces Topic with its hashed id
	TopicName string `mapstructure:"topic_name"`
	// OnError: propagate or drop
	OnError string `mapstructure:"on_error"`
	// Shutdown: discard or flush
	Shutdown        string        `mapstructure:"shutdown"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TransportConfig selects and configures the messaging service.
type TransportConfig struct {
	// Kind: mem or udp
	Kind   string `mapstructure:"kind"`
	Listen string `mapstructure:"listen"`
	// Remote is a host:port; when empty it is resolved from Endpoints.Remote
	Remote      string `mapstructure:"remote"`
	Compression string `mapstructure:"compression"`
	MaxDatagram int    `mapstructure:"max_datagram"`
}

// EndpointsConfig points at the endpoint table used to resolve services.
type EndpointsConfig struct {
	File   string `mapstructure:"file"`
	Remote string `mapstructure:"remote"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Node: "ringwire-node",
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/ringwire.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Ring: RingConfig{Capacity: 1024},
		Sender: SenderConfig{
			Topic:           1,
			OnError:         "propagate",
			Shutdown:        "flush",
			ShutdownTimeout: 5 * time.Second,
		},
		Transport: TransportConfig{
			Kind:        "mem",
			Listen:      "127.0.0.1:7700",
			Compression: "none",
			MaxDatagram: 64 * 1024,
		},
	}
}

// Load reads configuration from path when non-empty, otherwise from
// $RINGWIRE_CONFIG or a ringwire.{yaml,toml} file in . or ./configs.
// A missing file is not an error; defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ringwire")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %w", errs.ErrConfiguration, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", errs.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// seed every key so env-only configs work
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("node", cfg.Node)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("ring.capacity", cfg.Ring.Capacity)
	v.SetDefault("sender.topic", cfg.Sender.Topic)
	v.SetDefault("sender.topic_name", cfg.Sender.TopicName)
	v.SetDefault("sender.on_error", cfg.Sender.OnError)
	v.SetDefault("sender.shutdown", cfg.Sender.Shutdown)
	v.SetDefault("sender.shutdown_timeout", cfg.Sender.ShutdownTimeout)
	v.SetDefault("transport.kind", cfg.Transport.Kind)
	v.SetDefault("transport.listen", cfg.Transport.Listen)
	v.SetDefault("transport.remote", cfg.Transport.Remote)
	v.SetDefault("transport.compression", cfg.Transport.Compression)
	v.SetDefault("transport.max_datagram", cfg.Transport.MaxDatagram)
	v.SetDefault("endpoints.file", cfg.Endpoints.File)
	v.SetDefault("endpoints.remote", cfg.Endpoints.Remote)
}

// Validate normalizes enumerations to lower case and rejects invalid values
// with errs.ErrConfiguration.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: invalid log.level %q", errs.ErrConfiguration, c.Log.Level)
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("%w: invalid log.format %q", errs.ErrConfiguration, c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Ring.Capacity <= 0 {
		return fmt.Errorf("%w: ring.capacity must be positive, got %d", errs.ErrConfiguration, c.Ring.Capacity)
	}

	if name := strings.TrimSpace(c.Sender.TopicName); name != "" {
		c.Sender.Topic = hash.TopicID(name)
	}

	c.Sender.OnError = strings.ToLower(strings.TrimSpace(c.Sender.OnError))
	switch c.Sender.OnError {
	case "propagate", "drop":
	default:
		return fmt.Errorf("%w: invalid sender.on_error %q", errs.ErrConfiguration, c.Sender.OnError)
	}
	c.Sender.Shutdown = strings.ToLower(strings.TrimSpace(c.Sender.Shutdown))
	switch c.Sender.Shutdown {
	case "discard", "flush":
	default:
		return fmt.Errorf("%w: invalid sender.shutdown %q", errs.ErrConfiguration, c.Sender.Shutdown)
	}
	if c.Sender.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: negative sender.shutdown_timeout", errs.ErrConfiguration)
	}

	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	switch c.Transport.Kind {
	case "mem":
	case "udp":
		if c.Transport.Listen == "" {
			return fmt.Errorf("%w: udp transport needs transport.listen", errs.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: invalid transport.kind %q", errs.ErrConfiguration, c.Transport.Kind)
	}
	if _, err := format.ParseCompressionType(c.Transport.Compression); err != nil {
		return err
	}
	if c.Transport.MaxDatagram <= 0 {
		return fmt.Errorf("%w: transport.max_datagram must be positive", errs.ErrConfiguration)
	}

	return nil
}

// Compression returns the parsed transport compression. It assumes Validate
// succeeded.
func (c *Config) Compression() format.CompressionType {
	ct, _ := format.ParseCompressionType(c.Transport.Compression)
	return ct
}
