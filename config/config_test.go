package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ringwire/errs"
	"github.com/arloliu/ringwire/format"
	"github.com/arloliu/ringwire/internal/hash"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, format.CompressionNone, cfg.Compression())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "ringwire.yaml", `
node: edge-a
log:
  level: DEBUG
  format: json
ring:
  capacity: 64
sender:
  topic: 9
  on_error: drop
  shutdown: discard
  shutdown_timeout: 250ms
transport:
  kind: udp
  listen: 127.0.0.1:0
  remote: 127.0.0.1:7701
  compression: zstd
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "edge-a", cfg.Node)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, 64, cfg.Ring.Capacity)
	require.Equal(t, int32(9), cfg.Sender.Topic)
	require.Equal(t, "drop", cfg.Sender.OnError)
	require.Equal(t, "discard", cfg.Sender.Shutdown)
	require.Equal(t, 250*time.Millisecond, cfg.Sender.ShutdownTimeout)
	require.Equal(t, "udp", cfg.Transport.Kind)
	require.Equal(t, format.CompressionZstd, cfg.Compression())
	require.Equal(t, 64*1024, cfg.Transport.MaxDatagram, "unset keys keep defaults")
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "ringwire.toml", `
[ring]
capacity = 16

[endpoints]
file = "endpoints.toml"
remote = "quotes"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Ring.Capacity)
	require.Equal(t, "endpoints.toml", cfg.Endpoints.File)
	require.Equal(t, "quotes", cfg.Endpoints.Remote)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "ringwire.yaml", "ring:\n  capacity: 64\n")
	t.Setenv("RINGWIRE_RING_CAPACITY", "128")
	t.Setenv("RINGWIRE_SENDER_ON_ERROR", "drop")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Ring.Capacity)
	require.Equal(t, "drop", cfg.Sender.OnError)
}

func TestLoad_ConfigEnv(t *testing.T) {
	path := writeFile(t, "custom.yaml", "node: from-env\n")
	t.Setenv(ConfigEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Node)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestValidate_TopicName(t *testing.T) {
	cfg := Default()
	cfg.Sender.TopicName = " quotes "
	require.NoError(t, cfg.Validate())
	require.Equal(t, hash.TopicID("quotes"), cfg.Sender.Topic)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"level":       func(c *Config) { c.Log.Level = "verbose" },
		"format":      func(c *Config) { c.Log.Format = "xml" },
		"capacity":    func(c *Config) { c.Ring.Capacity = 0 },
		"on_error":    func(c *Config) { c.Sender.OnError = "retry" },
		"shutdown":    func(c *Config) { c.Sender.Shutdown = "abort" },
		"timeout":     func(c *Config) { c.Sender.ShutdownTimeout = -time.Second },
		"kind":        func(c *Config) { c.Transport.Kind = "tcp" },
		"listen":      func(c *Config) { c.Transport.Kind, c.Transport.Listen = "udp", "" },
		"compression": func(c *Config) { c.Transport.Compression = "gzip" },
		"datagram":    func(c *Config) { c.Transport.MaxDatagram = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.ErrorIs(t, cfg.Validate(), errs.ErrConfiguration, name)
	}
}
