package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Presence: PresenceConfig{
			TickInterval:      300 * time.Millisecond,
			TileSize:          32,
			Radius:            2,
			ExpireTicks:       3,
			EmptyRoomDebounce: 2 * time.Second,
		},
		World: WorldConfig{
			RoomsFile: "content/rooms.yaml",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5s
logging:
  level: debug
  format: console
presence:
  tick_interval: 250ms
  tile_size: 16
  radius: 3
  expire_ticks: 3
  empty_room_debounce: 1s
world:
  rooms_file: testdata/rooms.yaml
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Presence.TickInterval)
	assert.Equal(t, 16, cfg.Presence.TileSize)
	assert.Equal(t, "testdata/rooms.yaml", cfg.World.RoomsFile)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: warn
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 300*time.Millisecond, cfg.Presence.TickInterval)
	assert.Equal(t, 3, cfg.Presence.ExpireTicks)
	assert.Equal(t, "content/rooms.yaml", cfg.World.RoomsFile)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateTickInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Presence.TickInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateTileSize(t *testing.T) {
	cfg := validConfig()
	cfg.Presence.TileSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateExpireTicks(t *testing.T) {
	cfg := validConfig()
	cfg.Presence.ExpireTicks = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRoomsFileEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.World.RoomsFile = ""
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Generate ports outside valid range
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyPresenceBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Presence.TileSize = rapid.IntRange(1, 256).Draw(t, "tile_size")
		cfg.Presence.Radius = rapid.IntRange(0, 50).Draw(t, "radius")
		cfg.Presence.ExpireTicks = rapid.IntRange(1, 100).Draw(t, "expire_ticks")
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid presence config rejected: %v", err)
		}
	})
}
