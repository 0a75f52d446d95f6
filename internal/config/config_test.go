package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("GAME_CONFIG", "")
	t.Setenv("GAME_PORT", "")
	t.Setenv("GAME_STATUS_PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 25565, cfg.Server.GetPort())
	assert.Equal(t, 8088, cfg.Server.GetStatusPort())
	assert.Equal(t, "tcp", cfg.Server.Transport)
	assert.Equal(t, 64, cfg.World.RegionWidth)
	assert.Equal(t, 16, cfg.World.ColumnHeight)
	assert.Equal(t, 64, cfg.World.MaxHeight)
	assert.Equal(t, "sequential", cfg.Network.Identity)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 4000
  bind_address: 127.0.0.1
  transport: kcp
  status_port: -1
world:
  seed: 42
  region_width: 8
  region_depth: 4
network:
  identity: checksum
  write_timeout: 5s
  read_timeout: 20s
  keepalive: 4s
  rate_limit: 120
  rate_burst: 10
logging:
  level: debug
  to_file: true
  components:
    network: trace
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr())
	assert.Equal(t, "kcp", cfg.Server.Transport)
	assert.Equal(t, 0, cfg.Server.GetStatusPort(), "отрицательный порт отключает API")
	assert.Equal(t, uint32(42), cfg.World.Seed)
	assert.Equal(t, 8, cfg.World.RegionWidth)
	assert.Equal(t, 4, cfg.World.RegionDepth)
	assert.Equal(t, 16, cfg.World.ColumnHeight, "незаданные поля получают значения по умолчанию")
	assert.Equal(t, "checksum", cfg.Network.Identity)
	assert.Equal(t, 5*time.Second, cfg.Network.WriteTimeout)
	assert.Equal(t, 20*time.Second, cfg.Network.ReadTimeout)
	assert.Equal(t, 4*time.Second, cfg.Network.KeepAlive)
	assert.Equal(t, 120.0, cfg.Network.RateLimit)
	assert.Equal(t, map[string]string{"network": "trace"}, cfg.Logging.Components)
	assert.True(t, cfg.Logging.ToFile)
	assert.Equal(t, "logs", cfg.Logging.Dir)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv("GAME_CONFIG", writeConfig(t, "world:\n  seed: 7\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.World.Seed)
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("GAME_PORT", "31000")
	t.Setenv("GAME_STATUS_PORT", "not-a-port")

	s := ServerConfig{}
	assert.Equal(t, 31000, s.GetPort())
	assert.Equal(t, 8088, s.GetStatusPort())

	s.Port = 5000
	assert.Equal(t, 5000, s.GetPort(), "значение из файла важнее окружения")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server:\n  transport: quic\n"))
	assert.ErrorContains(t, err, "server.transport")

	_, err = Load(writeConfig(t, "network:\n  identity: random\n"))
	assert.ErrorContains(t, err, "network.identity")

	_, err = Load(writeConfig(t, "world:\n  column_height: 2\n  max_height: 64\n"))
	assert.ErrorContains(t, err, "world.max_height")

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n"))
	assert.ErrorContains(t, err, "logging.level")

	_, err = Load(writeConfig(t, "logging:\n  components:\n    network: loud\n"))
	assert.ErrorContains(t, err, "logging.components.network")

	_, err = Load(writeConfig(t, "network:\n  read_timeout: -1s\n"))
	assert.ErrorContains(t, err, "network")
}
