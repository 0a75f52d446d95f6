package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/sciencecraft/internal/logging"
)

// Config корневая структура конфигурации приложения
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Network   NetworkConfig   `yaml:"network"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	Transport   string `yaml:"transport"`   // tcp | kcp
	StatusPort  int    `yaml:"status_port"` // < 0 отключает HTTP API
}

type WorldConfig struct {
	Seed         uint32 `yaml:"seed"` // 0 - выбрать случайно при старте
	RegionWidth  int    `yaml:"region_width"`
	RegionDepth  int    `yaml:"region_depth"`
	ColumnHeight int    `yaml:"column_height"`
	MaxHeight    int    `yaml:"max_height"`
	Workers      int    `yaml:"workers"` // 0 - GOMAXPROCS
}

type NetworkConfig struct {
	Identity     string        `yaml:"identity"` // sequential | checksum
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"` // простой входящего потока; 0 - только для kcp, 15s
	KeepAlive    time.Duration `yaml:"keepalive"`    // период повтора PLAYER_UPDATE клиентом; 0 - только для kcp, 5s
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	ToFile     bool              `yaml:"to_file"`
	Dir        string            `yaml:"dir"`
	Components map[string]string `yaml:"components"` // компонент -> уровень консоли, например network: trace
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = "tcp"
	}
	if c.World.RegionWidth <= 0 {
		c.World.RegionWidth = 64
	}
	if c.World.RegionDepth <= 0 {
		c.World.RegionDepth = 64
	}
	if c.World.ColumnHeight <= 0 {
		c.World.ColumnHeight = 16
	}
	if c.World.MaxHeight <= 0 {
		c.World.MaxHeight = 64
	}
	if c.Network.Identity == "" {
		c.Network.Identity = "sequential"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "sciencecraft"
	}
}

// Validate проверяет значения, которые нельзя заменить значениями по умолчанию
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "tcp", "kcp":
	default:
		return fmt.Errorf("server.transport: неизвестный транспорт %q", c.Server.Transport)
	}
	switch c.Network.Identity {
	case "sequential", "checksum":
	default:
		return fmt.Errorf("network.identity: неизвестная схема %q", c.Network.Identity)
	}
	if c.World.MaxHeight > c.World.ColumnHeight*4 {
		return fmt.Errorf("world.max_height %d выше колонки из %d чанков", c.World.MaxHeight, c.World.ColumnHeight)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	for component, level := range c.Logging.Components {
		if _, err := logging.ParseLevel(level); err != nil {
			return fmt.Errorf("logging.components.%s: %w", component, err)
		}
	}
	if c.Network.RateLimit < 0 || c.Network.WriteTimeout < 0 ||
		c.Network.ReadTimeout < 0 || c.Network.KeepAlive < 0 {
		return fmt.Errorf("network: отрицательные ограничения недопустимы")
	}
	return nil
}

// GetPort возвращает порт репликации с поддержкой fallback значений
func (s *ServerConfig) GetPort() int {
	return getPortWithEnvFallback(s.Port, "GAME_PORT", 25565)
}

// GetStatusPort возвращает порт HTTP API; 0 означает, что API отключён
func (s *ServerConfig) GetStatusPort() int {
	if s.StatusPort < 0 {
		return 0
	}
	return getPortWithEnvFallback(s.StatusPort, "GAME_STATUS_PORT", 8088)
}

// Addr возвращает адрес bind сервера репликации
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.GetPort())
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать путь из ENV GAME_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return Default(), nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
