package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	Addr           string   `env:"CANVAS_ADDR" envDefault:":3000"`
	AllowedOrigins []string `env:"CANVAS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	MaxOperations int    `env:"CANVAS_MAX_OPERATIONS"`
	CanvasWidth   int    `env:"CANVAS_WIDTH"`
	CanvasHeight  int    `env:"CANVAS_HEIGHT"`
	DefaultColor  string `env:"CANVAS_DEFAULT_COLOR"`

	MaxMessagesPerSecond int           `env:"CANVAS_MAX_MESSAGES_PER_SECOND"`
	SendBuffer           int           `env:"CANVAS_SEND_BUFFER"`
	PingInterval         time.Duration `env:"CANVAS_PING_INTERVAL"`
	WriteTimeout         time.Duration `env:"CANVAS_WRITE_TIMEOUT"`

	RoomIdleTTL    time.Duration `env:"CANVAS_ROOM_IDLE_TTL" envDefault:"0s"`
	CompactOnClear bool          `env:"CANVAS_COMPACT_ON_CLEAR" envDefault:"false"`

	MDNS         bool   `env:"CANVAS_MDNS" envDefault:"false"`
	MDNSInstance string `env:"CANVAS_MDNS_INSTANCE"`
}

// Default returns a configuration populated with the limits in this package.
func Default() *Config {
	return &Config{
		Addr:                 ":3000",
		AllowedOrigins:       []string{"*"},
		LogLevel:             "info",
		MaxOperations:        DefaultMaxOperations,
		CanvasWidth:          DefaultCanvasWidth,
		CanvasHeight:         DefaultCanvasHeight,
		DefaultColor:         DefaultColor,
		MaxMessagesPerSecond: MaxMessagesPerSecond,
		SendBuffer:           ClientSendBufferSize,
		PingInterval:         PingInterval,
		WriteTimeout:         WriteTimeout,
	}
}

// Load reads an optional .env file and then the process environment.
// Unset or non-positive numeric values fall back to the package defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ignoring unreadable .env file", "error", err)
	}

	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.MaxOperations <= 0 {
		c.MaxOperations = d.MaxOperations
	}
	if c.CanvasWidth <= 0 {
		c.CanvasWidth = d.CanvasWidth
	}
	if c.CanvasHeight <= 0 {
		c.CanvasHeight = d.CanvasHeight
	}
	if strings.TrimSpace(c.DefaultColor) == "" {
		c.DefaultColor = d.DefaultColor
	}
	if c.MaxMessagesPerSecond <= 0 {
		c.MaxMessagesPerSecond = d.MaxMessagesPerSecond
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = d.AllowedOrigins
	}
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
