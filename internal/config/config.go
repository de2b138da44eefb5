package config

import (
	"fmt"
	"time"
)

const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	APIAddr           string        `mapstructure:"api_addr" yaml:"api_addr"`
	AdminAddr         string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// AllowedOrigins restricts which browser origins may open a websocket.
	// Empty admits every origin.
	AllowedOrigins []string    `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	Store          StoreConfig `mapstructure:"store" yaml:"store"`
	Chat           ChatConfig  `mapstructure:"chat" yaml:"chat"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type ChatConfig struct {
	// DeliveryTimeout bounds a single push to a live connection and a single
	// websocket write.
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" yaml:"delivery_timeout"`
	OutboundBuffer  int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	LockStripes     int           `mapstructure:"lock_stripes" yaml:"lock_stripes"`
	PresenceShards  int           `mapstructure:"presence_shards" yaml:"presence_shards"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIAddr:           ":8080",
		AdminAddr:         "localhost:8081",
		BaseURL:           "http://localhost:8080",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Store: StoreConfig{
			Driver: StoreBolt,
			Path:   "grouptalk.db",
		},
		Chat: ChatConfig{
			DeliveryTimeout: 2 * time.Second,
			OutboundBuffer:  64,
			LockStripes:     256,
			PresenceShards:  64,
		},
	}
}

func (c *Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("api_addr is required")
	}
	if c.AdminAddr == "" {
		return fmt.Errorf("admin_addr is required")
	}
	switch c.Store.Driver {
	case StoreBolt, StoreSQLite:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreBolt, StoreSQLite, c.Store.Driver)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Chat.DeliveryTimeout <= 0 {
		return fmt.Errorf("chat.delivery_timeout must be greater than 0")
	}
	if c.Chat.OutboundBuffer <= 0 {
		return fmt.Errorf("chat.outbound_buffer must be greater than 0")
	}
	if c.Chat.LockStripes <= 0 || c.Chat.PresenceShards <= 0 {
		return fmt.Errorf("chat.lock_stripes and chat.presence_shards must be greater than 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than 0")
	}
	return nil
}
