package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/mcdev12/watchroom/go/internal/room/gateway"
	"github.com/mcdev12/watchroom/go/internal/room/outbox"
	"gopkg.in/yaml.v3"
)

// Config is the tunable part of the host, read from WATCHROOM_CONFIG.
// Anything the file leaves out keeps its default.
type Config struct {
	Room   coordinator.Config `yaml:"room"`
	Outbox struct {
		QueueSize  int `yaml:"queue_size"`
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"outbox"`
	Connections struct {
		MaxMessageSize int64 `yaml:"max_message_size"`
		SendBufferSize int   `yaml:"send_buffer_size"`
	} `yaml:"connections"`
}

// ServerConfig is the deployment part of the host, read from the environment
type ServerConfig struct {
	Port            string
	RoomID          string
	NATSURL         string
	MediaInfoURL    string
	MediaInfoAPIKey string
	HistoryEnabled  bool
}

func defaultConfig() *Config {
	cfg := &Config{Room: coordinator.DefaultConfig()}

	ob := outbox.DefaultConfig()
	cfg.Outbox.QueueSize = ob.QueueSize
	cfg.Outbox.MaxRetries = ob.MaxRetries

	cc := gateway.DefaultConnectionConfig()
	cfg.Connections.MaxMessageSize = cc.MaxMessageSize
	cfg.Connections.SendBufferSize = cc.SendBufferSize
	return cfg
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "8080"),
		RoomID:          getEnv("ROOM_ID", "default"),
		NATSURL:         getEnv("NATS_URL", ""),
		MediaInfoURL:    getEnv("MEDIA_INFO_URL", ""),
		MediaInfoAPIKey: getEnv("MEDIA_INFO_API_KEY", ""),
		HistoryEnabled:  getEnvAsBool("HISTORY_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. An empty path means defaults only.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Room.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}

	return config, nil
}

func (c *Config) outboxConfig(roomID string) outbox.Config {
	cfg := outbox.DefaultConfig()
	cfg.RoomID = roomID
	if c.Outbox.QueueSize > 0 {
		cfg.QueueSize = c.Outbox.QueueSize
	}
	if c.Outbox.MaxRetries >= 0 {
		cfg.MaxRetries = c.Outbox.MaxRetries
	}
	return cfg
}

func (c *Config) connectionConfig() gateway.ConnectionConfig {
	cfg := gateway.DefaultConnectionConfig()
	if c.Connections.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Connections.MaxMessageSize
	}
	if c.Connections.SendBufferSize > 0 {
		cfg.SendBufferSize = c.Connections.SendBufferSize
	}
	return cfg
}

func shutdownTimeout() time.Duration {
	return time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second
}
