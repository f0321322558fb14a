// Package config loads the aggregation server's YAML configuration:
// unmarshal, then fill in defaults for the zero-valued server
// constants, log level, MQTT topic and status broadcast interval.
// Listen addresses, the MQTT broker, TLS material and enable flags
// have no default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Server holds the synchronization-core constants from spec.md §6.
type Server struct {
	ChannelAmount    int `yaml:"channel_amount"`
	BaseChannel      int `yaml:"base_channel"`
	ReceiverPort     int `yaml:"receiver_port"`
	CarrierThreshold int `yaml:"carrier_threshold"`
	PacketSize       int `yaml:"packet_size"`
	MaxRecv          int `yaml:"max_recv"`
	WorkerQueueSize  int `yaml:"worker_queue_size"`
}

// Logging holds the configured log level. The server's logger does not
// filter by it.
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics controls the Prometheus HTTP endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTTLS holds the optional TLS material for the MQTT publisher.
type MQTTTLS struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// MQTT controls the optional telemetry publisher.
type MQTT struct {
	Enabled bool    `yaml:"enabled"`
	Broker  string  `yaml:"broker"`
	Topic   string  `yaml:"topic"`
	TLS     MQTTTLS `yaml:"tls"`
}

// StatusWS controls the optional live status websocket.
type StatusWS struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen"`
	BroadcastMs int    `yaml:"broadcast_interval_ms"`
}

// MCP controls the optional MCP introspection server.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is the top-level configuration document.
type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
	MQTT     MQTT     `yaml:"mqtt"`
	StatusWS StatusWS `yaml:"statusws"`
	MCP      MCP      `yaml:"mcp"`
}

// Defaults, taken from spec.md §6.
const (
	DefaultChannelAmount    = 2
	DefaultBaseChannel      = 5000
	DefaultReceiverPort     = 6000
	DefaultCarrierThreshold = 1000
	DefaultPacketSize       = 1024
	DefaultMaxRecv          = 4096
	DefaultWorkerQueueSize  = 64
)

// Load reads and parses filename, applying the defaults listed in the
// package comment to fields left unspecified.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ChannelAmount == 0 {
		c.Server.ChannelAmount = DefaultChannelAmount
	}
	if c.Server.BaseChannel == 0 {
		c.Server.BaseChannel = DefaultBaseChannel
	}
	if c.Server.ReceiverPort == 0 {
		c.Server.ReceiverPort = DefaultReceiverPort
	}
	if c.Server.CarrierThreshold == 0 {
		c.Server.CarrierThreshold = DefaultCarrierThreshold
	}
	if c.Server.PacketSize == 0 {
		c.Server.PacketSize = DefaultPacketSize
	}
	if c.Server.MaxRecv == 0 {
		c.Server.MaxRecv = DefaultMaxRecv
	}
	if c.Server.WorkerQueueSize == 0 {
		c.Server.WorkerQueueSize = DefaultWorkerQueueSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "ilserver/telemetry"
	}
	if c.StatusWS.BroadcastMs == 0 {
		c.StatusWS.BroadcastMs = 1000
	}
}
