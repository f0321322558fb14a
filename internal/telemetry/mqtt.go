// Package telemetry implements the optional MQTT publisher for
// channel-lock events and combiner throughput summaries: the usual
// client option set (auto-reconnect, keepalive, optional TLS, random
// client id), publishing diagnostic JSON about lock state and never
// the IQ payload itself.
package telemetry

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/ilserver/internal/config"
)

// Publisher publishes lock/packet telemetry to an MQTT broker.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "ilserver_" + hex.EncodeToString(b)
}

func loadTLSConfig(cfg config.MQTTTLS) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// New connects a Publisher to cfg.Broker.
func New(cfg config.MQTT) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.TLS.Enabled {
		tlsCfg, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("MQTT: connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// LockEvent is published once, the moment an auxiliary channel locks.
type LockEvent struct {
	Timestamp  int64   `json:"timestamp"`
	Channel    int     `json:"channel"`
	Offset     int     `json:"offset"`
	Level      float64 `json:"level"`
	PhaseDelta float64 `json:"phase_delta"`
}

// PacketSummary is published after each combiner tick that emits at
// least one packet, with that tick's throughput, never the IQ payload
// itself.
type PacketSummary struct {
	Timestamp      int64 `json:"timestamp"`
	PacketsEmitted int64 `json:"packets_emitted"`
	ShiftChanges   int64 `json:"shift_changes"`
}

// PublishLockEvent publishes ev under topic/lock.
func (p *Publisher) PublishLockEvent(ev LockEvent) {
	p.publish(p.topic+"/lock", ev)
}

// PublishPacketSummary publishes s under topic/packets.
func (p *Publisher) PublishPacketSummary(s PacketSummary) {
	p.publish(p.topic+"/packets", s)
}

func (p *Publisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("MQTT: failed to marshal payload for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("MQTT: publish to %s failed: %v", topic, err)
		}
	}()
}

// Close disconnects the MQTT client.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
