package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

const defaultPublishTimeout = 5 * time.Second

type mqttReading struct {
	Timestamp time.Time `json:"ts"`
	ChannelID int       `json:"channel_id"`
	Value     *float64  `json:"value"`
	Status    string    `json:"status"`
	Seq       uint64    `json:"seq"`
}

// MQTTMirror publishes one JSON message per reading on <topic>/<channel>.
type MQTTMirror struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTMirror(cfg MQTTConfig) (*MQTTMirror, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTMirror(client, cfg), nil
}

func newMQTTMirror(client mqtt.Client, cfg MQTTConfig) *MQTTMirror {
	return &MQTTMirror{client: client, topic: cfg.Topic, qos: cfg.QoS}
}

func (m *MQTTMirror) Name() string { return "mqtt" }

func (m *MQTTMirror) WriteBatch(ctx context.Context, b domain.Batch) error {
	timeout := defaultPublishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	for _, r := range b.Readings {
		msg := mqttReading{Timestamp: r.Timestamp, ChannelID: r.ChannelID, Status: string(r.Status), Seq: b.Seq}
		if r.Status != domain.StatusError {
			v := r.Value
			msg.Value = &v
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%d", m.topic, r.ChannelID)
		token := m.client.Publish(topic, m.qos, false, payload)
		if !token.WaitTimeout(timeout) {
			return fmt.Errorf("mqtt publish %s: %w", topic, ports.ErrTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
	}
	return nil
}

func (m *MQTTMirror) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

var _ ports.Mirror = (*MQTTMirror)(nil)
