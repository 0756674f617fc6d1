// Package notify implements driver notification transports. The MQTT
// notifier publishes one message per driver after each allocation run so
// that driver apps subscribed to their own topic see their new route sheet.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fleetdispatch/core/notify"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT notifier.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	MaxRetries  int    `json:"max_retries"`
	BackoffMS   int    `json:"backoff_ms"`
}

// SetDefaults fills in the optional fields of the config.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fleetdispatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fleet/drivers"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the config for required fields.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTNotifier publishes assignment notifications over an MQTT broker
// using Eclipse Paho.
type MQTTNotifier struct {
	cli     pahoClient
	prefix  string
	qos     byte
	retries int
	backoff time.Duration
	logger  logger.Logger
}

// NewMQTTNotifier connects to the broker and returns a ready notifier.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New("mqtt_notifier")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTNotifier{
		cli:     c,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		retries: cfg.MaxRetries,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:  log,
	}, nil
}

// NotifyAssignments publishes the notification to the driver's topic,
// retrying with exponential backoff on publish failure.
func (m *MQTTNotifier) NotifyAssignments(n notify.DriverNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/assignments", m.prefix, n.DriverID)

	var publishErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		token := m.cli.Publish(topic, m.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			m.logger.Infof("notified driver %s on %s", n.DriverID, topic)
			return nil
		}
		m.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(m.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() error {
	if m.cli != nil && m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
	return nil
}
