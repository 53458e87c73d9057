package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig describes the broker connection for MQTTSink.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
}

// ConnectMQTT opens a client with automatic reconnects.
func ConnectMQTT(cfg MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT broker URL is empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "helpdesk-service"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.BrokerURL), zap.String("client_id", cfg.ClientID))
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each message to <root>/<kind>/<recipient id>.
type MQTTSink struct {
	client  publisher
	root    string
	timeout time.Duration
}

func NewMQTTSink(client mqtt.Client, topicRoot string, timeout time.Duration) *MQTTSink {
	return newMQTTSink(client, topicRoot, timeout)
}

func newMQTTSink(client publisher, topicRoot string, timeout time.Duration) *MQTTSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSink{client: client, root: topicRoot, timeout: timeout}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Topic returns the topic a message is published on.
func (s *MQTTSink) Topic(msg Message) string {
	return fmt.Sprintf("%s/%s/%s", s.root, msg.Kind, msg.RecipientID)
}

func (s *MQTTSink) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	tok := s.client.Publish(s.Topic(msg), 1, false, payload)

	wait := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if !tok.WaitTimeout(wait) {
		return errors.New("mqtt publish timed out")
	}
	return tok.Error()
}
