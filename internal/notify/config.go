package notify

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// FromConfig builds the fan-out of every configured sink. The log sink is
// always present. The returned close function disconnects MQTT if used.
func FromConfig(cfg config.NotificationConfig, logger *zap.Logger) (*Fanout, func()) {
	sinks := []Sink{NewLogSink(logger)}
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookToken, cfg.DeliverTimeout))
	}
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(MQTTConfig{
			BrokerURL: cfg.MQTTBroker,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		}, logger)
		if err != nil {
			logger.Warn("mqtt notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, NewMQTTSink(client, cfg.MQTTTopicRoot, cfg.DeliverTimeout))
			closeFn = func() { client.Disconnect(250) }
		}
	}

	return NewFanout(logger, sinks...), closeFn
}
