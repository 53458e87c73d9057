package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// HandlerRegistrar subscribes notification handlers to the event dispatcher.
type HandlerRegistrar interface {
	RegisterHandlers() []events.EventType
}

// StartNotificationWorker wires ticket event notifications. Delivery runs
// inside Publish, so there is no goroutine to stop.
func StartNotificationWorker(registrar HandlerRegistrar, logger *zap.Logger) {
	if registrar == nil {
		return
	}
	subscribed := registrar.RegisterHandlers()
	if len(subscribed) == 0 {
		logger.Warn("notification worker has no dispatcher; event notifications disabled")
		return
	}
	names := make([]string, 0, len(subscribed))
	for _, eventType := range subscribed {
		names = append(names, string(eventType))
	}
	logger.Info("notification worker subscribed", zap.Strings("events", names))
}
