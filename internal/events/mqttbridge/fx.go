package mqttbridge

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
)

var Module = fx.Module("mqttbridge",
	fx.Invoke(Register),
)

// Register attaches the bridge to the application lifecycle. With no broker
// URL configured the bridge stays off.
func Register(lc fx.Lifecycle, cfg config.Config, broker *events.Broker, log *zap.Logger) {
	if cfg.MQTTBrokerURL == "" {
		log.Named("mqtt").Debug("no broker configured, event bridge disabled")
		return
	}

	var bridge *Bridge
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			b, err := New(Config{
				BrokerURL:   cfg.MQTTBrokerURL,
				ClientID:    cfg.MQTTClientID,
				TopicPrefix: cfg.MQTTTopicPrefix,
			}, broker, log)
			if err != nil {
				return err
			}
			bridge = b
			bridge.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if bridge != nil {
				bridge.Stop()
			}
			return nil
		},
	})
}
