package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
)

// Config controls the optional MQTT side of the event channel.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = "photobooth"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "photobooth"
	}
	return c
}

// Bridge republishes booth events to an MQTT broker so external displays
// and props (lights, buzzers) can react without speaking HTTP.
type Bridge struct {
	cfg    Config
	client mqtt.Client
	broker *events.Broker
	log    *zap.Logger

	cancel func()
	done   chan struct{}
}

func New(cfg Config, broker *events.Broker, log *zap.Logger) (*Bridge, error) {
	cfg = cfg.withDefaults()
	log = log.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("mqtt connected", zap.String("broker", cfg.BrokerURL))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.BrokerURL, token.Error())
	}

	return &Bridge{
		cfg:    cfg,
		client: client,
		broker: broker,
		log:    log,
	}, nil
}

// Start subscribes to the event channel and republishes until Stop.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sub, unsubscribe := b.broker.Subscribe(ctx)

	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				b.publish(ev)
			}
		}
	}()
}

// Stop tears the subscription and the broker connection down.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	b.client.Disconnect(250)
}

func (b *Bridge) publish(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("marshal event", zap.Error(err))
		return
	}

	topic := b.cfg.TopicPrefix + "/events/" + string(ev.Kind())
	token := b.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		b.log.Warn("publish event",
			zap.String("topic", topic),
			zap.Error(token.Error()))
	}
}
