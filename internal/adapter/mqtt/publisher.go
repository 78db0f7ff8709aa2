package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/pws-feed-service/internal/config"
	"github.com/couchcryptid/pws-feed-service/internal/domain"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
)

var errStopped = errors.New("mqtt publisher stopped")

// Publisher writes observations to per-station MQTT topics.
// It implements pipeline.BatchLoader.
type Publisher struct {
	client mqtt.Client
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher creates a publisher for the configured broker. Call Connect
// before publishing.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(mqtt.NewClient(opts), logger)
}

func newPublisher(client mqtt.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// ObservationTopic is the topic observations for stationID are published to.
func ObservationTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/observations", stationID)
}

// Connect waits for the initial broker connection. It respects ctx and
// Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	return p.wait(ctx, token, "connect")
}

// LoadBatch publishes each event with QoS 1 to its station topic, in order.
// It stops at the first failure.
func (p *Publisher) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	if !p.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	for i, event := range events {
		topic := ObservationTopic(event.Headers["station_id"])
		token := p.client.Publish(topic, qosAtLeastOnce, false, event.Value)

		waitCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.wait(waitCtx, token, "publish")
		cancel()
		if err != nil {
			return fmt.Errorf("topic %s (event %d of %d): %w", topic, i+1, len(events), err)
		}
	}

	p.logger.Debug("published batch", "count", len(events))
	return nil
}

// Disconnect stops the publisher and closes the broker connection.
// Idempotent and safe to call multiple times.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.logger.Info("mqtt disconnected")
}

// wait blocks until token completes, ctx ends, or the publisher stops.
func (p *Publisher) wait(ctx context.Context, token mqtt.Token, op string) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt %s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt %s: %w", op, ctx.Err())
	case <-p.stopCh:
		return fmt.Errorf("mqtt %s: %w", op, errStopped)
	}
}
