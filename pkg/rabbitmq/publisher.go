package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// TokenPublisher è il sottoinsieme di mqtt.Client usato per pubblicare.
type TokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var ErrPublishTimeout = errors.New("mqtt: publish timeout")

// Publisher serializza in JSON e pubblica, attendendo il token con timeout.
type Publisher struct {
	client  TokenPublisher
	qos     byte
	timeout time.Duration
	log     *zap.Logger
}

func NewPublisher(client TokenPublisher, qos byte, timeout time.Duration, logger *zap.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, qos: qos, timeout: timeout, log: logger.Named("publisher")}
}

// PublishJSON pubblica v su topic. []byte e string vengono inviati così come sono.
func (p *Publisher) PublishJSON(ctx context.Context, topic string, v any) error {
	var payload []byte
	switch m := v.(type) {
	case []byte:
		payload = m
	case string:
		payload = []byte(m)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("mqtt: encode payload: %w", err)
		}
		payload = b
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish on %s: %w", topic, err)
	}
	p.log.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}
