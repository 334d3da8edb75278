package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Config del broker MQTT (plugin MQTT di RabbitMQ o qualsiasi broker 3.1.1).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	MaxRetries int           // tentativi di connessione, default 5
	MaxElapsed time.Duration // default 10s
	Logger     *zap.Logger
}

// Connect apre la connessione con retry esponenziale. Alla chiusura di ctx il client viene disconnesso.
func Connect(ctx context.Context, cfg Config) (mqtt.Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 10 * time.Second
	}
	log := cfg.Logger.Named("mqtt")
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection lost", zap.Error(err))
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn("connect failed", zap.String("broker", addr), zap.Error(token.Error()))
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.MaxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("mqtt: no connection to %s after retries: %w", addr, err)
	}
	log.Info("connected", zap.String("broker", addr))

	go func() {
		<-ctx.Done()
		Close(client)
	}()
	return client, nil
}

// Close disconnette il client se ancora connesso.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
