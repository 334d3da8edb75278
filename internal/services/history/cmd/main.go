package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
	"github.com/LeonardoBeccarini/agriassist/pkg/dedup"
	"github.com/LeonardoBeccarini/agriassist/pkg/rabbitmq"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("history")

	// === Config ===
	cfg := struct {
		MQTT rabbitmq.Config

		InfluxURL    string
		InfluxToken  string
		InfluxOrg    string
		InfluxBucket string

		Topics        []string
		BatchSize     int
		FlushInterval time.Duration

		HTTPPort       int
		ReadinessGrace time.Duration
	}{
		MQTT: rabbitmq.Config{
			Host:     envStr("RABBITMQ_HOST", "localhost"),
			Port:     envInt("RABBITMQ_PORT", 1883),
			User:     envStr("RABBITMQ_USER", "guest"),
			Password: envStr("RABBITMQ_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "history-service"),
			Logger:   logger,
		},

		InfluxURL:    envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "agriassist"),
		InfluxBucket: envStr("INFLUX_BUCKET", "events"),

		Topics: func() []string {
			raw := envStr("HISTORY_SUB_TOPICS", history.TopicFlowPrefix+"#,"+history.TopicFavoritePrefix+"#")
			parts := strings.Split(raw, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			return out
		}(),
		BatchSize:     envInt("WRITE_BATCH_SIZE", 10),
		FlushInterval: time.Duration(envInt("WRITE_FLUSH_INTERVAL_MS", 200)) * time.Millisecond,

		HTTPPort:       envInt("HTTP_PORT", 8080),
		ReadinessGrace: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === InfluxDB ===
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	defer influx.Close()
	writer := history.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger)

	// === MQTT ===
	mqttClient, err := rabbitmq.Connect(ctx, cfg.MQTT)
	if err != nil {
		logger.Fatal("mqtt connection error", zap.Error(err))
	}
	defer rabbitmq.Close(mqttClient)

	// === HTTP ===
	deps := history.Deps{MQTT: mqttClient, Influx: influx, Writer: writer, MinErrorAge: 2 * time.Second}
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", history.NewHealthHandler(deps))
	mux.Handle("GET /readyz", history.NewReadyHandler(deps))
	// GET /history/recent?limit=20[&minutes=1440][&type=flow.transition][&session=...]
	mux.Handle("GET /history/recent", history.NewRecentHandler(history.NewFluxSource(influx.QueryAPI(cfg.InfluxOrg), cfg.InfluxBucket), 1440, 20))

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.Int("port", cfg.HTTPPort))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	// === Consumer ===
	h := history.NewMQTTHandler(writer)

	// QoS1 → possibili redelivery: dedup sul contenuto del payload
	d := dedup.New(10*time.Minute, 20000)

	for _, topic := range cfg.Topics {
		logger.Info("subscribing", zap.String("topic", topic))
		if token := mqttClient.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
			if !d.ShouldProcess(dedup.Key(m.Topic(), string(m.Payload()))) {
				return
			}
			if err := h.Handle(m); err != nil {
				logger.Warn("bad message", zap.String("topic", m.Topic()), zap.Error(err))
			}
		}); token.Wait() && token.Error() != nil {
			logger.Fatal("subscribe error", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.ReadinessGrace)
	defer shCancel()
	_ = hs.Shutdown(shCtx)

	writer.Flush()
}
