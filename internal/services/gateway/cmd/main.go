package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
	"github.com/LeonardoBeccarini/agriassist/internal/services/recommender"
	"github.com/LeonardoBeccarini/agriassist/pkg/dedup"
	"github.com/LeonardoBeccarini/agriassist/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()

	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := app.NewMetrics(nil)
	bcfg := app.BreakerConfig{Failures: cfg.CBFails, OpenFor: ms(cfg.CBOpenMs), Interval: ms(cfg.CBIntervalMs)}
	ready := map[string]app.ReadyCheck{}

	// === Recommendation Service ===
	var recs flow.RecommendationService
	switch {
	case cfg.RecommenderGRPC != "":
		conn, err := grpc.NewClient(cfg.RecommenderGRPC, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Fatal("recommender grpc", zap.String("addr", cfg.RecommenderGRPC), zap.Error(err))
		}
		defer conn.Close()
		recs = app.NewGRPCRecommendationClient(conn, app.NewBreaker("recommendation", bcfg, metrics, logger), metrics)
		ready["recommender"] = app.GRPCHealthCheck(conn, recommender.GRPCService)
		logger.Info("remote recommender (grpc)", zap.String("addr", cfg.RecommenderGRPC))
	case cfg.RecommenderURL != "":
		up := app.NewUpstream("recommendation", cfg.RecommenderURL, ms(cfg.UpstreamMs),
			app.NewBreaker("recommendation", bcfg, metrics, logger), metrics)
		recs = app.NewRecommendationClient(up)
		ready["recommender"] = func(ctx context.Context) error { return up.GetJSON(ctx, "/healthz", nil) }
		logger.Info("remote recommender", zap.String("url", cfg.RecommenderURL))
	default:
		cat, err := recommender.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			logger.Fatal("catalog", zap.Error(err))
		}
		engine, err := recommender.NewEngine(recommender.EngineConfig{
			Catalog:         cat,
			Source:          rand.NewSource(time.Now().UnixNano()),
			CropDelay:       ms(cfg.CropDelayMs),
			FertilizerDelay: ms(cfg.FertDelayMs),
			Logger:          logger,
		})
		if err != nil {
			logger.Fatal("engine", zap.Error(err))
		}
		recs = engine
		logger.Info("in-process recommender", zap.Int("crops", len(cat.Crops)))
	}

	// === Blynk ===
	bb := bcfg
	bb.HalfOpen = app.BlynkReads
	sensor := app.NewBlynkClient(app.BlynkConfig{
		BaseURL:    cfg.BlynkURL,
		Pins:       app.BlynkPins{Temperature: cfg.BlynkPins[0], Humidity: cfg.BlynkPins[1], Rainfall: cfg.BlynkPins[2]},
		Timeout:    ms(cfg.UpstreamMs),
		MaxRetries: cfg.BlynkRetries,
	}, app.NewBreaker("blynk", bb, metrics, logger), metrics, logger)

	var (
		recorder  history.Recorder
		favorites app.FavoritesStore
		recent    history.RecentSource
	)

	// === MQTT (opzionale): eventi e preferiti verso il history-service ===
	if cfg.MQTTHost != "" {
		client, err := rabbitmq.Connect(ctx, rabbitmq.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.ClientID,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("mqtt connection error", zap.Error(err))
		}
		defer rabbitmq.Close(client)

		pub := rabbitmq.NewPublisher(client, 1, 5*time.Second, logger)
		hp := history.NewPublisher(pub, 512, logger)
		go hp.Run(ctx)
		recorder = hp
		favorites = app.NewMQTTFavorites(pub, dedup.New(time.Minute, 10000), logger)
		ready["mqtt"] = func(context.Context) error {
			if !client.IsConnectionOpen() {
				return errors.New("mqtt disconnected")
			}
			return nil
		}
	}

	// === Storico: Influx diretto oppure history-service via HTTP ===
	switch {
	case cfg.InfluxURL != "":
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		if recorder == nil {
			w := history.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger)
			defer w.Flush()
			recorder = w
		}
		recent = history.NewFluxSource(influx.QueryAPI(cfg.InfluxOrg), cfg.InfluxBucket)
		ready["influx"] = func(ctx context.Context) error {
			ok, err := influx.Ping(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("influx not ready")
			}
			return nil
		}
	case cfg.HistoryURL != "":
		up := app.NewUpstream("history", cfg.HistoryURL, ms(cfg.UpstreamMs),
			app.NewBreaker("history", bcfg, metrics, logger), metrics)
		recent = app.NewHistoryClient(up)
	}

	intro := ""
	if cfg.IntroPath != "" {
		b, err := os.ReadFile(cfg.IntroPath)
		if err != nil {
			logger.Fatal("intro text", zap.String("path", cfg.IntroPath), zap.Error(err))
		}
		intro = strings.TrimSpace(string(b))
	}

	gw, err := app.NewGateway(app.Config{
		StepTimeout:  ms(cfg.TimeoutMs),
		SessionTTL:   time.Duration(cfg.SessionTTLMin) * time.Minute,
		SweepEvery:   time.Duration(cfg.SweepSec) * time.Second,
		DefaultToken: cfg.BlynkToken,
		IntroText:    intro,
		CORSOrigins:  cfg.CORSOrigins,
		Recommender:  recs,
		Sensor:       sensor,
		Favorites:    favorites,
		Recorder:     recorder,
		History:      recent,
		ReadyChecks:  ready,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("gateway", zap.Error(err))
	}
	go gw.Run(ctx)

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("gateway listening", zap.String("addr", hs.Addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
}
