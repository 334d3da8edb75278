package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/LeonardoBeccarini/agriassist/internal/services/recommender"
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
	logger = logger.Named("recommender")

	cat, err := recommender.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("catalog", zap.Error(err))
	}

	var src rand.Source
	if cfg.Seed != 0 {
		src = rand.NewSource(cfg.Seed)
	}
	engine, err := recommender.NewEngine(recommender.EngineConfig{
		Catalog:         cat,
		Source:          src,
		CropDelay:       cfg.CropDelay,
		FertilizerDelay: cfg.FertilizerDelay,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("engine", zap.Error(err))
	}

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           recommender.NewHTTPMux(engine, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", zap.String("addr", hs.Addr), zap.Int("crops", len(cat.Crops)), zap.Int("fertilizers", len(cat.Fertilizers)))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	// ---- gRPC (codec JSON + health) ----
	var (
		gs *grpc.Server
		gh *health.Server
	)
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			logger.Fatal("grpc listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
		}
		gs, gh = recommender.NewGRPCServer(engine, logger)
		go func() {
			logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
			if err := gs.Serve(lis); err != nil {
				logger.Fatal("grpc serve error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if gs != nil {
		gh.Shutdown()
		gs.GracefulStop()
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
}
