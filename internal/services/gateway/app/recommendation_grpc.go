package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
	"github.com/LeonardoBeccarini/agriassist/internal/services/recommender"
	"github.com/LeonardoBeccarini/agriassist/pkg/grpcjson"
)

// GRPCRecommendationClient chiama il recommender via gRPC con codec JSON.
// Stesso contratto di RecommendationClient: ogni errore è service_unavailable.
type GRPCRecommendationClient struct {
	conn    grpc.ClientConnInterface
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics
}

func NewGRPCRecommendationClient(conn grpc.ClientConnInterface, breaker *gobreaker.CircuitBreaker, m *Metrics) *GRPCRecommendationClient {
	if breaker == nil {
		breaker = NewBreaker(serviceRecommendation, BreakerConfig{}, m, nil)
	}
	return &GRPCRecommendationClient{conn: conn, breaker: breaker, metrics: m}
}

func (c *GRPCRecommendationClient) invoke(ctx context.Context, method string, in, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.conn.Invoke(ctx, method, in, out, grpcjson.CallOption())
	})
	c.metrics.observeUpstream(serviceRecommendation, outcome(err), time.Since(start).Seconds())
	return err
}

func (c *GRPCRecommendationClient) Crops(ctx context.Context, p model.InputParameters) ([]model.CropSuggestion, error) {
	var out []model.CropSuggestion
	if err := c.invoke(ctx, recommender.MethodPredictCrop, &p, &out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, err)
	}
	if err := model.CheckCrops(out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, fmt.Errorf("invalid crop response: %w", err))
	}
	return out, nil
}

func (c *GRPCRecommendationClient) Fertilizer(ctx context.Context, p model.InputParameters, crop string) ([]model.FertilizerSuggestion, error) {
	var out []model.FertilizerSuggestion
	req := recommender.FertilizerCall{Crop: crop, Params: p}
	if err := c.invoke(ctx, recommender.MethodPredictFertilizer, &req, &out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, err)
	}
	if err := model.CheckFertilizers(out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, fmt.Errorf("invalid fertilizer response: %w", err))
	}
	return out, nil
}

// GRPCHealthCheck interroga grpc.health.v1 per /readyz.
func GRPCHealthCheck(conn grpc.ClientConnInterface, service string) ReadyCheck {
	cli := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) error {
		res, err := cli.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return err
		}
		if s := res.GetStatus(); s != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("%s: %s", service, s)
		}
		return nil
	}
}
