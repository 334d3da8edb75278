package app

import (
	"context"
	"fmt"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
	"github.com/LeonardoBeccarini/agriassist/internal/services/recommender"
)

const serviceRecommendation = "recommendation"

// RecommendationClient parla con il servizio recommender via HTTP JSON.
// Ogni errore, incluso un contratto violato, diventa un ServiceError service_unavailable.
type RecommendationClient struct {
	up *Upstream
}

func NewRecommendationClient(up *Upstream) *RecommendationClient {
	return &RecommendationClient{up: up}
}

func (c *RecommendationClient) Crops(ctx context.Context, p model.InputParameters) ([]model.CropSuggestion, error) {
	var out []model.CropSuggestion
	if err := c.up.PostJSON(ctx, "/predict-crop", p, &out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, err)
	}
	if err := model.CheckCrops(out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, fmt.Errorf("invalid crop response: %w", err))
	}
	return out, nil
}

func (c *RecommendationClient) Fertilizer(ctx context.Context, p model.InputParameters, crop string) ([]model.FertilizerSuggestion, error) {
	var out []model.FertilizerSuggestion
	req := recommender.FertilizerRequest{Crop: crop, Params: p.Raw()}
	if err := c.up.PostJSON(ctx, "/predict-fertilizer", req, &out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, err)
	}
	if err := model.CheckFertilizers(out); err != nil {
		return nil, model.Unavailable(serviceRecommendation, fmt.Errorf("invalid fertilizer response: %w", err))
	}
	return out, nil
}
