package model

import (
	"fmt"
	"math"
)

const (
	CropCount       = 3
	FertilizerCount = 2
)

// CropSuggestion: coltura consigliata con punteggio in [0,1].
type CropSuggestion struct {
	Name  string  `json:"crop"`
	Score float64 `json:"score"`
}

// FertilizerSuggestion: fertilizzante con range di dosaggio (es. "12-25 kg/acre").
type FertilizerSuggestion struct {
	Name        string `json:"fertilizer"`
	DosageRange string `json:"dosage"`
}

// SensorReadings sono le tre letture remote (Blynk).
type SensorReadings struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rainfall    float64 `json:"rainfall"`
}

// FavoriteAck è la risposta dello store dei preferiti.
type FavoriteAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckCrops verifica il contratto del Recommendation Service:
// esattamente 3 elementi, ordinati per score decrescente, score in [0,1].
func CheckCrops(list []CropSuggestion) error {
	if len(list) != CropCount {
		return fmt.Errorf("expected %d crops, got %d", CropCount, len(list))
	}
	for i, c := range list {
		if math.IsNaN(c.Score) || c.Score < 0 || c.Score > 1 {
			return fmt.Errorf("crop %q: score %.4f out of [0,1]", c.Name, c.Score)
		}
		if i > 0 && list[i-1].Score < c.Score {
			return fmt.Errorf("crops not sorted by score at index %d", i)
		}
	}
	return nil
}

// CheckFertilizers: esattamente 2 elementi, ordine libero.
func CheckFertilizers(list []FertilizerSuggestion) error {
	if len(list) != FertilizerCount {
		return fmt.Errorf("expected %d fertilizers, got %d", FertilizerCount, len(list))
	}
	return nil
}

// FindCrop cerca una coltura per nome tra i suggerimenti.
func FindCrop(list []CropSuggestion, name string) (CropSuggestion, bool) {
	for _, c := range list {
		if c.Name == name {
			return c, true
		}
	}
	return CropSuggestion{}, false
}
