package recommender

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

const (
	cropCount       = model.CropCount
	fertilizerCount = model.FertilizerCount

	minScore = 0.75
	maxScore = 0.98
)

type EngineConfig struct {
	Catalog Catalog
	Source  rand.Source // nil -> seed dal clock

	// latenza simulata del modello
	CropDelay       time.Duration
	FertilizerDelay time.Duration

	Logger *zap.Logger
}

// Engine è il modello finto: sceglie a caso dal catalogo. Sicuro per uso concorrente.
type Engine struct {
	cat       Catalog
	cropDelay time.Duration
	fertDelay time.Duration
	log       *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog.Crops == nil && cfg.Catalog.Fertilizers == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		cfg.Source = rand.NewSource(time.Now().UnixNano())
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		cat:       cfg.Catalog,
		cropDelay: cfg.CropDelay,
		fertDelay: cfg.FertilizerDelay,
		log:       cfg.Logger.Named("engine"),
		rng:       rand.New(cfg.Source),
	}, nil
}

// Crops restituisce 3 colture con score in [0.75, 0.98), ordinate per score decrescente.
func (e *Engine) Crops(ctx context.Context, p model.InputParameters) ([]model.CropSuggestion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := wait(ctx, e.cropDelay); err != nil {
		return nil, err
	}

	e.mu.Lock()
	idx := e.rng.Perm(len(e.cat.Crops))[:cropCount]
	out := make([]model.CropSuggestion, 0, cropCount)
	for _, i := range idx {
		out = append(out, model.CropSuggestion{
			Name:  e.cat.Crops[i],
			Score: e.rng.Float64()*(maxScore-minScore) + minScore,
		})
	}
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	e.log.Debug("crops predicted", zap.String("top", out[0].Name), zap.Float64("score", out[0].Score))
	return out, nil
}

// Fertilizer restituisce 2 fertilizzanti con dosaggio "lo-hi kg/acre".
func (e *Engine) Fertilizer(ctx context.Context, p model.InputParameters, crop string) ([]model.FertilizerSuggestion, error) {
	if strings.TrimSpace(crop) == "" {
		return nil, model.NewValidationError("crop", "Crop not provided")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := wait(ctx, e.fertDelay); err != nil {
		return nil, err
	}

	e.mu.Lock()
	idx := e.rng.Perm(len(e.cat.Fertilizers))[:fertilizerCount]
	out := make([]model.FertilizerSuggestion, 0, fertilizerCount)
	for _, i := range idx {
		f := e.cat.Fertilizers[i]
		lo := math.Round(e.rng.Float64()*f.LoSpan + f.LoBase)
		hi := math.Round(e.rng.Float64()*f.HiSpan + f.HiBase)
		out = append(out, model.FertilizerSuggestion{
			Name:        f.Name,
			DosageRange: fmt.Sprintf("%.0f-%.0f kg/acre", lo, hi),
		})
	}
	e.mu.Unlock()

	e.log.Debug("fertilizer predicted", zap.String("crop", crop), zap.String("first", out[0].Name))
	return out, nil
}

// wait simula la latenza rispettando la cancellazione del contesto.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
