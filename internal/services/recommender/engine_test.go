package recommender

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

func newEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{Source: rand.NewSource(seed), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return e
}

func TestEngine_CropsContract(t *testing.T) {
	e := newEngine(t, 42)
	known := map[string]bool{}
	for _, c := range DefaultCatalog().Crops {
		known[c] = true
	}

	for i := 0; i < 50; i++ {
		crops, err := e.Crops(context.Background(), model.DefaultParameters())
		require.NoError(t, err)
		require.NoError(t, model.CheckCrops(crops))

		seen := map[string]bool{}
		for _, c := range crops {
			assert.True(t, known[c.Name], c.Name)
			assert.False(t, seen[c.Name], "duplicate %s", c.Name)
			seen[c.Name] = true
			assert.GreaterOrEqual(t, c.Score, minScore)
			assert.Less(t, c.Score, maxScore)
		}
	}
}

func TestEngine_SameSeedSameAnswer(t *testing.T) {
	a, err := newEngine(t, 7).Crops(context.Background(), model.DefaultParameters())
	require.NoError(t, err)
	b, err := newEngine(t, 7).Crops(context.Background(), model.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

var dosageRe = regexp.MustCompile(`^(\d+)-(\d+) kg/acre$`)

func TestEngine_FertilizerDosage(t *testing.T) {
	e := newEngine(t, 1)
	profiles := map[string]FertilizerProfile{}
	for _, f := range DefaultCatalog().Fertilizers {
		profiles[f.Name] = f
	}

	for i := 0; i < 50; i++ {
		ferts, err := e.Fertilizer(context.Background(), model.DefaultParameters(), "rice")
		require.NoError(t, err)
		require.NoError(t, model.CheckFertilizers(ferts))
		assert.NotEqual(t, ferts[0].Name, ferts[1].Name)

		for _, f := range ferts {
			prof, ok := profiles[f.Name]
			require.True(t, ok, f.Name)
			m := dosageRe.FindStringSubmatch(f.DosageRange)
			require.Len(t, m, 3, f.DosageRange)
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			assert.GreaterOrEqual(t, float64(lo), prof.LoBase)
			assert.LessOrEqual(t, float64(lo), prof.LoBase+prof.LoSpan)
			assert.GreaterOrEqual(t, float64(hi), prof.HiBase)
			assert.LessOrEqual(t, float64(hi), prof.HiBase+prof.HiSpan)
		}
	}
}

func TestEngine_FertilizerNeedsCrop(t *testing.T) {
	_, err := newEngine(t, 1).Fertilizer(context.Background(), model.DefaultParameters(), " ")
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Crop not provided", ve.Fields["crop"])
}

func TestEngine_RejectsInvalidParameters(t *testing.T) {
	p := model.DefaultParameters()
	p.PH = 20
	_, err := newEngine(t, 1).Crops(context.Background(), p)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "ph")
}

func TestEngine_DelayHonorsCancel(t *testing.T) {
	e, err := NewEngine(EngineConfig{CropDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Crops(ctx, model.DefaultParameters())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
