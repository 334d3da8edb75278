package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRegistry(t *testing.T, cfg RegistryConfig) (*Registry, *time.Time) {
	t.Helper()
	if cfg.Recommender == nil {
		cfg.Recommender = newFakeRecs()
	}
	cfg.Logger = zaptest.NewLogger(t)
	r := NewRegistry(cfg)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	r, _ := newRegistry(t, RegistryConfig{Sensor: &fakeSensor{}, SensorToken: "default-tok"})

	id, ctrl, err := r.Create(VariantSensor, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "default-tok", ctrl.State().SensorToken)

	id2, ctrl2, err := r.Create(VariantSensor, "own-tok")
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
	assert.Equal(t, "own-tok", ctrl2.State().SensorToken)
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	assert.True(t, r.Delete(id))
	assert.False(t, r.Delete(id))
	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_SensorVariantNeedsSensor(t *testing.T) {
	r, _ := newRegistry(t, RegistryConfig{})
	_, _, err := r.Create(VariantSensor, "")
	assert.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r, _ := newRegistry(t, RegistryConfig{})
	_, a, err := r.Create(VariantDirect, "")
	require.NoError(t, err)
	_, b, err := r.Create(VariantDirect, "")
	require.NoError(t, err)

	require.NoError(t, a.SubmitParameters(context.Background(), validRaw()))
	assert.Equal(t, PhaseCropsReady, a.State().Phase)
	assert.Equal(t, PhaseIdle, b.State().Phase)
}

func TestRegistry_Sweep(t *testing.T) {
	var mu sync.Mutex
	var expired []string
	r, clock := newRegistry(t, RegistryConfig{
		TTL: 10 * time.Minute,
		OnExpire: func(id string) {
			mu.Lock()
			expired = append(expired, id)
			mu.Unlock()
		},
	})

	old, _, err := r.Create(VariantDirect, "")
	require.NoError(t, err)
	*clock = clock.Add(8 * time.Minute)
	fresh, _, err := r.Create(VariantDirect, "")
	require.NoError(t, err)

	*clock = clock.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, []string{old}, expired)

	_, err = r.Get(fresh)
	require.NoError(t, err)

	// Get rinnova la scadenza
	*clock = clock.Add(9 * time.Minute)
	assert.Zero(t, r.Sweep())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SweepKeepsBusySessions(t *testing.T) {
	recs := newFakeRecs()
	recs.entered = make(chan struct{})
	recs.gate = make(chan struct{})
	r, clock := newRegistry(t, RegistryConfig{Recommender: recs, TTL: time.Minute})

	_, ctrl, err := r.Create(VariantDirect, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ctrl.SubmitParameters(context.Background(), validRaw()) }()
	<-recs.entered

	*clock = clock.Add(time.Hour)
	assert.Zero(t, r.Sweep())

	close(recs.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, r.Sweep())
}

func TestRegistry_ListenerGetsSessionID(t *testing.T) {
	var ids []string
	r, _ := newRegistry(t, RegistryConfig{
		Listener: func(id string, _, _ Phase, _ Event, _ SessionState) { ids = append(ids, id) },
	})
	id, ctrl, err := r.Create(VariantDirect, "")
	require.NoError(t, err)
	ctrl.Reset()
	assert.Equal(t, []string{id}, ids)
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r, _ := newRegistry(t, RegistryConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
