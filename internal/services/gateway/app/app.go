package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
)

// ReadyCheck verifica una dipendenza per /readyz.
type ReadyCheck func(ctx context.Context) error

type Config struct {
	StepTimeout   time.Duration // timeout di uno step di rete del flow
	SessionTTL    time.Duration
	SweepEvery    time.Duration
	DefaultToken  string // token Blynk precompilato
	IntroText     string
	CORSOrigins   []string
	DefaultUserID string

	Recommender flow.RecommendationService // obbligatorio
	Sensor      flow.SensorService         // nil = variante sensor non disponibile
	Favorites   FavoritesStore             // nil = LogFavorites
	Recorder    history.Recorder           // nil = history.Nop
	History     history.RecentSource       // nil = /history/recent risponde 503
	ReadyChecks map[string]ReadyCheck

	Metrics *Metrics
	Logger  *zap.Logger
}

type Gateway struct {
	cfg      Config
	sessions *flow.Registry
	metrics  *Metrics
	log      *zap.Logger
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Recommender == nil {
		return nil, errors.New("gateway: recommendation service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.IntroText == "" {
		cfg.IntroText = flow.DefaultGuide
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = DefaultUserID
	}
	if cfg.Favorites == nil {
		cfg.Favorites = NewLogFavorites(cfg.Logger)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = history.Nop{}
	}

	g := &Gateway{cfg: cfg, metrics: cfg.Metrics, log: cfg.Logger.Named("gateway")}
	g.sessions = flow.NewRegistry(flow.RegistryConfig{
		Recommender: cfg.Recommender,
		Sensor:      cfg.Sensor,
		SensorToken: cfg.DefaultToken,
		IntroText:   cfg.IntroText,
		TTL:         cfg.SessionTTL,
		Logger:      cfg.Logger,
		Listener:    g.onTransition,
		OnExpire: func(string) {
			g.metrics.setSessions(g.sessions.Len())
		},
	})
	return g, nil
}

func (g *Gateway) Sessions() *flow.Registry { return g.sessions }

// Run fa scadere le sessioni inattive finché ctx non chiude.
func (g *Gateway) Run(ctx context.Context) {
	g.sessions.Run(ctx, g.cfg.SweepEvery)
}

func (g *Gateway) onTransition(id string, from, to flow.Phase, ev flow.Event, st flow.SessionState) {
	g.metrics.observeTransition(string(st.Variant), string(to), string(ev))
	g.cfg.Recorder.Record(history.FromTransition(id, from, to, ev, st))
}

// Handler restituisce il mux con tutte le rotte, dietro CORS.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", g.handleReady)
	mux.Handle("GET /metrics", g.metrics.Handler())
	mux.HandleFunc("GET /guide", g.handleGuide)

	mux.HandleFunc("POST /sessions", g.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", g.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", g.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/sensor", g.handleSensor)
	mux.HandleFunc("POST /sessions/{id}/manual", g.handleManual)
	mux.HandleFunc("POST /sessions/{id}/submit", g.handleSubmit)
	mux.HandleFunc("POST /sessions/{id}/fertilizer", g.handleFertilizer)
	mux.HandleFunc("POST /sessions/{id}/reset", g.handleReset)

	mux.HandleFunc("POST /favorites", g.handleFavorite)
	mux.HandleFunc("GET /history/recent", g.handleHistory)

	origins := g.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}
