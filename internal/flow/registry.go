package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound: id sconosciuto o sessione scaduta.
var ErrSessionNotFound = errors.New("flow: session not found")

// SessionListener è come Listener ma riceve anche l'id della sessione.
type SessionListener func(id string, from, to Phase, ev Event, st SessionState)

// RegistryConfig raccoglie le dipendenze comuni a tutte le sessioni.
type RegistryConfig struct {
	Recommender RecommendationService
	Sensor      SensorService
	SensorToken string
	IntroText   string
	TTL         time.Duration // inattività massima prima della scadenza
	Logger      *zap.Logger
	Listener    SessionListener
	OnExpire    func(id string)
}

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry tiene un Controller per sessione: nessuno stato condiviso tra sessioni.
type Registry struct {
	cfg RegistryConfig
	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		log:      cfg.Logger.Named("registry"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create apre una nuova sessione e ne restituisce l'id.
func (r *Registry) Create(v Variant, token string) (string, *Controller, error) {
	id := uuid.NewString()
	if token == "" {
		token = r.cfg.SensorToken
	}
	opts := Options{
		Variant:     v,
		Recommender: r.cfg.Recommender,
		Sensor:      r.cfg.Sensor,
		SensorToken: token,
		IntroText:   r.cfg.IntroText,
		Logger:      r.cfg.Logger.With(zap.String("session", id)),
	}
	if l := r.cfg.Listener; l != nil {
		opts.Listeners = []Listener{func(from, to Phase, ev Event, st SessionState) {
			l(id, from, to, ev, st)
		}}
	}
	ctrl, err := New(opts)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	r.log.Debug("session created", zap.String("id", id), zap.String("variant", string(v)))
	return id, ctrl, nil
}

// Get restituisce il controller e ne rinnova la scadenza.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete scarta la sessione (l'utente ha lasciato la pagina).
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep rimuove le sessioni inattive da più di TTL; le sessioni occupate restano.
func (r *Registry) Sweep() int {
	now := r.now()
	var expired []string

	r.mu.Lock()
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.cfg.TTL && !e.ctrl.Busy() {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.log.Debug("session expired", zap.String("id", id))
		if r.cfg.OnExpire != nil {
			r.cfg.OnExpire(id)
		}
	}
	return len(expired)
}

// Run esegue Sweep periodicamente finché il contesto non chiude.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("expired sessions", zap.Int("count", n))
			}
		}
	}
}
