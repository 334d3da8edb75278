package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

// RecommendationService è il collaboratore esterno che produce colture e fertilizzanti.
type RecommendationService interface {
	Crops(ctx context.Context, p model.InputParameters) ([]model.CropSuggestion, error)
	Fertilizer(ctx context.Context, p model.InputParameters, crop string) ([]model.FertilizerSuggestion, error)
}

// SensorService legge temperatura, umidità e pioggia dal cloud IoT.
type SensorService interface {
	Fetch(ctx context.Context, token string) (model.SensorReadings, error)
}

// Listener viene chiamato dopo ogni transizione, fuori dal lock.
type Listener func(from, to Phase, ev Event, st SessionState)

// ErrBusy: una chiamata è già in corso per questa sessione.
var ErrBusy = errors.New("flow: request already in flight")

// TransitionError: evento non ammesso nella fase corrente.
type TransitionError struct {
	Variant Variant
	From    Phase
	Event   Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("flow: no transition from %s on %s (%s variant)", e.From, e.Event, e.Variant)
}

type Options struct {
	Variant     Variant
	Recommender RecommendationService
	Sensor      SensorService // obbligatorio solo per VariantSensor
	SensorToken string        // token precompilato
	IntroText   string
	Logger      *zap.Logger
	Listeners   []Listener
}

// Controller è la macchina a stati della sessione. Un solo step di rete alla volta:
// il flag busy è ortogonale alla fase e il lock non è mai tenuto durante le chiamate.
type Controller struct {
	mu        sync.Mutex
	variant   Variant
	recs      RecommendationService
	sensor    SensorService
	intro     string
	log       *zap.Logger
	listeners []Listener

	state SessionState
	busy  bool
	epoch uint64 // incrementato da Reset: i risultati pendenti di un epoch vecchio vengono scartati
}

func New(opts Options) (*Controller, error) {
	if opts.Variant == "" {
		opts.Variant = VariantDirect
	}
	if opts.Variant != VariantDirect && opts.Variant != VariantSensor {
		return nil, fmt.Errorf("flow: unknown variant %q", opts.Variant)
	}
	if opts.Recommender == nil {
		return nil, errors.New("flow: recommendation service is nil")
	}
	if opts.Variant == VariantSensor && opts.Sensor == nil {
		return nil, errors.New("flow: sensor service is nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		variant:   opts.Variant,
		recs:      opts.Recommender,
		sensor:    opts.Sensor,
		intro:     opts.IntroText,
		log:       opts.Logger.Named("flow"),
		listeners: append([]Listener(nil), opts.Listeners...),
		state:     initialState(opts.Variant, strings.TrimSpace(opts.SensorToken), opts.IntroText),
	}, nil
}

// State restituisce una copia dello snapshot corrente.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Variant() Variant { return c.variant }

// Busy è vero mentre una chiamata di rete è in corso.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// RequestSensorData legge i sensori remoti e precompila i parametri.
func (c *Controller) RequestSensorData(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	return c.run(ctx, EventRequestSensorData,
		func(cur SessionState) (SessionState, error) {
			if token == "" {
				return cur, model.NewValidationError("token", "Please enter your Blynk Device Token.")
			}
			next := cur.withoutResults()
			next.InputParameters = nil // nessun dato parziale se la lettura fallisce
			next.SensorToken = token
			return next, nil
		},
		func(ctx context.Context, _ SessionState) (func(SessionState) SessionState, error) {
			r, err := c.sensor.Fetch(ctx, token)
			if err != nil {
				return nil, err
			}
			return func(st SessionState) SessionState {
				p := model.MergeSensorReadings(r)
				st.InputParameters = &p
				return st
			}, nil
		})
}

// ChooseManualEntry salta il sensore: nessuna chiamata di rete.
func (c *Controller) ChooseManualEntry() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	cur := c.state
	origin := effectiveFrom(cur)
	to, ok := tableFor(c.variant)[transitionKey{origin, EventChooseManualEntry}]
	if !ok {
		c.mu.Unlock()
		return &TransitionError{Variant: c.variant, From: cur.Phase, Event: EventChooseManualEntry}
	}
	next := cur.withoutResults()
	next.InputParameters = nil
	next.Phase = to
	c.state = next
	snap := next.clone()
	c.mu.Unlock()

	c.notify(cur.Phase, to, EventChooseManualEntry, snap)
	return nil
}

// SubmitParameters valida i parametri (raw sovrapposti a quelli correnti) e chiede le colture.
// Con parametri non validi il servizio non viene mai contattato.
func (c *Controller) SubmitParameters(ctx context.Context, raw model.RawParameters) error {
	var params model.InputParameters
	return c.run(ctx, EventSubmitParameters,
		func(cur SessionState) (SessionState, error) {
			var base model.RawParameters
			if cur.InputParameters != nil {
				base = cur.InputParameters.Raw()
			}
			p, err := model.CoerceParameters(model.Overlay(base, raw))
			if err != nil {
				return cur, err
			}
			params = p
			next := cur.withoutResults()
			next.InputParameters = &p
			return next, nil
		},
		func(ctx context.Context, _ SessionState) (func(SessionState) SessionState, error) {
			crops, err := c.recs.Crops(ctx, params)
			if err != nil {
				return nil, err
			}
			if err := model.CheckCrops(crops); err != nil {
				return nil, model.Unavailable("recommendation", fmt.Errorf("invalid crop response: %w", err))
			}
			return func(st SessionState) SessionState {
				st.CropSuggestions = append([]model.CropSuggestion(nil), crops...)
				st.SelectedCrop = nil
				st.FertilizerSuggestions = nil
				return st
			}, nil
		})
}

// SelectCropForFertilizer chiede i fertilizzanti per una delle colture suggerite.
func (c *Controller) SelectCropForFertilizer(ctx context.Context, crop string) error {
	var params model.InputParameters
	return c.run(ctx, EventSelectCrop,
		func(cur SessionState) (SessionState, error) {
			if cur.InputParameters == nil {
				return cur, model.NewValidationError("crop", "Submit the parameters first.")
			}
			chosen, ok := model.FindCrop(cur.CropSuggestions, crop)
			if !ok {
				return cur, model.NewValidationError("crop", fmt.Sprintf("%q is not one of the suggested crops.", crop))
			}
			params = *cur.InputParameters
			next := cur.clone()
			next.SelectedCrop = &chosen
			next.FertilizerSuggestions = nil
			return next, nil
		},
		func(ctx context.Context, _ SessionState) (func(SessionState) SessionState, error) {
			ferts, err := c.recs.Fertilizer(ctx, params, crop)
			if err != nil {
				return nil, err
			}
			if err := model.CheckFertilizers(ferts); err != nil {
				return nil, model.Unavailable("recommendation", fmt.Errorf("invalid fertilizer response: %w", err))
			}
			return func(st SessionState) SessionState {
				st.FertilizerSuggestions = append([]model.FertilizerSuggestion(nil), ferts...)
				return st
			}, nil
		})
}

// Reset torna a idle da qualsiasi fase, anche con una chiamata in corso:
// resta solo il token del sensore.
func (c *Controller) Reset() {
	c.mu.Lock()
	from := c.state.Phase
	token := c.state.SensorToken
	c.epoch++
	c.busy = false
	c.state = initialState(c.variant, token, c.intro)
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(from, PhaseIdle, EventReset, snap)
}

type prepareFunc func(cur SessionState) (SessionState, error)
type callFunc func(ctx context.Context, pending SessionState) (func(SessionState) SessionState, error)

// run esegue uno step con chiamata di rete: guardia, fase pendente, chiamata, esito.
func (c *Controller) run(ctx context.Context, ev Event, prepare prepareFunc, call callFunc) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	cur := c.state
	origin := effectiveFrom(cur)
	pending, ok := tableFor(c.variant)[transitionKey{origin, ev}]
	if !ok {
		c.mu.Unlock()
		return &TransitionError{Variant: c.variant, From: cur.Phase, Event: ev}
	}
	next, err := prepare(cur)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	next.Phase = pending
	next.Busy = true
	next.LastError = ""
	next.ErrorKind = model.KindNone
	next.FailedFrom = ""
	c.busy = true
	epoch := c.epoch
	c.state = next
	snap := next.clone()
	c.mu.Unlock()

	c.notify(cur.Phase, pending, ev, snap)

	apply, callErr := call(ctx, snap)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("stale result dropped", zap.String("event", string(ev)))
		return nil
	}
	c.busy = false
	final := c.state.clone()
	final.Busy = false
	outcome := EventResolved
	if callErr != nil {
		outcome = EventRejected
		final.Phase = PhaseFailed
		final.LastError = callErr.Error()
		final.ErrorKind = model.SessionKind(callErr)
		final.FailedFrom = origin
	} else {
		final = apply(final)
		final.Phase = resolvedPhase[pending]
	}
	c.state = final
	snap = final.clone()
	c.mu.Unlock()

	if callErr != nil {
		c.log.Warn("step failed", zap.String("event", string(ev)), zap.String("kind", string(snap.ErrorKind)), zap.Error(callErr))
	}
	c.notify(pending, snap.Phase, outcome, snap)
	return nil
}

func (c *Controller) notify(from, to Phase, ev Event, st SessionState) {
	c.log.Debug("transition",
		zap.String("variant", string(c.variant)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(ev)))
	for _, l := range c.listeners {
		l(from, to, ev, st)
	}
}

// effectiveFrom: da failed valgono le transizioni della fase in cui l'errore è nato.
func effectiveFrom(st SessionState) Phase {
	if st.Phase == PhaseFailed && st.FailedFrom != "" {
		return st.FailedFrom
	}
	return st.Phase
}
