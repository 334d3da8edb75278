package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/model"
	"github.com/LeonardoBeccarini/agriassist/internal/services/history"
)

const maxBody = 64 << 10

// decodeBody legge il body JSON in v; un body vuoto lascia v invariato.
func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return NewAPIError(ErrorCodeBadRequest, "Could not read request body.", nil, http.StatusBadRequest)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return NewAPIError(ErrorCodeBadRequest, "Malformed JSON body.", err.Error(), http.StatusBadRequest)
	}
	return nil
}

// stepContext: lo step continua anche se il client chiude la connessione,
// così la sessione arriva comunque a uno stato definito.
func (g *Gateway) stepContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), g.cfg.StepTimeout)
}

func (g *Gateway) session(w http.ResponseWriter, r *http.Request) (string, *flow.Controller, bool) {
	id := r.PathValue("id")
	ctrl, err := g.sessions.Get(id)
	if err != nil {
		respondError(w, err, g.log)
		return "", nil, false
	}
	return id, ctrl, true
}

func (g *Gateway) respondState(w http.ResponseWriter, id string, ctrl *flow.Controller) {
	respondJSON(w, http.StatusOK, SessionResponse{ID: id, State: ctrl.State()}, g.log)
}

func (g *Gateway) handleGuide(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, GuideResponse{Text: g.cfg.IntroText}, g.log)
}

func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err, g.log)
		return
	}
	v, ok := flow.ParseVariant(req.Variant)
	if !ok {
		respondError(w, NewAPIError(ErrorCodeBadRequest, "Unknown variant.", map[string]string{"variant": req.Variant}, http.StatusBadRequest), g.log)
		return
	}
	if v == flow.VariantSensor && g.cfg.Sensor == nil {
		respondError(w, NewAPIError(ErrorCodeBadRequest, "Sensor-assisted entry is not available.", nil, http.StatusBadRequest), g.log)
		return
	}
	id, ctrl, err := g.sessions.Create(v, req.Token)
	if err != nil {
		respondError(w, err, g.log)
		return
	}
	g.metrics.setSessions(g.sessions.Len())
	respondJSON(w, http.StatusCreated, SessionResponse{ID: id, State: ctrl.State()}, g.log)
}

func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !g.sessions.Delete(r.PathValue("id")) {
		respondError(w, flow.ErrSessionNotFound, g.log)
		return
	}
	g.metrics.setSessions(g.sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

// Gli esiti negativi dei servizi esterni non sono errori di trasporto:
// lo snapshot torna con 200 e fase failed.

func (g *Gateway) handleSensor(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	var req SensorRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err, g.log)
		return
	}
	token := req.Token
	if token == "" {
		token = ctrl.State().SensorToken
	}
	ctx, cancel := g.stepContext(r)
	defer cancel()
	if err := ctrl.RequestSensorData(ctx, token); err != nil {
		respondError(w, err, g.log)
		return
	}
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleManual(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.ChooseManualEntry(); err != nil {
		respondError(w, err, g.log)
		return
	}
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	var raw model.RawParameters
	if err := decodeBody(r, &raw); err != nil {
		respondError(w, err, g.log)
		return
	}
	ctx, cancel := g.stepContext(r)
	defer cancel()
	if err := ctrl.SubmitParameters(ctx, raw); err != nil {
		respondError(w, err, g.log)
		return
	}
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleFertilizer(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	var req SelectCropRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err, g.log)
		return
	}
	ctx, cancel := g.stepContext(r)
	defer cancel()
	if err := ctrl.SelectCropForFertilizer(ctx, req.Crop); err != nil {
		respondError(w, err, g.log)
		return
	}
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := g.session(w, r)
	if !ok {
		return
	}
	ctrl.Reset()
	g.respondState(w, id, ctrl)
}

func (g *Gateway) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err, g.log)
		return
	}
	user := req.UserID
	if user == "" {
		user = g.cfg.DefaultUserID
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ack, err := g.cfg.Favorites.Save(ctx, user, req.PlantName)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			g.metrics.observeFavorite("invalid")
			respondError(w, err, g.log)
			return
		}
		g.metrics.observeFavorite("error")
		g.log.Warn("favorite failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, ack, g.log)
		return
	}
	g.metrics.observeFavorite("ok")
	respondJSON(w, http.StatusOK, ack, g.log)
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if g.cfg.History == nil {
		respondError(w, NewAPIError(ErrorCodeUnavailable, "History is not enabled.", nil, http.StatusServiceUnavailable), g.log)
		return
	}
	history.NewRecentHandler(g.cfg.History, 1440, 20).ServeHTTP(w, r)
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(g.cfg.ReadyChecks))
	for name := range g.cfg.ReadyChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := g.cfg.ReadyChecks[name](ctx); err != nil {
			ready = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{"ready": ready, "checks": checks}, g.log)
}
