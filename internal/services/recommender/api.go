package recommender

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

const maxBody = 64 << 10

type errorBody struct {
	Error  string            `json:"error"`
	Fields model.FieldErrors `json:"fields,omitempty"`
}

// FertilizerRequest: i parametri possono arrivare in "params" o appiattiti accanto a "crop";
// sono opzionali.
type FertilizerRequest struct {
	Crop   string              `json:"crop"`
	Params model.RawParameters `json:"params,omitempty"`
}

// NewHTTPMux espone il motore via HTTP:
//
//	POST /predict-crop        body = parametri del suolo
//	POST /predict-fertilizer  body = {"crop": "...", "params": {...}} (params opzionali)
//	GET  /healthz
func NewHTTPMux(e *Engine, logger *zap.Logger) *http.ServeMux {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("api")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /predict-crop", func(w http.ResponseWriter, r *http.Request) {
		raw, err := readObject(r)
		if err != nil || len(raw) == 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "No data provided"})
			return
		}
		p, err := model.CoerceParameters(raw)
		if err != nil {
			writeValidation(w, err)
			return
		}
		crops, err := e.Crops(r.Context(), p)
		if err != nil {
			log.Error("predict crop", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "An internal error occurred"})
			return
		}
		writeJSON(w, http.StatusOK, crops)
	})

	mux.HandleFunc("POST /predict-fertilizer", func(w http.ResponseWriter, r *http.Request) {
		raw, err := readObject(r)
		if err != nil || len(raw) == 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Crop not provided"})
			return
		}
		req := splitFertilizerRequest(raw)
		if strings.TrimSpace(req.Crop) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Crop not provided"})
			return
		}
		// solo "crop": il modello non dipende dai parametri, si usano quelli di default
		p := model.DefaultParameters()
		if len(req.Params) > 0 {
			if p, err = model.CoerceParameters(req.Params); err != nil {
				writeValidation(w, err)
				return
			}
		}
		ferts, err := e.Fertilizer(r.Context(), p, req.Crop)
		if err != nil {
			log.Error("predict fertilizer", zap.String("crop", req.Crop), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "An internal error occurred"})
			return
		}
		writeJSON(w, http.StatusOK, ferts)
	})

	return mux
}

// readObject decodifica il body come oggetto JSON; body vuoto o "null" -> mappa vuota.
func readObject(r *http.Request) (model.RawParameters, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m model.RawParameters
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func splitFertilizerRequest(raw model.RawParameters) FertilizerRequest {
	var req FertilizerRequest
	if s, ok := raw["crop"].(string); ok {
		req.Crop = s
	}
	if nested, ok := raw["params"].(map[string]any); ok {
		req.Params = nested
		return req
	}
	req.Params = make(model.RawParameters, len(raw))
	for k, v := range raw {
		if k != "crop" {
			req.Params[k] = v
		}
	}
	return req
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid parameters", Fields: ve.Fields})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
