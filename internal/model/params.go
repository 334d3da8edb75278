// Package model internal/model/params.go
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InputParameters sono i 7 valori del form (suolo + meteo).
type InputParameters struct {
	Nitrogen    float64 `json:"nitrogen"`    // kg/ha
	Phosphorus  float64 `json:"phosphorus"`  // kg/ha
	Potassium   float64 `json:"potassium"`   // kg/ha
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"` // mm
}

// RawParameters è l'input non tipizzato del form: numeri JSON o stringhe numeriche.
type RawParameters map[string]any

// Nomi dei campi, nell'ordine del form.
const (
	FieldNitrogen    = "nitrogen"
	FieldPhosphorus  = "phosphorus"
	FieldPotassium   = "potassium"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldPH          = "ph"
	FieldRainfall    = "rainfall"
)

type bound struct {
	min, max      float64
	lowMsg, hiMsg string
}

var (
	fieldOrder = []string{FieldNitrogen, FieldPhosphorus, FieldPotassium, FieldTemperature, FieldHumidity, FieldPH, FieldRainfall}

	bounds = map[string]bound{
		FieldNitrogen:    {0, 200, "Value must be non-negative", "Value seems too high"},
		FieldPhosphorus:  {0, 200, "Value must be non-negative", "Value seems too high"},
		FieldPotassium:   {0, 200, "Value must be non-negative", "Value seems too high"},
		FieldTemperature: {-50, 100, "Value seems too low", "Value seems too high"},
		FieldHumidity:    {0, 100, "Value must be non-negative", "Value must be 100 or less"},
		FieldPH:          {0, 14, "Value must be between 0 and 14", "Value must be between 0 and 14"},
		FieldRainfall:    {0, 1000, "Value must be non-negative", "Value seems too high"},
	}
)

// Valori che il sensore non fornisce (N, P, K, pH).
const (
	DefaultNitrogen   = 90.0
	DefaultPhosphorus = 42.0
	DefaultPotassium  = 43.0
	DefaultPH         = 6.5
)

// FieldNames restituisce i nomi dei campi nell'ordine del form.
func FieldNames() []string {
	out := make([]string, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// DefaultParameters sono i valori precompilati nel form.
func DefaultParameters() InputParameters {
	return InputParameters{
		Nitrogen:    DefaultNitrogen,
		Phosphorus:  DefaultPhosphorus,
		Potassium:   DefaultPotassium,
		Temperature: 20.87,
		Humidity:    82.00,
		PH:          DefaultPH,
		Rainfall:    202.93,
	}
}

// MergeSensorReadings completa le letture del sensore con i default fissi:
// il risultato è sempre popolato in tutti i campi.
func MergeSensorReadings(r SensorReadings) InputParameters {
	return InputParameters{
		Nitrogen:    DefaultNitrogen,
		Phosphorus:  DefaultPhosphorus,
		Potassium:   DefaultPotassium,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		PH:          DefaultPH,
		Rainfall:    r.Rainfall,
	}
}

func (p InputParameters) get(field string) float64 {
	switch field {
	case FieldNitrogen:
		return p.Nitrogen
	case FieldPhosphorus:
		return p.Phosphorus
	case FieldPotassium:
		return p.Potassium
	case FieldTemperature:
		return p.Temperature
	case FieldHumidity:
		return p.Humidity
	case FieldPH:
		return p.PH
	case FieldRainfall:
		return p.Rainfall
	}
	return math.NaN()
}

func (p *InputParameters) set(field string, v float64) {
	switch field {
	case FieldNitrogen:
		p.Nitrogen = v
	case FieldPhosphorus:
		p.Phosphorus = v
	case FieldPotassium:
		p.Potassium = v
	case FieldTemperature:
		p.Temperature = v
	case FieldHumidity:
		p.Humidity = v
	case FieldPH:
		p.PH = v
	case FieldRainfall:
		p.Rainfall = v
	}
}

// Raw converte i parametri nella forma non tipizzata del form.
func (p InputParameters) Raw() RawParameters {
	out := make(RawParameters, len(fieldOrder))
	for _, f := range fieldOrder {
		out[f] = p.get(f)
	}
	return out
}

// Validate controlla i range di tutti i campi.
func (p InputParameters) Validate() error {
	fe := FieldErrors{}
	for _, f := range fieldOrder {
		if msg := checkRange(f, p.get(f)); msg != "" {
			fe[f] = msg
		}
	}
	if len(fe) > 0 {
		return &ValidationError{Fields: fe}
	}
	return nil
}

// CoerceParameters converte l'input del form in numeri e ne verifica i range.
// Nessun campo mancante è ammesso; l'errore è sempre un *ValidationError.
func CoerceParameters(raw RawParameters) (InputParameters, error) {
	var p InputParameters
	fe := FieldErrors{}
	for _, f := range fieldOrder {
		v, ok := raw[f]
		if !ok || v == nil {
			fe[f] = "Required"
			continue
		}
		n, err := toFloat(v)
		if err != nil {
			fe[f] = "Expected number"
			continue
		}
		if msg := checkRange(f, n); msg != "" {
			fe[f] = msg
			continue
		}
		p.set(f, n)
	}
	if len(fe) > 0 {
		return InputParameters{}, &ValidationError{Fields: fe}
	}
	return p, nil
}

// Overlay restituisce una copia di base con sopra i valori di top (top vince).
func Overlay(base, top RawParameters) RawParameters {
	out := make(RawParameters, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func checkRange(field string, v float64) string {
	b, ok := bounds[field]
	if !ok {
		return ""
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "Expected number"
	}
	if v < b.min {
		return b.lowMsg
	}
	if v > b.max {
		return b.hiMsg
	}
	return ""
}

// toFloat accetta numeri, json.Number e stringhe numeriche (anche con la virgola decimale).
func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		if s == "" {
			return 0, fmt.Errorf("empty value")
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
