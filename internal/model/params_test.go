package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceParameters_AcceptsNumbersAndStrings(t *testing.T) {
	raw := RawParameters{
		"nitrogen":    "90",
		"phosphorus":  42,
		"potassium":   json.Number("43"),
		"temperature": "20,87",
		"humidity":    82.0,
		"ph":          "6.5",
		"rainfall":    202.93,
	}
	p, err := CoerceParameters(raw)
	require.NoError(t, err)
	assert.Equal(t, InputParameters{
		Nitrogen: 90, Phosphorus: 42, Potassium: 43,
		Temperature: 20.87, Humidity: 82, PH: 6.5, Rainfall: 202.93,
	}, p)
}

func TestCoerceParameters_FieldErrors(t *testing.T) {
	raw := RawParameters{
		"nitrogen":    -1,
		"phosphorus":  201,
		"temperature": -51,
		"humidity":    101,
		"ph":          "abc",
		"rainfall":    1000.5,
	}
	_, err := CoerceParameters(raw)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, FieldErrors{
		"nitrogen":    "Value must be non-negative",
		"phosphorus":  "Value seems too high",
		"potassium":   "Required",
		"temperature": "Value seems too low",
		"humidity":    "Value must be 100 or less",
		"ph":          "Expected number",
		"rainfall":    "Value seems too high",
	}, ve.Fields)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCoerceParameters_Bounds(t *testing.T) {
	lo := RawParameters{"nitrogen": 0, "phosphorus": 0, "potassium": 0, "temperature": -50, "humidity": 0, "ph": 0, "rainfall": 0}
	hi := RawParameters{"nitrogen": 200, "phosphorus": 200, "potassium": 200, "temperature": 100, "humidity": 100, "ph": 14, "rainfall": 1000}

	_, err := CoerceParameters(lo)
	assert.NoError(t, err)
	_, err = CoerceParameters(hi)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.PH = 14.1
	err := p.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Value must be between 0 and 14", ve.Fields["ph"])
	assert.Len(t, ve.Fields, 1)
}

func TestMergeSensorReadings(t *testing.T) {
	got := MergeSensorReadings(SensorReadings{Temperature: 25, Humidity: 70, Rainfall: 150})
	assert.Equal(t, InputParameters{
		Nitrogen: 90, Phosphorus: 42, Potassium: 43,
		Temperature: 25, Humidity: 70, PH: 6.5, Rainfall: 150,
	}, got)
}

func TestOverlay(t *testing.T) {
	base := DefaultParameters().Raw()
	out := Overlay(base, RawParameters{"nitrogen": "100", "ph": "", "rainfall": nil})

	p, err := CoerceParameters(out)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Nitrogen)
	assert.Equal(t, 6.5, p.PH)
	assert.Equal(t, 202.93, p.Rainfall)
	// base non modificata
	assert.Equal(t, 90.0, base["nitrogen"])
}

func TestCheckCrops(t *testing.T) {
	ok := []CropSuggestion{{"rice", 0.9}, {"maize", 0.8}, {"jute", 0.8}}
	assert.NoError(t, CheckCrops(ok))

	assert.Error(t, CheckCrops(ok[:2]))
	assert.Error(t, CheckCrops([]CropSuggestion{{"rice", 0.7}, {"maize", 0.8}, {"jute", 0.1}}))
	assert.Error(t, CheckCrops([]CropSuggestion{{"rice", 1.2}, {"maize", 0.8}, {"jute", 0.1}}))
	assert.Error(t, CheckCrops([]CropSuggestion{{"rice", math.NaN()}, {"maize", 0.8}, {"jute", 0.1}}))
	assert.Error(t, CheckCrops([]CropSuggestion{{"rice", 0.9}, {"maize", math.NaN()}, {"jute", 0.1}}))
}

func TestCheckFertilizers(t *testing.T) {
	assert.NoError(t, CheckFertilizers([]FertilizerSuggestion{{"Urea", "10-20 kg/acre"}, {"MOP (Muriate of Potash)", "15-25 kg/acre"}}))
	assert.Error(t, CheckFertilizers([]FertilizerSuggestion{{"Urea", "10-20 kg/acre"}}))
}

func TestSessionKind(t *testing.T) {
	partial := &ServiceError{Kind: KindPartialSensorFailure, Service: "blynk", Err: errors.New("humidity down")}
	assert.Equal(t, KindPartialSensorFailure, KindOf(partial))
	assert.Equal(t, KindServiceUnavailable, SessionKind(partial))
	assert.Equal(t, KindServiceUnavailable, KindOf(errors.New("boom")))
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, "humidity down", partial.Error())
}
