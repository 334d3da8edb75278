package recommender

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

const validBody = `{"nitrogen":90,"phosphorus":42,"potassium":43,"temperature":20.87,"humidity":82,"ph":6.5,"rainfall":202.93}`

func serve(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e, err := NewEngine(EngineConfig{Source: rand.NewSource(3)})
	require.NoError(t, err)
	mux := NewHTTPMux(e, zaptest.NewLogger(t))
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAPI_PredictCrop(t *testing.T) {
	rec := serve(t, http.MethodPost, "/predict-crop", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var crops []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crops))
	require.Len(t, crops, 3)
	assert.Contains(t, crops[0], "crop")
	assert.Contains(t, crops[0], "score")
}

func TestAPI_PredictCrop_NoData(t *testing.T) {
	for _, body := range []string{"", "null", "{}"} {
		rec := serve(t, http.MethodPost, "/predict-crop", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"No data provided"}`, rec.Body.String())
	}
}

func TestAPI_PredictCrop_Invalid(t *testing.T) {
	rec := serve(t, http.MethodPost, "/predict-crop", `{"nitrogen":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid parameters", body.Error)
	assert.Equal(t, "Required", body.Fields["ph"])
	assert.Contains(t, body.Fields, "nitrogen")
}

func TestAPI_PredictFertilizer(t *testing.T) {
	for name, body := range map[string]string{
		"nested":    `{"crop":"rice","params":` + validBody + `}`,
		"flat":      `{"crop":"rice",` + strings.TrimPrefix(validBody, "{"),
		"crop only": `{"crop":"rice"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/predict-fertilizer", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var ferts []model.FertilizerSuggestion
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ferts))
			assert.NoError(t, model.CheckFertilizers(ferts))
		})
	}
}

func TestAPI_PredictFertilizer_NoCrop(t *testing.T) {
	for _, body := range []string{"", `{"params":` + validBody + `}`, `{"crop":""}`} {
		rec := serve(t, http.MethodPost, "/predict-fertilizer", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Crop not provided"}`, rec.Body.String())
	}
}

func TestAPI_PredictFertilizer_InvalidParams(t *testing.T) {
	rec := serve(t, http.MethodPost, "/predict-fertilizer", `{"crop":"rice","params":{"ph":20}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Invalid parameters"`)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	rec := serve(t, http.MethodGet, "/predict-crop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	rec := serve(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
