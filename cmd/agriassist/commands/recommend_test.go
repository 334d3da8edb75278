package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BLYNK_TOKEN", "")
	t.Setenv("RECOMMENDER_URL", "")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGuideCommand(t *testing.T) {
	out, err := execute(t, "guide")
	require.NoError(t, err)
	assert.Contains(t, out, flow.DefaultGuide)
}

func TestRecommend_Direct(t *testing.T) {
	out, err := execute(t, "recommend", "--seed", "7", "--json")
	require.NoError(t, err)

	var st flow.SessionState
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, flow.VariantDirect, st.Variant)
	assert.Equal(t, flow.PhaseFertilizerReady, st.Phase)
	require.Len(t, st.CropSuggestions, model.CropCount)
	require.NotNil(t, st.SelectedCrop)
	assert.Equal(t, st.CropSuggestions[0].Name, st.SelectedCrop.Name)
	assert.Len(t, st.FertilizerSuggestions, model.FertilizerCount)
	assert.Equal(t, model.DefaultParameters(), *st.InputParameters)
}

func TestRecommend_TextOutput(t *testing.T) {
	out, err := execute(t, "recommend", "--seed", "3", "--ph", "7.2")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended crops:")
	assert.Contains(t, out, "pH 7.2")
	assert.Contains(t, out, "Fertilizers for ")
	assert.Contains(t, out, "kg/acre")
}

func TestRecommend_InvalidParameter(t *testing.T) {
	_, err := execute(t, "recommend", "--ph", "15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ph: Value must be between 0 and 14")
}

func TestRecommend_UnknownCrop(t *testing.T) {
	_, err := execute(t, "recommend", "--seed", "1", "--crop", "not-a-crop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not one of the suggested crops")
}

func TestRecommend_Sensor(t *testing.T) {
	values := map[string]string{"v1": "25", "v2": "70", "v3": "150"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(values[r.URL.Query().Get("pin")]))
	}))
	defer srv.Close()

	out, err := execute(t, "recommend", "--token", "tok", "--blynk-url", srv.URL, "--humidity", "55", "--seed", "2", "--json")
	require.NoError(t, err)

	var st flow.SessionState
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, flow.VariantSensor, st.Variant)
	assert.Equal(t, model.InputParameters{
		Nitrogen: 90, Phosphorus: 42, Potassium: 43,
		Temperature: 25, Humidity: 55, PH: 6.5, Rainfall: 150,
	}, *st.InputParameters)
}

func TestRecommend_SensorOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Invalid token.", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := execute(t, "recommend", "--token", "bad", "--blynk-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Check if device is online.")
}
