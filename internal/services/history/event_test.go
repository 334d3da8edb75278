package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

type recorded struct{ events []Event }

func (r *recorded) Record(e Event) { r.events = append(r.events, e) }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestFromTransition_CropsReady(t *testing.T) {
	st := flow.SessionState{
		Variant:         flow.VariantDirect,
		Phase:           flow.PhaseCropsReady,
		CropSuggestions: []model.CropSuggestion{{Name: "rice", Score: 0.9}, {Name: "jute", Score: 0.8}, {Name: "maize", Score: 0.77}},
	}
	e := FromTransition("s1", flow.PhaseSubmittingParameters, flow.PhaseCropsReady, flow.EventResolved, st)

	assert.Equal(t, TypeTransition, e.Type)
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, "direct", e.Variant)
	assert.Equal(t, "crops_ready", e.Phase)
	assert.Equal(t, "info", e.Severity)
	assert.Equal(t, "rice", e.Fields["top_crop"])
	assert.Equal(t, 0.9, e.Fields["top_score"])
	assert.Equal(t, "submitting_parameters", e.Fields["from"])
	assert.False(t, e.Timestamp.IsZero())
}

func TestFromTransition_Failed(t *testing.T) {
	st := flow.SessionState{
		Variant:   flow.VariantSensor,
		Phase:     flow.PhaseFailed,
		LastError: "Failed to fetch rainfall. Check if device is online.",
		ErrorKind: model.KindServiceUnavailable,
	}
	e := FromTransition("s2", flow.PhaseFetchingSensorData, flow.PhaseFailed, flow.EventRejected, st)
	assert.Equal(t, "warning", e.Severity)
	assert.Equal(t, "service_unavailable", e.Fields["error_kind"])
	assert.Equal(t, st.LastError, e.Fields["error"])
}

func TestFromTransition_SensorReadings(t *testing.T) {
	p := model.MergeSensorReadings(model.SensorReadings{Temperature: 25, Humidity: 70, Rainfall: 150})
	st := flow.SessionState{Variant: flow.VariantSensor, InputParameters: &p}
	e := FromTransition("s3", flow.PhaseFetchingSensorData, flow.PhaseSensorDataReady, flow.EventResolved, st)
	assert.Equal(t, 25.0, e.Fields["temperature"])
	assert.Equal(t, 70.0, e.Fields["humidity"])
	assert.Equal(t, 150.0, e.Fields["rainfall"])
}

func TestDecodeMessage_Flow(t *testing.T) {
	b, err := json.Marshal(Event{Phase: "idle", Fields: map[string]any{"event": "reset"}})
	require.NoError(t, err)

	e, err := DecodeMessage("event/flow/abc", b)
	require.NoError(t, err)
	assert.Equal(t, TypeTransition, e.Type)
	assert.Equal(t, "abc", e.SessionID)
	assert.Equal(t, "reset", e.Fields["event"])
	assert.False(t, e.Timestamp.IsZero())
}

func TestDecodeMessage_Favorite(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	b, err := json.Marshal(FavoriteSaved{PlantName: "mango", Timestamp: ts})
	require.NoError(t, err)

	e, err := DecodeMessage("event/favorite/anonymous-user", b)
	require.NoError(t, err)
	assert.Equal(t, TypeFavoriteSaved, e.Type)
	assert.Equal(t, "anonymous-user", e.UserID)
	assert.Equal(t, "mango", e.Fields["plant"])
	assert.Equal(t, ts, e.Timestamp)
}

func TestDecodeMessage_Errors(t *testing.T) {
	_, err := DecodeMessage("event/flow/x", []byte("{"))
	assert.Error(t, err)

	_, err = DecodeMessage("event/flow/", []byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeMessage("event/favorite/u", []byte(`{"plant_name":" "}`))
	assert.Error(t, err)

	_, err = DecodeMessage("sensor/raw/1", []byte(`{}`))
	assert.ErrorIs(t, err, errUnknownTopic)
}

func TestMQTTHandler(t *testing.T) {
	sink := &recorded{}
	h := NewMQTTHandler(sink)

	require.NoError(t, h.Handle(fakeMessage{topic: "event/favorite/u1", payload: []byte(`{"plant_name":"rice"}`)}))
	require.NoError(t, h.Handle(fakeMessage{topic: "other/topic", payload: []byte(`garbage`)}))
	assert.Error(t, h.Handle(fakeMessage{topic: "event/flow/s1", payload: []byte(`garbage`)}))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "u1", sink.events[0].UserID)
}
