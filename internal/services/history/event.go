package history

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/agriassist/internal/flow"
)

const (
	TypeTransition    = "flow.transition"
	TypeFavoriteSaved = "favorite.saved"

	TopicFlowPrefix     = "event/flow/"
	TopicFavoritePrefix = "event/favorite/"
)

// Event è la forma comune di tutto ciò che finisce nello storico.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Variant   string         `json:"variant,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Severity  string         `json:"severity,omitempty"` // info|warning
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// FromTransition costruisce l'evento per una transizione del flow.
func FromTransition(sessionID string, from, to flow.Phase, ev flow.Event, st flow.SessionState) Event {
	fields := map[string]any{
		"from":  string(from),
		"event": string(ev),
	}
	sev := "info"
	switch to {
	case flow.PhaseSensorDataReady:
		if p := st.InputParameters; p != nil {
			fields["temperature"] = p.Temperature
			fields["humidity"] = p.Humidity
			fields["rainfall"] = p.Rainfall
		}
	case flow.PhaseCropsReady:
		if len(st.CropSuggestions) > 0 {
			fields["top_crop"] = st.CropSuggestions[0].Name
			fields["top_score"] = st.CropSuggestions[0].Score
		}
	case flow.PhaseFertilizerReady:
		if st.SelectedCrop != nil {
			fields["crop"] = st.SelectedCrop.Name
		}
		if len(st.FertilizerSuggestions) > 0 {
			fields["fertilizer"] = st.FertilizerSuggestions[0].Name
		}
	case flow.PhaseFailed:
		sev = "warning"
		fields["error_kind"] = string(st.ErrorKind)
		fields["error"] = st.LastError
	}
	return Event{
		Type:      TypeTransition,
		SessionID: sessionID,
		Variant:   string(st.Variant),
		Phase:     string(to),
		Severity:  sev,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// FavoriteSaved è il payload pubblicato su event/favorite/{user}.
type FavoriteSaved struct {
	UserID    string    `json:"user_id"`
	PlantName string    `json:"plant_name"`
	Timestamp time.Time `json:"timestamp"`
}

func (f FavoriteSaved) Event() Event {
	return Event{
		Type:      TypeFavoriteSaved,
		UserID:    f.UserID,
		Severity:  "info",
		Fields:    map[string]any{"plant": f.PlantName},
		Timestamp: f.Timestamp,
	}
}

// DecodeMessage interpreta un messaggio MQTT in base al topic.
func DecodeMessage(topic string, payload []byte) (Event, error) {
	switch {
	case strings.HasPrefix(topic, TopicFlowPrefix):
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return Event{}, err
		}
		if e.SessionID == "" {
			e.SessionID = strings.TrimPrefix(topic, TopicFlowPrefix)
		}
		if e.SessionID == "" {
			return Event{}, errors.New("flow event: missing session")
		}
		if e.Type == "" {
			e.Type = TypeTransition
		}
		return stamp(e), nil
	case strings.HasPrefix(topic, TopicFavoritePrefix):
		var f FavoriteSaved
		if err := json.Unmarshal(payload, &f); err != nil {
			return Event{}, err
		}
		if f.UserID == "" {
			f.UserID = strings.TrimPrefix(topic, TopicFavoritePrefix)
		}
		if f.UserID == "" || strings.TrimSpace(f.PlantName) == "" {
			return Event{}, errors.New("favorite event: missing user/plant")
		}
		return stamp(f.Event()), nil
	}
	return Event{}, errUnknownTopic
}

var errUnknownTopic = errors.New("unknown topic")

func stamp(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// MQTTHandler trasforma messaggi MQTT in Event e li passa al Recorder.
type MQTTHandler struct{ sink Recorder }

func NewMQTTHandler(sink Recorder) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(m mqtt.Message) error {
	evt, err := DecodeMessage(m.Topic(), m.Payload())
	if errors.Is(err, errUnknownTopic) {
		return nil // ignora altri topic
	}
	if err != nil {
		return err
	}
	h.sink.Record(evt)
	return nil
}
