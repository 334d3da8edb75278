package flow

import (
	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

// SessionState è lo snapshot completo della sessione. Ogni transizione
// ne produce uno nuovo, mai modificato campo per campo dall'esterno.
type SessionState struct {
	Variant Variant `json:"variant"`
	Phase   Phase   `json:"phase"`
	Busy    bool    `json:"busy"`

	InputParameters       *model.InputParameters       `json:"input_parameters,omitempty"`
	CropSuggestions       []model.CropSuggestion       `json:"crop_suggestions,omitempty"`
	SelectedCrop          *model.CropSuggestion        `json:"selected_crop,omitempty"`
	FertilizerSuggestions []model.FertilizerSuggestion `json:"fertilizer_suggestions,omitempty"`

	LastError  string          `json:"last_error,omitempty"`
	ErrorKind  model.ErrorKind `json:"error_kind,omitempty"`
	FailedFrom Phase           `json:"failed_from,omitempty"`

	SensorToken string `json:"sensor_token,omitempty"`
	IntroText   string `json:"intro_text,omitempty"`
}

func initialState(v Variant, token, intro string) SessionState {
	return SessionState{
		Variant:     v,
		Phase:       PhaseIdle,
		SensorToken: token,
		IntroText:   intro,
	}
}

// clone copia in profondità puntatori e slice.
func (s SessionState) clone() SessionState {
	out := s
	if s.InputParameters != nil {
		p := *s.InputParameters
		out.InputParameters = &p
	}
	if s.SelectedCrop != nil {
		c := *s.SelectedCrop
		out.SelectedCrop = &c
	}
	if s.CropSuggestions != nil {
		out.CropSuggestions = append([]model.CropSuggestion(nil), s.CropSuggestions...)
	}
	if s.FertilizerSuggestions != nil {
		out.FertilizerSuggestions = append([]model.FertilizerSuggestion(nil), s.FertilizerSuggestions...)
	}
	return out
}

// withoutResults azzera risultati ed errore, lasciando parametri e token.
func (s SessionState) withoutResults() SessionState {
	out := s.clone()
	out.CropSuggestions = nil
	out.SelectedCrop = nil
	out.FertilizerSuggestions = nil
	out.LastError = ""
	out.ErrorKind = model.KindNone
	out.FailedFrom = ""
	return out
}
