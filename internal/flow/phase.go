package flow

// Phase è lo stato discreto di una sessione di raccomandazione.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseFetchingSensorData   Phase = "fetching_sensor_data"
	PhaseSensorDataReady      Phase = "sensor_data_ready"
	PhaseManualEntry          Phase = "manual_entry"
	PhaseSubmittingParameters Phase = "submitting_parameters"
	PhaseCropsReady           Phase = "crops_ready"
	PhaseFetchingFertilizer   Phase = "fetching_fertilizer"
	PhaseFertilizerReady      Phase = "fertilizer_ready"
	PhaseFailed               Phase = "failed"
)

// Pending è vero per le fasi con una chiamata di rete in corso.
func (p Phase) Pending() bool {
	switch p {
	case PhaseFetchingSensorData, PhaseSubmittingParameters, PhaseFetchingFertilizer:
		return true
	}
	return false
}

// Event è un'azione dell'utente che scatena una transizione.
type Event string

const (
	EventRequestSensorData Event = "request_sensor_data"
	EventChooseManualEntry Event = "choose_manual_entry"
	EventSubmitParameters  Event = "submit_parameters"
	EventSelectCrop        Event = "select_crop"
	EventReset             Event = "reset"

	// eventi interni, risultato delle chiamate pendenti
	EventResolved Event = "resolved"
	EventRejected Event = "rejected"
)

// Variant seleziona il flusso: inserimento diretto o assistito dal sensore.
type Variant string

const (
	VariantDirect Variant = "direct"
	VariantSensor Variant = "sensor"
)

// ParseVariant accetta anche gli alias usati dalle pagine ("blynk", "manual").
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "", "direct", "manual":
		return VariantDirect, true
	case "sensor", "blynk":
		return VariantSensor, true
	}
	return "", false
}

type transitionKey struct {
	From  Phase
	Event Event
}

// transitionTable: (fase, evento) -> fase pendente o finale.
// Reset è globale e non compare qui.
var sensorTable = map[transitionKey]Phase{
	{PhaseIdle, EventRequestSensorData}:            PhaseFetchingSensorData,
	{PhaseSensorDataReady, EventRequestSensorData}: PhaseFetchingSensorData,
	{PhaseManualEntry, EventRequestSensorData}:     PhaseFetchingSensorData,

	{PhaseIdle, EventChooseManualEntry}:            PhaseManualEntry,
	{PhaseSensorDataReady, EventChooseManualEntry}: PhaseManualEntry,

	{PhaseIdle, EventSubmitParameters}:            PhaseSubmittingParameters,
	{PhaseSensorDataReady, EventSubmitParameters}: PhaseSubmittingParameters,
	{PhaseManualEntry, EventSubmitParameters}:     PhaseSubmittingParameters,

	{PhaseCropsReady, EventSelectCrop}:      PhaseFetchingFertilizer,
	{PhaseFertilizerReady, EventSelectCrop}: PhaseFetchingFertilizer,
}

// Nel flusso diretto il form resta visibile: si può reinviare anche dopo i risultati.
var directTable = map[transitionKey]Phase{
	{PhaseIdle, EventSubmitParameters}:            PhaseSubmittingParameters,
	{PhaseCropsReady, EventSubmitParameters}:      PhaseSubmittingParameters,
	{PhaseFertilizerReady, EventSubmitParameters}: PhaseSubmittingParameters,

	{PhaseCropsReady, EventSelectCrop}:      PhaseFetchingFertilizer,
	{PhaseFertilizerReady, EventSelectCrop}: PhaseFetchingFertilizer,
}

func tableFor(v Variant) map[transitionKey]Phase {
	if v == VariantSensor {
		return sensorTable
	}
	return directTable
}

// resolvedPhase: fase raggiunta quando la chiamata pendente va a buon fine.
var resolvedPhase = map[Phase]Phase{
	PhaseFetchingSensorData:   PhaseSensorDataReady,
	PhaseSubmittingParameters: PhaseCropsReady,
	PhaseFetchingFertilizer:   PhaseFertilizerReady,
}
