package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifica gli errori che arrivano al controller.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindValidation           ErrorKind = "validation_error"
	KindServiceUnavailable   ErrorKind = "service_unavailable"
	KindPartialSensorFailure ErrorKind = "partial_sensor_failure"
)

// FieldErrors mappa campo -> messaggio.
type FieldErrors map[string]string

// ValidationError è un errore lato client: non raggiunge mai la rete.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError costruisce un errore su un singolo campo.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: msg}}
}

// ServiceError avvolge un fallimento di rete o un non-2xx di un collaboratore esterno.
type ServiceError struct {
	Kind    ErrorKind
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Kind)
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Unavailable è la scorciatoia per KindServiceUnavailable.
func Unavailable(service string, err error) *ServiceError {
	return &ServiceError{Kind: KindServiceUnavailable, Service: service, Err: err}
}

// KindOf restituisce il tipo di errore; ogni errore sconosciuto vale come servizio non disponibile.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var se *ServiceError
	if errors.As(err, &se) && se.Kind != KindNone {
		return se.Kind
	}
	return KindServiceUnavailable
}

// SessionKind collassa PartialSensorFailure in ServiceUnavailable (join fail-fast).
func SessionKind(err error) ErrorKind {
	k := KindOf(err)
	if k == KindPartialSensorFailure {
		return KindServiceUnavailable
	}
	return k
}
