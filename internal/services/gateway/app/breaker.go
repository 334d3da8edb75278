package app

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type BreakerConfig struct {
	Failures int           // fallimenti consecutivi prima dell'apertura
	OpenFor  time.Duration // durata dello stato open
	Interval time.Duration // reset dei contatori in closed (0 = mai)
	HalfOpen uint32        // richieste ammesse in half-open (0 = 1)
}

// NewBreaker: un breaker per upstream. Gli errori 4xx e le richieste annullate
// dal chiamante non contano come guasti.
func NewBreaker(name string, cfg BreakerConfig, m *Metrics, log *zap.Logger) *gobreaker.CircuitBreaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	m.setBreaker(name, gobreaker.StateClosed)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.Failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || canceled(err) || clientFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.setBreaker(name, to)
			log.Warn("breaker state change", zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
}

// clientFault: errori dovuti alla richiesta (HTTP 4xx, gRPC InvalidArgument/NotFound).
func clientFault(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status < 500
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound:
		return true
	}
	return false
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}
