package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// StatusError: risposta non 2xx dall'upstream.
type StatusError struct {
	Upstream string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s upstream status %d: %s", e.Upstream, e.Status, e.Body)
	}
	return fmt.Sprintf("%s upstream status %d", e.Upstream, e.Status)
}

// Upstream incapsula chiamate HTTP JSON con Circuit Breaker
type Upstream struct {
	name    string
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics
}

// NewUpstream costruisce un client verso un servizio a monte
func NewUpstream(name, base string, timeout time.Duration, breaker *gobreaker.CircuitBreaker, m *Metrics) *Upstream {
	if breaker == nil {
		breaker = NewBreaker(name, BreakerConfig{}, m, zap.NewNop())
	}
	return &Upstream{
		name:    name,
		base:    strings.TrimRight(strings.TrimSpace(base), "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		metrics: m,
	}
}

func (u *Upstream) Name() string { return u.name }

// Configured: false se l'URL base è vuoto (upstream opzionale).
func (u *Upstream) Configured() bool { return u != nil && u.base != "" }

// GetJSON esegue la GET su base+path e decodifica JSON in out
func (u *Upstream) GetJSON(ctx context.Context, path string, out any) error {
	return u.do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON invia in come JSON e decodifica la risposta in out
func (u *Upstream) PostJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s encode error: %w", u.name, err)
	}
	return u.do(ctx, http.MethodPost, path, b, out)
}

func (u *Upstream) do(ctx context.Context, method, path string, body []byte, out any) error {
	if !u.Configured() {
		return fmt.Errorf("%s upstream not configured", u.name)
	}
	start := time.Now()
	_, err := u.breaker.Execute(func() (interface{}, error) {
		return nil, u.roundTrip(ctx, method, path, body, out)
	})
	u.metrics.observeUpstream(u.name, outcome(err), time.Since(start).Seconds())
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s breaker open: %w", u.name, err)
	}
	return err
}

func (u *Upstream) roundTrip(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.base+"/"+strings.TrimLeft(path, "/"), rd)
	if err != nil {
		return fmt.Errorf("%s request error: %w", u.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request error: %w", u.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Upstream: u.name, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode error: %w", u.name, err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case clientFault(err):
		return "client_error"
	default:
		return "error"
	}
}
