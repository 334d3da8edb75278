package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
)

const (
	DefaultBlynkURL = "https://blynk.cloud/external/api"
	serviceBlynk    = "blynk"

	// letture concorrenti per Fetch; il breaker deve ammetterle tutte in half-open
	BlynkReads = 3
)

// BlynkPins associa ogni lettura al pin virtuale del device.
type BlynkPins struct {
	Temperature string
	Humidity    string
	Rainfall    string
}

func DefaultBlynkPins() BlynkPins {
	return BlynkPins{Temperature: "v1", Humidity: "v2", Rainfall: "v3"}
}

type BlynkConfig struct {
	BaseURL    string
	Pins       BlynkPins
	Timeout    time.Duration // per singola lettura
	MaxRetries int           // retry per lettura su errori transitori
	RetryWait  time.Duration // intervallo iniziale del backoff
}

// BlynkClient legge temperatura, umidità e pioggia dal cloud Blynk.
type BlynkClient struct {
	cfg     BlynkConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics
	log     *zap.Logger
}

func NewBlynkClient(cfg BlynkConfig, breaker *gobreaker.CircuitBreaker, m *Metrics, logger *zap.Logger) *BlynkClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBlynkURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	def := DefaultBlynkPins()
	if cfg.Pins.Temperature == "" {
		cfg.Pins.Temperature = def.Temperature
	}
	if cfg.Pins.Humidity == "" {
		cfg.Pins.Humidity = def.Humidity
	}
	if cfg.Pins.Rainfall == "" {
		cfg.Pins.Rainfall = def.Rainfall
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = NewBreaker(serviceBlynk, BreakerConfig{HalfOpen: BlynkReads}, m, logger)
	}
	return &BlynkClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		metrics: m,
		log:     logger.Named("blynk"),
	}
}

// Fetch esegue le tre letture in parallelo. Basta un fallimento per annullare le altre:
// nessun risultato parziale viene restituito.
func (b *BlynkClient) Fetch(ctx context.Context, token string) (model.SensorReadings, error) {
	var r model.SensorReadings
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.Temperature, err = b.read(gctx, token, "temperature", b.cfg.Pins.Temperature)
		return err
	})
	g.Go(func() (err error) {
		r.Humidity, err = b.read(gctx, token, "humidity", b.cfg.Pins.Humidity)
		return err
	})
	g.Go(func() (err error) {
		r.Rainfall, err = b.read(gctx, token, "rainfall", b.cfg.Pins.Rainfall)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.SensorReadings{}, err
	}
	return r, nil
}

// read legge un pin con retry esponenziale; 4xx, valori illeggibili e breaker aperto non si ritentano.
func (b *BlynkClient) read(ctx context.Context, token, what, pin string) (float64, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.RetryWait
	bo.MaxElapsedTime = 0

	var v float64
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		start := time.Now()
		res, err := b.breaker.Execute(func() (interface{}, error) {
			return b.get(ctx, token, pin)
		})
		b.metrics.observeUpstream(serviceBlynk, outcome(err), time.Since(start).Seconds())
		if err != nil {
			b.log.Debug("read failed", zap.String("pin", pin), zap.Int("attempt", attempt), zap.Error(err))
			if permanentRead(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		v = res.(float64)
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(b.cfg.MaxRetries)), ctx))
	if err != nil {
		b.log.Info("sensor read failed", zap.String("reading", what), zap.String("pin", pin), zap.Error(err))
		return 0, &model.ServiceError{
			Kind:    model.KindPartialSensorFailure,
			Service: serviceBlynk,
			Err:     fmt.Errorf("Failed to fetch %s. Check if device is online.", what),
		}
	}
	return v, nil
}

var errBadValue = errors.New("unreadable sensor value")

func permanentRead(ctx context.Context, err error) bool {
	var se *StatusError
	switch {
	case ctx.Err() != nil:
		return true
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return true
	case errors.Is(err, errBadValue):
		return true
	case errors.As(err, &se) && se.Status < 500:
		return true
	}
	return false
}

func (b *BlynkClient) get(ctx context.Context, token, pin string) (float64, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("pin", pin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &StatusError{Upstream: serviceBlynk, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return parseBlynkValue(body)
}

// parseBlynkValue accetta numero, stringa numerica o array di un elemento.
func parseBlynkValue(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || dec.InputOffset() != int64(len(b)) {
		// testo semplice non JSON, es. 23.5 con spazi o virgola decimale
		if f, perr := parseNumber(string(b)); perr == nil {
			return f, nil
		}
		return 0, fmt.Errorf("%w: %q", errBadValue, string(b))
	}
	if arr, ok := raw.([]any); ok {
		if len(arr) != 1 {
			return 0, fmt.Errorf("%w: array of %d", errBadValue, len(arr))
		}
		raw = arr[0]
	}
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case string:
		if f, err := parseNumber(v); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errBadValue, string(b))
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
