package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conn bool

func (c conn) IsConnectionOpen() bool { return bool(c) }

type pinger struct {
	ok  bool
	err error
}

func (p pinger) Ping(context.Context) (bool, error) { return p.ok, p.err }

func health(t *testing.T, d Deps) (string, int) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewHealthHandler(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	ready := httptest.NewRecorder()
	NewReadyHandler(d).ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return body.Status, ready.Code
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		deps   Deps
		status string
		ready  int
	}{
		{"all ok", Deps{MQTT: conn(true), Influx: pinger{ok: true}}, "ok", http.StatusOK},
		{"mqtt not required", Deps{Influx: pinger{ok: true}}, "ok", http.StatusOK},
		{"mqtt down", Deps{MQTT: conn(false), Influx: pinger{ok: true}}, "degraded", http.StatusServiceUnavailable},
		{"influx error", Deps{MQTT: conn(true), Influx: pinger{err: errors.New("refused")}}, "degraded", http.StatusServiceUnavailable},
		{"nothing", Deps{MQTT: conn(false)}, "down", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := health(t, tc.deps)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.ready, code)
		})
	}
}
