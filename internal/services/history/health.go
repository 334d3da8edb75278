package history

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ConnChecker è soddisfatto da mqtt.Client.
type ConnChecker interface {
	IsConnectionOpen() bool
}

// Pinger è soddisfatto da influxdb2.Client.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// Deps raccoglie le dipendenze controllate da /healthz e /readyz. MQTT nil = non richiesto.
type Deps struct {
	MQTT        ConnChecker
	Influx      Pinger
	Writer      *Writer
	MinErrorAge time.Duration // nessun errore di scrittura negli ultimi MinErrorAge
}

type depStatus struct {
	MQTTConnected bool
	InfluxOK      bool
	WritesOK      bool
}

func (d Deps) check(ctx context.Context) depStatus {
	st := depStatus{MQTTConnected: d.MQTT == nil || d.MQTT.IsConnectionOpen()}
	if d.Influx != nil {
		ok, err := d.Influx.Ping(ctx)
		st.InfluxOK = ok && err == nil
	}
	min := d.MinErrorAge
	if min <= 0 {
		min = 30 * time.Second
	}
	st.WritesOK = d.Writer.LastErrorAge() > min
	return st
}

func NewHealthHandler(d Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type status struct {
			Status          string  `json:"status"`
			MQTTConnected   bool    `json:"mqtt_connected"`
			InfluxOK        bool    `json:"influx_ok"`
			LastWriteErrorS float64 `json:"last_write_error_age_sec"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		ds := d.check(ctx)
		st := status{
			MQTTConnected:   ds.MQTTConnected,
			InfluxOK:        ds.InfluxOK,
			LastWriteErrorS: d.Writer.LastErrorAge().Seconds(),
		}
		switch {
		case ds.MQTTConnected && ds.InfluxOK && ds.WritesOK:
			st.Status = "ok"
		case ds.MQTTConnected || ds.InfluxOK:
			st.Status = "degraded"
		default:
			st.Status = "down"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
}

// NewReadyHandler: 200 solo se tutte le dipendenze sono ok.
func NewReadyHandler(d Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		ds := d.check(ctx)
		ready := ds.MQTTConnected && ds.InfluxOK && ds.WritesOK
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	})
}
