package history

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// Recorder riceve gli eventi da storicizzare. Record non deve bloccare il chiamante.
type Recorder interface {
	Record(evt Event)
}

// Nop scarta tutto: storico disabilitato.
type Nop struct{}

func (Nop) Record(Event) {}

// Writer incapsula WriteAPI e traccia l'ultimo errore di scrittura per /healthz e /readyz.
type Writer struct {
	api     api.WriteAPI
	log     *zap.Logger
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewWriter inizializza il writer e attiva il listener degli errori asincroni di Influx.
// Il listener termina quando il client Influx viene chiuso.
func NewWriter(w api.WriteAPI, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ww := &Writer{
		api:     w,
		log:     logger.Named("influx"),
		lastErr: time.Now().Add(-24 * time.Hour), // di default "lontano nel tempo"
		counts:  make(map[string]int64),
	}
	errs := w.Errors()
	go func() {
		for err := range errs {
			if err != nil {
				ww.log.Warn("write error", zap.Error(err))
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
			}
		}
	}()
	return ww
}

// Record scrive l'evento in modo asincrono (batch di WriteAPI).
func (w *Writer) Record(evt Event) {
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.counts[evt.Type]++
	w.mu.Unlock()
}

func (w *Writer) Flush() { w.api.Flush() }

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count: eventi scritti per tipo.
func (w *Writer) Count(eventType string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[eventType]
	w.mu.RUnlock()
	return c
}
