package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Entry è una riga dello storico esposta via HTTP.
type Entry struct {
	Time      string         `json:"time"` // RFC3339
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Variant   string         `json:"variant,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type RecentQuery struct {
	Minutes   int
	Limit     int
	Type      string
	SessionID string
	Timeout   time.Duration
}

// RecentSource restituisce gli eventi più recenti, dal più nuovo.
type RecentSource interface {
	Recent(ctx context.Context, q RecentQuery) ([]Entry, error)
}

var safeValue = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ParseRecentQuery legge minutes, limit, type, session e timeout_ms con default e limiti.
func ParseRecentQuery(r *http.Request, defMin, defLim int) RecentQuery {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	filter := func(k string) string {
		v := strings.TrimSpace(q.Get(k))
		if safeValue.MatchString(v) {
			return v
		}
		return ""
	}
	return RecentQuery{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		Type:      filter("type"),
		SessionID: filter("session"),
		Timeout:   time.Duration(get("timeout_ms", 2000, 200, 5000)) * time.Millisecond,
	}
}

func buildFlux(bucket string, q RecentQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", bucket)
	fmt.Fprintf(&b, "  |> range(start: -%dm)\n", q.Minutes)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", Measurement)
	if q.Type != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.event_type == %q)\n", q.Type)
	}
	if q.SessionID != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.session_id == %q)\n", q.SessionID)
	}
	b.WriteString(`  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")` + "\n")
	b.WriteString("  |> group()\n")
	b.WriteString(`  |> sort(columns: ["_time"], desc: true)` + "\n")
	fmt.Fprintf(&b, "  |> limit(n: %d)\n", q.Limit)
	return b.String()
}

// FluxSource legge lo storico da InfluxDB.
type FluxSource struct {
	api    api.QueryAPI
	bucket string
}

func NewFluxSource(q api.QueryAPI, bucket string) *FluxSource {
	return &FluxSource{api: q, bucket: bucket}
}

func (s *FluxSource) Recent(ctx context.Context, q RecentQuery) ([]Entry, error) {
	res, err := s.api.Query(ctx, buildFlux(s.bucket, q))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := make([]Entry, 0, q.Limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, entryFromValues(rec.Time(), rec.Values()))
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("influx iter: %w", err)
	}
	return out, nil
}

// entryFromValues separa i tag noti dai field di una riga pivotata.
func entryFromValues(t time.Time, values map[string]interface{}) Entry {
	e := Entry{Time: t.UTC().Format(time.RFC3339), Fields: map[string]any{}}
	str := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}
	for k, v := range values {
		switch k {
		case "event_type":
			e.Type = str(v)
		case "session_id":
			e.SessionID = str(v)
		case "user_id":
			e.UserID = str(v)
		case "variant":
			e.Variant = str(v)
		case "phase":
			e.Phase = str(v)
		case "result", "table", "severity", "count":
		default:
			if strings.HasPrefix(k, "_") || v == nil {
				continue
			}
			e.Fields[k] = v
		}
	}
	return e
}

// NewRecentHandler: GET /history/recent?limit=20[&minutes=1440][&type=..][&session=..]
// Con errori di query risponde comunque 200 con quanto letto e l'header X-Error.
func NewRecentHandler(src RecentSource, defMin, defLim int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := ParseRecentQuery(r, defMin, defLim)
		ctx, cancel := context.WithTimeout(r.Context(), q.Timeout)
		defer cancel()

		entries, err := src.Recent(ctx, q)
		if err != nil {
			w.Header().Set("X-Error", "history-query-error")
		}
		if entries == nil {
			entries = []Entry{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})
}
