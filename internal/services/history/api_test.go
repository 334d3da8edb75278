package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	got     RecentQuery
	entries []Entry
	err     error
}

func (f *fakeSource) Recent(_ context.Context, q RecentQuery) ([]Entry, error) {
	f.got = q
	return f.entries, f.err
}

func TestParseRecentQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/history/recent?limit=9999&minutes=0&type=flow.transition&session=bad%20id", nil)
	q := ParseRecentQuery(r, 60, 20)
	assert.Equal(t, 500, q.Limit)
	assert.Equal(t, 1, q.Minutes)
	assert.Equal(t, "flow.transition", q.Type)
	assert.Empty(t, q.SessionID, "unsafe values are ignored")
	assert.Equal(t, 2*time.Second, q.Timeout)

	q = ParseRecentQuery(httptest.NewRequest(http.MethodGet, "/history/recent?limit=abc", nil), 60, 20)
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 60, q.Minutes)
}

func TestBuildFlux(t *testing.T) {
	flux := buildFlux("events", RecentQuery{Minutes: 30, Limit: 5, Type: "favorite.saved", SessionID: "s-1"})
	assert.Contains(t, flux, `from(bucket: "events")`)
	assert.Contains(t, flux, "range(start: -30m)")
	assert.Contains(t, flux, `r._measurement == "agriassist_event"`)
	assert.Contains(t, flux, `r.event_type == "favorite.saved"`)
	assert.Contains(t, flux, `r.session_id == "s-1"`)
	assert.Contains(t, flux, "limit(n: 5)")

	plain := buildFlux("events", RecentQuery{Minutes: 30, Limit: 5})
	assert.NotContains(t, plain, "event_type ==")
	assert.NotContains(t, plain, "session_id ==")
}

func TestEntryFromValues(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("CEST", 7200))
	e := entryFromValues(ts, map[string]interface{}{
		"result":       "_result",
		"table":        int64(0),
		"_measurement": Measurement,
		"_time":        ts,
		"event_type":   TypeTransition,
		"session_id":   "s1",
		"variant":      "direct",
		"phase":        "crops_ready",
		"severity":     "info",
		"count":        int64(1),
		"top_crop":     "rice",
		"top_score":    0.93,
		"error":        nil,
	})
	assert.Equal(t, "2024-06-01T08:00:00Z", e.Time)
	assert.Equal(t, TypeTransition, e.Type)
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, "direct", e.Variant)
	assert.Equal(t, "crops_ready", e.Phase)
	assert.Equal(t, map[string]any{"top_crop": "rice", "top_score": 0.93}, e.Fields)
}

func TestRecentHandler(t *testing.T) {
	src := &fakeSource{entries: []Entry{{Time: "2024-06-01T08:00:00Z", Type: TypeFavoriteSaved, UserID: "u"}}}
	rec := httptest.NewRecorder()
	NewRecentHandler(src, 1440, 20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/recent?limit=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Error"))
	assert.Equal(t, 3, src.got.Limit)
	assert.Equal(t, 1440, src.got.Minutes)

	var got []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, src.entries, got)
}

func TestRecentHandler_QueryError(t *testing.T) {
	src := &fakeSource{err: errors.New("influx down")}
	rec := httptest.NewRecorder()
	NewRecentHandler(src, 1440, 20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/recent", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "history-query-error", rec.Header().Get("X-Error"))
	assert.JSONEq(t, "[]", rec.Body.String())
}
