package history

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const Measurement = "agriassist_event"

// EventToPoint normalizza Event in un *write.Point per InfluxDB.
func EventToPoint(evt Event) *write.Point {
	// Tag (solo stringhe, solo se valorizzati)
	tags := map[string]string{"event_type": evt.Type}
	for k, v := range map[string]string{
		"session_id": evt.SessionID,
		"user_id":    evt.UserID,
		"variant":    evt.Variant,
		"phase":      evt.Phase,
		"severity":   evt.Severity,
	} {
		if v != "" {
			tags[k] = v
		}
	}

	fields := make(map[string]interface{}, len(evt.Fields)+1)
	for k, v := range evt.Fields {
		if v == nil {
			continue
		}
		fields[k] = v
	}
	// almeno un field per punto
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	return influxdb2.NewPoint(Measurement, tags, fields, evt.Timestamp)
}
