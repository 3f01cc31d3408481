package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TrafficMeasurement is the measurement name of traffic statistics points.
const TrafficMeasurement = "mqttmon_traffic"

// TrafficSample is one reading of the monitor's counters.
type TrafficSample struct {
	State              string
	Messages           uint64
	PayloadBytes       uint64
	DecodeFailures     uint64
	ConnectAttempts    uint64
	FailedAttempts     uint64
	Disconnects        uint64
	Subscriptions      uint64
	SubscriptionErrors uint64
}

// point converts s into a line-protocol point. Counters are written as
// unsigned fields; the connection state is a string field so it does not
// add series cardinality.
func (s TrafficSample) point(tags map[string]string, ts time.Time) *write.Point {
	return write.NewPoint(TrafficMeasurement, tags, map[string]interface{}{
		"state":               s.State,
		"messages":            s.Messages,
		"payload_bytes":       s.PayloadBytes,
		"decode_failures":     s.DecodeFailures,
		"connect_attempts":    s.ConnectAttempts,
		"failed_attempts":     s.FailedAttempts,
		"disconnects":         s.Disconnects,
		"subscriptions":       s.Subscriptions,
		"subscription_errors": s.SubscriptionErrors,
	}, ts)
}
