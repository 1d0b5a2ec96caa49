package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues a point for the next batch. Points written while
// disconnected are discarded.
//
// Example:
//
//	client.WritePoint("network_signal",
//	    map[string]string{"path": "/service/1", "type": "wifi"},
//	    map[string]any{"strength": 70},
//	    time.Now())
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
