// Package influxdb provides InfluxDB connectivity for the network state
// service.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks. The telemetry
// package uses it to record connection transitions, signal strength and
// default network changes.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("default_network", nil, map[string]any{"path": "/service/1"}, time.Now())
//
// # Error Handling
//
// Writes are batched; failures are delivered to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
