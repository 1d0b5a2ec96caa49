// Package telemetry records network state history as time-series points.
//
// Recorder is a netstate.Observer. Register it with the handler on the
// dispatcher goroutine and it writes:
//
//   - network_connection: one point per connection state transition
//   - network_signal: signal strength whenever it changes
//   - default_network: the new default network (empty path for none)
//
// Points go to a PointWriter, normally *influxdb.Client.
package telemetry
