package telemetry

import (
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// Measurement names.
const (
	MeasurementConnection     = "network_connection"
	MeasurementSignal         = "network_signal"
	MeasurementDefaultNetwork = "default_network"
)

// PointWriter accepts time-series points. Satisfied by *influxdb.Client.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// NetworkLister reports the current network list. Satisfied by
// *netstate.Handler.
type NetworkLister interface {
	GetNetworkList() []*netstate.NetworkState
}

// Recorder converts handler notifications into points.
//
// Observer methods are called on the dispatcher goroutine only, so the
// recorder keeps its bookkeeping without locks.
type Recorder struct {
	netstate.ObserverBase

	writer   PointWriter
	networks NetworkLister
	now      func() time.Time

	// strength is the last recorded signal strength per network path.
	// Paths are dropped when they leave the network list.
	strength map[string]int
}

var _ netstate.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder writing to writer. networks is consulted
// on list changes and must only be read on the dispatcher goroutine.
func NewRecorder(writer PointWriter, networks NetworkLister) *Recorder {
	return &Recorder{
		writer:   writer,
		networks: networks,
		now:      time.Now,
		strength: make(map[string]int),
	}
}

func networkTags(n *netstate.NetworkState) map[string]string {
	return map[string]string{
		"path": n.Path(),
		"type": n.Type(),
	}
}

// NetworkConnectionStateChanged implements netstate.Observer.
func (r *Recorder) NetworkConnectionStateChanged(n *netstate.NetworkState) {
	fields := map[string]any{
		"state":      n.ConnectionState(),
		"connected":  n.IsConnectedState(),
		"connecting": n.IsConnectingState(),
	}
	if e := n.ErrorState(); e != "" {
		fields["error"] = e
	}
	r.writer.WritePoint(MeasurementConnection, networkTags(n), fields, r.now())
}

// NetworkPropertiesUpdated implements netstate.Observer. A point is only
// written when the strength differs from the last one recorded for the path.
func (r *Recorder) NetworkPropertiesUpdated(n *netstate.NetworkState) {
	strength := n.SignalStrength()
	if last, ok := r.strength[n.Path()]; ok && last == strength {
		return
	}
	r.strength[n.Path()] = strength
	r.writer.WritePoint(MeasurementSignal, networkTags(n), map[string]any{"strength": strength}, r.now())
}

// NetworkListChanged implements netstate.Observer.
func (r *Recorder) NetworkListChanged() {
	if r.networks == nil || len(r.strength) == 0 {
		return
	}
	current := make(map[string]bool)
	for _, n := range r.networks.GetNetworkList() {
		current[n.Path()] = true
	}
	for path := range r.strength {
		if !current[path] {
			delete(r.strength, path)
		}
	}
}

// DefaultNetworkChanged implements netstate.Observer.
func (r *Recorder) DefaultNetworkChanged(n *netstate.NetworkState) {
	fields := map[string]any{"path": ""}
	var tags map[string]string
	if n != nil {
		tags = map[string]string{"type": n.Type()}
		fields["path"] = n.Path()
		fields["name"] = n.Name()
		fields["state"] = n.ConnectionState()
	}
	r.writer.WritePoint(MeasurementDefaultNetwork, tags, fields, r.now())
}
