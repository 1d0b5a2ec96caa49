package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct {
	mu     sync.Mutex
	points []point
}

func (w *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, point{measurement, tags, fields, ts})
}

func (w *fakeWriter) measurements() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.points))
	for i, p := range w.points {
		out[i] = p.measurement
	}
	return out
}

// stubProvider satisfies netstate.Provider without doing anything.
type stubProvider struct{}

func (stubProvider) IsTechnologyAvailable(string) bool                         { return true }
func (stubProvider) IsTechnologyEnabled(string) bool                           { return true }
func (stubProvider) IsTechnologyEnabling(string) bool                          { return false }
func (stubProvider) IsTechnologyUninitialized(string) bool                     { return false }
func (stubProvider) SetTechnologyEnabled(string, bool, netstate.ErrorCallback) {}
func (stubProvider) RequestScan()                                              {}
func (stubProvider) RequestProperties(netstate.ManagedType, string)            {}
func (stubProvider) UpdateManagerProperties()                                  {}
func (stubProvider) SetCheckPortalList(string)                                 {}
func (stubProvider) ConnectToBestServices()                                    {}

func newNetwork(t *testing.T, path string, props map[string]any) *netstate.NetworkState {
	t.Helper()
	n := netstate.AsNetwork(netstate.NewManaged(netstate.ManagedTypeNetwork, path))
	for k, v := range props {
		n.PropertyChanged(k, v)
	}
	return n
}

func fixedRecorder(w PointWriter, networks NetworkLister) *Recorder {
	r := NewRecorder(w, networks)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestNetworkConnectionStateChanged(t *testing.T) {
	w := &fakeWriter{}
	r := fixedRecorder(w, nil)

	r.NetworkConnectionStateChanged(newNetwork(t, "/service/1", map[string]any{
		"Type":  "wifi",
		"State": "failure",
		"Error": "bad-passphrase",
	}))

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, MeasurementConnection, p.measurement)
	assert.Equal(t, map[string]string{"path": "/service/1", "type": "wifi"}, p.tags)
	assert.Equal(t, map[string]any{
		"state":      "failure",
		"connected":  false,
		"connecting": false,
		"error":      "bad-passphrase",
	}, p.fields)
	assert.Equal(t, time.Unix(1700000000, 0), p.ts)
}

func TestNetworkPropertiesUpdated_OnlyOnStrengthChange(t *testing.T) {
	w := &fakeWriter{}
	r := fixedRecorder(w, nil)
	n := newNetwork(t, "/service/1", map[string]any{"Type": "wifi", "Strength": 40})

	r.NetworkPropertiesUpdated(n)
	r.NetworkPropertiesUpdated(n)
	n.PropertyChanged("Strength", 45)
	r.NetworkPropertiesUpdated(n)

	require.Len(t, w.points, 2)
	assert.Equal(t, map[string]any{"strength": 40}, w.points[0].fields)
	assert.Equal(t, map[string]any{"strength": 45}, w.points[1].fields)
}

func TestDefaultNetworkChanged(t *testing.T) {
	w := &fakeWriter{}
	r := fixedRecorder(w, nil)

	r.DefaultNetworkChanged(newNetwork(t, "/service/1", map[string]any{
		"Name":  "Home",
		"Type":  "ethernet",
		"State": "online",
	}))
	r.DefaultNetworkChanged(nil)

	require.Len(t, w.points, 2)
	assert.Equal(t, map[string]string{"type": "ethernet"}, w.points[0].tags)
	assert.Equal(t, map[string]any{"path": "/service/1", "name": "Home", "state": "online"}, w.points[0].fields)
	assert.Nil(t, w.points[1].tags)
	assert.Equal(t, map[string]any{"path": ""}, w.points[1].fields)
}

func TestRecorderAsHandlerObserver(t *testing.T) {
	w := &fakeWriter{}
	h := netstate.NewHandler(stubProvider{}, netstate.Options{})
	h.AddObserver(fixedRecorder(w, h))

	h.UpdateManagedList(netstate.ManagedTypeNetwork, []string{"/service/1"})
	h.ManagedStateListChanged(netstate.ManagedTypeNetwork)
	assert.Empty(t, w.measurements())

	h.UpdateManagedStateProperties(netstate.ManagedTypeNetwork, "/service/1", map[string]any{
		"Type":     "wifi",
		"State":    "online",
		"Strength": 40,
		"Profile":  "/profile/default",
	})
	h.UpdateNetworkServiceProperty("/service/1", "Strength", 40)
	h.UpdateNetworkServiceProperty("/service/1", "Strength", 55)
	h.UpdateNetworkServiceProperty("/service/1", "State", "idle")

	assert.Equal(t, []string{
		MeasurementConnection,
		MeasurementDefaultNetwork,
		MeasurementSignal,
		MeasurementSignal,
		MeasurementConnection,
		MeasurementDefaultNetwork,
	}, w.measurements())
	assert.Equal(t, "", w.points[5].fields["path"])
}

func TestNetworkListChanged_PrunesStrength(t *testing.T) {
	w := &fakeWriter{}
	h := netstate.NewHandler(stubProvider{}, netstate.Options{})
	r := fixedRecorder(w, h)
	h.AddObserver(r)

	h.UpdateManagedList(netstate.ManagedTypeNetwork, []string{"/service/1", "/service/2"})
	h.ManagedStateListChanged(netstate.ManagedTypeNetwork)
	for _, path := range []string{"/service/1", "/service/2"} {
		h.UpdateManagedStateProperties(netstate.ManagedTypeNetwork, path, map[string]any{"Type": "wifi", "State": "idle"})
		h.UpdateNetworkServiceProperty(path, "Strength", 30)
	}
	require.Len(t, r.strength, 2)

	h.UpdateManagedList(netstate.ManagedTypeNetwork, []string{"/service/1"})
	h.ManagedStateListChanged(netstate.ManagedTypeNetwork)
	assert.Equal(t, map[string]int{"/service/1": 30}, r.strength)

	// A returning network records its strength again.
	h.UpdateManagedList(netstate.ManagedTypeNetwork, []string{"/service/1", "/service/2"})
	h.ManagedStateListChanged(netstate.ManagedTypeNetwork)
	before := len(w.measurements())
	h.UpdateManagedStateProperties(netstate.ManagedTypeNetwork, "/service/2", map[string]any{"Type": "wifi", "State": "idle", "Strength": 30})
	assert.Equal(t, []string{MeasurementSignal}, w.measurements()[before:])
}
