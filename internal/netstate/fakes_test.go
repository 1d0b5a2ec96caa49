package netstate

import (
	"fmt"
	"testing"
)

type enableCall struct {
	technology string
	enabled    bool
	onError    ErrorCallback
}

// fakeProvider records outbound requests and serves technology flags from maps.
type fakeProvider struct {
	available     map[string]bool
	enabled       map[string]bool
	enabling      map[string]bool
	uninitialized map[string]bool

	scanRequests     int
	propertyRequests []string
	managerUpdates   int
	portalLists      []string
	connectBest      int
	enableCalls      []enableCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		available:     map[string]bool{},
		enabled:       map[string]bool{},
		enabling:      map[string]bool{},
		uninitialized: map[string]bool{},
	}
}

func (p *fakeProvider) IsTechnologyAvailable(t string) bool     { return p.available[t] }
func (p *fakeProvider) IsTechnologyEnabled(t string) bool       { return p.enabled[t] }
func (p *fakeProvider) IsTechnologyEnabling(t string) bool      { return p.enabling[t] }
func (p *fakeProvider) IsTechnologyUninitialized(t string) bool { return p.uninitialized[t] }

func (p *fakeProvider) SetTechnologyEnabled(t string, enabled bool, onError ErrorCallback) {
	p.enableCalls = append(p.enableCalls, enableCall{t, enabled, onError})
}

func (p *fakeProvider) RequestScan() { p.scanRequests++ }

func (p *fakeProvider) RequestProperties(kind ManagedType, path string) {
	p.propertyRequests = append(p.propertyRequests, kind.String()+":"+path)
}

func (p *fakeProvider) UpdateManagerProperties()       { p.managerUpdates++ }
func (p *fakeProvider) SetCheckPortalList(list string) { p.portalLists = append(p.portalLists, list) }
func (p *fakeProvider) ConnectToBestServices()         { p.connectBest++ }

// recordingObserver flattens notifications into strings.
type recordingObserver struct {
	events           []string
	onListChanged    func()
	onPropertiesSeen func(*NetworkState)
}

func (o *recordingObserver) NetworkListChanged() {
	o.events = append(o.events, "NetworkListChanged")
	if o.onListChanged != nil {
		o.onListChanged()
	}
}

func (o *recordingObserver) DeviceListChanged() {
	o.events = append(o.events, "DeviceListChanged")
}

func (o *recordingObserver) NetworkManagerChanged() {
	o.events = append(o.events, "NetworkManagerChanged")
}

func (o *recordingObserver) NetworkConnectionStateChanged(n *NetworkState) {
	o.events = append(o.events, "ConnectionStateChanged:"+n.Path())
}

func (o *recordingObserver) DefaultNetworkChanged(n *NetworkState) {
	path := "none"
	if n != nil {
		path = n.Path()
	}
	o.events = append(o.events, "DefaultNetworkChanged:"+path)
}

func (o *recordingObserver) NetworkPropertiesUpdated(n *NetworkState) {
	o.events = append(o.events, "PropertiesUpdated:"+n.Path())
	if o.onPropertiesSeen != nil {
		o.onPropertiesSeen(n)
	}
}

func (o *recordingObserver) count(event string) int {
	n := 0
	for _, e := range o.events {
		if e == event {
			n++
		}
	}
	return n
}

func (o *recordingObserver) reset() { o.events = nil }

func newTestHandler(t *testing.T) (*Handler, *fakeProvider, *recordingObserver) {
	t.Helper()
	p := newFakeProvider()
	h := NewHandler(p, Options{})
	o := &recordingObserver{}
	h.AddObserver(o)
	return h, p, o
}

// addNetworks lists paths and applies each property map in order.
func addNetworks(h *Handler, nets ...map[string]any) {
	paths := make([]string, 0, len(nets))
	for _, props := range nets {
		paths = append(paths, props["path"].(string))
	}
	h.UpdateManagedList(ManagedTypeNetwork, paths)
	for _, props := range nets {
		clean := make(map[string]any, len(props))
		for k, v := range props {
			if k != "path" {
				clean[k] = v
			}
		}
		h.UpdateManagedStateProperties(ManagedTypeNetwork, props["path"].(string), clean)
	}
}

func network(path, typ, state string) map[string]any {
	return map[string]any{
		"path":        path,
		PropertyName:  fmt.Sprintf("net-%s", path),
		PropertyType:  typ,
		PropertyState: state,
	}
}

func networkPaths(h *Handler) []string {
	var out []string
	for _, n := range h.GetNetworkList() {
		out = append(out, n.Path())
	}
	return out
}
