package netstate

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
)

var _ Delegate = (*Handler)(nil)

// UpdateManagedList reconciles the collection for kind against paths.
// Entities whose path survives keep their identity and properties; new
// paths get bare entities; the rest are dropped. Empty and duplicate paths
// are ignored.
func (h *Handler) UpdateManagedList(kind ManagedType, paths []string) {
	list := h.managedList(kind)

	existing := make(map[string]Managed, len(*list))
	for _, m := range *list {
		existing[m.Path()] = m
	}

	rebuilt := make([]Managed, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if m, ok := existing[path]; ok {
			rebuilt = append(rebuilt, m)
			delete(existing, path)
			continue
		}
		rebuilt = append(rebuilt, NewManaged(kind, path))
	}
	*list = rebuilt

	if kind == ManagedTypeNetwork {
		h.sortNetworks()
	}
	h.events.Record(netlog.LevelDebug, "UpdateManagedList:"+kind.String(), "",
		fmt.Sprintf("%d entries, %d dropped", len(rebuilt), len(existing)))
}

// ManagedStateListChanged announces a finished list update for kind.
func (h *Handler) ManagedStateListChanged(kind ManagedType) {
	switch kind {
	case ManagedTypeNetwork:
		h.events.Record(netlog.LevelEvent, "NetworkListChanged", "", fmt.Sprintf("Size:%d", len(h.networks)))
		h.observers.notify(func(o Observer) { o.NetworkListChanged() })
		// The order may have changed.
		if h.checkDefaultNetworkChanged() {
			h.onDefaultNetworkChanged()
		}
	case ManagedTypeFavorite:
		h.events.Record(netlog.LevelDebug, "FavoriteListChanged", "", fmt.Sprintf("Size:%d", len(h.favorites)))
		h.observers.notify(func(o Observer) { o.NetworkListChanged() })
	case ManagedTypeDevice:
		h.events.Record(netlog.LevelDebug, "DeviceListChanged", "", fmt.Sprintf("Size:%d", len(h.devices)))
		h.observers.notify(func(o Observer) { o.DeviceListChanged() })
	default:
		h.logger.Error("list changed for invalid managed type", "kind", int(kind))
	}
}

// UpdateManagedStateProperties applies a full property snapshot to the
// entity at path. Updates for unknown paths are logged and dropped.
func (h *Handler) UpdateManagedStateProperties(kind ManagedType, path string, properties map[string]any) {
	m := findManaged(*h.managedList(kind), path)
	if m == nil {
		h.events.Record(netlog.LevelError, "PropertiesReceived for unknown entity", path, kind.String())
		return
	}

	var network *NetworkState
	prevState := ""
	if kind == ManagedTypeNetwork {
		network = AsNetwork(m)
		prevState = network.ConnectionState()
	}

	updated := false
	for _, key := range slices.Sorted(maps.Keys(properties)) {
		if m.PropertyChanged(key, properties[key]) && network != nil {
			updated = true
		}
	}
	m.InitialPropertiesReceived()
	h.events.Record(netlog.LevelDebug, "PropertiesReceived", path, m.Name())

	if network != nil && (updated || m.UpdateRequested()) {
		if network.ConnectionState() != prevState {
			h.sortNetworks()
		}
		// Connection transitions are evaluated after the whole batch.
		if connectionStateChanged(network, prevState) {
			h.onNetworkConnectionStateChanged(network)
			// A network without a profile entry may have just gained one.
			if network.ProfilePath() == "" {
				h.UpdateManagerProperties()
			}
		}
		h.networkPropertiesUpdated(network)
	}
	m.SetUpdateRequested(false)
}

// UpdateNetworkServiceProperty applies one property to the network at path
// and mirrors it to the favorite sharing that path.
func (h *Handler) UpdateNetworkServiceProperty(path, key string, value any) {
	if fav := findManaged(h.favorites, path); fav != nil {
		fav.PropertyChanged(key, value)
	}

	m := findManaged(h.networks, path)
	if m == nil {
		return
	}
	network := AsNetwork(m)
	prevState := network.ConnectionState()
	if !network.PropertyChanged(key, value) {
		return
	}

	if key == PropertyState {
		h.sortNetworks()
		if connectionStateChanged(network, prevState) {
			h.onNetworkConnectionStateChanged(network)
		}
	} else {
		if network.Path() == h.defaultNetworkPath && !h.noisy[key] {
			h.onDefaultNetworkChanged()
		}
		h.events.Record(h.propertyLogLevel(key), "NetworkPropertyUpdated", path,
			fmt.Sprintf("%s.%s = %v", network.Name(), key, value))
	}
	h.networkPropertiesUpdated(network)
}

// UpdateDeviceProperty applies one property to the device at path. A
// Scanning flag turning false completes the scan for the device's type.
func (h *Handler) UpdateDeviceProperty(path, key string, value any) {
	m := findManaged(h.devices, path)
	if m == nil {
		return
	}
	device := AsDevice(m)
	if !device.PropertyChanged(key, value) {
		return
	}

	h.events.Record(netlog.LevelEvent, "DevicePropertyUpdated", path,
		fmt.Sprintf("%s.%s = %v", device.Name(), key, value))
	h.observers.notify(func(o Observer) { o.DeviceListChanged() })

	if key == PropertyScanning && !device.Scanning() {
		h.ScanCompleted(device.Type())
	}
}

// ProfileListChanged re-requests every network, since profile membership
// is part of each network's properties.
func (h *Handler) ProfileListChanged() {
	h.events.Record(netlog.LevelEvent, "ProfileListChanged", "", "Re-Requesting Network Properties")
	for _, m := range h.networks {
		h.provider.RequestProperties(ManagedTypeNetwork, m.Path())
	}
}

// CheckPortalListChanged caches the provider's check portal list.
func (h *Handler) CheckPortalListChanged(list string) {
	h.checkPortalList = list
}

// NotifyManagerPropertyChanged fans out NetworkManagerChanged.
func (h *Handler) NotifyManagerPropertyChanged() {
	h.events.Record(netlog.LevelDebug, "NotifyManagerPropertyChanged", "", "")
	h.observers.notify(func(o Observer) { o.NetworkManagerChanged() })
}

func (h *Handler) propertyLogLevel(key string) netlog.Level {
	switch {
	case key == PropertyError || key == PropertyErrorDetails:
		return netlog.LevelError
	case h.noisy[key] || key == PropertyWifiFrequencyList:
		return netlog.LevelDebug
	default:
		return netlog.LevelEvent
	}
}
