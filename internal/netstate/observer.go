package netstate

import "slices"

// Observer receives change notifications from a Handler. Calls are made on
// the dispatcher goroutine, in registration order, before the triggering
// update returns.
type Observer interface {
	// NetworkListChanged fires when the network or favorite list changes.
	NetworkListChanged()

	// DeviceListChanged fires when the device list or a device property changes.
	DeviceListChanged()

	// NetworkManagerChanged fires when global or technology state changes.
	NetworkManagerChanged()

	// NetworkConnectionStateChanged fires when a network's connection state
	// makes an announced transition.
	NetworkConnectionStateChanged(network *NetworkState)

	// DefaultNetworkChanged fires when the default network changes or one of
	// its relevant properties does. network is nil when there is none.
	DefaultNetworkChanged(network *NetworkState)

	// NetworkPropertiesUpdated fires after any network property update.
	NetworkPropertiesUpdated(network *NetworkState)
}

// ObserverBase implements Observer with no-ops; embed it to handle a subset.
type ObserverBase struct{}

func (ObserverBase) NetworkListChanged()                         {}
func (ObserverBase) DeviceListChanged()                          {}
func (ObserverBase) NetworkManagerChanged()                      {}
func (ObserverBase) NetworkConnectionStateChanged(*NetworkState) {}
func (ObserverBase) DefaultNetworkChanged(*NetworkState)         {}
func (ObserverBase) NetworkPropertiesUpdated(*NetworkState)      {}

// observerList dispatches over a snapshot so observers may add or remove
// observers from inside a callback. An observer removed mid-dispatch is not
// called for the remainder of that dispatch.
type observerList struct {
	observers []Observer
}

func (l *observerList) add(o Observer) {
	if o == nil || l.has(o) {
		return
	}
	l.observers = append(l.observers, o)
}

func (l *observerList) remove(o Observer) {
	l.observers = slices.DeleteFunc(l.observers, func(x Observer) bool { return x == o })
}

func (l *observerList) has(o Observer) bool {
	return slices.Contains(l.observers, o)
}

func (l *observerList) len() int {
	return len(l.observers)
}

func (l *observerList) notify(fn func(Observer)) {
	snapshot := slices.Clone(l.observers)
	for _, o := range snapshot {
		if !l.has(o) {
			continue
		}
		fn(o)
	}
}
