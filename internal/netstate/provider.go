package netstate

// ErrorCallback receives an explicit failure reported for a provider request.
type ErrorCallback func(err error)

// TechnologyReporter exposes the provider's live technology flags.
type TechnologyReporter interface {
	IsTechnologyAvailable(technology string) bool
	IsTechnologyEnabled(technology string) bool
	IsTechnologyEnabling(technology string) bool
	IsTechnologyUninitialized(technology string) bool
}

// Provider is the outbound side of the property provider. Requests are
// fire-and-forget: results arrive later through the Delegate.
type Provider interface {
	TechnologyReporter

	// SetTechnologyEnabled requests enabling or disabling a technology.
	// onError may be nil.
	SetTechnologyEnabled(technology string, enabled bool, onError ErrorCallback)

	// RequestScan asks every scanning-capable device to scan.
	RequestScan()

	// RequestProperties asks for a full property snapshot of one entity,
	// delivered through UpdateManagedStateProperties.
	RequestProperties(kind ManagedType, path string)

	// UpdateManagerProperties asks for the manager properties again, which
	// re-delivers the entity lists.
	UpdateManagerProperties()

	SetCheckPortalList(list string)

	// ConnectToBestServices asks the provider to connect the best available
	// services.
	ConnectToBestServices()
}

// Delegate is the inbound side of the property provider. *Handler
// implements it; Dispatcher.Delegate wraps it so calls can arrive from any
// goroutine.
type Delegate interface {
	// UpdateManagedList replaces the set of known paths for kind.
	UpdateManagedList(kind ManagedType, paths []string)

	// ManagedStateListChanged signals that a list update for kind finished.
	ManagedStateListChanged(kind ManagedType)

	// UpdateManagedStateProperties applies a full property snapshot.
	UpdateManagedStateProperties(kind ManagedType, path string, properties map[string]any)

	UpdateNetworkServiceProperty(path, key string, value any)
	UpdateDeviceProperty(path, key string, value any)

	// ProfileListChanged signals that the set of profiles changed.
	ProfileListChanged()

	CheckPortalListChanged(list string)
	NotifyManagerPropertyChanged()
}
