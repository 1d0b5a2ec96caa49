package netstate

// Network property keys.
const (
	PropertyState             = "State"
	PropertyDevice            = "Device"
	PropertyProfile           = "Profile"
	PropertySignalStrength    = "Strength"
	PropertyError             = "Error"
	PropertyErrorDetails      = "ErrorDetails"
	PropertySecurity          = "Security"
	PropertyIPAddress         = "IPAddress"
	PropertyConnectable       = "Connectable"
	PropertyWifiFrequencyList = "WiFi.FrequencyList"
)

// Connection states as reported by the provider.
const (
	StateIdle              = "idle"
	StateCarrier           = "carrier"
	StateAssociation       = "association"
	StateConfiguration     = "configuration"
	StateReady             = "ready"
	StatePortal            = "portal"
	StateOnline            = "online"
	StateFailure           = "failure"
	StateActivationFailure = "activation-failure"
	StateDisconnect        = "disconnect"
)

// IsConnectedState reports whether state counts as connected.
func IsConnectedState(state string) bool {
	switch state {
	case StateReady, StatePortal, StateOnline:
		return true
	}
	return false
}

// IsConnectingState reports whether state is a transitional connect state.
func IsConnectingState(state string) bool {
	switch state {
	case StateAssociation, StateConfiguration, StateCarrier:
		return true
	}
	return false
}

// NetworkState is a visible network service.
type NetworkState struct {
	managedState

	connectionState string
	devicePath      string
	profilePath     string
	signalStrength  int
	errorState      string
	security        string
	ipAddress       string
	connectable     bool
}

// PropertyChanged implements Managed.
func (n *NetworkState) PropertyChanged(key string, value any) bool {
	if handled, changed := n.managedPropertyChanged(key, value); handled {
		return changed
	}
	switch key {
	case PropertyState:
		return n.setString(&n.connectionState, key, value)
	case PropertyDevice:
		return n.setString(&n.devicePath, key, value)
	case PropertyProfile:
		return n.setString(&n.profilePath, key, value)
	case PropertySignalStrength:
		return n.setInt(&n.signalStrength, key, value)
	case PropertyError:
		return n.setString(&n.errorState, key, value)
	case PropertySecurity:
		return n.setString(&n.security, key, value)
	case PropertyIPAddress:
		return n.setString(&n.ipAddress, key, value)
	case PropertyConnectable:
		return n.setBool(&n.connectable, key, value)
	}
	return n.setRaw(key, value)
}

func (n *NetworkState) ConnectionState() string { return n.connectionState }

// DevicePath is the path of the owning device; resolve it through
// Handler.GetDeviceState.
func (n *NetworkState) DevicePath() string  { return n.devicePath }
func (n *NetworkState) ProfilePath() string { return n.profilePath }
func (n *NetworkState) SignalStrength() int { return n.signalStrength }
func (n *NetworkState) ErrorState() string  { return n.errorState }
func (n *NetworkState) Security() string    { return n.security }
func (n *NetworkState) IPAddress() string   { return n.ipAddress }
func (n *NetworkState) Connectable() bool   { return n.connectable }

func (n *NetworkState) IsConnectedState() bool  { return IsConnectedState(n.connectionState) }
func (n *NetworkState) IsConnectingState() bool { return IsConnectingState(n.connectionState) }

// connectionClass orders networks: connected, then connecting, then the rest.
func (n *NetworkState) connectionClass() int {
	switch {
	case n.IsConnectedState():
		return 0
	case n.IsConnectingState():
		return 1
	default:
		return 2
	}
}

// connectionStateChanged reports whether moving from prev to the current
// state is a transition worth announcing. The first observation of an idle
// network is not.
func connectionStateChanged(n *NetworkState, prev string) bool {
	return n.connectionState != prev && (n.connectionState != StateIdle || prev != "")
}
