package netstate

// NetworkInfo is an immutable copy of a NetworkState, safe to hand to other
// goroutines.
type NetworkInfo struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	ConnectionState string `json:"connection_state"`
	Device          string `json:"device,omitempty"`
	Profile         string `json:"profile,omitempty"`
	SignalStrength  int    `json:"signal_strength"`
	Error           string `json:"error,omitempty"`
	Security        string `json:"security,omitempty"`
	IPAddress       string `json:"ip_address,omitempty"`
	Connectable     bool   `json:"connectable"`
}

// Info snapshots n. A nil network yields nil.
func (n *NetworkState) Info() *NetworkInfo {
	if n == nil {
		return nil
	}
	return &NetworkInfo{
		Path:            n.path,
		Name:            n.name,
		Type:            n.typ,
		ConnectionState: n.connectionState,
		Device:          n.devicePath,
		Profile:         n.profilePath,
		SignalStrength:  n.signalStrength,
		Error:           n.errorState,
		Security:        n.security,
		IPAddress:       n.ipAddress,
		Connectable:     n.connectable,
	}
}

// DeviceInfo is an immutable copy of a DeviceState.
type DeviceInfo struct {
	Path                    string `json:"path"`
	Name                    string `json:"name"`
	Type                    string `json:"type"`
	MACAddress              string `json:"mac_address,omitempty"`
	Scanning                bool   `json:"scanning"`
	AllowRoaming            bool   `json:"allow_roaming,omitempty"`
	ProviderRequiresRoaming bool   `json:"provider_requires_roaming,omitempty"`
	HomeProviderCountry     string `json:"home_provider_country,omitempty"`
}

// Info snapshots d.
func (d *DeviceState) Info() *DeviceInfo {
	if d == nil {
		return nil
	}
	return &DeviceInfo{
		Path:                    d.path,
		Name:                    d.name,
		Type:                    d.typ,
		MACAddress:              d.macAddress,
		Scanning:                d.scanning,
		AllowRoaming:            d.allowRoaming,
		ProviderRequiresRoaming: d.providerRequiresRoaming,
		HomeProviderCountry:     d.homeProviderCountry,
	}
}

// FavoriteInfo is an immutable copy of a FavoriteState.
type FavoriteInfo struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Profile string `json:"profile"`
}

// Info snapshots f.
func (f *FavoriteState) Info() *FavoriteInfo {
	if f == nil {
		return nil
	}
	return &FavoriteInfo{Path: f.path, Name: f.name, Type: f.typ, Profile: f.profilePath}
}
