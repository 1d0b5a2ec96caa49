package netstate

// Device property keys.
const (
	PropertyAddress                         = "Address"
	PropertyScanning                        = "Scanning"
	PropertyCellularAllowRoaming            = "Cellular.AllowRoaming"
	PropertyCellularProviderRequiresRoaming = "Cellular.ProviderRequiresRoaming"
	PropertyCellularHomeProvider            = "Cellular.HomeProvider"
)

// homeProviderCountryKey is the entry of Cellular.HomeProvider holding the
// ISO country code.
const homeProviderCountryKey = "country"

// DeviceState is a physical or logical network device.
type DeviceState struct {
	managedState

	macAddress              string
	scanning                bool
	allowRoaming            bool
	providerRequiresRoaming bool
	homeProviderCountry     string
}

// PropertyChanged implements Managed.
func (d *DeviceState) PropertyChanged(key string, value any) bool {
	if handled, changed := d.managedPropertyChanged(key, value); handled {
		return changed
	}
	switch key {
	case PropertyAddress:
		return d.setString(&d.macAddress, key, value)
	case PropertyScanning:
		return d.setBool(&d.scanning, key, value)
	case PropertyCellularAllowRoaming:
		return d.setBool(&d.allowRoaming, key, value)
	case PropertyCellularProviderRequiresRoaming:
		return d.setBool(&d.providerRequiresRoaming, key, value)
	case PropertyCellularHomeProvider:
		return d.homeProviderChanged(value)
	}
	return d.setRaw(key, value)
}

func (d *DeviceState) homeProviderChanged(value any) bool {
	var country string
	switch hp := value.(type) {
	case map[string]any:
		country, _ = stringValue(hp[homeProviderCountryKey])
	case map[string]string:
		country = hp[homeProviderCountryKey]
	default:
		return false
	}
	raw := d.setRaw(PropertyCellularHomeProvider, value)
	if country == d.homeProviderCountry {
		return raw
	}
	d.homeProviderCountry = country
	return true
}

// MACAddress is the hardware address as reported (no separators).
func (d *DeviceState) MACAddress() string { return d.macAddress }
func (d *DeviceState) Scanning() bool     { return d.scanning }

func (d *DeviceState) AllowRoaming() bool            { return d.allowRoaming }
func (d *DeviceState) ProviderRequiresRoaming() bool { return d.providerRequiresRoaming }
func (d *DeviceState) HomeProviderCountry() string   { return d.homeProviderCountry }
