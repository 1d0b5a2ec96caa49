package netstate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
)

// DefaultNoisyProperties are the network keys that never re-announce the
// default network when they change.
var DefaultNoisyProperties = []string{PropertySignalStrength}

// DefaultScanRetryInterval is how long a scan request that never completed
// holds back further requests for the same type.
const DefaultScanRetryInterval = 15 * time.Second

// Options configures a Handler.
type Options struct {
	// NoisyProperties overrides DefaultNoisyProperties when non-nil.
	NoisyProperties []string

	// ScanRetryInterval overrides DefaultScanRetryInterval when positive.
	ScanRetryInterval time.Duration

	Logger Logger
	Events EventRecorder
}

// Handler is the state synchronization engine.
//
// Handler is not safe for concurrent use; see the package documentation.
type Handler struct {
	provider Provider
	logger   Logger
	events   EventRecorder

	networks  []Managed
	favorites []Managed
	devices   []Managed

	observers observerList
	scans     *scanQueue
	scanRetry time.Duration
	noisy     map[string]bool
	now       func() time.Time

	defaultNetworkPath string
	connectingNetwork  string
	checkPortalList    string
}

// NewHandler creates a Handler that issues requests to provider.
func NewHandler(provider Provider, opts Options) *Handler {
	h := &Handler{
		provider:        provider,
		logger:          opts.Logger,
		events:          opts.Events,
		scans:           newScanQueue(),
		scanRetry:       opts.ScanRetryInterval,
		noisy:           make(map[string]bool),
		now:             time.Now,
		checkPortalList: DefaultCheckPortalList,
	}
	if h.scanRetry <= 0 {
		h.scanRetry = DefaultScanRetryInterval
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	if h.events == nil {
		h.events = noopRecorder{}
	}
	noisy := opts.NoisyProperties
	if noisy == nil {
		noisy = DefaultNoisyProperties
	}
	for _, key := range noisy {
		h.noisy[key] = true
	}
	return h
}

// AddObserver registers o. Adding an observer twice has no effect.
// Observers must be comparable (typically pointers).
func (h *Handler) AddObserver(o Observer) {
	h.observers.add(o)
	h.events.Record(netlog.LevelDebug, "AddObserver", "", fmt.Sprintf("%T", o))
}

// RemoveObserver unregisters o. It is safe to call from a notification.
func (h *Handler) RemoveObserver(o Observer) {
	h.observers.remove(o)
	h.events.Record(netlog.LevelDebug, "RemoveObserver", "", fmt.Sprintf("%T", o))
}

// UpdateManagerProperties asks the provider to refresh manager properties.
func (h *Handler) UpdateManagerProperties() {
	h.events.Record(netlog.LevelUser, "UpdateManagerProperties", "", "")
	h.provider.UpdateManagerProperties()
}

// GetTechnologyState returns the derived state of typ, which may be a
// concrete technology or MatchTypeMobile.
func (h *Handler) GetTechnologyState(typ string) TechnologyState {
	technology := h.technologyForType(typ)
	state := technologyState(h.provider, technology)
	h.logger.Debug("technology state", "type", typ, "technology", technology, "state", state.String())
	return state
}

// SetTechnologyEnabled requests a technology change and immediately
// announces a manager change so observers can show it as enabling.
func (h *Handler) SetTechnologyEnabled(typ string, enabled bool, onError ErrorCallback) {
	technology := h.technologyForType(typ)
	h.events.Record(netlog.LevelUser, "SetTechnologyEnabled", "", fmt.Sprintf("%s:%t", technology, enabled))
	h.provider.SetTechnologyEnabled(technology, enabled, func(err error) {
		h.events.Record(netlog.LevelError, "SetTechnologyEnabled failed", "", fmt.Sprintf("%s: %v", technology, err))
		if onError != nil {
			onError(err)
		}
	})
	h.NotifyManagerPropertyChanged()
}

// GetDeviceState returns the device at path, or nil.
func (h *Handler) GetDeviceState(path string) *DeviceState {
	if m := findManaged(h.devices, path); m != nil {
		return AsDevice(m)
	}
	return nil
}

// GetDeviceStateByType returns the first device matching typ, or nil.
func (h *Handler) GetDeviceStateByType(typ string) *DeviceState {
	for _, m := range h.devices {
		if matchesType(m.Type(), typ) {
			return AsDevice(m)
		}
	}
	return nil
}

// GetScanningByType reports whether any device matching typ is scanning.
func (h *Handler) GetScanningByType(typ string) bool {
	for _, m := range h.devices {
		if matchesType(m.Type(), typ) && AsDevice(m).Scanning() {
			return true
		}
	}
	return false
}

// GetDeviceList returns every known device in arrival order.
func (h *Handler) GetDeviceList() []*DeviceState {
	out := make([]*DeviceState, 0, len(h.devices))
	for _, m := range h.devices {
		out = append(out, AsDevice(m))
	}
	return out
}

// GetNetworkState returns the network at path, or nil.
func (h *Handler) GetNetworkState(path string) *NetworkState {
	if m := findManaged(h.networks, path); m != nil {
		return AsNetwork(m)
	}
	return nil
}

// DefaultNetwork returns the first network if it is connected, else nil.
func (h *Handler) DefaultNetwork() *NetworkState {
	if len(h.networks) == 0 {
		return nil
	}
	n := AsNetwork(h.networks[0])
	if !n.IsConnectedState() {
		return nil
	}
	return n
}

// ConnectedNetworkByType returns the first connected network matching typ.
func (h *Handler) ConnectedNetworkByType(typ string) *NetworkState {
	for _, m := range h.networks {
		n := AsNetwork(m)
		if !n.IsConnectedState() {
			break // connected networks sort first
		}
		if matchesType(n.Type(), typ) {
			return n
		}
	}
	return nil
}

// ConnectingNetworkByType returns the first connecting network matching typ.
func (h *Handler) ConnectingNetworkByType(typ string) *NetworkState {
	for _, m := range h.networks {
		n := AsNetwork(m)
		if n.IsConnectedState() {
			continue
		}
		if !n.IsConnectingState() {
			break
		}
		if matchesType(n.Type(), typ) {
			return n
		}
	}
	return nil
}

// FirstNetworkByType returns the first network matching typ in any state.
func (h *Handler) FirstNetworkByType(typ string) *NetworkState {
	for _, m := range h.networks {
		if matchesType(m.Type(), typ) {
			return AsNetwork(m)
		}
	}
	return nil
}

// HardwareAddressForType returns the upper-case MAC address of the device
// behind the first connected network matching typ, or "".
func (h *Handler) HardwareAddressForType(typ string) string {
	n := h.ConnectedNetworkByType(typ)
	if n == nil {
		return ""
	}
	d := h.GetDeviceState(n.DevicePath())
	if d == nil {
		return ""
	}
	return strings.ToUpper(d.MACAddress())
}

// FormattedHardwareAddressForType is HardwareAddressForType with a colon
// between every two characters. Odd-length addresses are returned as is.
func (h *Handler) FormattedHardwareAddressForType(typ string) string {
	address := h.HardwareAddressForType(typ)
	if len(address)%2 != 0 {
		return address
	}
	var b strings.Builder
	for i := 0; i < len(address); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(address[i : i+2])
	}
	return b.String()
}

// GetNetworkList returns every visible network in collection order.
func (h *Handler) GetNetworkList() []*NetworkState {
	out := make([]*NetworkState, 0, len(h.networks))
	for _, m := range h.networks {
		out = append(out, AsNetwork(m))
	}
	return out
}

// GetFavoriteList returns the favorites that belong to a profile.
func (h *Handler) GetFavoriteList() []*FavoriteState {
	var out []*FavoriteState
	for _, m := range h.favorites {
		if f := AsFavorite(m); f.IsFavorite() {
			out = append(out, f)
		}
	}
	return out
}

// GetFavoriteState returns the favorite entry at path, or nil.
func (h *Handler) GetFavoriteState(path string) *FavoriteState {
	if m := findManaged(h.favorites, path); m != nil {
		return AsFavorite(m)
	}
	return nil
}

// RequestScan asks the provider to scan.
func (h *Handler) RequestScan() {
	h.events.Record(netlog.LevelUser, "RequestScan", "", "")
	h.provider.RequestScan()
}

// WaitForScan queues cb until a scan of typ completes. A scan is requested
// unless a matching device is already scanning or an earlier request for typ
// is still within the retry interval, so concurrent waiters share one
// request. The returned func removes cb if it has not run yet.
func (h *Handler) WaitForScan(typ string, cb func()) (cancel func()) {
	id := h.scans.add(typ, cb)
	now := h.now()
	if !h.GetScanningByType(typ) && !h.scans.outstanding(typ, now, h.scanRetry) {
		h.scans.markRequested(typ, now)
		h.RequestScan()
	}
	return func() { h.scans.remove(typ, id) }
}

// ScanCompleted runs and clears every callback waiting on typ, in the
// order they were queued.
func (h *Handler) ScanCompleted(typ string) {
	callbacks := h.scans.take(typ)
	h.events.Record(netlog.LevelEvent, "ScanCompleted", "", fmt.Sprintf("%s:%d", typ, len(callbacks)))
	for _, cb := range callbacks {
		cb()
	}
}

// ConnectToBestWifiNetwork scans wifi and then asks the provider to connect
// the best services.
func (h *Handler) ConnectToBestWifiNetwork() {
	h.events.Record(netlog.LevelUser, "ConnectToBestWifiNetwork", "", "")
	h.WaitForScan(TypeWifi, h.provider.ConnectToBestServices)
}

// RequestUpdateForNetwork re-fetches the properties of a known network. It
// returns false when path is unknown.
func (h *Handler) RequestUpdateForNetwork(path string) bool {
	m := findManaged(h.networks, path)
	if m == nil {
		return false
	}
	m.SetUpdateRequested(true)
	h.events.Record(netlog.LevelEvent, "RequestUpdate", path, "")
	h.provider.RequestProperties(ManagedTypeNetwork, path)
	return true
}

// RequestUpdateForAllNetworks re-fetches the properties of every network.
func (h *Handler) RequestUpdateForAllNetworks() {
	h.events.Record(netlog.LevelEvent, "RequestUpdateForAllNetworks", "", "")
	for _, m := range h.networks {
		m.SetUpdateRequested(true)
		h.provider.RequestProperties(ManagedTypeNetwork, m.Path())
	}
}

// SetConnectingNetwork records the network a connect was issued for. An
// empty path clears it.
func (h *Handler) SetConnectingNetwork(path string) {
	h.connectingNetwork = path
	if path == "" {
		h.events.Record(netlog.LevelEvent, "ClearConnectingNetwork", "", "")
		return
	}
	if n := h.GetNetworkState(path); n != nil {
		h.events.Record(netlog.LevelEvent, "SetConnectingNetwork", path, logName(n))
		return
	}
	h.events.Record(netlog.LevelError, "SetConnectingNetwork to unknown network", path, "")
}

// ConnectingNetwork returns the path set by SetConnectingNetwork, cleared
// once that network settles.
func (h *Handler) ConnectingNetwork() string {
	return h.connectingNetwork
}

// SetCheckPortalList pushes a new captive portal check list to the provider.
func (h *Handler) SetCheckPortalList(list string) {
	h.events.Record(netlog.LevelEvent, "SetCheckPortalList", "", list)
	h.provider.SetCheckPortalList(list)
}

// CheckPortalList returns the last list reported by the provider.
func (h *Handler) CheckPortalList() string {
	return h.checkPortalList
}

// NetworkProperties returns a copy of every network's properties by path.
func (h *Handler) NetworkProperties() map[string]map[string]any {
	out := make(map[string]map[string]any, len(h.networks))
	for _, m := range h.networks {
		out[m.Path()] = m.Properties()
	}
	return out
}

// DefaultNetworkPath is the last default network path announced.
func (h *Handler) DefaultNetworkPath() string {
	return h.defaultNetworkPath
}

// technologyForType maps a type filter to a concrete technology.
func (h *Handler) technologyForType(typ string) string {
	switch typ {
	case MatchTypeMobile:
		if h.provider.IsTechnologyAvailable(TypeWimax) {
			return TypeWimax
		}
		return TypeCellular
	case MatchTypeDefault, MatchTypeNonVirtual, MatchTypeWireless:
		h.logger.Error("technology requested for a match type", "type", typ)
		return TypeWifi
	}
	return typ
}

func (h *Handler) managedList(kind ManagedType) *[]Managed {
	switch kind {
	case ManagedTypeNetwork:
		return &h.networks
	case ManagedTypeFavorite:
		return &h.favorites
	case ManagedTypeDevice:
		return &h.devices
	}
	panic(fmt.Sprintf("netstate: invalid managed type %d", int(kind)))
}

// sortNetworks keeps connected networks first and connecting networks
// second. Order within a class is preserved.
func (h *Handler) sortNetworks() {
	slices.SortStableFunc(h.networks, func(a, b Managed) int {
		return AsNetwork(a).connectionClass() - AsNetwork(b).connectionClass()
	})
}

func (h *Handler) onNetworkConnectionStateChanged(n *NetworkState) {
	h.events.Record(netlog.LevelEvent, "NetworkConnectionStateChanged", n.Path(),
		fmt.Sprintf("%s:%s", logName(n), n.ConnectionState()))
	h.observers.notify(func(o Observer) { o.NetworkConnectionStateChanged(n) })
	if h.checkDefaultNetworkChanged() || n.Path() == h.defaultNetworkPath {
		h.onDefaultNetworkChanged()
	}
}

// checkDefaultNetworkChanged caches the current default path and reports
// whether it differs from the previous one.
func (h *Handler) checkDefaultNetworkChanged() bool {
	path := ""
	if n := h.DefaultNetwork(); n != nil {
		path = n.Path()
	}
	if path == h.defaultNetworkPath {
		return false
	}
	h.defaultNetworkPath = path
	return true
}

func (h *Handler) onDefaultNetworkChanged() {
	n := h.DefaultNetwork()
	path := ""
	if n != nil {
		path = n.Path()
	}
	h.events.Record(netlog.LevelEvent, "DefaultNetworkChanged", path, logName(n))
	h.observers.notify(func(o Observer) { o.DefaultNetworkChanged(n) })
}

func (h *Handler) networkPropertiesUpdated(n *NetworkState) {
	h.observers.notify(func(o Observer) { o.NetworkPropertiesUpdated(n) })
	// Cleared only after observers saw the update that settled it.
	if n.Path() == h.connectingNetwork && !n.IsConnectingState() && n.ConnectionState() != StateIdle {
		h.connectingNetwork = ""
		h.events.Record(netlog.LevelEvent, "ClearConnectingNetwork", n.Path(),
			fmt.Sprintf("%s:%s", logName(n), n.ConnectionState()))
	}
}

func findManaged(list []Managed, path string) Managed {
	for _, m := range list {
		if m.Path() == path {
			return m
		}
	}
	return nil
}

func logName(n *NetworkState) string {
	if n == nil {
		return "None"
	}
	return fmt.Sprintf("%s (%s)", n.Name(), n.Path())
}
