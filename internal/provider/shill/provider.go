package shill

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// Manager property keys.
const (
	PropertyAvailableTechnologies     = "AvailableTechnologies"
	PropertyEnabledTechnologies       = "EnabledTechnologies"
	PropertyUninitializedTechnologies = "UninitializedTechnologies"
	PropertyServices                  = "Services"
	PropertyServiceCompleteList       = "ServiceCompleteList"
	PropertyDevices                   = "Devices"
	PropertyProfiles                  = "Profiles"
	PropertyCheckPortalList           = "CheckPortalList"
)

const defaultCallTimeout = 10 * time.Second

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Provider.
type Options struct {
	// CallTimeout bounds each D-Bus call. Zero means 10 seconds.
	CallTimeout time.Duration
	Logger      Logger
}

// Provider is a netstate.Provider talking to shill over D-Bus.
type Provider struct {
	bus         Bus
	callTimeout time.Duration
	logger      Logger

	ctx      context.Context
	cancel   context.CancelFunc
	calls    sync.WaitGroup
	loop     sync.WaitGroup
	replies  chan func()
	delegate netstate.Delegate

	// stopMu orders async's Add against Stop's Wait.
	stopMu  sync.Mutex
	stopped bool

	mu            sync.RWMutex
	available     map[string]bool
	enabled       map[string]bool
	uninitialized map[string]bool
	enabling      map[string]bool
	profiles      []string
	known         map[netstate.ManagedType]map[string]bool

	// signalSeq counts applied signals. signalled holds the sequence of
	// the latest signal per object path and key.
	signalSeq uint64
	signalled map[string]map[string]uint64
}

var _ netstate.Provider = (*Provider)(nil)

// NewProvider creates a provider on bus. Call Start before use.
func NewProvider(bus Bus, opts Options) *Provider {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Provider{
		bus:           bus,
		callTimeout:   opts.CallTimeout,
		logger:        opts.Logger,
		available:     make(map[string]bool),
		enabled:       make(map[string]bool),
		uninitialized: make(map[string]bool),
		enabling:      make(map[string]bool),
		known:         make(map[netstate.ManagedType]map[string]bool),
		replies:       make(chan func()),
		signalled:     make(map[string]map[string]uint64),
	}
}

// Start subscribes to PropertyChanged signals and fetches the Manager
// properties. Signals are handled until ctx is cancelled or Stop is called.
func (p *Provider) Start(ctx context.Context, delegate netstate.Delegate) error {
	signals, err := p.bus.PropertyChanged(ManagerInterface, ServiceInterface, DeviceInterface)
	if err != nil {
		return fmt.Errorf("subscribe to shill signals: %w", err)
	}

	p.stopMu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.delegate = delegate
	p.stopMu.Unlock()

	p.loop.Add(1)
	go func() {
		defer p.loop.Done()
		p.signalLoop(signals)
	}()

	p.UpdateManagerProperties()
	p.logger.Info("shill provider started")
	return nil
}

// Stop cancels outstanding calls, waits for them and closes the bus.
func (p *Provider) Stop() {
	p.stopMu.Lock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	p.stopMu.Unlock()

	p.loop.Wait()
	p.calls.Wait()
	if err := p.bus.Close(); err != nil {
		p.logger.Debug("closing system bus", "error", err)
	}
	p.logger.Info("shill provider stopped")
}

// signalLoop applies signals and call replies in arrival order. It keeps
// serving replies after the signal channel closes.
func (p *Provider) signalLoop(signals <-chan *dbus.Signal) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				p.logger.Warn("shill signal channel closed")
				signals = nil
				continue
			}
			p.handleSignal(sig)
		case apply := <-p.replies:
			apply()
			p.calls.Done()
		}
	}
}

func (p *Provider) handleSignal(sig *dbus.Signal) {
	iface, member, ok := strings.Cut(sig.Name, "."+signalPropertyChanged)
	if !ok || member != "" {
		return
	}
	if len(sig.Body) != 2 {
		p.logger.Warn("ignoring signal", "name", sig.Name, "path", sig.Path, "error", ErrUnexpectedSignal)
		return
	}
	key, ok := sig.Body[0].(string)
	if !ok {
		p.logger.Warn("ignoring signal", "name", sig.Name, "path", sig.Path, "error", ErrUnexpectedSignal)
		return
	}
	value := normalize(sig.Body[1])
	path := string(sig.Path)

	switch iface {
	case ManagerInterface, ServiceInterface, DeviceInterface:
		p.markSignalled(path, key)
	}

	switch iface {
	case ManagerInterface:
		p.managerPropertyChanged(key, value)
	case ServiceInterface:
		p.delegate.UpdateNetworkServiceProperty(path, key, value)
	case DeviceInterface:
		p.delegate.UpdateDeviceProperty(path, key, value)
	}
}

func (p *Provider) markSignalled(path, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalSeq++
	keys := p.signalled[path]
	if keys == nil {
		keys = make(map[string]uint64)
		p.signalled[path] = keys
	}
	keys[key] = p.signalSeq
}

func (p *Provider) currentSeq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signalSeq
}

// freshProperties drops keys that were signalled after issued. A reply
// carrying them is older than the signal already applied.
func (p *Provider) freshProperties(path string, issued uint64, props map[string]any) map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for key, seq := range p.signalled[path] {
		if seq > issued {
			if _, ok := props[key]; ok {
				p.logger.Debug("dropping stale property from reply", "path", path, "key", key)
				delete(props, key)
			}
		}
	}
	return props
}

// managerPropertyChanged applies one Manager property.
func (p *Provider) managerPropertyChanged(key string, value any) {
	switch key {
	case PropertyAvailableTechnologies, PropertyEnabledTechnologies, PropertyUninitializedTechnologies:
		list, ok := stringList(value)
		if !ok {
			return
		}
		if p.updateTechnologies(key, list) {
			p.delegate.NotifyManagerPropertyChanged()
		}
	case PropertyServices:
		p.updateList(netstate.ManagedTypeNetwork, value)
	case PropertyServiceCompleteList:
		p.updateList(netstate.ManagedTypeFavorite, value)
	case PropertyDevices:
		p.updateList(netstate.ManagedTypeDevice, value)
	case PropertyProfiles:
		list, ok := stringList(value)
		if !ok {
			return
		}
		list = slices.Sorted(slices.Values(list))
		p.mu.Lock()
		changed := !slices.Equal(list, p.profiles)
		p.profiles = list
		p.mu.Unlock()
		if changed {
			p.delegate.ProfileListChanged()
		}
	case PropertyCheckPortalList:
		if list, ok := value.(string); ok {
			p.delegate.CheckPortalListChanged(list)
		}
	}
}

func (p *Provider) updateTechnologies(key string, list []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	var set map[string]bool
	switch key {
	case PropertyAvailableTechnologies:
		set = p.available
	case PropertyEnabledTechnologies:
		set = p.enabled
	default:
		set = p.uninitialized
	}

	changed := false
	next := make(map[string]bool, len(list))
	for _, t := range list {
		next[t] = true
		if !set[t] {
			changed = true
		}
	}
	if len(next) != len(set) {
		changed = true
	}
	clear(set)
	for t := range next {
		set[t] = true
	}

	for t := range p.enabling {
		if p.enabled[t] || !p.available[t] {
			delete(p.enabling, t)
			changed = true
		}
	}
	return changed
}

// updateList replaces a list and fetches properties for paths it has not
// seen before.
func (p *Provider) updateList(kind netstate.ManagedType, value any) {
	paths, ok := stringList(value)
	if !ok {
		p.logger.Warn("ignoring list with unexpected type", "kind", kind.String(), "type", fmt.Sprintf("%T", value))
		return
	}

	p.mu.Lock()
	previous := p.known[kind]
	current := make(map[string]bool, len(paths))
	var added []string
	for _, path := range paths {
		if path == "" || current[path] {
			continue
		}
		current[path] = true
		if !previous[path] {
			added = append(added, path)
		}
	}
	p.known[kind] = current
	for path := range p.signalled {
		if path != string(ManagerPath) && !p.isKnownLocked(path) {
			delete(p.signalled, path)
		}
	}
	p.mu.Unlock()

	p.delegate.UpdateManagedList(kind, paths)
	p.delegate.ManagedStateListChanged(kind)
	for _, path := range added {
		p.RequestProperties(kind, path)
	}
}

func (p *Provider) isKnownLocked(path string) bool {
	for _, paths := range p.known {
		if paths[path] {
			return true
		}
	}
	return false
}

// IsTechnologyAvailable implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyAvailable(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available[technology]
}

// IsTechnologyEnabled implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyEnabled(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled[technology]
}

// IsTechnologyEnabling implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyEnabling(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabling[technology]
}

// IsTechnologyUninitialized implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyUninitialized(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uninitialized[technology]
}

// SetTechnologyEnabled calls Manager.EnableTechnology or DisableTechnology.
func (p *Provider) SetTechnologyEnabled(technology string, enabled bool, onError netstate.ErrorCallback) {
	method := "DisableTechnology"
	if enabled {
		method = "EnableTechnology"
		p.mu.Lock()
		p.enabling[technology] = true
		p.mu.Unlock()
	}
	p.async(func(ctx context.Context) func() {
		err := p.bus.Call(ctx, ManagerInterface, ManagerPath, method, technology)
		if err == nil {
			return nil
		}
		p.logger.Warn("technology request failed", "technology", technology, "enabled", enabled, "error", err)
		return func() {
			p.mu.Lock()
			delete(p.enabling, technology)
			p.mu.Unlock()
			if onError != nil {
				onError(err)
			}
			p.delegate.NotifyManagerPropertyChanged()
		}
	})
}

// RequestScan calls Manager.RequestScan for every technology.
func (p *Provider) RequestScan() {
	p.managerCall("RequestScan", "")
}

// RequestProperties fetches Service or Device properties and delivers them
// as a snapshot.
func (p *Provider) RequestProperties(kind netstate.ManagedType, path string) {
	iface := ServiceInterface
	if kind == netstate.ManagedTypeDevice {
		iface = DeviceInterface
	}
	issued := p.currentSeq()
	p.async(func(ctx context.Context) func() {
		props, err := p.bus.GetProperties(ctx, iface, dbus.ObjectPath(path))
		if err != nil {
			p.logger.Warn("properties request failed", "kind", kind.String(), "path", path, "error", err)
			return nil
		}
		return func() {
			p.delegate.UpdateManagedStateProperties(kind, path, p.freshProperties(path, issued, normalizeProperties(props)))
		}
	})
}

// UpdateManagerProperties fetches every Manager property and applies them
// in key order.
func (p *Provider) UpdateManagerProperties() {
	issued := p.currentSeq()
	p.async(func(ctx context.Context) func() {
		props, err := p.bus.GetProperties(ctx, ManagerInterface, ManagerPath)
		if err != nil {
			p.logger.Error("manager properties request failed", "error", err)
			return nil
		}
		return func() {
			fresh := p.freshProperties(string(ManagerPath), issued, normalizeProperties(props))
			for _, key := range sortedKeys(fresh) {
				p.managerPropertyChanged(key, fresh[key])
			}
		}
	})
}

// SetCheckPortalList sets the Manager CheckPortalList property.
func (p *Provider) SetCheckPortalList(list string) {
	p.managerCall("SetProperty", PropertyCheckPortalList, dbus.MakeVariant(list))
}

// ConnectToBestServices calls Manager.ConnectToBestServices.
func (p *Provider) ConnectToBestServices() {
	p.managerCall("ConnectToBestServices")
}

func (p *Provider) managerCall(method string, args ...any) {
	p.async(func(ctx context.Context) func() {
		if err := p.bus.Call(ctx, ManagerInterface, ManagerPath, method, args...); err != nil {
			p.logger.Warn("manager call failed", "method", method, "error", err)
		}
		return nil
	})
}

// async runs call on its own goroutine with a per-call timeout. A non-nil
// func returned by call runs on the signal loop, so replies and signals
// reach the delegate in the order they are applied. The call counts as
// outstanding until its reply has been applied.
func (p *Provider) async(call func(ctx context.Context) func()) {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	if p.ctx == nil {
		p.logger.Error("request before start", "error", ErrNotStarted)
		return
	}
	if p.stopped || p.ctx.Err() != nil {
		return
	}
	p.calls.Add(1)
	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, p.callTimeout)
		apply := call(ctx)
		cancel()
		if apply == nil {
			p.calls.Done()
			return
		}
		select {
		case p.replies <- apply:
		case <-p.ctx.Done():
			p.calls.Done()
		}
	}()
}
