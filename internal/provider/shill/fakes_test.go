package shill

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// fakeBus serves canned properties and records method calls.
type fakeBus struct {
	mu           sync.Mutex
	props        map[string]map[string]dbus.Variant
	propsErr     map[string]error
	gates        map[string]gate
	calls        []string
	callErr      map[string]error
	signals      chan *dbus.Signal
	subscribeErr error
	subscribed   []string
	closed       bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:    make(map[string]map[string]dbus.Variant),
		propsErr: make(map[string]error),
		gates:    make(map[string]gate),
		callErr:  make(map[string]error),
		signals:  make(chan *dbus.Signal, 8),
	}
}

func (b *fakeBus) set(iface string, path dbus.ObjectPath, props map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vs := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		vs[k] = dbus.MakeVariant(v)
	}
	b.props[iface+string(path)] = vs
}

type gate struct {
	taken   chan struct{}
	release chan struct{}
}

// hold makes the next GetProperties for iface and path take its snapshot,
// close taken and wait until release is called.
func (b *fakeBus) hold(iface string, path dbus.ObjectPath) (taken <-chan struct{}, release func()) {
	g := gate{taken: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.gates[iface+string(path)] = g
	b.mu.Unlock()
	return g.taken, func() { close(g.release) }
}

func (b *fakeBus) GetProperties(ctx context.Context, iface string, path dbus.ObjectPath) (map[string]dbus.Variant, error) {
	b.mu.Lock()
	props, err := b.snapshot(iface, path)
	g, held := b.gates[iface+string(path)]
	delete(b.gates, iface+string(path))
	b.mu.Unlock()
	if held {
		close(g.taken)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return props, err
}

func (b *fakeBus) snapshot(iface string, path dbus.ObjectPath) (map[string]dbus.Variant, error) {
	if err := b.propsErr[iface+string(path)]; err != nil {
		return nil, err
	}
	props, ok := b.props[iface+string(path)]
	if !ok {
		return nil, fmt.Errorf("no object %s", path)
	}
	return props, nil
}

func (b *fakeBus) Call(_ context.Context, _ string, _ dbus.ObjectPath, method string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("%s%v", method, args))
	return b.callErr[method]
}

func (b *fakeBus) PropertyChanged(ifaces ...string) (<-chan *dbus.Signal, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.subscribed = ifaces
	return b.signals, nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) recordedCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// syncDelegate records Delegate calls from any goroutine.
type syncDelegate struct {
	mu         sync.Mutex
	calls      []string
	properties map[string]map[string]any
	values     map[string]any
}

func newSyncDelegate() *syncDelegate {
	return &syncDelegate{
		properties: make(map[string]map[string]any),
		values:     make(map[string]any),
	}
}

func (d *syncDelegate) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *syncDelegate) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *syncDelegate) UpdateManagedList(kind netstate.ManagedType, paths []string) {
	d.record(fmt.Sprintf("UpdateManagedList:%s:%v", kind, paths))
}

func (d *syncDelegate) ManagedStateListChanged(kind netstate.ManagedType) {
	d.record("ManagedStateListChanged:" + kind.String())
}

func (d *syncDelegate) UpdateManagedStateProperties(kind netstate.ManagedType, path string, properties map[string]any) {
	d.mu.Lock()
	d.properties[path] = properties
	d.mu.Unlock()
	d.record(fmt.Sprintf("UpdateManagedStateProperties:%s:%s", kind, path))
}

func (d *syncDelegate) UpdateNetworkServiceProperty(path, key string, value any) {
	d.mu.Lock()
	d.values[path+":"+key] = value
	d.mu.Unlock()
	d.record("UpdateNetworkServiceProperty:" + path + ":" + key)
}

func (d *syncDelegate) UpdateDeviceProperty(path, key string, value any) {
	d.mu.Lock()
	d.values[path+":"+key] = value
	d.mu.Unlock()
	d.record("UpdateDeviceProperty:" + path + ":" + key)
}

func (d *syncDelegate) ProfileListChanged()             { d.record("ProfileListChanged") }
func (d *syncDelegate) CheckPortalListChanged(l string) { d.record("CheckPortalListChanged:" + l) }
func (d *syncDelegate) NotifyManagerPropertyChanged()   { d.record("NotifyManagerPropertyChanged") }

func propertyChanged(iface string, path dbus.ObjectPath, key string, value any) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: iface + "." + signalPropertyChanged,
		Body: []any{key, dbus.MakeVariant(value)},
	}
}
