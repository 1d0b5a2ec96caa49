package shill

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// D-Bus names used by shill.
const (
	DefaultService = "org.chromium.flimflam"

	ManagerInterface = "org.chromium.flimflam.Manager"
	ServiceInterface = "org.chromium.flimflam.Service"
	DeviceInterface  = "org.chromium.flimflam.Device"

	ManagerPath dbus.ObjectPath = "/"

	signalPropertyChanged = "PropertyChanged"
)

// Bus is the D-Bus surface the provider needs.
type Bus interface {
	// GetProperties calls {iface}.GetProperties on path.
	GetProperties(ctx context.Context, iface string, path dbus.ObjectPath) (map[string]dbus.Variant, error)

	// Call invokes {iface}.{method} on path and discards any reply.
	Call(ctx context.Context, iface string, path dbus.ObjectPath, method string, args ...any) error

	// PropertyChanged returns a channel of PropertyChanged signals for the
	// given interfaces.
	PropertyChanged(ifaces ...string) (<-chan *dbus.Signal, error)

	Close() error
}

// systemBus is a Bus on a real D-Bus connection.
type systemBus struct {
	conn    *dbus.Conn
	service string
	signals chan *dbus.Signal
}

// ConnectSystemBus connects to the system bus and addresses service
// (DefaultService when empty).
func ConnectSystemBus(service string) (Bus, error) {
	if service == "" {
		service = DefaultService
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}
	return &systemBus{conn: conn, service: service}, nil
}

func (b *systemBus) GetProperties(ctx context.Context, iface string, path dbus.ObjectPath) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	call := b.conn.Object(b.service, path).CallWithContext(ctx, iface+".GetProperties", 0)
	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("%s.GetProperties %s: %w", iface, path, err)
	}
	return props, nil
}

func (b *systemBus) Call(ctx context.Context, iface string, path dbus.ObjectPath, method string, args ...any) error {
	call := b.conn.Object(b.service, path).CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("%s.%s %s: %w", iface, method, path, call.Err)
	}
	return nil
}

func (b *systemBus) PropertyChanged(ifaces ...string) (<-chan *dbus.Signal, error) {
	for _, iface := range ifaces {
		if err := b.conn.AddMatchSignal(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember(signalPropertyChanged),
		); err != nil {
			return nil, fmt.Errorf("match %s.%s: %w", iface, signalPropertyChanged, err)
		}
	}
	if b.signals == nil {
		b.signals = make(chan *dbus.Signal, 64)
		b.conn.Signal(b.signals)
	}
	return b.signals, nil
}

func (b *systemBus) Close() error {
	if b.signals != nil {
		b.conn.RemoveSignal(b.signals)
	}
	return b.conn.Close()
}
