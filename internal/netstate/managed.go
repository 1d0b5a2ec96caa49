package netstate

import (
	"fmt"
	"maps"
	"reflect"
)

// ManagedType discriminates the three entity kinds.
type ManagedType int

const (
	ManagedTypeNetwork ManagedType = iota
	ManagedTypeFavorite
	ManagedTypeDevice
)

// String returns the lower-case kind name used in topics and logs.
func (t ManagedType) String() string {
	switch t {
	case ManagedTypeNetwork:
		return "network"
	case ManagedTypeFavorite:
		return "favorite"
	case ManagedTypeDevice:
		return "device"
	default:
		return fmt.Sprintf("ManagedType(%d)", int(t))
	}
}

// ParseManagedType is the inverse of ManagedType.String.
func ParseManagedType(s string) (ManagedType, error) {
	switch s {
	case "network":
		return ManagedTypeNetwork, nil
	case "favorite":
		return ManagedTypeFavorite, nil
	case "device":
		return ManagedTypeDevice, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownManagedType, s)
}

// Property keys shared by every kind.
const (
	PropertyName = "Name"
	PropertyType = "Type"
)

// Managed is a path-addressed entity driven by provider properties.
//
// The concrete value is always one of *NetworkState, *FavoriteState or
// *DeviceState; use AsNetwork, AsFavorite or AsDevice after checking Kind.
type Managed interface {
	Path() string
	Name() string
	Type() string
	Kind() ManagedType

	// PropertyChanged applies one property and reports whether its semantic
	// value changed. Values of the wrong type are ignored.
	PropertyChanged(key string, value any) bool

	// InitialPropertiesReceived marks that a full property fetch completed.
	InitialPropertiesReceived()
	HasInitialProperties() bool

	UpdateRequested() bool
	SetUpdateRequested(requested bool)

	// Properties returns a copy of every property applied so far.
	Properties() map[string]any

	base() *managedState
}

// managedState holds the fields common to all kinds.
type managedState struct {
	path            string
	name            string
	typ             string
	kind            ManagedType
	properties      map[string]any
	updateRequested bool
	initialReceived bool
}

func newManagedState(kind ManagedType, path string) managedState {
	return managedState{
		path:       path,
		kind:       kind,
		properties: make(map[string]any),
	}
}

// NewManaged creates a bare entity of the given kind.
func NewManaged(kind ManagedType, path string) Managed {
	switch kind {
	case ManagedTypeNetwork:
		return &NetworkState{managedState: newManagedState(kind, path)}
	case ManagedTypeFavorite:
		return &FavoriteState{managedState: newManagedState(kind, path)}
	case ManagedTypeDevice:
		return &DeviceState{managedState: newManagedState(kind, path)}
	}
	panic(fmt.Sprintf("netstate: NewManaged with invalid kind %d", int(kind)))
}

func (m *managedState) Path() string               { return m.path }
func (m *managedState) Name() string               { return m.name }
func (m *managedState) Type() string               { return m.typ }
func (m *managedState) Kind() ManagedType          { return m.kind }
func (m *managedState) HasInitialProperties() bool { return m.initialReceived }
func (m *managedState) InitialPropertiesReceived() { m.initialReceived = true }
func (m *managedState) UpdateRequested() bool      { return m.updateRequested }
func (m *managedState) SetUpdateRequested(r bool)  { m.updateRequested = r }
func (m *managedState) base() *managedState        { return m }

func (m *managedState) Properties() map[string]any {
	return maps.Clone(m.properties)
}

// Property returns a single raw property value.
func (m *managedState) Property(key string) (any, bool) {
	v, ok := m.properties[key]
	return v, ok
}

// managedPropertyChanged handles the keys every kind shares. handled is false
// for keys that belong to a variant or are unknown.
func (m *managedState) managedPropertyChanged(key string, value any) (handled, changed bool) {
	switch key {
	case PropertyName:
		return true, m.setString(&m.name, key, value)
	case PropertyType:
		return true, m.setString(&m.typ, key, value)
	}
	return false, false
}

// setRaw stores an untyped property; changed compares deeply.
func (m *managedState) setRaw(key string, value any) bool {
	prev, ok := m.properties[key]
	if ok && reflect.DeepEqual(prev, value) {
		return false
	}
	m.properties[key] = value
	return true
}

func (m *managedState) setString(dst *string, key string, value any) bool {
	s, ok := stringValue(value)
	if !ok {
		return false
	}
	m.properties[key] = s
	if *dst == s {
		return false
	}
	*dst = s
	return true
}

func (m *managedState) setBool(dst *bool, key string, value any) bool {
	b, ok := value.(bool)
	if !ok {
		return false
	}
	m.properties[key] = b
	if *dst == b {
		return false
	}
	*dst = b
	return true
}

func (m *managedState) setInt(dst *int, key string, value any) bool {
	n, ok := intValue(value)
	if !ok {
		return false
	}
	m.properties[key] = n
	if *dst == n {
		return false
	}
	*dst = n
	return true
}

// AsNetwork returns m as a network. It panics when m is another kind.
func AsNetwork(m Managed) *NetworkState {
	if n, ok := m.(*NetworkState); ok {
		return n
	}
	panic(fmt.Sprintf("netstate: %s %q is not a network", kindOf(m), pathOf(m)))
}

// AsFavorite returns m as a favorite. It panics when m is another kind.
func AsFavorite(m Managed) *FavoriteState {
	if f, ok := m.(*FavoriteState); ok {
		return f
	}
	panic(fmt.Sprintf("netstate: %s %q is not a favorite", kindOf(m), pathOf(m)))
}

// AsDevice returns m as a device. It panics when m is another kind.
func AsDevice(m Managed) *DeviceState {
	if d, ok := m.(*DeviceState); ok {
		return d
	}
	panic(fmt.Sprintf("netstate: %s %q is not a device", kindOf(m), pathOf(m)))
}

func kindOf(m Managed) string {
	if m == nil {
		return "nil"
	}
	return m.Kind().String()
}

func pathOf(m Managed) string {
	if m == nil {
		return ""
	}
	return m.Path()
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// intValue accepts the integer encodings providers produce: Go integers
// from D-Bus and integral float64 from JSON.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
