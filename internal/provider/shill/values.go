package shill

import (
	"maps"
	"slices"

	"github.com/godbus/dbus/v5"
)

// normalize converts D-Bus values into the plain types the engine expects:
// variants are unwrapped, object paths become strings and every integer
// width becomes int.
func normalize(v any) any {
	switch x := v.(type) {
	case dbus.Variant:
		return normalize(x.Value())
	case dbus.ObjectPath:
		return string(x)
	case []dbus.ObjectPath:
		out := make([]string, len(x))
		for i, p := range x {
			out[i] = string(p)
		}
		return out
	case byte:
		return int(x)
	case int16:
		return int(x)
	case uint16:
		return int(x)
	case int32:
		return int(x)
	case uint32:
		return int(x)
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]dbus.Variant:
		return normalizeProperties(x)
	}
	return v
}

func normalizeProperties(props map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = normalize(v)
	}
	return out
}

// stringList reads a list-valued property after normalization.
func stringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
