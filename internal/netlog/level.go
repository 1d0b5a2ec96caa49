package netlog

import "fmt"

// Level ranks event log entries. Higher is more important.
type Level int

const (
	LevelDebug Level = iota
	LevelEvent
	LevelUser
	LevelError
)

// Levels lists every level in ascending order.
var Levels = []Level{LevelDebug, LevelEvent, LevelUser, LevelError}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelEvent:
		return "event"
	case LevelUser:
		return "user"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// MarshalText encodes the level by name for JSON.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if l.String() == s {
			return l, nil
		}
	}
	return LevelDebug, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// atLeast returns the levels >= min, for SQL IN filters.
func atLeast(min Level) []Level {
	var out []Level
	for _, l := range Levels {
		if l >= min {
			out = append(out, l)
		}
	}
	return out
}
