package netstate

import "fmt"

// Technology types.
const (
	TypeEthernet = "ethernet"
	TypeWifi     = "wifi"
	TypeWimax    = "wimax"
	TypeCellular = "cellular"
	TypeVPN      = "vpn"
)

// Match types accepted wherever a type filter is taken.
const (
	// MatchTypeDefault matches any entity, i.e. the first one.
	MatchTypeDefault = "default"
	// MatchTypeWireless matches everything except ethernet and vpn.
	MatchTypeWireless = "wireless"
	// MatchTypeMobile matches cellular and wimax.
	MatchTypeMobile = "mobile"
	// MatchTypeNonVirtual matches everything except vpn.
	MatchTypeNonVirtual = "non-virtual"
)

// DefaultCheckPortalList is the captive portal check list until the
// provider reports one.
const DefaultCheckPortalList = "ethernet,wifi,cellular"

// TechnologyState is the derived enablement state of a technology.
type TechnologyState int

const (
	TechnologyUnavailable TechnologyState = iota
	TechnologyAvailable
	TechnologyUninitialized
	TechnologyEnabling
	TechnologyEnabled
)

func (s TechnologyState) String() string {
	switch s {
	case TechnologyAvailable:
		return "available"
	case TechnologyUninitialized:
		return "uninitialized"
	case TechnologyEnabling:
		return "enabling"
	case TechnologyEnabled:
		return "enabled"
	default:
		return "unavailable"
	}
}

// MarshalText encodes the state by name.
func (s TechnologyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *TechnologyState) UnmarshalText(text []byte) error {
	for _, candidate := range []TechnologyState{
		TechnologyUnavailable, TechnologyAvailable, TechnologyUninitialized, TechnologyEnabling, TechnologyEnabled,
	} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTechnologyState, text)
}

// matchesType reports whether an entity of type typ satisfies matchType.
func matchesType(typ, matchType string) bool {
	switch matchType {
	case MatchTypeDefault:
		return true
	case typ:
		return true
	case MatchTypeNonVirtual:
		return typ != TypeVPN
	case MatchTypeWireless:
		return typ != TypeEthernet && typ != TypeVPN
	case MatchTypeMobile:
		return typ == TypeCellular || typ == TypeWimax
	}
	return false
}

// technologyState derives the state of one concrete technology from the
// provider's flags. The first matching flag wins.
func technologyState(p TechnologyReporter, technology string) TechnologyState {
	switch {
	case p.IsTechnologyEnabled(technology):
		return TechnologyEnabled
	case p.IsTechnologyEnabling(technology):
		return TechnologyEnabling
	case p.IsTechnologyUninitialized(technology):
		return TechnologyUninitialized
	case p.IsTechnologyAvailable(technology):
		return TechnologyAvailable
	default:
		return TechnologyUnavailable
	}
}
