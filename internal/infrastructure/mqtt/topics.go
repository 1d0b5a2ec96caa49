package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the netstate bus.
//
// Provider bridges publish under netstate/provider/{source}/..., the daemon
// sends commands under netstate/command/{source}/... and publishes its own
// derived events under netstate/core/....
const (
	TopicPrefix         = "netstate"
	TopicPrefixProvider = "netstate/provider"
	TopicPrefixCommand  = "netstate/command"
	TopicPrefixCore     = "netstate/core"
)

// Provider topic categories.
const (
	CategoryList       = "list"
	CategoryProperties = "properties"
	CategoryProperty   = "property"
	CategoryManager    = "manager"
	CategoryAck        = "ack"
)

// Topics provides builders for netstate MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ProviderList("shill", "network")
//	// Returns: "netstate/provider/shill/list/network"
type Topics struct{}

// =============================================================================
// Provider Topics (inbound)
// =============================================================================

// ProviderList carries the full path list for one entity kind.
//
// Example: netstate/provider/shill/list/device
func (Topics) ProviderList(source, kind string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixProvider, source, CategoryList, kind)
}

// ProviderProperties carries a full property snapshot for one entity.
//
// Example: netstate/provider/shill/properties/network
func (Topics) ProviderProperties(source, kind string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixProvider, source, CategoryProperties, kind)
}

// ProviderProperty carries a single property change.
//
// Example: netstate/provider/shill/property/network
func (Topics) ProviderProperty(source, kind string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixProvider, source, CategoryProperty, kind)
}

// ProviderManager carries manager-level state (technologies, portal list).
//
// Example: netstate/provider/shill/manager
func (Topics) ProviderManager(source string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixProvider, source, CategoryManager)
}

// ProviderAck carries command acknowledgements.
//
// Example: netstate/provider/shill/ack
func (Topics) ProviderAck(source string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixProvider, source, CategoryAck)
}

// AllProviderTopics matches everything one provider publishes.
//
// Pattern: netstate/provider/shill/#
func (Topics) AllProviderTopics(source string) string {
	return fmt.Sprintf("%s/%s/#", TopicPrefixProvider, source)
}

// =============================================================================
// Command Topics (outbound)
// =============================================================================

// Command returns the topic for a command to a provider bridge.
//
// Example: netstate/command/shill/request_scan
func (Topics) Command(source, command string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCommand, source, command)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreEvent returns the topic for a derived engine event.
//
// Example: netstate/core/event/default_network
func (Topics) CoreEvent(event string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, event)
}

// CoreStatus is the retained daemon status topic, also used for the LWT.
//
// Example: netstate/core/status
func (Topics) CoreStatus() string {
	return TopicPrefixCore + "/status"
}

// AllCoreEvents matches every derived event.
//
// Pattern: netstate/core/event/+
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// ProviderTopic is a parsed provider topic. Kind is empty for manager and
// ack topics.
type ProviderTopic struct {
	Source   string
	Category string
	Kind     string
}

// ParseProviderTopic splits a topic built by the Provider* helpers.
func (Topics) ParseProviderTopic(topic string) (ProviderTopic, error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixProvider+"/")
	if !ok {
		return ProviderTopic{}, fmt.Errorf("%w: %q is not a provider topic", ErrInvalidTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		return ProviderTopic{}, fmt.Errorf("%w: %q has no source", ErrInvalidTopic, topic)
	}

	pt := ProviderTopic{Source: parts[0]}
	switch {
	case len(parts) == 2 && (parts[1] == CategoryManager || parts[1] == CategoryAck):
		pt.Category = parts[1]
	case len(parts) == 3 && parts[2] != "" &&
		(parts[1] == CategoryList || parts[1] == CategoryProperties || parts[1] == CategoryProperty):
		pt.Category = parts[1]
		pt.Kind = parts[2]
	default:
		return ProviderTopic{}, fmt.Errorf("%w: unrecognised provider topic %q", ErrInvalidTopic, topic)
	}
	return pt, nil
}
