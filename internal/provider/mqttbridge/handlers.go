package mqttbridge

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// HandleMessage routes one inbound message. It is the MQTT subscription
// handler; errors are logged by the MQTT client.
func (p *Provider) HandleMessage(topic string, payload []byte) error {
	delegate := p.getDelegate()
	if delegate == nil {
		return ErrNotStarted
	}

	pt, err := p.topics.ParseProviderTopic(topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if pt.Source != p.source {
		return nil
	}

	switch pt.Category {
	case mqtt.CategoryManager:
		return p.handleManager(delegate, payload)
	case mqtt.CategoryAck:
		return p.handleAck(delegate, payload)
	}

	kind, err := netstate.ParseManagedType(pt.Kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch pt.Category {
	case mqtt.CategoryList:
		return p.handleList(delegate, kind, payload)
	case mqtt.CategoryProperties:
		return p.handleProperties(delegate, kind, payload)
	default:
		return p.handleProperty(delegate, kind, payload)
	}
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

// handleList replaces the list and asks for properties of paths not seen
// in the previous list.
func (p *Provider) handleList(delegate netstate.Delegate, kind netstate.ManagedType, payload []byte) error {
	var msg ListMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}

	p.mu.Lock()
	previous := p.known[kind]
	current := make(map[string]bool, len(msg.Paths))
	var added []string
	for _, path := range msg.Paths {
		if path == "" || current[path] {
			continue
		}
		current[path] = true
		if !previous[path] {
			added = append(added, path)
		}
	}
	p.known[kind] = current
	p.mu.Unlock()

	delegate.UpdateManagedList(kind, msg.Paths)
	delegate.ManagedStateListChanged(kind)
	for _, path := range added {
		p.RequestProperties(kind, path)
	}
	p.logDebug("list received", "kind", kind.String(), "size", len(current), "added", len(added))
	return nil
}

func (p *Provider) handleProperties(delegate netstate.Delegate, kind netstate.ManagedType, payload []byte) error {
	var msg PropertiesMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}
	if msg.Path == "" {
		return fmt.Errorf("%w: properties without path", ErrInvalidMessage)
	}
	if msg.Properties == nil {
		msg.Properties = map[string]any{}
	}
	delegate.UpdateManagedStateProperties(kind, msg.Path, msg.Properties)
	return nil
}

func (p *Provider) handleProperty(delegate netstate.Delegate, kind netstate.ManagedType, payload []byte) error {
	var msg PropertyMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}
	if msg.Path == "" || msg.Key == "" {
		return fmt.Errorf("%w: property without path or key", ErrInvalidMessage)
	}
	if kind == netstate.ManagedTypeDevice {
		delegate.UpdateDeviceProperty(msg.Path, msg.Key, msg.Value)
		return nil
	}
	// Favorites share service paths; the handler mirrors into them.
	delegate.UpdateNetworkServiceProperty(msg.Path, msg.Key, msg.Value)
	return nil
}

func (p *Provider) handleManager(delegate netstate.Delegate, payload []byte) error {
	var msg ManagerMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}

	p.mu.Lock()
	technologiesChanged := false
	if msg.AvailableTechnologies != nil {
		technologiesChanged = replaceSet(p.available, *msg.AvailableTechnologies) || technologiesChanged
	}
	if msg.EnabledTechnologies != nil {
		technologiesChanged = replaceSet(p.enabled, *msg.EnabledTechnologies) || technologiesChanged
	}
	if msg.UninitializedTechnologies != nil {
		technologiesChanged = replaceSet(p.uninitialized, *msg.UninitializedTechnologies) || technologiesChanged
	}
	for technology := range p.enabling {
		if p.enabled[technology] || !p.available[technology] {
			delete(p.enabling, technology)
			technologiesChanged = true
		}
	}

	portalChanged := false
	if msg.CheckPortalList != nil && *msg.CheckPortalList != p.checkPortalList {
		p.checkPortalList = *msg.CheckPortalList
		portalChanged = true
	}

	profilesChanged := false
	if msg.Profiles != nil {
		profiles := slices.Sorted(slices.Values(*msg.Profiles))
		if !slices.Equal(profiles, p.profiles) {
			p.profiles = profiles
			profilesChanged = true
		}
	}
	portalList := p.checkPortalList
	p.mu.Unlock()

	if technologiesChanged {
		delegate.NotifyManagerPropertyChanged()
	}
	if portalChanged {
		delegate.CheckPortalListChanged(portalList)
	}
	if profilesChanged {
		delegate.ProfileListChanged()
	}
	return nil
}

func (p *Provider) handleAck(delegate netstate.Delegate, payload []byte) error {
	var ack AckMessage
	if err := decode(payload, &ack); err != nil {
		return err
	}

	p.mu.Lock()
	pending, ok := p.pending[ack.CommandID]
	delete(p.pending, ack.CommandID)
	failed := ack.Status == AckFailed || ack.Status == AckTimeout
	if ok && failed && pending.technology != "" {
		delete(p.enabling, pending.technology)
	}
	p.mu.Unlock()

	if !failed {
		return nil
	}

	err := ackError(ack)
	if !ok {
		p.logWarn("command failed", "command_id", ack.CommandID, "command", ack.Command, "error", err)
		return nil
	}
	p.logWarn("command failed", "command_id", ack.CommandID, "command", pending.command, "error", err)
	if pending.onError != nil {
		pending.onError(err)
	}
	if pending.technology != "" {
		delegate.NotifyManagerPropertyChanged()
	}
	return nil
}

func ackError(ack AckMessage) error {
	if ack.Error == nil {
		return fmt.Errorf("%w: %s", ErrCommandFailed, ack.Status)
	}
	return fmt.Errorf("%w: %s: %s", ErrCommandFailed, ack.Error.Code, ack.Error.Message)
}

// replaceSet makes set hold exactly values and reports whether it changed.
func replaceSet(set map[string]bool, values []string) bool {
	changed := false
	next := make(map[string]bool, len(values))
	for _, v := range values {
		next[v] = true
		if !set[v] {
			changed = true
		}
	}
	if len(next) != len(set) {
		changed = true
	}
	clear(set)
	for v := range next {
		set[v] = true
	}
	return changed
}
