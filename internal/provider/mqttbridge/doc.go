// Package mqttbridge implements netstate.Provider on top of an MQTT bus.
//
// A provider bridge process owns the real connection manager and mirrors
// its state onto the bus; this package turns those messages into Delegate
// calls and turns Provider requests into commands.
//
// # Topics
//
//	netstate/provider/{source}/list/{kind}        {"paths": [...]}
//	netstate/provider/{source}/properties/{kind}  {"path": "...", "properties": {...}}
//	netstate/provider/{source}/property/{kind}    {"path": "...", "key": "...", "value": ...}
//	netstate/provider/{source}/manager            technology lists, portal list, profiles
//	netstate/provider/{source}/ack                command acknowledgements
//	netstate/command/{source}/{command}           CommandMessage (outbound)
//
// kind is one of network, favorite or device.
//
// # Technology state
//
// Available, enabled and uninitialized technologies come from the manager
// topic. Enabling is tracked here: a technology is enabling from the moment
// SetTechnologyEnabled(t, true) is requested until the bridge reports it
// enabled, reports it gone, or fails the command.
//
// EventPublisher is the reverse direction: a netstate.Observer that
// publishes derived engine events under netstate/core/event/{event}.
package mqttbridge
