// Package mqtt provides MQTT client connectivity for the netstate daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament on the core status topic
//
// # Architecture
//
// A provider bridge (for example a shill adapter on another host) publishes
// entity lists and properties on the bus; the daemon consumes them and
// sends commands back:
//
//	provider bridge → netstate/provider/{source}/... → netstated
//	netstated       → netstate/command/{source}/...  → provider bridge
//	netstated       → netstate/core/event/...        → consumers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllProviderTopics("shill"), 1,
//	    func(topic string, payload []byte) error {
//	        return bridge.HandleMessage(topic, payload)
//	    })
package mqtt
