package mqttbridge

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// Event names, used as the last segment of netstate/core/event/{event}.
const (
	EventNetworkList       = "network_list"
	EventDeviceList        = "device_list"
	EventManager           = "manager"
	EventConnectionState   = "connection_state"
	EventDefaultNetwork    = "default_network"
	EventNetworkProperties = "network_properties"
)

// Event is the payload published for every observer notification.
type Event struct {
	Event     string                `json:"event"`
	Timestamp time.Time             `json:"timestamp"`
	Network   *netstate.NetworkInfo `json:"network,omitempty"`
}

// JSONPublisher is satisfied by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// EventPublisher is a netstate.Observer that republishes engine events on
// MQTT. Notifications are snapshotted on the dispatcher goroutine and
// published from Run, so a slow broker never stalls the engine. When the
// queue is full, events are dropped.
type EventPublisher struct {
	client JSONPublisher
	queue  chan Event
	topics mqtt.Topics
	logger Logger
	now    func() time.Time
}

var _ netstate.Observer = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher buffering up to queueSize events.
func NewEventPublisher(client JSONPublisher, queueSize int, logger Logger) *EventPublisher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &EventPublisher{
		client: client,
		queue:  make(chan Event, queueSize),
		logger: logger,
		now:    time.Now,
	}
}

// Run publishes queued events until ctx is cancelled.
func (e *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

func (e *EventPublisher) publish(ev Event) {
	// Only the default network is state; everything else is transient.
	retained := ev.Event == EventDefaultNetwork
	if err := e.client.PublishJSON(e.topics.CoreEvent(ev.Event), ev, retained); err != nil && e.logger != nil {
		e.logger.Warn("event not published", "event", ev.Event, "error", err)
	}
}

func (e *EventPublisher) enqueue(name string, n *netstate.NetworkState) {
	ev := Event{Event: name, Timestamp: e.now().UTC(), Network: n.Info()}
	select {
	case e.queue <- ev:
	default:
		if e.logger != nil {
			e.logger.Warn("event queue full, dropping event", "event", name)
		}
	}
}

func (e *EventPublisher) NetworkListChanged()    { e.enqueue(EventNetworkList, nil) }
func (e *EventPublisher) DeviceListChanged()     { e.enqueue(EventDeviceList, nil) }
func (e *EventPublisher) NetworkManagerChanged() { e.enqueue(EventManager, nil) }

func (e *EventPublisher) NetworkConnectionStateChanged(n *netstate.NetworkState) {
	e.enqueue(EventConnectionState, n)
}

// DefaultNetworkChanged publishes an event without a network when there is
// no default.
func (e *EventPublisher) DefaultNetworkChanged(n *netstate.NetworkState) {
	e.enqueue(EventDefaultNetwork, n)
}

func (e *EventPublisher) NetworkPropertiesUpdated(n *netstate.NetworkState) {
	e.enqueue(EventNetworkProperties, n)
}
