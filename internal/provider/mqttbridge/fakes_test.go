package mqttbridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

type sentMessage struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeClient records publishes and keeps subscription handlers.
type fakeClient struct {
	mu           sync.Mutex
	sent         []sentMessage
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	publishErr   error
	subscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.sent = append(c.sent, sentMessage{topic, payload, retained})
	return nil
}

func (c *fakeClient) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Publish(topic, payload, 1, retained)
}

func (c *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
	c.unsubscribed = append(c.unsubscribed, topic)
	return nil
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

// commands decodes every published CommandMessage.
func (c *fakeClient) commands(t *testing.T) []CommandMessage {
	t.Helper()
	var out []CommandMessage
	for _, m := range c.messages() {
		var cmd CommandMessage
		if err := json.Unmarshal(m.payload, &cmd); err != nil {
			t.Fatalf("decode %s: %v", m.topic, err)
		}
		out = append(out, cmd)
	}
	return out
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// recordingDelegate flattens Delegate calls into strings.
type recordingDelegate struct {
	calls      []string
	properties map[string]map[string]any
	values     map[string]any
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		properties: make(map[string]map[string]any),
		values:     make(map[string]any),
	}
}

func (d *recordingDelegate) UpdateManagedList(kind netstate.ManagedType, paths []string) {
	d.calls = append(d.calls, fmt.Sprintf("UpdateManagedList:%s:%v", kind, paths))
}

func (d *recordingDelegate) ManagedStateListChanged(kind netstate.ManagedType) {
	d.calls = append(d.calls, "ManagedStateListChanged:"+kind.String())
}

func (d *recordingDelegate) UpdateManagedStateProperties(kind netstate.ManagedType, path string, properties map[string]any) {
	d.calls = append(d.calls, fmt.Sprintf("UpdateManagedStateProperties:%s:%s", kind, path))
	d.properties[path] = properties
}

func (d *recordingDelegate) UpdateNetworkServiceProperty(path, key string, value any) {
	d.calls = append(d.calls, "UpdateNetworkServiceProperty:"+path+":"+key)
	d.values[path+":"+key] = value
}

func (d *recordingDelegate) UpdateDeviceProperty(path, key string, value any) {
	d.calls = append(d.calls, "UpdateDeviceProperty:"+path+":"+key)
	d.values[path+":"+key] = value
}

func (d *recordingDelegate) ProfileListChanged() {
	d.calls = append(d.calls, "ProfileListChanged")
}

func (d *recordingDelegate) CheckPortalListChanged(list string) {
	d.calls = append(d.calls, "CheckPortalListChanged:"+list)
}

func (d *recordingDelegate) NotifyManagerPropertyChanged() {
	d.calls = append(d.calls, "NotifyManagerPropertyChanged")
}

// startedProvider returns a provider already started against a fake client.
func startedProvider(t *testing.T) (*Provider, *fakeClient, *recordingDelegate) {
	t.Helper()
	client := newFakeClient()
	p, err := NewProvider(Options{Client: client, Source: "shill", QoS: 1})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	d := newRecordingDelegate()
	if err := p.Start(t.Context(), d); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client.reset()
	return p, client, d
}

func deliver(t *testing.T, p *Provider, topic string, v any) error {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return p.HandleMessage(topic, payload)
}
