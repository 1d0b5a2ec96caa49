package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// =============================================================================
// Connection Tests
// =============================================================================

func TestIsConnected(t *testing.T) {
	c, fp := connectedClient()
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false, want true")
	}

	fp.connected = false
	if c.IsConnected() {
		t.Error("IsConnected() = true with paho disconnected, want false")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}

func TestClosePublishesGracefulStatus(t *testing.T) {
	c, fp := connectedClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fp.disconnected {
		t.Error("Close() did not disconnect")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	msg, ok := fp.lastPublished()
	if !ok {
		t.Fatal("Close() published nothing")
	}
	if msg.topic != "netstate/core/status" || !msg.retained {
		t.Errorf("status published to %q retained=%v", msg.topic, msg.retained)
	}
	var status StatusMessage
	if err := json.Unmarshal(msg.payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status.Status != statusOffline || status.Reason != reasonGraceful || status.ClientID != "netstated-test" {
		t.Errorf("status = %+v", status)
	}
}

func TestHandleConnect(t *testing.T) {
	c, fp := connectedClient()
	if err := c.Subscribe("netstate/provider/shill/#", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Simulate the broker dropping the subscriptions on reconnect.
	fp.handlers = map[string]pahomqtt.MessageHandler{}

	called := false
	c.SetOnConnect(func() { called = true })
	c.handleConnect()

	if !called {
		t.Error("onConnect callback not called")
	}
	if _, ok := fp.handlers["netstate/provider/shill/#"]; !ok {
		t.Error("subscription not restored after reconnect")
	}
	msg, _ := fp.lastPublished()
	if !strings.Contains(string(msg.payload), `"status":"online"`) {
		t.Errorf("online status payload = %s", msg.payload)
	}
}

func TestHandleDisconnect(t *testing.T) {
	c, _ := connectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got error
	c.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("connection reset")
	c.handleDisconnect(lost)

	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if !errors.Is(got, lost) {
		t.Errorf("onDisconnect error = %v, want %v", got, lost)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one", logger.warns)
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	c, fp := connectedClient()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}

	fp.connected = false
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	c, fp := connectedClient()
	topic := Topics{}.Command("shill", "request_scan")

	if err := c.Publish(topic, []byte(`{"id":"1"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	msg, _ := fp.lastPublished()
	if msg.topic != topic || msg.qos != 1 || msg.retained {
		t.Errorf("published = %+v", msg)
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos too high", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := connectedClient()
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishNotConnected(t *testing.T) {
	c, fp := connectedClient()
	fp.connected = false
	if err := c.Publish("a/b", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishTokenFailures(t *testing.T) {
	c, fp := connectedClient()

	fp.publishToken = &fakeToken{hang: true}
	if err := c.Publish("a/b", nil, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() timeout error = %v, want ErrPublishFailed", err)
	}

	broker := errors.New("not authorised")
	fp.publishToken = &fakeToken{err: broker}
	err := c.Publish("a/b", nil, 1, false)
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, broker) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed wrapping broker error", err)
	}
}

func TestPublishJSON(t *testing.T) {
	c, fp := connectedClient()

	if err := c.PublishJSON("netstate/core/event/default_network", map[string]string{"path": "/s/a"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	msg, _ := fp.lastPublished()
	if string(msg.payload) != `{"path":"/s/a"}` || !msg.retained || msg.qos != 1 {
		t.Errorf("published = %+v (%s)", msg, msg.payload)
	}

	if err := c.PublishJSON("a/b", make(chan int), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(chan) error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishRetained(t *testing.T) {
	c, fp := connectedClient()
	if err := c.PublishRetained("a/b", []byte("x")); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	msg, _ := fp.lastPublished()
	if !msg.retained {
		t.Error("PublishRetained() did not retain")
	}
	if c.QoS() != 1 {
		t.Errorf("QoS() = %d, want 1", c.QoS())
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribeAndDeliver(t *testing.T) {
	c, fp := connectedClient()
	topic := Topics{}.AllProviderTopics("shill")

	var gotTopic, gotPayload string
	err := c.Subscribe(topic, 1, func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(topic) || c.SubscriptionCount() != 1 {
		t.Fatal("subscription not tracked")
	}

	fp.deliver(topic, []byte(`{"paths":[]}`))
	if gotTopic != topic || gotPayload != `{"paths":[]}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c, fp := connectedClient()
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("a/b", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos error = %v", err)
	}
	if err := c.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}

	fp.subscribeToken = &fakeToken{err: errors.New("denied")}
	if err := c.Subscribe("a/b", 1, noop); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("denied error = %v", err)
	}
	if c.HasSubscription("a/b") {
		t.Error("failed subscription still tracked")
	}

	fp.subscribeToken = nil
	fp.connected = false
	if err := c.Subscribe("a/b", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	c, fp := connectedClient()
	if err := c.Subscribe("a/b", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := c.Unsubscribe("a/b"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.HasSubscription("a/b") || len(fp.unsubscribed) != 1 {
		t.Error("subscription not removed")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
}

func TestHandlerPanicAndErrorAreLogged(t *testing.T) {
	c, fp := connectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	_ = c.Subscribe("panic", 1, func(string, []byte) error { panic("boom") })
	_ = c.Subscribe("fail", 1, func(string, []byte) error { return errors.New("bad payload") })

	fp.deliver("panic", nil)
	fp.deliver("fail", nil)

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one panic", logger.errors)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "netstate"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "netstated-test" || opts.Username != "netstate" {
		t.Errorf("identity = %q/%q", opts.ClientID, opts.Username)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}

	configureLWT(opts, cfg.Broker.ClientID)
	if !opts.WillEnabled || opts.WillTopic != "netstate/core/status" || !opts.WillRetained {
		t.Errorf("will = %v %q %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), reasonUnexpected) {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}
