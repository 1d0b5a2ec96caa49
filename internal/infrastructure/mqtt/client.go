package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives a message on one of paho's goroutines. A returned
// error is logged; it does not change acknowledgement.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// hooks are the caller-supplied callbacks, swapped as a unit.
type hooks struct {
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Client is a broker connection shared by the provider, the event publisher
// and the status topic. Subscriptions are remembered and replayed after
// every reconnect. Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected atomic.Bool

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	hookMu sync.RWMutex
	hooks  hooks
}

// Connect dials the broker with auto-reconnect and a retained offline Last
// Will on the core status topic, waiting up to defaultConnectTimeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	if err := awaitFor(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}
	// The paho connect handler fires asynchronously.
	c.setConnected(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{cfg: cfg, subscriptions: make(map[string]subscription)}
}

// await waits for a paho token, wrapping a timeout or failure in kind.
func await(token pahomqtt.Token, kind error) error {
	return awaitFor(token, defaultPublishTimeout, kind)
}

func awaitFor(token pahomqtt.Token, timeout time.Duration, kind error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no broker response in %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

func (c *Client) setConnected(v bool) { c.connected.Store(v) }

func (c *Client) currentHooks() hooks {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.hooks
}

func (c *Client) updateHooks(fn func(*hooks)) {
	c.hookMu.Lock()
	fn(&c.hooks)
	c.hookMu.Unlock()
}

// handleConnect runs on the first connect and after every reconnect.
func (c *Client) handleConnect() {
	c.setConnected(true)

	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.publishStatus(statusOnline, "")
	if h := c.currentHooks(); h.onConnect != nil {
		h.onConnect()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	h := c.currentHooks()
	if h.logger != nil {
		h.logger.Warn("mqtt connection lost", "error", err)
	}
	if h.onDisconnect != nil {
		h.onDisconnect(err)
	}
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	return c.client.Publish(Topics{}.CoreStatus(), byte(c.cfg.QoS), true, payload)
}

// Close publishes a graceful offline status and disconnects. A client that
// never connected closes cleanly.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected combines the tracked state with paho's own view.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect registers a callback for every (re)connect.
func (c *Client) SetOnConnect(cb func()) {
	c.updateHooks(func(h *hooks) { h.onConnect = cb })
}

// SetOnDisconnect registers a callback for a lost connection.
func (c *Client) SetOnDisconnect(cb func(error)) {
	c.updateHooks(func(h *hooks) { h.onDisconnect = cb })
}

// SetLogger sets where connection loss and handler failures are reported.
func (c *Client) SetLogger(logger Logger) {
	c.updateHooks(func(h *hooks) { h.logger = logger })
}

// wrapHandler adapts a MessageHandler to paho, logging returned errors and
// recovering panics so one bad message cannot kill paho's router.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		logger := c.currentHooks().logger
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil && logger != nil {
			logger.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
