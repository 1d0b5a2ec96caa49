package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// MQTTClient is the subset of *mqtt.Client the provider uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a Provider.
type Options struct {
	Client MQTTClient

	// Source is the bridge name in topics, e.g. "shill".
	Source string

	QoS    byte
	Logger Logger
}

// Provider is a netstate.Provider backed by a provider bridge on MQTT.
type Provider struct {
	client MQTTClient
	source string
	qos    byte
	topics mqtt.Topics

	mu              sync.RWMutex
	delegate        netstate.Delegate
	available       map[string]bool
	enabled         map[string]bool
	uninitialized   map[string]bool
	enabling        map[string]bool
	checkPortalList string
	profiles        []string
	known           map[netstate.ManagedType]map[string]bool
	pending         map[string]pendingCommand

	logger   Logger
	loggerMu sync.RWMutex
}

var _ netstate.Provider = (*Provider)(nil)

// pendingCommand remembers who to tell when a command fails.
type pendingCommand struct {
	command    string
	technology string
	onError    netstate.ErrorCallback
}

// NewProvider creates a provider. Call Start to begin consuming messages.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Client == nil {
		return nil, ErrMissingClient
	}
	if opts.Source == "" {
		return nil, ErrMissingSource
	}
	return &Provider{
		client:        opts.Client,
		source:        opts.Source,
		qos:           opts.QoS,
		available:     make(map[string]bool),
		enabled:       make(map[string]bool),
		uninitialized: make(map[string]bool),
		enabling:      make(map[string]bool),
		known:         make(map[netstate.ManagedType]map[string]bool),
		pending:       make(map[string]pendingCommand),
		logger:        opts.Logger,
	}, nil
}

// Start subscribes to the bridge's topics and asks it for a full refresh.
// delegate receives every inbound update; wrap it with
// netstate.Dispatcher.Delegate.
func (p *Provider) Start(_ context.Context, delegate netstate.Delegate) error {
	p.mu.Lock()
	p.delegate = delegate
	p.mu.Unlock()

	topic := p.topics.AllProviderTopics(p.source)
	if err := p.client.Subscribe(topic, p.qos, p.HandleMessage); err != nil {
		return fmt.Errorf("subscribe to provider topics: %w", err)
	}
	p.logInfo("subscribed to provider", "topic", topic)

	p.UpdateManagerProperties()
	return nil
}

// Stop unsubscribes from the bridge.
func (p *Provider) Stop() {
	if err := p.client.Unsubscribe(p.topics.AllProviderTopics(p.source)); err != nil {
		p.logDebug("unsubscribe on stop", "error", err)
	}
	p.logInfo("provider stopped", "source", p.source)
}

// SetLogger sets the logger for the provider.
func (p *Provider) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// IsTechnologyAvailable implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyAvailable(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available[technology]
}

// IsTechnologyEnabled implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyEnabled(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled[technology]
}

// IsTechnologyEnabling implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyEnabling(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabling[technology]
}

// IsTechnologyUninitialized implements netstate.TechnologyReporter.
func (p *Provider) IsTechnologyUninitialized(technology string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uninitialized[technology]
}

// SetTechnologyEnabled sends set_technology_enabled. onError runs when the
// command cannot be sent or the bridge acks it as failed.
func (p *Provider) SetTechnologyEnabled(technology string, enabled bool, onError netstate.ErrorCallback) {
	cmd := NewCommandMessage(CommandSetTechnologyEnabled, map[string]any{
		"technology": technology,
		"enabled":    enabled,
	})

	p.mu.Lock()
	if enabled {
		p.enabling[technology] = true
	}
	p.pending[cmd.ID] = pendingCommand{command: cmd.Command, technology: technology, onError: onError}
	p.mu.Unlock()

	if err := p.publish(cmd); err != nil {
		p.mu.Lock()
		delete(p.pending, cmd.ID)
		delete(p.enabling, technology)
		p.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	}
}

// RequestScan sends request_scan.
func (p *Provider) RequestScan() {
	p.send(CommandRequestScan, nil)
}

// RequestProperties sends request_properties for one entity.
func (p *Provider) RequestProperties(kind netstate.ManagedType, path string) {
	p.send(CommandRequestProperties, map[string]any{"kind": kind.String(), "path": path})
}

// UpdateManagerProperties sends get_manager_properties; the bridge answers
// with a manager message and fresh lists.
func (p *Provider) UpdateManagerProperties() {
	p.send(CommandGetManagerProperties, nil)
}

// SetCheckPortalList sends set_check_portal_list.
func (p *Provider) SetCheckPortalList(list string) {
	p.send(CommandSetCheckPortalList, map[string]any{"list": list})
}

// ConnectToBestServices sends connect_to_best_services.
func (p *Provider) ConnectToBestServices() {
	p.send(CommandConnectToBestServices, nil)
}

func (p *Provider) send(command string, params map[string]any) {
	cmd := NewCommandMessage(command, params)
	if err := p.publish(cmd); err != nil {
		p.logError("command not sent", err, "command", command)
	}
}

func (p *Provider) publish(cmd CommandMessage) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Command, err)
	}
	if err := p.client.Publish(p.topics.Command(p.source, cmd.Command), payload, p.qos, false); err != nil {
		return fmt.Errorf("publish %s: %w", cmd.Command, err)
	}
	p.logDebug("command sent", "command", cmd.Command, "id", cmd.ID)
	return nil
}

func (p *Provider) getDelegate() netstate.Delegate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delegate
}

func (p *Provider) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

func (p *Provider) logInfo(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (p *Provider) logDebug(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (p *Provider) logWarn(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (p *Provider) logError(msg string, err error, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
