package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	testIssuer = "netstated"
)

// fakeProvider records requests made by the handler. It is called on the
// dispatcher goroutine and inspected from the test goroutine.
type fakeProvider struct {
	mu          sync.Mutex
	enabled     map[string]bool
	available   map[string]bool
	enableCalls []string
	propertyReq []string
	portalLists []string
	connectBest int
	scans       chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		enabled:   map[string]bool{"ethernet": true, "wifi": true},
		available: map[string]bool{"ethernet": true, "wifi": true, "cellular": true},
		scans:     make(chan struct{}, 8),
	}
}

func (p *fakeProvider) IsTechnologyAvailable(t string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available[t]
}

func (p *fakeProvider) IsTechnologyEnabled(t string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled[t]
}

func (p *fakeProvider) IsTechnologyEnabling(string) bool      { return false }
func (p *fakeProvider) IsTechnologyUninitialized(string) bool { return false }

func (p *fakeProvider) SetTechnologyEnabled(t string, enabled bool, _ netstate.ErrorCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enableCalls = append(p.enableCalls, t)
	p.enabled[t] = enabled
}

func (p *fakeProvider) RequestScan() {
	select {
	case p.scans <- struct{}{}:
	default:
	}
}

func (p *fakeProvider) RequestProperties(kind netstate.ManagedType, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.propertyReq = append(p.propertyReq, kind.String()+":"+path)
}

func (p *fakeProvider) UpdateManagerProperties() {}

func (p *fakeProvider) SetCheckPortalList(list string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.portalLists = append(p.portalLists, list)
}

func (p *fakeProvider) ConnectToBestServices() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectBest++
}

func (p *fakeProvider) propertyRequests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.propertyReq...)
}

// testEnv is a running dispatcher and handler behind an httptest server.
type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	disp     *netstate.Dispatcher
	handler  *netstate.Handler
	provider *fakeProvider
	events   *netlog.Log
	stop     context.CancelFunc
}

type envOption func(*Deps)

func withSecret(secret string) envOption {
	return func(d *Deps) {
		d.Security.JWT.Secret = secret
		d.Security.JWT.Issuer = testIssuer
	}
}

func withScanTimeout(timeout time.Duration) envOption {
	return func(d *Deps) { d.ScanTimeout = timeout }
}

// fakeHistory serves canned persisted events and records the last filter.
type fakeHistory struct {
	mu      sync.Mutex
	entries []netlog.Entry
	err     error
	filter  netlog.Filter
}

func (h *fakeHistory) Recent(_ context.Context, f netlog.Filter) ([]netlog.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = f
	return h.entries, h.err
}

func withHistory(h EventHistory) envOption {
	return func(d *Deps) { d.History = h }
}

func withoutEvents() envOption {
	return func(d *Deps) { d.Events = nil }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	events := netlog.New(100)
	prov := newFakeProvider()
	handler := netstate.NewHandler(prov, netstate.Options{Logger: log, Events: events})

	disp := netstate.NewDispatcher(16)
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx) //nolint:errcheck // returns ctx.Err()
	t.Cleanup(func() {
		cancel()
		<-disp.Done()
	})

	deps := Deps{
		Config: config.APIConfig{Host: "127.0.0.1"},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     log,
		Dispatcher: disp,
		Handler:    handler,
		Events:     events,
		Version:    "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.startHub(ctx); err != nil {
		t.Fatalf("startHub() error: %v", err)
	}
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})

	return &testEnv{
		srv:      srv,
		ts:       ts,
		disp:     disp,
		handler:  handler,
		provider: prov,
		events:   events,
		stop:     cancel,
	}
}

// apply runs fn against the handler on the dispatcher goroutine.
func (e *testEnv) apply(t *testing.T, fn func(h *netstate.Handler)) {
	t.Helper()
	if err := e.disp.Do(context.Background(), func() { fn(e.handler) }); err != nil {
		t.Fatalf("dispatcher.Do: %v", err)
	}
}

// seed installs networks and their properties in list order.
func (e *testEnv) seed(t *testing.T, networks map[string]map[string]any, order ...string) {
	t.Helper()
	e.apply(t, func(h *netstate.Handler) {
		h.UpdateManagedList(netstate.ManagedTypeNetwork, order)
		for _, path := range order {
			h.UpdateManagedStateProperties(netstate.ManagedTypeNetwork, path, networks[path])
		}
		h.ManagedStateListChanged(netstate.ManagedTypeNetwork)
	})
}

func (e *testEnv) seedWifiDevice(t *testing.T) {
	t.Helper()
	e.apply(t, func(h *netstate.Handler) {
		h.UpdateManagedList(netstate.ManagedTypeDevice, []string{"/device/wlan0"})
		h.UpdateManagedStateProperties(netstate.ManagedTypeDevice, "/device/wlan0", map[string]any{
			"Name":     "wlan0",
			"Type":     "wifi",
			"Address":  "0011aabbccdd",
			"Scanning": false,
		})
		h.ManagedStateListChanged(netstate.ManagedTypeDevice)
	})
}

// request performs an HTTP request and decodes a JSON response into out
// when out is non-nil.
func (e *testEnv) request(t *testing.T, method, path, body string, header http.Header, out any) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func signToken(t *testing.T, secret, issuer string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"iss": issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}
