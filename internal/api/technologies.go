package api

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

type technologyResponse struct {
	Type  string                   `json:"type"`
	State netstate.TechnologyState `json:"state"`
}

type technologyRequest struct {
	Enabled *bool `json:"enabled"`
}

type checkPortalRequest struct {
	List *string `json:"list"`
}

type hardwareAddressResponse struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	Formatted string `json:"formatted"`
}

func (s *Server) handleGetTechnology(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	var state netstate.TechnologyState
	if !s.do(w, r, func() { state = s.handler.GetTechnologyState(typ) }) {
		return
	}
	writeJSON(w, http.StatusOK, technologyResponse{Type: typ, State: state})
}

// handleSetTechnology requests enabling or disabling a technology. The
// request is asynchronous: the response carries the state right after the
// request was issued, and a provider failure is reported to WebSocket
// clients as technology.error.
func (s *Server) handleSetTechnology(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	var req technologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeBadRequest(w, `body must be {"enabled": true|false}`)
		return
	}
	enabled := *req.Enabled

	onError := func(err error) {
		s.logger.Warn("technology request failed", "type", typ, "enabled", enabled, "error", err)
		if s.hub != nil {
			s.hub.Broadcast(EventTechnologyError, map[string]any{
				"type":    typ,
				"enabled": enabled,
				"error":   err.Error(),
			})
		}
	}

	var state netstate.TechnologyState
	if !s.do(w, r, func() {
		s.handler.SetTechnologyEnabled(typ, enabled, onError)
		state = s.handler.GetTechnologyState(typ)
	}) {
		return
	}
	s.logger.Info("technology change requested", "type", typ, "enabled", enabled, "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusAccepted, technologyResponse{Type: typ, State: state})
}

func (s *Server) handleGetCheckPortalList(w http.ResponseWriter, r *http.Request) {
	var list string
	if !s.do(w, r, func() { list = s.handler.CheckPortalList() }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"list": list})
}

func (s *Server) handleSetCheckPortalList(w http.ResponseWriter, r *http.Request) {
	var req checkPortalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.List == nil {
		writeBadRequest(w, `body must be {"list": "..."}`)
		return
	}
	if !s.do(w, r, func() { s.handler.SetCheckPortalList(*req.List) }) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"list": *req.List})
}

// handleScan requests a scan. With wait=true it blocks until a device of
// the requested type (default wifi) finishes scanning, or the scan timeout
// elapses.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("wait") != "true" {
		if !s.do(w, r, s.handler.RequestScan) {
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
		return
	}

	typ := q.Get("type")
	if typ == "" {
		typ = netstate.TypeWifi
	}

	done := make(chan struct{})
	var cancelWait func()
	if !s.do(w, r, func() { cancelWait = s.handler.WaitForScan(typ, func() { close(done) }) }) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.scanTimeout)
	defer cancel()

	start := time.Now()
	select {
	case <-done:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "completed",
			"type":        typ,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	case <-ctx.Done():
		s.dropScanWaiter(cancelWait)
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "scan did not complete in time")
	}
}

// dropScanWaiter removes an abandoned scan waiter. The request context may
// already be gone, so it runs on its own deadline.
func (s *Server) dropScanWaiter(cancelWait func()) {
	ctx, cancel := context.WithTimeout(context.Background(), waiterCleanupTimeout)
	defer cancel()
	if err := s.dispatcher.Do(ctx, cancelWait); err != nil {
		s.logger.Warn("removing scan waiter failed", "error", err)
	}
}

// handleConnectBestWifi scans wifi and then connects the best services.
func (s *Server) handleConnectBestWifi(w http.ResponseWriter, r *http.Request) {
	if !s.do(w, r, s.handler.ConnectToBestWifiNetwork) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (s *Server) handleHardwareAddress(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	var resp hardwareAddressResponse
	if !s.do(w, r, func() {
		resp = hardwareAddressResponse{
			Type:      typ,
			Address:   s.handler.HardwareAddressForType(typ),
			Formatted: s.handler.FormattedHardwareAddressForType(typ),
		}
	}) {
		return
	}
	if resp.Address == "" {
		writeNotFound(w, "no connected network of that type")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents returns the newest event log entries.
// Query: level (debug|event|user|error, minimum), path, limit, and
// source=db to read persisted history instead of the in-memory ring.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("source")
	switch source {
	case "", "memory":
		if s.events == nil {
			writeUnavailable(w, "event log disabled")
			return
		}
	case "db":
		if s.history == nil {
			writeUnavailable(w, "event persistence disabled")
			return
		}
	default:
		writeBadRequest(w, "source must be memory or db")
		return
	}

	filter := netlog.Filter{Path: q.Get("path"), Limit: defaultEventLimit}
	if v := q.Get("level"); v != "" {
		level, err := netlog.ParseLevel(v)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		filter.MinLevel = level
	}
	if v := q.Get("limit"); v != "" {
		limit, err := parsePositive(v)
		if err != nil {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	var entries []netlog.Entry
	if source == "db" {
		var err error
		if entries, err = s.history.Recent(r.Context(), filter); err != nil {
			s.logger.Error("reading persisted events failed", "error", err)
			writeInternalError(w, "reading event history failed")
			return
		}
	} else {
		entries = s.events.Entries(filter)
	}
	if entries == nil {
		entries = []netlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
		"source": cmp.Or(source, "memory"),
	})
}

var errNotPositive = errors.New("not a positive integer")

const waiterCleanupTimeout = 2 * time.Second

// defaultEventLimit caps GET /events when no limit is given.
const defaultEventLimit = 200

func parsePositive(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errNotPositive
	}
	return n, nil
}
