package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// networkStateResponse is a network snapshot plus its raw property map.
type networkStateResponse struct {
	*netstate.NetworkInfo
	Properties map[string]any `json:"properties"`
}

type connectingRequest struct {
	Path string `json:"path"`
}

type refreshRequest struct {
	Path string `json:"path"`
}

// do runs fn on the dispatcher goroutine. On failure it writes a 503 and
// returns false.
func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := s.dispatcher.Do(r.Context(), fn); err != nil {
		s.logger.Warn("engine unavailable", "path", r.URL.Path, "error", err)
		writeUnavailable(w, "network state engine unavailable")
		return false
	}
	return true
}

// handleListNetworks returns every visible network in engine order
// (connected first, then connecting, then the rest).
func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	var networks []*netstate.NetworkInfo
	if !s.do(w, r, func() {
		list := s.handler.GetNetworkList()
		networks = make([]*netstate.NetworkInfo, 0, len(list))
		for _, n := range list {
			networks = append(networks, n.Info())
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"networks": networks,
		"count":    len(networks),
	})
}

// handleDefaultNetwork returns the default network; "network" is null when
// nothing is connected.
func (s *Server) handleDefaultNetwork(w http.ResponseWriter, r *http.Request) {
	var n *netstate.NetworkInfo
	if !s.do(w, r, func() { n = s.handler.DefaultNetwork().Info() }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"network": n})
}

func (s *Server) handleNetworkState(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path query parameter is required")
		return
	}

	var resp *networkStateResponse
	if !s.do(w, r, func() {
		n := s.handler.GetNetworkState(path)
		if n == nil {
			return
		}
		resp = &networkStateResponse{NetworkInfo: n.Info(), Properties: n.Properties()}
	}) {
		return
	}
	if resp == nil {
		writeNotFound(w, "network not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConnecting(w http.ResponseWriter, r *http.Request) {
	var path string
	if !s.do(w, r, func() { path = s.handler.ConnectingNetwork() }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// handleSetConnecting records the network a connection was requested for.
// An empty path clears it.
func (s *Server) handleSetConnecting(w http.ResponseWriter, r *http.Request) {
	var req connectingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !s.do(w, r, func() { s.handler.SetConnectingNetwork(req.Path) }) {
		return
	}
	s.logger.Info("connecting network set", "path", req.Path, "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path})
}

// handleRefresh re-requests properties for one network, or for all of them
// when the body is empty or has no path.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	found := true
	if !s.do(w, r, func() {
		if req.Path == "" {
			s.handler.RequestUpdateForAllNetworks()
			return
		}
		found = s.handler.RequestUpdateForNetwork(req.Path)
	}) {
		return
	}
	if !found {
		writeNotFound(w, "network not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested", "path": req.Path})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	var favorites []*netstate.FavoriteInfo
	if !s.do(w, r, func() {
		list := s.handler.GetFavoriteList()
		favorites = make([]*netstate.FavoriteInfo, 0, len(list))
		for _, f := range list {
			favorites = append(favorites, f.Info())
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"favorites": favorites,
		"count":     len(favorites),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []*netstate.DeviceInfo
	if !s.do(w, r, func() {
		list := s.handler.GetDeviceList()
		devices = make([]*netstate.DeviceInfo, 0, len(list))
		for _, d := range list {
			devices = append(devices, d.Info())
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}
