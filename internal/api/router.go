package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.newCORSPolicy().middleware)
	r.Use(bodyLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/networks", func(r chi.Router) {
				r.Get("/", s.handleListNetworks)
				r.Get("/default", s.handleDefaultNetwork)
				r.Get("/state", s.handleNetworkState)
				r.Get("/connecting", s.handleGetConnecting)
				r.Post("/connecting", s.handleSetConnecting)
				r.Post("/refresh", s.handleRefresh)
			})

			r.Get("/favorites", s.handleListFavorites)
			r.Get("/devices", s.handleListDevices)

			r.Route("/technologies/{type}", func(r chi.Router) {
				r.Get("/", s.handleGetTechnology)
				r.Put("/", s.handleSetTechnology)
			})

			r.Get("/check-portal-list", s.handleGetCheckPortalList)
			r.Put("/check-portal-list", s.handleSetCheckPortalList)

			r.Post("/scan", s.handleScan)
			r.Post("/connect-best-wifi", s.handleConnectBestWifi)
			r.Get("/hardware-address/{type}", s.handleHardwareAddress)
			r.Get("/events", s.handleEvents)

			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
