// Package api implements the HTTP REST API and WebSocket server for the
// network state service.
//
// This package provides:
//   - REST endpoints for networks, favorites, devices and technologies
//   - Scan requests, optionally waiting for the scan to complete
//   - The network event log
//   - A WebSocket hub broadcasting handler notifications
//   - Optional HS256 bearer token authentication
//
// # Threading
//
// The netstate.Handler is owned by the dispatcher goroutine. Every request
// reads or mutates it through Dispatcher.Do, and responses carry value
// snapshots (netstate.NetworkInfo and friends), never live state.
//
// # Security
//
// When security.jwt.secret is set, every route except /health requires a
// token signed with it. WebSocket clients that cannot set headers pass the
// token in the token query parameter.
package api
