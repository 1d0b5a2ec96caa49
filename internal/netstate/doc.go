// Package netstate mirrors the state of networks, favorites and devices
// reported by an external connection manager.
//
// A property provider (see internal/provider) pushes list updates and
// property deltas through the Delegate interface. The Handler reconciles them
// into three ordered collections, derives higher-level facts (default
// network, technology state, connection transitions) and notifies registered
// Observers when those facts change.
//
// # Threading
//
// Handler is not safe for concurrent use. Every call into it must happen on
// the goroutine run by a Dispatcher:
//
//	d := netstate.NewDispatcher(256)
//	h := netstate.NewHandler(provider, netstate.Options{})
//	go d.Run(ctx)
//	provider.Start(ctx, d.Delegate(h))
//
//	var def *netstate.NetworkState
//	err := d.Do(ctx, func() { def = h.DefaultNetwork() })
//
// Observers are invoked on the dispatcher goroutine and may call the Handler
// directly. Pointers returned by the Handler are only valid until the next
// list update for their kind.
package netstate
