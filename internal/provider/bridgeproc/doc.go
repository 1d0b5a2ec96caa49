// Package bridgeproc supervises the provider bridge daemon.
//
// With the mqtt provider, network properties arrive from a separate bridge
// process that talks to the connection manager and republishes its state on
// MQTT. When the daemon is configured with a bridge command, a Supervisor
// launches it in its own process group, forwards its output to the logger,
// restarts it with exponential backoff when it exits and records each
// lifecycle change in the network event log.
//
//	sup, err := bridgeproc.New(bridgeproc.Options{
//	    Command: "/usr/libexec/netstate-shill-bridge",
//	    Args:    []string{"--source", "shill"},
//	    Events:  eventLog,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package bridgeproc
