// Package config handles loading and validating netstated configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with NETSTATE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and the JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - An empty JWT secret disables API authentication; only bind to loopback then
//
// Usage:
//
//	cfg, err := config.Load("configs/netstate.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Provider.Kind)
package config
