// netstated - network state synchronization daemon
//
// netstated keeps a consistent view of the host's networks, devices and
// technologies by consuming property updates from a connection-manager
// provider (an MQTT provider bridge or shill over D-Bus). The state is
// exposed over a REST/WebSocket API, republished on MQTT, recorded in a
// network event log and optionally written to InfluxDB.
//
// Usage:
//
//	netstated                          run the daemon (config from NETSTATE_CONFIG)
//	netstated events [flags] <file>    print a CBOR event stream written by the daemon
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/api"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-netstate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
	"github.com/nerrad567/gray-logic-netstate/internal/provider/bridgeproc"
	"github.com/nerrad567/gray-logic-netstate/internal/provider/mqttbridge"
	"github.com/nerrad567/gray-logic-netstate/internal/provider/shill"
	"github.com/nerrad567/gray-logic-netstate/internal/telemetry"
	"github.com/nerrad567/gray-logic-netstate/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "NETSTATE_CONFIG"

	eventQueueSize    = 256
	pruneInterval     = time.Hour
	healthCheckWindow = 5 * time.Second
	observerTimeout   = 5 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "events" {
		if err := runEvents(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// provider is what run needs from either provider implementation.
type provider interface {
	netstate.Provider
	Start(ctx context.Context, delegate netstate.Delegate) error
	Stop()
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo,funlen // startup sequence reads top to bottom
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting netstated",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	events := netlog.New(cfg.NetState.EventLog.MaxEntries)
	events.SetLogger(log.Component("netlog"))

	var (
		db      *database.DB
		history api.EventHistory
	)
	if cfg.NetState.EventLog.Persist {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		sink := netlog.NewSQLiteSink(db.DB)
		events.AddSink(sink)
		history = sink
		go sink.RunPruner(ctx, cfg.GetEventRetention(), pruneInterval, log.Component("netlog"))
	}

	if path := cfg.NetState.EventLog.CBORFile; path != "" {
		cborSink, cborErr := netlog.NewCBORFileSink(path)
		if cborErr != nil {
			return fmt.Errorf("opening event stream: %w", cborErr)
		}
		defer func() {
			if closeErr := cborSink.Close(); closeErr != nil {
				log.Error("error closing event stream", "error", closeErr)
			}
		}()
		events.AddSink(cborSink)
		log.Info("event stream enabled", "path", path)
	}
	// Runs before the sink and database closers above.
	defer events.Close() //nolint:errcheck // always nil

	// The dispatcher outlives ctx so deferred shutdown steps can still
	// reach the handler.
	dispatcher := netstate.NewDispatcher(cfg.NetState.DispatchQueue)
	dispatcher.SetLogger(log.Component("dispatcher"))
	dispatchCtx, stopDispatcher := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx) //nolint:errcheck // returns ctx.Err() on shutdown
	defer func() {
		stopDispatcher()
		<-dispatcher.Done()
	}()

	var mqttClient *mqtt.Client
	if cfg.UsesMQTT() {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	prov, err := newProvider(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	handler := netstate.NewHandler(prov, netstate.Options{
		NoisyProperties:   cfg.NetState.NoisyProperties,
		ScanRetryInterval: cfg.GetScanTimeout(),
		Logger:            log.Component("netstate"),
		Events:            events,
	})

	if mqttClient != nil {
		publisher := mqttbridge.NewEventPublisher(mqttClient, eventQueueSize, log.Component("mqttbridge"))
		go publisher.Run(ctx)
		if addErr := addObserver(ctx, dispatcher, handler, publisher); addErr != nil {
			return fmt.Errorf("registering event publisher: %w", addErr)
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		if addErr := addObserver(ctx, dispatcher, handler, telemetry.NewRecorder(influxClient, handler)); addErr != nil {
			return fmt.Errorf("registering telemetry recorder: %w", addErr)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	var bridge *bridgeproc.Supervisor
	if cfg.Provider.Bridge.Command != "" {
		bridge, err = startBridge(ctx, cfg, events, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping provider bridge")
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping provider bridge", "error", stopErr)
			}
		}()
	}

	if err := prov.Start(ctx, dispatcher.Delegate(handler)); err != nil {
		return fmt.Errorf("starting %s provider: %w", cfg.Provider.Kind, err)
	}
	defer func() {
		log.Info("stopping provider", "kind", cfg.Provider.Kind)
		prov.Stop()
	}()
	log.Info("provider started", "kind", cfg.Provider.Kind)

	if list := cfg.NetState.CheckPortalList; list != "" {
		if doErr := dispatcher.Do(ctx, func() { handler.SetCheckPortalList(list) }); doErr != nil {
			return fmt.Errorf("setting check portal list: %w", doErr)
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log.Component("api"),
			Dispatcher:  dispatcher,
			Handler:     handler,
			Events:      events,
			History:     history,
			ScanTimeout: cfg.GetScanTimeout(),
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer, bridge); err != nil {
		log.Warn("initial health check failed", "error", err)
	} else {
		log.Info("all services healthy")
	}

	log.Info("netstated started, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, stopping services")
	return nil
}

// getConfigPath returns the configuration file path, preferring NETSTATE_CONFIG.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT connects to the broker and logs connection changes.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// newProvider builds the provider selected by provider.kind.
func newProvider(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (provider, error) {
	switch cfg.Provider.Kind {
	case config.ProviderMQTT:
		if mqttClient == nil {
			return nil, fmt.Errorf("creating MQTT provider: %w", mqttbridge.ErrMissingClient)
		}
		p, err := mqttbridge.NewProvider(mqttbridge.Options{
			Client: mqttClient,
			Source: cfg.Provider.Source,
			QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
			Logger: log.Component("mqttbridge"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating MQTT provider: %w", err)
		}
		return p, nil

	case config.ProviderShill:
		bus, err := shill.ConnectSystemBus(cfg.Provider.Shill.Service)
		if err != nil {
			return nil, fmt.Errorf("connecting to shill: %w", err)
		}
		return shill.NewProvider(bus, shill.Options{
			CallTimeout: cfg.GetShillCallTimeout(),
			Logger:      log.Component("shill"),
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

// startBridge launches the supervised provider bridge daemon.
func startBridge(ctx context.Context, cfg *config.Config, events *netlog.Log, log *logging.Logger) (*bridgeproc.Supervisor, error) {
	bc := cfg.Provider.Bridge
	sup, err := bridgeproc.New(bridgeproc.Options{
		Name:            cfg.Provider.Source + "-bridge",
		Command:         bc.Command,
		Args:            bc.Args,
		Env:             bc.Env,
		RestartDelay:    cfg.GetBridgeRestartDelay(),
		MaxRestartDelay: cfg.GetBridgeMaxRestartDelay(),
		MaxRestarts:     bc.MaxRestarts,
		StopTimeout:     cfg.GetBridgeStopTimeout(),
		Logger:          log.Component("bridgeproc"),
		Events:          events,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider bridge supervisor: %w", err)
	}
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting provider bridge: %w", err)
	}
	log.Info("provider bridge started", "command", bc.Command)
	return sup, nil
}

// addObserver registers o on the dispatcher goroutine.
func addObserver(ctx context.Context, d *netstate.Dispatcher, h *netstate.Handler, o netstate.Observer) error {
	ctx, cancel := context.WithTimeout(ctx, observerTimeout)
	defer cancel()
	return d.Do(ctx, func() { h.AddObserver(o) })
}

// healthCheck verifies every started service. Nil services are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server, bridge *bridgeproc.Supervisor) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckWindow)
	defer cancel()

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	if bridge != nil {
		if err := bridge.HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider bridge: %w", err)
		}
	}
	return nil
}
