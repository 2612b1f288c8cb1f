// Command paanalyzerd is the laser photoacoustic gas analyzer daemon: it
// wires the acquisition source, processing graph, thermal regulators,
// action dispatch, Modbus TCP server and admin HTTP/SSE surface into one
// supervised process and runs until interrupted.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/action"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioio"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/daemon"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/discovery"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/httpapi"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/logging"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/nodes"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/thermal"
)

func main() {
	var (
		configPath    = pflag.StringP("config", "c", "config.yaml", "Path to the daemon's config.yaml.")
		listenAddr    = pflag.StringP("listen", "l", ":8080", "Admin HTTP/SSE listen address.")
		verbose       = pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
		quiet         = pflag.BoolP("quiet", "q", false, "Suppress all but warning/error logging.")
		noDiscovery   = pflag.Bool("no-discovery", false, "Disable mDNS/DNS-SD announcement of the admin surface.")
		discoveryName = pflag.String("discovery-name", "", "Service name to announce via mDNS/DNS-SD (defaults to the hostname).")
		help          = pflag.BoolP("help", "h", false, "Display help text.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: paanalyzerd [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}
	if *verbose && *quiet {
		fmt.Fprintln(os.Stderr, "error: --verbose and --quiet are mutually exclusive")
		os.Exit(1)
	}

	logger := logging.New(*verbose, *quiet, os.Stderr)

	cfg, err := paconfig.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	source, err := buildAudioSource(cfg.Acquisition)
	if err != nil {
		logger.Error("failed to build audio source", "err", err)
		os.Exit(1)
	}

	sharedCfg := daemon.NewSharedConfig(cfg)
	acqDaemon := acquisition.NewDaemon(source, logging.Component(logger, "acquisition"))

	g := graph.New()
	orch := daemon.New(logger, sharedCfg, acqDaemon, g)

	actionDrivers, interpreters := buildActionDrivers(cfg.Processing.Graph, cfg.Action)
	deps := nodes.Deps{
		State:         orch.State(),
		Streams:       orch.Streams(),
		Interpreters:  interpreters,
		ActionDrivers: actionDrivers,
	}
	build := nodes.Builder(deps)

	if err := orch.Consumer().ApplyHotReload(cfg.Processing.Graph.ToGraphConfig(), build); err != nil {
		logger.Error("failed to build initial processing graph", "err", err)
		os.Exit(1)
	}

	appCtx, appCancel := context.WithCancel(context.Background())

	for _, spec := range cfg.Processing.Graph.Nodes {
		if spec.Type != "action" {
			continue
		}
		n, ok := orch.Consumer().Node(spec.ID)
		if !ok {
			continue
		}
		actionNode, ok := n.(*action.Node)
		if !ok {
			continue
		}
		orch.AddActionNode(appCtx, actionNode)
	}

	for id, tcfg := range cfg.Thermal {
		driver, err := buildThermalDriver(tcfg)
		if err != nil {
			logger.Error("failed to build thermal driver, skipping regulator", "regulator", id, "err", err)
			continue
		}
		reg := thermal.NewRegulator(id, driver, daemon.ThermalConfigFrom(tcfg), logging.Component(logger, "thermal."+id))
		orch.AddRegulator(appCtx, id, reg)
	}

	orch.StartModbus(appCtx, cfg.Modbus)

	go orch.Run(appCtx)

	apiSrv := httpapi.New(orch, build, logging.Component(logger, "httpapi"))
	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      apiSrv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the SSE stream endpoint holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin http server listening", "addr", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if !*noDiscovery {
		if port, err := listenPort(*listenAddr); err != nil {
			logger.Warn("mDNS/DNS-SD announcement disabled: could not determine listen port", "addr", *listenAddr, "err", err)
		} else {
			name := *discoveryName
			if name == "" {
				if h, err := os.Hostname(); err == nil {
					name = h
				} else {
					name = "paanalyzerd"
				}
			}
			if _, err := discovery.Announce(appCtx, name, port, logging.Component(logger, "discovery")); err != nil {
				logger.Warn("mDNS/DNS-SD announcement failed to start", "err", err)
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		logger.Error("admin http server error", "err", err)
	}

	// Shutdown is not dependency-ordered: appCancel stops Run's
	// producer/consumer loop, the thermal
	// regulator tasks, the action dispatchers and the Modbus server all
	// at once, since they share this context; Shutdown then just waits
	// for that teardown to finish within the deadline.
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin http server shutdown error", "err", err)
	}

	if err := orch.Shutdown(10 * time.Second); err != nil {
		logger.Error("orchestrator shutdown did not complete cleanly", "err", err)
		os.Exit(1)
	}

	logger.Info("paanalyzerd stopped")
}

// buildAudioSource dispatches on acquisition.source, validated to be
// "live" or "file_replay" by paconfig.Validate before LoadConfig returns.
func buildAudioSource(cfg paconfig.AcquisitionConfig) (audioio.Source, error) {
	switch cfg.Source {
	case "live":
		return audioio.NewLiveSource(audioio.LiveConfig{
			SampleRate: uint32(cfg.SampleRate),
			FrameSize:  cfg.FrameSize,
			DeviceName: cfg.Device,
		})
	case "file_replay":
		return audioio.NewWAVSource(audioio.WAVConfig{
			Path:      cfg.FilePath,
			FrameSize: cfg.FrameSize,
			Realtime:  true,
			Loop:      cfg.Loop,
		})
	default:
		return nil, fmt.Errorf("unsupported acquisition source %q", cfg.Source)
	}
}

// buildActionDrivers builds one driver from the document's single
// action section and keys it under every action-type node id in the
// graph, and registers the demo interpreter functions an
// action.InterpreterConfig in config.yaml may reference.
func buildActionDrivers(gcfg paconfig.GraphConfig, acfg paconfig.ActionConfig) (map[string]action.Driver, *action.InterpreterRegistry) {
	interpreters := action.NewInterpreterRegistry()
	interpreters.Register("identity", func(m map[string]any) (map[string]any, error) { return m, nil })

	var driver action.Driver
	switch acfg.Driver {
	case "redis":
		driver = action.NewRedisDriver(action.RedisConfig{
			Addr:     stringParam(acfg.Parameters, "addr", "localhost:6379"),
			Password: stringParam(acfg.Parameters, "password", ""),
			Mode:     action.RedisMode(stringParam(acfg.Parameters, "mode", string(action.RedisPublish))),
			Key:      stringParam(acfg.Parameters, "key", "photoacoustic.measurements"),
		})
	case "kafka":
		driver = action.NewKafkaDriver(action.KafkaConfig{
			Brokers: stringSliceParam(acfg.Parameters, "brokers", []string{"localhost:9092"}),
			Topic:   stringParam(acfg.Parameters, "topic", "photoacoustic.measurements"),
		})
	case "http":
		driver = action.NewHTTPDriver(action.HTTPConfig{
			URL:         stringParam(acfg.Parameters, "url", ""),
			BearerToken: stringParam(acfg.Parameters, "bearer_token", ""),
		})
	default: // "interpreter", and the fallback for an unrecognized value
		driver = action.NewInterpreterDriver(action.InterpreterConfig{
			FunctionName: stringParam(acfg.Parameters, "function_name", "identity"),
		}, interpreters)
	}

	drivers := make(map[string]action.Driver)
	for _, spec := range gcfg.Nodes {
		if spec.Type == "action" {
			drivers[spec.ID] = driver
		}
	}
	return drivers, interpreters
}

// listenPort extracts the numeric port from an address of the form
// "host:port" or ":port", for handing to discovery.Announce.
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

func stringParam(p map[string]any, key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func stringSliceParam(p map[string]any, key string, def []string) []string {
	raw, ok := p[key].([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// buildThermalDriver dispatches on thermal_regulation[id].driver_type,
// validated by paconfig.Validate to be simulation, native, or usb_hid.
// Only simulation is constructible purely from config.yaml today: the
// native and usb_hid drivers address a physical I2C bus and GPIO chip
// (or an already-opened HID device node) that config.yaml's thermal
// section has no fields for, so they need a deployment-specific wiring
// point beyond this daemon's config schema (see DESIGN.md).
func buildThermalDriver(cfg paconfig.ThermalConfig) (thermal.Driver, error) {
	switch cfg.DriverType {
	case "simulation":
		return thermal.NewSimulationDriver(thermal.SimulationConfig{}), nil
	default:
		return nil, fmt.Errorf("driver_type %q requires hardware wiring not expressible in config.yaml", cfg.DriverType)
	}
}
