// Package daemon wires the acquisition source, processing graph,
// thermal regulators, and ancillary servers into one supervised process,
// and owns the config hot-reload path (spec.md 4.14).
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/action"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/compute"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/consumer"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/modbus"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/streaming"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/thermal"
)

// SharedConfig is the outermost lock in the hierarchy documented in
// spec.md 5 (SharedConfig < ProcessingGraph < SharedComputingState <
// BusMutex): it guards the in-memory config.yaml document that every
// other subsystem reads a snapshot of before acting.
type SharedConfig struct {
	mu  sync.RWMutex
	cfg *paconfig.Config
}

func NewSharedConfig(cfg *paconfig.Config) *SharedConfig {
	return &SharedConfig{cfg: cfg}
}

func (s *SharedConfig) Snapshot() *paconfig.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.cfg
	return &c
}

func (s *SharedConfig) Replace(cfg *paconfig.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// RegulatorFactory constructs the Driver for a thermal regulator's
// configured driver_type; the orchestrator supplies one that knows how
// to build simulation/native/usb_hid drivers from a ThermalConfig.
type RegulatorFactory func(id string, cfg paconfig.ThermalConfig) (thermal.Driver, error)

// Orchestrator supervises every long-running task of one daemon
// process, grounded on the teacher's single-process-many-goroutines
// structure (cmd/direwolf/main.go spawns the audio, KISS-TCP, and IGate
// tasks side by side) generalized to this system's task set.
type Orchestrator struct {
	logger *log.Logger

	sharedConfig *SharedConfig
	acqDaemon    *acquisition.Daemon
	consumer     *consumer.Consumer
	state        *compute.State
	registers    *modbus.RegisterFile
	modbusServer *modbus.Server
	streams      *streaming.Registry

	regulators   map[string]*thermal.Regulator
	regulatorsMu sync.RWMutex

	actionNodes []*action.Node

	wg sync.WaitGroup
}

func New(logger *log.Logger, sharedConfig *SharedConfig, acqDaemon *acquisition.Daemon, g *graph.Graph) *Orchestrator {
	return &Orchestrator{
		logger:       logger,
		sharedConfig: sharedConfig,
		acqDaemon:    acqDaemon,
		consumer:     consumer.New(g, logger),
		state:        compute.NewState(),
		registers:    modbus.NewRegisterFile(),
		streams:      streaming.NewRegistry(),
		regulators:   make(map[string]*thermal.Regulator),
	}
}

func (o *Orchestrator) Consumer() *consumer.Consumer    { return o.consumer }
func (o *Orchestrator) State() *compute.State           { return o.state }
func (o *Orchestrator) Registers() *modbus.RegisterFile { return o.registers }
func (o *Orchestrator) Streams() *streaming.Registry    { return o.streams }
func (o *Orchestrator) SharedConfig() *SharedConfig     { return o.sharedConfig }

// AddRegulator registers and starts a thermal regulation task. Safe to
// call before or after Run.
func (o *Orchestrator) AddRegulator(ctx context.Context, id string, r *thermal.Regulator) {
	o.regulatorsMu.Lock()
	o.regulators[id] = r
	o.regulatorsMu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		r.Run(ctx)
	}()
}

func (o *Orchestrator) Regulator(id string) (*thermal.Regulator, bool) {
	o.regulatorsMu.RLock()
	defer o.regulatorsMu.RUnlock()
	r, ok := o.regulators[id]
	return r, ok
}

// ActionNodes returns the registered action-dispatch nodes, for the
// admin surface's driver health-check listing.
func (o *Orchestrator) ActionNodes() []*action.Node { return o.actionNodes }

func (o *Orchestrator) RegulatorIDs() []string {
	o.regulatorsMu.RLock()
	defer o.regulatorsMu.RUnlock()
	ids := make([]string, 0, len(o.regulators))
	for id := range o.regulators {
		ids = append(ids, id)
	}
	return ids
}

// AddActionNode registers a measurement-dispatch node's dispatcher task.
func (o *Orchestrator) AddActionNode(ctx context.Context, n *action.Node) {
	o.actionNodes = append(o.actionNodes, n)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		n.RunDispatcher(ctx, func(err error) {
			o.logger.Error("action dispatch failed", "err", err)
		})
	}()
}

func (o *Orchestrator) StartModbus(ctx context.Context, cfg paconfig.ModbusConfig) {
	if !cfg.Enabled {
		return
	}
	o.modbusServer = modbus.NewServer(cfg.Address, o.registers, o.logger)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.modbusServer.Run(ctx); err != nil {
			o.logger.Error("modbus server stopped", "err", err)
		}
	}()
}

// Run starts the acquisition daemon and the consumer's drain loop, and
// blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.acqDaemon.Run(ctx)
	}()

	acq := o.sharedConfig.Snapshot().Acquisition
	sub := o.acqDaemon.Subscribe(acq.LatencyBudgetMs, acq.SampleRate, acq.FrameSize)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.consumer.Run(ctx, sub)
	}()

	<-ctx.Done()
}

// Shutdown waits for every supervised task to exit, up to deadline. It
// joins all tasks at once and imposes no order among them: each task
// stops when the shared context is cancelled (a regulator applies a zero
// output as it stops).
// The caller is responsible for cancelling the context passed to Run/
// AddRegulator/AddActionNode/StartModbus before calling Shutdown.
func (o *Orchestrator) Shutdown(deadline time.Duration) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		return fmt.Errorf("shutdown did not complete within %s", deadline)
	}
}
