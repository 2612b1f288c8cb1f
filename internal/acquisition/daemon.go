package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioio"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// State is the AcquisitionDaemon's lifecycle state machine (spec.md 4.2).
type State int

const (
	Idle State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Daemon owns one AudioSource and one Broadcaster and runs the
// read-then-publish loop as a single long-running goroutine.
type Daemon struct {
	source      audioio.Source
	broadcaster *Broadcaster
	logger      *log.Logger

	mu    sync.Mutex
	state State

	backoffBase time.Duration
	backoffMax  time.Duration

	done chan struct{}
}

func NewDaemon(source audioio.Source, logger *log.Logger) *Daemon {
	return &Daemon{
		source:      source,
		broadcaster: NewBroadcaster(),
		logger:      logger,
		state:       Idle,
		backoffBase: 50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		done:        make(chan struct{}),
	}
}

func (d *Daemon) Broadcaster() *Broadcaster { return d.broadcaster }

func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Daemon) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run executes the read -> publish loop until ctx is cancelled or the
// source reaches end of stream. It is meant to be called from its own
// goroutine by the orchestrator.
func (d *Daemon) Run(ctx context.Context) {
	d.setState(Running)
	defer close(d.done)

	backoff := d.backoffBase

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		default:
		}

		frame, err := d.source.ReadFrame(ctx)
		if err != nil {
			var transient *audioio.TransientError
			switch {
			case errors.Is(err, audioio.ErrEndOfStream):
				d.drain()
				return
			case errors.As(err, &transient):
				aerr := &paerrors.AcquisitionError{Severity: paerrors.Transient, Source: d.source.Metadata().Name, Err: err}
				d.logger.Warn("transient acquisition error, backing off", "err", aerr, "backoff", backoff)
				select {
				case <-ctx.Done():
					d.drain()
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > d.backoffMax {
					backoff = d.backoffMax
				}
				continue
			default:
				aerr := &paerrors.AcquisitionError{Severity: paerrors.Fatal, Source: d.source.Metadata().Name, Err: err}
				d.logger.Error("fatal acquisition error", "err", aerr)
				d.setState(Stopped)
				return
			}
		}

		backoff = d.backoffBase
		d.broadcaster.Publish(frame)
	}
}

func (d *Daemon) drain() {
	d.setState(Draining)
	d.setState(Stopped)
}

// Wait blocks until Run has returned.
func (d *Daemon) Wait() {
	<-d.done
}

// Subscribe gives a downstream consumer its personal lag-tolerant view,
// sized from the configured latency budget, sample rate and frame size.
func (d *Daemon) Subscribe(latencyBudgetMs, sampleRate, frameSize int) *Subscription {
	return d.broadcaster.Subscribe(latencyBudgetMs, sampleRate, frameSize)
}
