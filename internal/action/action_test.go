package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/compute"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

type stubDriver struct {
	dispatched []Measurement
	failNext   bool
}

func (s *stubDriver) Initialize(ctx context.Context) error { return nil }
func (s *stubDriver) Dispatch(ctx context.Context, m Measurement) error {
	if s.failNext {
		s.failNext = false
		return errors.New("dispatch failed")
	}
	s.dispatched = append(s.dispatched, m)
	return nil
}
func (s *stubDriver) HealthCheck(ctx context.Context) error { return nil }
func (s *stubDriver) Shutdown(ctx context.Context) error    { return nil }

func TestBuffer_EvictsOldestWhenFull(t *testing.T) {
	b := NewBuffer(2)
	b.Push(Measurement{TimestampMs: 1})
	b.Push(Measurement{TimestampMs: 2})
	b.Push(Measurement{TimestampMs: 3})

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, int64(2), snap[0].TimestampMs)
	require.Equal(t, int64(3), snap[1].TimestampMs)
}

func TestNode_EveryNFramesTrigger(t *testing.T) {
	state := compute.NewState()
	state.PutPeak(compute.PeakResult{NodeID: "peak1", FrequencyHz: 1000, Amplitude: 5, ObservedAt: time.Now()})

	driver := &stubDriver{}
	n := NewNode("act1", Params{
		SourcePeakID: "peak1",
		Trigger:      TriggerRule{Mode: TriggerEveryN, EveryN: 3},
	}, state, driver)

	for i := 0; i < 6; i++ {
		_, err := n.Process(graphdata.RawAudio{})
		require.NoError(t, err)
	}
	require.Len(t, n.queue, 2)
}

func TestNode_PopulatesPolynomialCoefficientsFromPeak(t *testing.T) {
	state := compute.NewState()
	state.PutPeak(compute.PeakResult{NodeID: "peak1", ObservedAt: time.Now()})
	state.UpdatePeakConcentration("peak1", 42, compute.Polynomial{A0: 1, A1: 2, A2: 3, A3: 4, A4: 5})

	driver := &stubDriver{}
	n := NewNode("act1", Params{
		SourcePeakID: "peak1",
		Trigger:      TriggerRule{Mode: TriggerEveryN, EveryN: 1},
	}, state, driver)

	_, err := n.Process(graphdata.RawAudio{})
	require.NoError(t, err)
	require.Len(t, n.queue, 1)
	req := <-n.queue
	require.Equal(t, [5]float64{1, 2, 3, 4, 5}, req.Measurement.PolynomialCoefficients)
}

func TestNode_ThresholdCrossingTriggersOnce(t *testing.T) {
	state := compute.NewState()
	driver := &stubDriver{}
	n := NewNode("act1", Params{
		SourcePeakID: "peak1",
		Trigger:      TriggerRule{Mode: TriggerThreshold, ThresholdPpm: 50},
	}, state, driver)

	state.PutPeak(compute.PeakResult{NodeID: "peak1", ConcentrationPpm: 10, ObservedAt: time.Now()})
	_, err := n.Process(graphdata.RawAudio{})
	require.NoError(t, err)
	require.Len(t, n.queue, 0)

	state.PutPeak(compute.PeakResult{NodeID: "peak1", ConcentrationPpm: 60, ObservedAt: time.Now()})
	_, err = n.Process(graphdata.RawAudio{})
	require.NoError(t, err)
	require.Len(t, n.queue, 1)

	_, err = n.Process(graphdata.RawAudio{})
	require.NoError(t, err)
	require.Len(t, n.queue, 1, "should not re-trigger while staying above threshold")
}

func TestNode_QueueOverflowDropsOldest(t *testing.T) {
	state := compute.NewState()
	state.PutPeak(compute.PeakResult{NodeID: "peak1", ObservedAt: time.Now()})
	driver := &stubDriver{}
	n := NewNode("act1", Params{
		SourcePeakID: "peak1",
		QueueSize:    1,
		Trigger:      TriggerRule{Mode: TriggerEveryN, EveryN: 1},
	}, state, driver)

	for i := 0; i < 3; i++ {
		_, err := n.Process(graphdata.RawAudio{})
		require.NoError(t, err)
	}
	require.Equal(t, uint64(2), n.Dropped())
}

func TestRunDispatcher_CallsDriverAndReportsErrors(t *testing.T) {
	state := compute.NewState()
	driver := &stubDriver{failNext: true}
	n := NewNode("act1", Params{SourcePeakID: "peak1", Trigger: TriggerRule{Mode: TriggerEveryN, EveryN: 1}}, state, driver)
	state.PutPeak(compute.PeakResult{NodeID: "peak1", ObservedAt: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	var gotErr error
	done := make(chan struct{})
	go func() {
		n.RunDispatcher(ctx, func(err error) { gotErr = err; close(done) })
	}()

	_, err := n.Process(graphdata.RawAudio{})
	require.NoError(t, err)

	<-done
	cancel()
	require.Error(t, gotErr)
}

func TestInterpreterDriver_RoundTripsDict(t *testing.T) {
	reg := NewInterpreterRegistry()
	reg.Register("double_ppm", func(in map[string]any) (map[string]any, error) {
		ppm := in["concentration_ppm"].(float64)
		return map[string]any{"concentration_ppm": ppm * 2}, nil
	})

	d := NewInterpreterDriver(InterpreterConfig{FunctionName: "double_ppm"}, reg)
	require.NoError(t, d.Initialize(context.Background()))
	require.NoError(t, d.Dispatch(context.Background(), Measurement{ConcentrationPpm: 21}))
}

func TestInterpreterDriver_RejectsUnregisteredFunction(t *testing.T) {
	reg := NewInterpreterRegistry()
	d := NewInterpreterDriver(InterpreterConfig{FunctionName: "missing"}, reg)
	require.Error(t, d.Initialize(context.Background()))
}
