package audioio

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// LiveConfig configures the host-microphone capture source.
type LiveConfig struct {
	SampleRate      uint32
	FrameSize       int
	DeviceName      string // empty = default input device
}

// LiveSource captures dual-channel audio from the host audio API via
// PortAudio. It paces unconditionally: Stream.Read blocks until a full
// buffer of hardware samples is available.
type LiveSource struct {
	cfg      LiveConfig
	stream   *portaudio.Stream
	buf      [][]float32 // buf[0]=channel A, buf[1]=channel B
	frameNum uint64
}

func NewLiveSource(cfg LiveConfig) (*LiveSource, error) {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	dev, err := resolveInputDevice(cfg.DeviceName)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	buf := make([][]float32, 2)
	buf[0] = make([]float32, cfg.FrameSize)
	buf[1] = make([]float32, cfg.FrameSize)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 2,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: start stream: %w", err)
	}

	return &LiveSource{cfg: cfg, stream: stream, buf: buf}, nil
}

func resolveInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audioio: enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels >= 2 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audioio: input device %q not found", name)
}

func (l *LiveSource) Metadata() Metadata {
	return Metadata{Name: "microphone", SampleRate: l.cfg.SampleRate, Channels: 2, IsRealtime: true}
}

func (l *LiveSource) ReadFrame(ctx context.Context) (*audioframe.Frame, error) {
	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		done <- result{err: l.stream.Read()}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, &TransientError{Err: r.err}
		}
	}

	a := make([]float32, len(l.buf[0]))
	b := make([]float32, len(l.buf[1]))
	copy(a, l.buf[0])
	copy(b, l.buf[1])

	l.frameNum++
	return &audioframe.Frame{
		ChannelA:    a,
		ChannelB:    b,
		SampleRate:  l.cfg.SampleRate,
		TimestampMs: time.Now().UnixMilli(),
		FrameNumber: l.frameNum,
	}, nil
}

func (l *LiveSource) Close() error {
	l.stream.Stop()
	err := l.stream.Close()
	portaudio.Terminate()
	return err
}
