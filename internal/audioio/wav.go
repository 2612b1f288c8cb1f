package audioio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// WAVConfig configures a file-replay source. When Loop is true, ReadFrame
// never returns ErrEndOfStream: it rewinds to the first sample past the
// WAV header and continues.
type WAVConfig struct {
	Path      string
	FrameSize int
	Realtime  bool
	Loop      bool
}

// wavHeader is the subset of the canonical RIFF/WAVE header this source
// understands: PCM or IEEE-float, mono or stereo.
type wavHeader struct {
	sampleRate    uint32
	channels      uint16
	bitsPerSample uint16
	isFloat       bool
	dataOffset    int64
	dataSize      uint32
}

// WAVSource replays a stereo (or mono, duplicated to both channels) PCM/IEEE
// float WAV file.
type WAVSource struct {
	cfg      WAVConfig
	f        *os.File
	hdr      wavHeader
	frameNum uint64
	pacer    *realtimePacer
}

func NewWAVSource(cfg WAVConfig) (*WAVSource, error) {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("audioio: open wav: %w", err)
	}
	hdr, err := parseWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audioio: parse wav header: %w", err)
	}
	return &WAVSource{
		cfg:   cfg,
		f:     f,
		hdr:   hdr,
		pacer: newRealtimePacer(hdr.sampleRate, cfg.FrameSize, cfg.Realtime),
	}, nil
}

func parseWAVHeader(f *os.File) (wavHeader, error) {
	var hdr wavHeader

	riff := make([]byte, 12)
	if _, err := io.ReadFull(f, riff); err != nil {
		return hdr, err
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return hdr, fmt.Errorf("not a RIFF/WAVE file")
	}

	for {
		chunkHdr := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHdr); err != nil {
			return hdr, err
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return hdr, err
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			hdr.channels = binary.LittleEndian.Uint16(body[2:4])
			hdr.sampleRate = binary.LittleEndian.Uint32(body[4:8])
			hdr.bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			hdr.isFloat = format == 3
		case "data":
			hdr.dataSize = size
			off, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return hdr, err
			}
			hdr.dataOffset = off
			return hdr, nil
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return hdr, err
			}
		}
	}
}

func (w *WAVSource) Metadata() Metadata {
	return Metadata{Name: "file:" + w.cfg.Path, SampleRate: w.hdr.sampleRate, Channels: 2, IsRealtime: w.cfg.Realtime}
}

func (w *WAVSource) bytesPerSample() int {
	return int(w.hdr.bitsPerSample) / 8
}

// ReadFrame decodes the next FrameSize samples per channel. On reaching the
// end of the data chunk it either loops (seeking back to dataOffset) or
// returns ErrEndOfStream.
func (w *WAVSource) ReadFrame(ctx context.Context) (*audioframe.Frame, error) {
	if err := w.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	bps := w.bytesPerSample()
	frameBytes := bps * int(w.hdr.channels)
	buf := make([]byte, frameBytes*w.cfg.FrameSize)

	n, err := io.ReadFull(w.f, buf)
	if err != nil && n == 0 {
		if !w.cfg.Loop {
			return nil, ErrEndOfStream
		}
		if _, serr := w.f.Seek(w.hdr.dataOffset, io.SeekStart); serr != nil {
			return nil, &TransientError{Err: serr}
		}
		n, err = io.ReadFull(w.f, buf)
		if err != nil && n == 0 {
			return nil, &TransientError{Err: err}
		}
	}

	samplesRead := n / frameBytes
	if samplesRead == 0 {
		return nil, ErrEndOfStream
	}

	a := make([]float32, samplesRead)
	b := make([]float32, samplesRead)
	for i := 0; i < samplesRead; i++ {
		base := i * frameBytes
		a[i] = decodeSample(buf[base:base+bps], w.hdr.isFloat, w.hdr.bitsPerSample)
		if w.hdr.channels >= 2 {
			b[i] = decodeSample(buf[base+bps:base+2*bps], w.hdr.isFloat, w.hdr.bitsPerSample)
		} else {
			b[i] = a[i]
		}
	}

	w.frameNum++
	return &audioframe.Frame{
		ChannelA:    a,
		ChannelB:    b,
		SampleRate:  w.hdr.sampleRate,
		TimestampMs: time.Now().UnixMilli(),
		FrameNumber: w.frameNum,
	}, nil
}

func decodeSample(raw []byte, isFloat bool, bits uint16) float32 {
	switch {
	case isFloat && bits == 32:
		bits32 := binary.LittleEndian.Uint32(raw)
		return math.Float32frombits(bits32)
	case bits == 16:
		v := int16(binary.LittleEndian.Uint16(raw))
		return float32(v) / 32768.0
	case bits == 8:
		return (float32(raw[0]) - 128) / 128.0
	default:
		return 0
	}
}

func (w *WAVSource) Close() error {
	return w.f.Close()
}
