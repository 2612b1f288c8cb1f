package audioio

import (
	"context"

	"golang.org/x/time/rate"
)

// realtimePacer throttles frame reads to the source's real sample rate so
// a non-live source can mimic the pacing of a live capture device when
// configured to do so (spec.md 4.1: "a file source MAY either pace or
// burst"). A live source paces unconditionally by blocking on the device
// itself, so it has no need for this helper.
type realtimePacer struct {
	limiter *rate.Limiter
	enabled bool
}

func newRealtimePacer(sampleRate uint32, frameSize int, enabled bool) *realtimePacer {
	var limiter *rate.Limiter
	if sampleRate > 0 && frameSize > 0 {
		framesPerSec := float64(sampleRate) / float64(frameSize)
		limiter = rate.NewLimiter(rate.Limit(framesPerSec), 1)
	}
	return &realtimePacer{limiter: limiter, enabled: enabled}
}

// Wait blocks until the next frame is due, or returns ctx.Err() if the
// context is cancelled first. When pacing is disabled (burst mode) or the
// source carries no sample rate, it returns immediately.
func (p *realtimePacer) Wait(ctx context.Context) error {
	if !p.enabled || p.limiter == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	return p.limiter.Wait(ctx)
}
