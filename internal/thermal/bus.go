package thermal

import (
	"sync"

	"github.com/reef-pi/rpi/i2c"
)

// BusPool hands out mutex-guarded access to a shared i2c.Bus, so multiple
// regulators addressing different chips on the same physical bus don't
// interleave register transactions (spec.md 5: bus access must be
// pooled/mutex-guarded across regulators sharing a bus, FIFO fairness).
//
// sync.Mutex's wait queue is already FIFO-ish per Go runtime semantics for
// goroutines blocked on Lock, which is sufficient here: this isn't a
// priority scheduler, just serialization of bus transactions.
type BusPool struct {
	mu  sync.Mutex
	bus i2c.Bus
}

func NewBusPool(bus i2c.Bus) *BusPool {
	return &BusPool{bus: bus}
}

// WithBus serializes fn against every other caller sharing this pool.
func (p *BusPool) WithBus(fn func(bus i2c.Bus) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.bus)
}
