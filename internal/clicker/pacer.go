package clicker

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// pacer yields the gap between consecutive fire times.
// Built once per run; the fixed interval is computed up front.
type pacer struct {
	fixed    bool
	interval time.Duration
	minMS    uint64
	spanMS   uint64
	rng      *rand.Rand
}

func newPacer(d Delay, rng *rand.Rand) *pacer {
	switch d := d.(type) {
	case FixedRate:
		return &pacer{fixed: true, interval: d.Interval()}
	case Jitter:
		return &pacer{minMS: d.MinMS, spanMS: d.MaxMS - d.MinMS + 1, rng: rng}
	default:
		panic(fmt.Sprintf("clicker: unsupported delay %T", d))
	}
}

func (p *pacer) next() time.Duration {
	if p.fixed {
		return p.interval
	}
	return time.Duration(p.minMS+p.rng.Uint64N(p.spanMS)) * time.Millisecond
}
