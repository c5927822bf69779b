package source

import (
	"log"
	"sync"
	"time"
)

// maxPending bounds each side's wait queue. Older entries are evicted when
// the queue is full; the streams are near-synchronous so the bound is
// rarely hit.
const maxPending = 8

// Pair is a color frame with its time-matched depth plane. Depth is nil
// when pairing runs in color-only mode.
type Pair struct {
	Color *ColorFrame
	Depth *DepthFrame
}

// PairFunc receives matched pairs.
type PairFunc func(Pair)

// PairSynchronizer matches color frames with depth planes whose timestamps
// fall within a tolerance window, approximate-time policy. Each side is
// matched against the closest candidate from the other side; unmatched
// entries wait until a candidate arrives or they age out.
type PairSynchronizer struct {
	tolerance time.Duration
	emit      PairFunc

	mu           sync.Mutex
	pendingColor []*ColorFrame
	pendingDepth []*DepthFrame
	matched      uint64
	expired      uint64
	logger       *log.Logger
}

// NewPairSynchronizer creates a synchronizer emitting pairs via emit.
func NewPairSynchronizer(tolerance time.Duration, emit PairFunc, logger *log.Logger) *PairSynchronizer {
	if tolerance <= 0 {
		tolerance = 50 * time.Millisecond
	}
	return &PairSynchronizer{
		tolerance: tolerance,
		emit:      emit,
		logger:    logger,
	}
}

// PushColor offers a color frame for pairing.
func (p *PairSynchronizer) PushColor(f *ColorFrame) {
	p.mu.Lock()

	if best := p.takeDepth(f.Timestamp); best != nil {
		p.matched++
		p.mu.Unlock()
		p.emit(Pair{Color: f, Depth: best})
		return
	}

	p.pendingColor = append(p.pendingColor, f)
	if len(p.pendingColor) > maxPending {
		p.pendingColor = p.pendingColor[1:]
		p.expired++
	}
	p.mu.Unlock()
}

// PushDepth offers a depth plane for pairing.
func (p *PairSynchronizer) PushDepth(f *DepthFrame) {
	p.mu.Lock()

	if best := p.takeColor(f.Timestamp); best != nil {
		p.matched++
		p.mu.Unlock()
		p.emit(Pair{Color: best, Depth: f})
		return
	}

	p.pendingDepth = append(p.pendingDepth, f)
	if len(p.pendingDepth) > maxPending {
		p.pendingDepth = p.pendingDepth[1:]
		p.expired++
	}
	p.mu.Unlock()
}

// Matched returns the count of emitted pairs.
func (p *PairSynchronizer) Matched() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matched
}

// Expired returns the count of entries dropped unmatched.
func (p *PairSynchronizer) Expired() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expired
}

// takeDepth removes and returns the pending depth plane closest to ts
// within tolerance, dropping any planes too old to ever match.
func (p *PairSynchronizer) takeDepth(ts time.Time) *DepthFrame {
	bestIdx := -1
	var bestDelta time.Duration
	kept := p.pendingDepth[:0]
	for _, d := range p.pendingDepth {
		if ts.Sub(d.Timestamp) > p.tolerance {
			p.expired++
			continue
		}
		kept = append(kept, d)
		delta := absDuration(ts.Sub(d.Timestamp))
		if delta <= p.tolerance && (bestIdx == -1 || delta < bestDelta) {
			bestIdx = len(kept) - 1
			bestDelta = delta
		}
	}
	p.pendingDepth = kept
	if bestIdx == -1 {
		return nil
	}
	best := p.pendingDepth[bestIdx]
	p.pendingDepth = append(p.pendingDepth[:bestIdx], p.pendingDepth[bestIdx+1:]...)
	return best
}

func (p *PairSynchronizer) takeColor(ts time.Time) *ColorFrame {
	bestIdx := -1
	var bestDelta time.Duration
	kept := p.pendingColor[:0]
	for _, c := range p.pendingColor {
		if ts.Sub(c.Timestamp) > p.tolerance {
			p.expired++
			continue
		}
		kept = append(kept, c)
		delta := absDuration(ts.Sub(c.Timestamp))
		if delta <= p.tolerance && (bestIdx == -1 || delta < bestDelta) {
			bestIdx = len(kept) - 1
			bestDelta = delta
		}
	}
	p.pendingColor = kept
	if bestIdx == -1 {
		return nil
	}
	best := p.pendingColor[bestIdx]
	p.pendingColor = append(p.pendingColor[:bestIdx], p.pendingColor[bestIdx+1:]...)
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
