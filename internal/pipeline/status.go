package pipeline

import (
	"sync"
)

// StatusGate bundles the shared pipeline flags with the new-frame signal.
// The flags use reader/writer locking; the signal keeps a pending count so
// unconsumed signals accumulate instead of collapsing into one wake-up.
type StatusGate struct {
	flagMu         sync.RWMutex
	running        bool
	imageAvailable bool

	signalMu sync.Mutex
	cond     *sync.Cond
	pending  int
}

// NewStatusGate creates a gate with both flags cleared.
func NewStatusGate() *StatusGate {
	g := &StatusGate{}
	g.cond = sync.NewCond(&g.signalMu)
	return g
}

// SetRunning flips the node-running flag. Clearing it also wakes any
// goroutine blocked in WaitNewFrame so shutdown stays responsive.
func (g *StatusGate) SetRunning(running bool) {
	g.flagMu.Lock()
	g.running = running
	g.flagMu.Unlock()

	if !running {
		g.signalMu.Lock()
		g.cond.Broadcast()
		g.signalMu.Unlock()
	}
}

// IsRunning reports the node-running flag.
func (g *StatusGate) IsRunning() bool {
	g.flagMu.RLock()
	defer g.flagMu.RUnlock()
	return g.running
}

// SetImageAvailable flips the frame-available flag.
func (g *StatusGate) SetImageAvailable(available bool) {
	g.flagMu.Lock()
	g.imageAvailable = available
	g.flagMu.Unlock()
}

// IsImageAvailable reports whether at least one frame has been staged.
func (g *StatusGate) IsImageAvailable() bool {
	g.flagMu.RLock()
	defer g.flagMu.RUnlock()
	return g.imageAvailable
}

// SignalNewFrame records one new-frame event. Signals are counted, so a
// burst of arrivals before the scheduler gets around to waiting drives an
// equal number of iterations.
func (g *StatusGate) SignalNewFrame() {
	g.signalMu.Lock()
	g.pending++
	g.signalMu.Unlock()
	g.cond.Signal()
}

// WaitNewFrame blocks until a signal is pending and consumes it. It
// returns false when the gate stopped running with no signal left, which
// is the scheduler's cue to exit its loop.
func (g *StatusGate) WaitNewFrame() bool {
	g.signalMu.Lock()
	defer g.signalMu.Unlock()

	for g.pending == 0 {
		if !g.IsRunning() {
			return false
		}
		g.cond.Wait()
	}
	g.pending--
	return true
}
