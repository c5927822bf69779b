package pipeline

import (
	"testing"
	"time"
)

// TestSignalCounting verifies signals accumulate instead of collapsing.
func TestSignalCounting(t *testing.T) {
	gate := NewStatusGate()
	gate.SetRunning(true)

	gate.SignalNewFrame()
	gate.SignalNewFrame()
	gate.SignalNewFrame()

	for i := 0; i < 3; i++ {
		done := make(chan bool, 1)
		go func() {
			done <- gate.WaitNewFrame()
		}()
		select {
		case ok := <-done:
			if !ok {
				t.Fatalf("WaitNewFrame %d returned false, want true", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("WaitNewFrame %d blocked with a pending signal", i)
		}
	}
}

// TestWaitBlocksWithoutSignal verifies WaitNewFrame does not spin.
func TestWaitBlocksWithoutSignal(t *testing.T) {
	gate := NewStatusGate()
	gate.SetRunning(true)

	done := make(chan bool, 1)
	go func() {
		done <- gate.WaitNewFrame()
	}()

	select {
	case <-done:
		t.Fatal("WaitNewFrame returned without a signal")
	case <-time.After(50 * time.Millisecond):
	}

	gate.SignalNewFrame()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("WaitNewFrame returned false after a signal")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitNewFrame stayed blocked after a signal")
	}
}

// TestStopUnblocksWait verifies clearing the running flag wakes waiters.
func TestStopUnblocksWait(t *testing.T) {
	gate := NewStatusGate()
	gate.SetRunning(true)

	done := make(chan bool, 1)
	go func() {
		done <- gate.WaitNewFrame()
	}()

	time.Sleep(20 * time.Millisecond)
	gate.SetRunning(false)

	select {
	case ok := <-done:
		if ok {
			t.Fatal("WaitNewFrame returned true after stop, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitNewFrame stayed blocked after stop")
	}
}

// TestPendingSignalSurvivesStop verifies a signal raised before stop is
// still consumed.
func TestPendingSignalSurvivesStop(t *testing.T) {
	gate := NewStatusGate()
	gate.SetRunning(true)
	gate.SignalNewFrame()
	gate.SetRunning(false)

	if !gate.WaitNewFrame() {
		t.Fatal("pending signal was lost on stop")
	}
	if gate.WaitNewFrame() {
		t.Fatal("WaitNewFrame returned true with no signal and gate stopped")
	}
}

// TestFlags verifies flag reads see prior writes.
func TestFlags(t *testing.T) {
	gate := NewStatusGate()

	if gate.IsRunning() {
		t.Error("gate reports running before SetRunning")
	}
	if gate.IsImageAvailable() {
		t.Error("gate reports image available before any frame")
	}

	gate.SetRunning(true)
	gate.SetImageAvailable(true)

	if !gate.IsRunning() {
		t.Error("SetRunning(true) not observed")
	}
	if !gate.IsImageAvailable() {
		t.Error("SetImageAvailable(true) not observed")
	}
}
