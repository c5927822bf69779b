package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"kestrel/internal/vision"
)

// FrameIngestor accepts frames from the streaming input and from on-demand
// requests and stages the newest one for the scheduler's fetch stage.
//
// Each input path stages a complete immutable record (pixels + depth + id),
// so a streaming frame and a request frame can never interleave partially
// written fields. The fetch stage snapshots whichever record is newest.
type FrameIngestor struct {
	gate   *StatusGate
	logger *log.Logger

	mu     sync.RWMutex // ingestion writes, fetch reads
	staged *stagedFrame
	seq    uint64

	pendingMu sync.Mutex
	pending   *PendingRequest
}

// NewFrameIngestor creates an ingestor that raises signals on gate.
func NewFrameIngestor(gate *StatusGate, logger *log.Logger) *FrameIngestor {
	return &FrameIngestor{
		gate:   gate,
		logger: logger,
	}
}

// IngestStreamFrame stages a frame from the continuous input together with
// its depth map, marks the image-available flag and raises the new-frame
// signal. Frames that fail to decode are dropped; the previously staged
// frame stays valid.
func (fi *FrameIngestor) IngestStreamFrame(data []byte, depth *vision.DepthMap, timestamp time.Time) {
	img, err := vision.DecodeJPEG(data)
	if err != nil {
		fi.logger.Printf("[Ingest] Dropping stream frame: %v", err)
		return
	}

	fi.mu.Lock()
	fi.seq++
	fi.staged = &stagedFrame{
		image:  img,
		depth:  depth,
		header: vision.FrameHeader{Seq: fi.seq, Timestamp: timestamp},
	}
	fi.mu.Unlock()

	fi.gate.SetImageAvailable(true)
	fi.gate.SignalNewFrame()
}

// IngestRequestFrame stages a frame for an on-demand detection request and
// registers correlationID as the active pending request. The returned
// request's Response channel receives the result of the cycle that
// processed this frame.
//
// The staged frame needs a full trip through the ring (fetch, detect,
// publish two iterations later), so the signal is raised once per pipeline
// stage; the counting semantics of the gate drive the extra iterations
// even when the streaming path is idle.
func (fi *FrameIngestor) IngestRequestFrame(data []byte, correlationID string) (*PendingRequest, error) {
	img, err := vision.DecodeJPEG(data)
	if err != nil {
		fi.logger.Printf("[Ingest] Dropping request frame %s: %v", correlationID, err)
		return nil, fmt.Errorf("undecodable request frame: %w", err)
	}

	req := &PendingRequest{
		ID:       correlationID,
		Response: make(chan *AggregatedResult, 1),
	}

	fi.pendingMu.Lock()
	if fi.pending != nil {
		fi.logger.Printf("[Ingest] Request %s overwrites pending request %s", correlationID, fi.pending.ID)
	}
	fi.pending = req
	fi.pendingMu.Unlock()

	fi.mu.Lock()
	fi.seq++
	fi.staged = &stagedFrame{
		image:         img,
		header:        vision.FrameHeader{Seq: fi.seq, Timestamp: time.Now()},
		correlationID: correlationID,
	}
	fi.mu.Unlock()

	fi.gate.SetImageAvailable(true)
	for i := 0; i < ringSize; i++ {
		fi.gate.SignalNewFrame()
	}
	return req, nil
}

// Snapshot returns the newest staged record. A correlation id is handed
// out exactly once: later snapshots of the same record see an empty id, so
// only the slot that fetched the request frame carries its tag.
func (fi *FrameIngestor) Snapshot() *stagedFrame {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	s := fi.staged
	if s != nil && s.correlationID != "" {
		cleared := *s
		cleared.correlationID = ""
		fi.staged = &cleared
	}
	return s
}

// CompletePending delivers result to the active pending request if its
// correlation id matches, and clears it. Reports whether a request was
// completed.
func (fi *FrameIngestor) CompletePending(result *AggregatedResult) bool {
	if result.CorrelationID == "" {
		return false
	}

	fi.pendingMu.Lock()
	defer fi.pendingMu.Unlock()

	if fi.pending == nil || fi.pending.ID != result.CorrelationID {
		return false
	}
	req := fi.pending
	fi.pending = nil

	select {
	case req.Response <- result:
	default:
		// Requester already gave up; nothing to deliver to.
	}
	return true
}
