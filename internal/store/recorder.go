package store

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"kestrel/internal/pipeline"
)

// Recorder writes published results to the store in the background and
// prunes old rows on a timer. Empty results are not persisted.
type Recorder struct {
	store     *Store
	retention time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
	logger    *log.Logger
}

var _ pipeline.ResultHandler = (*Recorder)(nil)

// NewRecorder creates a recorder. A zero retention disables pruning.
func NewRecorder(store *Store, retention time.Duration, logger *log.Logger) *Recorder {
	return &Recorder{
		store:     store,
		retention: retention,
		stopCh:    make(chan struct{}),
		logger:    logger,
	}
}

// Start launches the retention pruner.
func (r *Recorder) Start() {
	if r.retention <= 0 {
		return
	}
	r.wg.Add(1)
	go r.pruneLoop()
}

// Stop halts the pruner.
func (r *Recorder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// OnResult persists one published result.
func (r *Recorder) OnResult(res *pipeline.AggregatedResult) {
	if res.Count == 0 {
		return
	}

	event := &DetectionEventRecord{
		ID:            uuid.New().String(),
		Timestamp:     res.Header.Timestamp,
		Seq:           res.Header.Seq,
		CorrelationID: res.CorrelationID,
		FrameWidth:    res.FrameWidth,
		FrameHeight:   res.FrameHeight,
		Count:         res.Count,
		Boxes:         make([]BoxRecord, 0, res.Count),
	}

	for _, rec := range res.Records() {
		xmin, ymin, xmax, ymax := rec.Corners()
		box := BoxRecord{
			Class:       rec.Label,
			Probability: rec.Probability,
			XMin:        int(xmin * float32(res.FrameWidth)),
			YMin:        int(ymin * float32(res.FrameHeight)),
			XMax:        int(xmax * float32(res.FrameWidth)),
			YMax:        int(ymax * float32(res.FrameHeight)),
		}
		if !math.IsNaN(float64(rec.Depth)) {
			box.Depth = rec.Depth
		}
		event.Boxes = append(event.Boxes, box)
	}

	if err := r.store.SaveEvent(event); err != nil {
		r.logger.Printf("[Recorder] Error saving event: %v", err)
	}
}

func (r *Recorder) pruneLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.retention)
			n, err := r.store.DeleteOlderThan(cutoff)
			if err != nil {
				r.logger.Printf("[Recorder] Error pruning events: %v", err)
				continue
			}
			if n > 0 {
				r.logger.Printf("[Recorder] Pruned %d events older than %s", n, cutoff.Format(time.RFC3339))
			}
		}
	}
}
