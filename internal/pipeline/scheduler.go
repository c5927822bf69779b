package pipeline

import (
	"log"
	"sync"
	"time"

	"kestrel/internal/engine"
	"kestrel/internal/vision"
)

// SchedulerConfig tunes the pipeline loop.
type SchedulerConfig struct {
	// SwapRB converts frames to the engine's channel ordering during fetch.
	SwapRB bool
	// DisplayEnabled forces the display stage to render every iteration
	// even when no preview consumer is attached.
	DisplayEnabled bool
	// StartupBackoff is the poll interval while waiting for the first frame.
	StartupBackoff time.Duration
}

// Scheduler owns the three-slot frame ring and drives the fetch, detect,
// display and publish stages.
//
// Each iteration advances the ring index i and works three slots at fixed
// offsets: fetch fills slot i, detect reads slot (i+2)%3 and display reads
// slot (i+1)%3. The slot detect reads was fetched two iterations ago, so
// its copy has long completed and fetch can overwrite slot i concurrently
// without a pixel-level lock. The price is a fixed two-frame latency
// between capture and published result.
type Scheduler struct {
	engine     engine.Engine
	gate       *StatusGate
	ingestor   *FrameIngestor
	averager   *TemporalAverager
	aggregator *ResultAggregator
	renderer   Renderer
	sinks      []AnnotatedSink
	cfg        SchedulerConfig
	logger     *log.Logger

	slots [ringSize]*RingSlot
	index int

	// lastResult feeds the display overlay: boxes decoded in the previous
	// iteration's publish stage are drawn over the current display frame.
	lastResult *AggregatedResult
	annotated  []byte

	wg sync.WaitGroup
}

// NewScheduler wires the pipeline stages together. The ring slots are
// allocated against the engine's input geometry; frame buffers are sized
// lazily when the first capture arrives.
func NewScheduler(
	eng engine.Engine,
	gate *StatusGate,
	ingestor *FrameIngestor,
	averager *TemporalAverager,
	aggregator *ResultAggregator,
	renderer Renderer,
	cfg SchedulerConfig,
	logger *log.Logger,
) *Scheduler {
	if cfg.StartupBackoff <= 0 {
		cfg.StartupBackoff = 100 * time.Millisecond
	}
	s := &Scheduler{
		engine:     eng,
		gate:       gate,
		ingestor:   ingestor,
		averager:   averager,
		aggregator: aggregator,
		renderer:   renderer,
		cfg:        cfg,
		logger:     logger,
	}
	for i := range s.slots {
		s.slots[i] = &RingSlot{
			Frame: vision.NewImage(1, 1, 3),
			Input: vision.NewTensor(eng.InputWidth(), eng.InputHeight(), 3),
		}
	}
	return s
}

// AttachSink registers a consumer for annotated display frames. Must be
// called before Start.
func (s *Scheduler) AttachSink(sink AnnotatedSink) {
	s.sinks = append(s.sinks, sink)
}

// Start marks the node running and launches the pipeline loop.
func (s *Scheduler) Start() {
	s.gate.SetRunning(true)
	s.wg.Add(1)
	go s.run()
	s.logger.Printf("[Scheduler] Pipeline loop started (window=%d, output=%d)", s.averager.Window(), s.engine.OutputSize())
}

// Stop clears the running flag and waits for the loop to exit. The flag is
// observed within one iteration; any in-flight fetch/detect pair finishes
// and is joined before the loop returns.
func (s *Scheduler) Stop() {
	s.gate.SetRunning(false)
	s.wg.Wait()
	s.logger.Printf("[Scheduler] Pipeline loop stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	if !s.waitFirstFrame() {
		return
	}
	s.prime()

	for {
		if !s.gate.WaitNewFrame() {
			return
		}

		s.index = (s.index + 1) % ringSize
		fetchSlot := s.slots[s.index]
		detectSlot := s.slots[(s.index+2)%ringSize]
		displaySlot := s.slots[(s.index+1)%ringSize]

		var stage sync.WaitGroup
		stage.Add(2)
		go func() {
			defer stage.Done()
			s.fetch(fetchSlot)
		}()
		go func() {
			defer stage.Done()
			s.detect(detectSlot)
		}()
		stage.Wait()

		s.display(displaySlot)
		s.publish(displaySlot)

		if !s.gate.IsRunning() {
			return
		}
	}
}

// waitFirstFrame blocks until ingestion staged a frame, re-checking the
// running flag every backoff period so shutdown during the wait is
// responsive.
func (s *Scheduler) waitFirstFrame() bool {
	logged := false
	for !s.gate.IsImageAvailable() {
		if !s.gate.IsRunning() {
			return false
		}
		if !logged {
			s.logger.Printf("[Scheduler] Waiting for first frame")
			logged = true
		}
		time.Sleep(s.cfg.StartupBackoff)
	}
	return true
}

// prime fills all three ring slots with copies of the first staged frame
// so the fixed stage offsets have valid data from iteration zero.
func (s *Scheduler) prime() {
	for i := range s.slots {
		s.fetch(s.slots[i])
	}
}

// fetch copies the newest staged frame into slot and produces the
// letterboxed derivative in the engine's channel ordering. The slot is
// tagged with the staged correlation id at copy time.
func (s *Scheduler) fetch(slot *RingSlot) {
	staged := s.ingestor.Snapshot()
	if staged == nil {
		return
	}
	staged.image.CopyInto(slot.Frame)
	slot.Depth = staged.depth
	slot.Header = staged.header
	slot.CorrelationID = staged.correlationID
	slot.Geometry = vision.LetterboxInto(slot.Frame, slot.Input, s.cfg.SwapRB)
}

// detect runs one forward pass on the slot fetched two iterations ago and
// appends the raw output to the prediction history.
func (s *Scheduler) detect(slot *RingSlot) {
	raw, err := s.engine.Predict(slot.Input)
	if err != nil {
		s.logger.Printf("[Scheduler] Inference failed: %v", err)
		return
	}
	if err := s.averager.Remember(raw); err != nil {
		s.logger.Printf("[Scheduler] Discarding inference output: %v", err)
	}
}

// display renders the previous iteration's boxes over the slot fetched one
// iteration ago, when a consumer is attached or local display is forced.
// The rendered frame is kept for the publish stage.
func (s *Scheduler) display(slot *RingSlot) {
	s.annotated = nil
	if s.renderer == nil {
		return
	}

	wanted := s.cfg.DisplayEnabled
	for _, sink := range s.sinks {
		if sink.WantsFrame() {
			wanted = true
			break
		}
	}
	if !wanted {
		return
	}

	jpeg, err := s.renderer.Render(slot.Frame, s.lastResult)
	if err != nil {
		s.logger.Printf("[Scheduler] Overlay render failed: %v", err)
		return
	}
	s.annotated = jpeg
	for _, sink := range s.sinks {
		if sink.WantsFrame() {
			sink.PushFrame(jpeg)
		}
	}
}

// publish averages the prediction history, decodes it against the slot
// fetched one iteration ago and forwards the grouped result.
func (s *Scheduler) publish(slot *RingSlot) {
	mean := s.averager.Average()
	s.lastResult = s.aggregator.Publish(mean, slot, s.annotated)
}
