package pipeline

import (
	"math"

	"kestrel/internal/vision"
)

// ringSize is the number of rotating frame buffers. Fetch, detect and
// display each work one slot apart, so three slots let all stages overlap
// without sharing a buffer within an iteration.
const ringSize = 3

// DetectionRecord is one decoded bounding box for one class.
type DetectionRecord struct {
	Class       int     `json:"class"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
	X           float32 `json:"x"`     // box center, normalized to frame width
	Y           float32 `json:"y"`     // box center, normalized to frame height
	W           float32 `json:"w"`     // box width, normalized
	H           float32 `json:"h"`     // box height, normalized
	Depth       float32 `json:"depth"` // meters; NaN when unmeasurable
}

// Corners returns the corner coordinates in normalized frame space.
func (r DetectionRecord) Corners() (xmin, ymin, xmax, ymax float32) {
	xmin = r.X - r.W/2
	ymin = r.Y - r.H/2
	xmax = r.X + r.W/2
	ymax = r.Y + r.H/2
	return
}

// HasDepth reports whether the record carries a usable depth estimate.
func (r DetectionRecord) HasDepth() bool {
	return !math.IsNaN(float64(r.Depth))
}

// AggregatedResult is the grouped output of one publish cycle. It is
// rebuilt every iteration and never reused afterwards.
type AggregatedResult struct {
	Header        vision.FrameHeader
	CorrelationID string
	FrameWidth    int
	FrameHeight   int
	ByClass       [][]DetectionRecord // indexed by class, in decode order
	Count         int
	Annotated     []byte // JPEG of the overlaid frame; nil when no consumer asked for it
}

// Records returns all detection records in class order.
func (r *AggregatedResult) Records() []DetectionRecord {
	out := make([]DetectionRecord, 0, r.Count)
	for _, class := range r.ByClass {
		out = append(out, class...)
	}
	return out
}

// PendingRequest tracks one outstanding on-demand detection request.
// At most one is active; a newer request overwrites the pending id.
type PendingRequest struct {
	ID       string
	Response chan *AggregatedResult // buffered; receives exactly one result
}

// stagedFrame is one fully-formed capture waiting for the fetch stage.
// It is immutable once staged: ingestion always swaps in a fresh record
// rather than mutating fields of the previous one.
type stagedFrame struct {
	image         *vision.Image
	depth         *vision.DepthMap
	header        vision.FrameHeader
	correlationID string
}

// RingSlot holds one frame buffer plus its letterboxed derivative. Slots
// are owned by the scheduler; ingestion never touches them.
type RingSlot struct {
	Frame         *vision.Image
	Depth         *vision.DepthMap
	Header        vision.FrameHeader
	CorrelationID string
	Input         *vision.Tensor
	Geometry      vision.Geometry
}

// Renderer draws a result's boxes over a frame and encodes it for display.
type Renderer interface {
	Render(frame *vision.Image, result *AggregatedResult) ([]byte, error)
}

// AnnotatedSink consumes rendered frames. WantsFrame gates the render work:
// the display stage skips drawing entirely when nobody is watching.
type AnnotatedSink interface {
	WantsFrame() bool
	PushFrame(jpeg []byte)
}

// ResultHandler receives each published AggregatedResult.
type ResultHandler interface {
	OnResult(result *AggregatedResult)
}
