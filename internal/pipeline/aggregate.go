package pipeline

import (
	"log"
	"math"
	"sort"

	"kestrel/internal/engine"
	"kestrel/internal/vision"
)

// AggregatorConfig tunes box decoding and filtering.
type AggregatorConfig struct {
	Threshold      float32 // minimum class probability
	NMSOverlap     float64 // IoU above which the lower-objectness box is suppressed
	MinBoxFraction float64 // boxes narrower or shorter than this fraction of the frame are noise
	DepthGridSize  int     // sample grid is DepthGridSize x DepthGridSize interior points
}

// ResultAggregator decodes averaged network outputs into per-class
// detection records, estimates per-box depth and hands the grouped result
// to the publish sink.
type ResultAggregator struct {
	classes  []string
	cfg      AggregatorConfig
	bus      *EventBus
	ingestor *FrameIngestor
	logger   *log.Logger
}

// NewResultAggregator builds an aggregator for the given class labels.
// Completed results go to bus; matching pending requests are resolved
// through the ingestor.
func NewResultAggregator(classes []string, cfg AggregatorConfig, bus *EventBus, ingestor *FrameIngestor, logger *log.Logger) *ResultAggregator {
	if cfg.NMSOverlap <= 0 {
		cfg.NMSOverlap = 0.4
	}
	if cfg.MinBoxFraction <= 0 {
		cfg.MinBoxFraction = 0.01
	}
	if cfg.DepthGridSize <= 0 {
		cfg.DepthGridSize = 3
	}
	return &ResultAggregator{
		classes:  classes,
		cfg:      cfg,
		bus:      bus,
		ingestor: ingestor,
		logger:   logger,
	}
}

// candidate is one network output row mapped back to frame coordinates.
type candidate struct {
	x, y, w, h float64 // center/size, normalized to the frame
	objectness float32
	probs      []float32
	suppressed bool
}

// Decode turns the averaged raw output into detection records for the
// frame held by slot, clipped to the unit frame and filtered for size.
func (a *ResultAggregator) Decode(mean []float32, slot *RingSlot) []DetectionRecord {
	stride := engine.RowStride(len(a.classes))
	cells := len(mean) / stride

	candidates := make([]*candidate, 0, cells)
	for i := 0; i < cells; i++ {
		row := mean[i*stride : (i+1)*stride]
		obj := row[4]
		if obj <= 0 {
			continue
		}

		fx, fy, fw, fh := slot.Geometry.ToFrame(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3]))
		cand := &candidate{
			x: fx, y: fy, w: fw, h: fh,
			objectness: obj,
			probs:      make([]float32, len(a.classes)),
		}
		for c := range a.classes {
			p := obj * row[5+c]
			if p >= a.cfg.Threshold {
				cand.probs[c] = p
			}
		}
		candidates = append(candidates, cand)
	}

	a.suppress(candidates)

	var records []DetectionRecord
	for _, cand := range candidates {
		if cand.suppressed {
			continue
		}

		xmin := clampUnit(cand.x - cand.w/2)
		ymin := clampUnit(cand.y - cand.h/2)
		xmax := clampUnit(cand.x + cand.w/2)
		ymax := clampUnit(cand.y + cand.h/2)

		width := xmax - xmin
		height := ymax - ymin
		if width <= a.cfg.MinBoxFraction || height <= a.cfg.MinBoxFraction {
			continue
		}

		depth := a.EstimateDepth(slot.Depth, xmin, ymin, xmax, ymax, slot.Frame.Width, slot.Frame.Height)
		for c := range a.classes {
			if cand.probs[c] > 0 {
				records = append(records, DetectionRecord{
					Class:       c,
					Label:       a.classes[c],
					Probability: cand.probs[c],
					X:           float32((xmin + xmax) / 2),
					Y:           float32((ymin + ymax) / 2),
					W:           float32(width),
					H:           float32(height),
					Depth:       depth,
				})
			}
		}
	}
	return records
}

// suppress runs non-max suppression on the objectness criterion: for each
// overlapping pair the lower-objectness candidate is discarded outright.
func (a *ResultAggregator) suppress(candidates []*candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].objectness > candidates[j].objectness
	})
	for i, hi := range candidates {
		if hi.suppressed {
			continue
		}
		for _, lo := range candidates[i+1:] {
			if !lo.suppressed && boxIoU(hi, lo) > a.cfg.NMSOverlap {
				lo.suppressed = true
			}
		}
	}
}

// EstimateDepth samples a grid of interior points of the box, keeps only
// measurable readings and reports the second-smallest. The smallest reading
// can be a spurious foreground outlier; the runner-up is a cheap robust
// proxy for the nearest surface.
func (a *ResultAggregator) EstimateDepth(depth *vision.DepthMap, xmin, ymin, xmax, ymax float64, frameW, frameH int) float32 {
	if depth == nil {
		return float32(math.NaN())
	}

	refs := a.cfg.DepthGridSize
	var readings []float64
	for i := 1; i <= refs; i++ {
		for j := 1; j <= refs; j++ {
			x := xmin + float64(j)*(xmax-xmin)/float64(refs+1)
			y := ymin + float64(i)*(ymax-ymin)/float64(refs+1)
			d := depth.At(int(x*float64(frameW)), int(y*float64(frameH)))
			if vision.IsMeasurable(d) {
				readings = append(readings, float64(d))
			}
		}
	}

	sort.Float64s(readings)
	switch {
	case len(readings) > 1:
		return float32(readings[1])
	case len(readings) == 1:
		return float32(readings[0])
	default:
		return float32(math.NaN())
	}
}

// Publish decodes the averaged output against slot, groups the records by
// class, forwards the result to the bus and completes a matching pending
// request. The annotated frame, if the display stage produced one, rides
// along on the result.
func (a *ResultAggregator) Publish(mean []float32, slot *RingSlot, annotated []byte) *AggregatedResult {
	records := a.Decode(mean, slot)

	result := &AggregatedResult{
		Header:        slot.Header,
		CorrelationID: slot.CorrelationID,
		FrameWidth:    slot.Frame.Width,
		FrameHeight:   slot.Frame.Height,
		ByClass:       make([][]DetectionRecord, len(a.classes)),
		Count:         len(records),
		Annotated:     annotated,
	}
	for _, rec := range records {
		result.ByClass[rec.Class] = append(result.ByClass[rec.Class], rec)
	}

	a.bus.Publish(result)

	if a.ingestor.CompletePending(result) {
		a.logger.Printf("[Aggregator] Completed request %s with %d detections", result.CorrelationID, result.Count)
	}
	return result
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// boxIoU computes intersection-over-union of two candidate boxes.
func boxIoU(a, b *candidate) float64 {
	ix := overlap(a.x, a.w, b.x, b.w)
	iy := overlap(a.y, a.h, b.y, b.h)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.w*a.h + b.w*b.h - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func overlap(c1, s1, c2, s2 float64) float64 {
	l := math.Max(c1-s1/2, c2-s2/2)
	r := math.Min(c1+s1/2, c2+s2/2)
	return r - l
}
