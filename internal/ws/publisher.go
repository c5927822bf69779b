package ws

import (
	"encoding/base64"
	"log"

	"kestrel/internal/pipeline"
)

// Publisher forwards pipeline results to WebSocket clients. Each result
// becomes a count message followed by a detection message; the annotated
// frame is attached only when at least one client is connected.
type Publisher struct {
	hub    *Hub
	logger *log.Logger
}

var _ pipeline.ResultHandler = (*Publisher)(nil)
var _ pipeline.AnnotatedSink = (*Publisher)(nil)

// NewPublisher creates a publisher broadcasting through hub.
func NewPublisher(hub *Hub, logger *log.Logger) *Publisher {
	return &Publisher{hub: hub, logger: logger}
}

// WantsFrame reports whether any client would receive an annotated frame.
func (p *Publisher) WantsFrame() bool {
	return p.hub.HasClients()
}

// PushFrame is a no-op. The annotated frame reaches clients inside the
// detection message built in OnResult.
func (p *Publisher) PushFrame(jpeg []byte) {}

// OnResult broadcasts the result to all connected clients.
func (p *Publisher) OnResult(res *pipeline.AggregatedResult) {
	if !p.hub.HasClients() {
		return
	}

	p.hub.BroadcastJSON(NewCountMessage(res.Header.Seq, res.Header.Timestamp, res.Count))

	msg := NewDetectionMessage(res.Header.Seq, res.Header.Timestamp, res.FrameWidth, res.FrameHeight)
	msg.CorrelationID = res.CorrelationID
	for _, rec := range res.Records() {
		msg.AddObject(toBoxRecord(rec, res.FrameWidth, res.FrameHeight))
	}
	if len(res.Annotated) > 0 {
		msg.SetFrame(base64.StdEncoding.EncodeToString(res.Annotated))
	}
	p.hub.BroadcastJSON(msg)
}

// toBoxRecord converts a normalized record to pixel corner coordinates.
func toBoxRecord(rec pipeline.DetectionRecord, frameWidth, frameHeight int) BoxRecord {
	xmin, ymin, xmax, ymax := rec.Corners()
	out := BoxRecord{
		Class:       rec.Label,
		ClassID:     rec.Class,
		Probability: rec.Probability,
		XMin:        int(xmin * float32(frameWidth)),
		YMin:        int(ymin * float32(frameHeight)),
		XMax:        int(xmax * float32(frameWidth)),
		YMax:        int(ymax * float32(frameHeight)),
	}
	if rec.HasDepth() {
		out.Depth = rec.Depth
	}
	return out
}
