package ws

import "time"

// CountMessage announces how many objects the latest frame contains. It is
// sent before the detail message so clients can size their views.
type CountMessage struct {
	Type      string    `json:"type"` // "count"
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
	Count     int       `json:"count"`
}

// NewCountMessage creates a count message for one result.
func NewCountMessage(seq uint64, ts time.Time, count int) *CountMessage {
	return &CountMessage{
		Type:      "count",
		Timestamp: ts,
		Seq:       seq,
		Count:     count,
	}
}

// DetectionMessage carries the decoded boxes for one frame.
type DetectionMessage struct {
	Type          string      `json:"type"` // "detection"
	Timestamp     time.Time   `json:"timestamp"`
	Seq           uint64      `json:"seq"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	FrameWidth    int         `json:"frame_width"`
	FrameHeight   int         `json:"frame_height"`
	Objects       []BoxRecord `json:"objects"`
	Frame         string      `json:"frame,omitempty"` // Base64 encoded JPEG frame
}

// BoxRecord is a single detected object in pixel coordinates.
type BoxRecord struct {
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
	Probability float32 `json:"probability"` // 0.0-1.0
	XMin        int     `json:"xmin"`
	YMin        int     `json:"ymin"`
	XMax        int     `json:"xmax"`
	YMax        int     `json:"ymax"`
	Depth       float32 `json:"depth,omitempty"` // meters, 0 when unknown
}

// NewDetectionMessage creates a detection message for one result.
func NewDetectionMessage(seq uint64, ts time.Time, frameWidth, frameHeight int) *DetectionMessage {
	return &DetectionMessage{
		Type:        "detection",
		Timestamp:   ts,
		Seq:         seq,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
		Objects:     make([]BoxRecord, 0),
	}
}

// AddObject appends one box record.
func (m *DetectionMessage) AddObject(rec BoxRecord) {
	m.Objects = append(m.Objects, rec)
}

// SetFrame attaches the base64-encoded annotated frame.
func (m *DetectionMessage) SetFrame(frameBase64 string) {
	m.Frame = frameBase64
}

// SnapshotResponse is the HTTP reply for an on-demand detection request.
type SnapshotResponse struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	FrameWidth  int         `json:"frame_width"`
	FrameHeight int         `json:"frame_height"`
	Count       int         `json:"count"`
	Objects     []BoxRecord `json:"objects"`
	Frame       string      `json:"frame,omitempty"`
}
