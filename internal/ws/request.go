package ws

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kestrel/internal/pipeline"
)

// requestTimeout bounds how long a snapshot request waits for the
// pipeline to publish its result.
const requestTimeout = 10 * time.Second

// maxRequestBody caps an uploaded JPEG at 16MB.
const maxRequestBody = 16 << 20

// RequestHandler serves on-demand detection: POST a JPEG, receive the
// decoded boxes for exactly that frame. A request submitted while another
// is still pending supersedes it.
type RequestHandler struct {
	ingestor *pipeline.FrameIngestor
	logger   *log.Logger
}

// NewRequestHandler creates a snapshot request handler.
func NewRequestHandler(ingestor *pipeline.FrameIngestor, logger *log.Logger) *RequestHandler {
	return &RequestHandler{ingestor: ingestor, logger: logger}
}

// ServeHTTP handles POST /detect requests.
func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		id = uuid.New().String()
	}

	req, err := h.ingestor.IngestRequestFrame(data, id)
	if err != nil {
		h.logger.Printf("[Request] Rejected frame: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case res := <-req.Response:
		h.writeResult(w, id, res)
	case <-time.After(requestTimeout):
		h.logger.Printf("[Request] Timed out waiting for result (id: %s)", id)
		http.Error(w, "detection timed out", http.StatusGatewayTimeout)
	case <-r.Context().Done():
		// Client went away; the pending slot is superseded by the next request.
	}
}

func (h *RequestHandler) writeResult(w http.ResponseWriter, id string, res *pipeline.AggregatedResult) {
	resp := SnapshotResponse{
		ID:          id,
		Timestamp:   res.Header.Timestamp,
		FrameWidth:  res.FrameWidth,
		FrameHeight: res.FrameHeight,
		Count:       res.Count,
		Objects:     make([]BoxRecord, 0, res.Count),
	}
	for _, rec := range res.Records() {
		resp.Objects = append(resp.Objects, toBoxRecord(rec, res.FrameWidth, res.FrameHeight))
	}
	if len(res.Annotated) > 0 {
		resp.Frame = base64.StdEncoding.EncodeToString(res.Annotated)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Printf("[Request] Error writing response: %v", err)
	}
}
