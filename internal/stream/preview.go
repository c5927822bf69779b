// Package stream serves the annotated detection output as an MJPEG
// preview over HTTP.
package stream

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"kestrel/internal/pipeline"
)

// Preview fans the annotated frames out to MJPEG viewers. It implements
// pipeline.AnnotatedSink, so rendering only happens while someone watches.
type Preview struct {
	clients      map[chan []byte]bool
	clientsMu    sync.RWMutex
	currentFrame []byte
	frameMu      sync.RWMutex
	logger       *log.Logger
}

var _ pipeline.AnnotatedSink = (*Preview)(nil)

// NewPreview creates an MJPEG preview with no clients.
func NewPreview(logger *log.Logger) *Preview {
	return &Preview{
		clients: make(map[chan []byte]bool),
		logger:  logger,
	}
}

// WantsFrame reports whether any viewer is connected.
func (p *Preview) WantsFrame() bool {
	p.clientsMu.RLock()
	defer p.clientsMu.RUnlock()
	return len(p.clients) > 0
}

// PushFrame delivers an annotated JPEG to all viewers. Slow viewers skip
// frames instead of stalling the pipeline.
func (p *Preview) PushFrame(jpeg []byte) {
	p.frameMu.Lock()
	p.currentFrame = jpeg
	p.frameMu.Unlock()

	p.clientsMu.RLock()
	for ch := range p.clients {
		select {
		case ch <- jpeg:
		default:
		}
	}
	p.clientsMu.RUnlock()
}

// CurrentFrame returns the most recent annotated frame, nil before the
// first one arrives.
func (p *Preview) CurrentFrame() []byte {
	p.frameMu.RLock()
	defer p.frameMu.RUnlock()
	return p.currentFrame
}

// ClientCount returns the number of connected viewers.
func (p *Preview) ClientCount() int {
	p.clientsMu.RLock()
	defer p.clientsMu.RUnlock()
	return len(p.clients)
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (p *Preview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientCh := make(chan []byte, 5)
	p.clientsMu.Lock()
	p.clients[clientCh] = true
	p.clientsMu.Unlock()

	defer func() {
		p.clientsMu.Lock()
		delete(p.clients, clientCh)
		p.clientsMu.Unlock()
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	p.logger.Printf("[Preview] Client connected from %s", r.RemoteAddr)

	// Send the latest frame immediately so the viewer is not blank until
	// the next publish cycle.
	if last := p.CurrentFrame(); last != nil {
		select {
		case clientCh <- last:
		default:
		}
	}

	for {
		select {
		case <-r.Context().Done():
			p.logger.Printf("[Preview] Client disconnected from %s", r.RemoteAddr)
			return
		case frame, ok := <-clientCh:
			if !ok {
				return
			}

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
		}
	}
}

// SnapshotHandler serves the latest annotated frame as a single JPEG.
type SnapshotHandler struct {
	preview *Preview
}

// NewSnapshotHandler creates a snapshot handler over preview.
func NewSnapshotHandler(preview *Preview) *SnapshotHandler {
	return &SnapshotHandler{preview: preview}
}

// ServeHTTP serves one JPEG.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frame := h.preview.CurrentFrame()
	if frame == nil {
		http.Error(w, "no frame available yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(frame)))
	w.Write(frame)
}
