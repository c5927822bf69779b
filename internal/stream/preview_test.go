package stream

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPreview() *Preview {
	return NewPreview(log.New(io.Discard, "", 0))
}

// TestPreviewFrameGating verifies rendering is requested only while a
// viewer is connected.
func TestPreviewFrameGating(t *testing.T) {
	p := newTestPreview()
	if p.WantsFrame() {
		t.Error("no viewers yet, WantsFrame should be false")
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		p.ServeHTTP(httptest.NewRecorder(), req)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for p.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("viewer never registered")
		case <-time.After(time.Millisecond):
		}
	}
	if !p.WantsFrame() {
		t.Error("WantsFrame should be true with a viewer connected")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}
	if p.ClientCount() != 0 {
		t.Errorf("%d viewers remain after disconnect", p.ClientCount())
	}
}

// TestPreviewStreamsFrames verifies pushed frames reach the viewer in
// MJPEG part framing.
func TestPreviewStreamsFrames(t *testing.T) {
	p := newTestPreview()
	p.PushFrame([]byte("first-jpeg"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		p.ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for p.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("viewer never registered")
		case <-time.After(time.Millisecond):
		}
	}
	p.PushFrame([]byte("second-jpeg"))

	// Give the handler a moment to drain its channel, then disconnect.
	// The body is only inspected after the handler returns.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"--frame", "Content-Type: image/jpeg", "first-jpeg", "second-jpeg"} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Errorf("stream body missing %q", want)
		}
	}
}

// TestSnapshotHandler verifies the single-frame endpoint.
func TestSnapshotHandler(t *testing.T) {
	p := newTestPreview()
	h := NewSnapshotHandler(p)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no frame yet: status = %d, want 503", rec.Code)
	}

	p.PushFrame([]byte("jpeg-bytes"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
