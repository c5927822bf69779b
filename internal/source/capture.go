// Package source captures the continuous color and depth inputs and pairs
// them by timestamp before they reach the pipeline's ingestor.
package source

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ColorFrame is one captured color frame, still JPEG-encoded.
type ColorFrame struct {
	Data      []byte
	Seq       uint64
	Timestamp time.Time
}

// Subscription receives captured frames until Done is closed.
type Subscription struct {
	Channel chan *ColorFrame
	Done    chan struct{}
}

// CaptureStats counts capture activity.
type CaptureStats struct {
	FramesCaptured uint64
	FramesDropped  uint64
	LastFrameTime  int64 // Unix timestamp
}

// Capture reads color frames from a camera device or stream URL via FFmpeg
// and fans them out to subscribers. HTTP still-image endpoints are polled
// instead of piped.
type Capture struct {
	device string
	fps    int
	width  int
	height int

	running     atomic.Bool
	stopCh      chan struct{}
	cmd         *exec.Cmd
	subscribers map[*Subscription]bool
	subMu       sync.RWMutex
	frameSeq    atomic.Uint64
	stats       CaptureStats
	statsMu     sync.RWMutex
	logger      *log.Logger
}

// NewCapture creates a capture for the given device. Start must be called
// before frames flow.
func NewCapture(device string, fps, width, height int, logger *log.Logger) *Capture {
	return &Capture{
		device:      device,
		fps:         fps,
		width:       width,
		height:      height,
		stopCh:      make(chan struct{}),
		subscribers: make(map[*Subscription]bool),
		logger:      logger,
	}
}

// Start launches the capture loop.
func (c *Capture) Start() {
	go c.run()
	c.logger.Printf("[Capture] Started capture (device: %s, fps: %d)", c.device, c.fps)
}

// Stop halts capture and closes all subscriptions.
func (c *Capture) Stop() {
	close(c.stopCh)

	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}

	c.subMu.Lock()
	for sub := range c.subscribers {
		close(sub.Done)
		delete(c.subscribers, sub)
	}
	c.subMu.Unlock()
	c.logger.Printf("[Capture] Stopped capture")
}

// Subscribe returns a channel that receives captured frames.
// Caller must call Unsubscribe when done to prevent resource leaks.
func (c *Capture) Subscribe(bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	sub := &Subscription{
		Channel: make(chan *ColorFrame, bufferSize),
		Done:    make(chan struct{}),
	}

	c.subMu.Lock()
	c.subscribers[sub] = true
	c.subMu.Unlock()
	return sub
}

// Unsubscribe removes a frame subscription.
func (c *Capture) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.subMu.Lock()
	if _, ok := c.subscribers[sub]; ok {
		delete(c.subscribers, sub)
		close(sub.Done)
	}
	c.subMu.Unlock()
}

// IsRunning reports whether the capture loop is active.
func (c *Capture) IsRunning() bool {
	return c.running.Load()
}

// Stats returns a copy of the capture counters.
func (c *Capture) Stats() CaptureStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

func (c *Capture) run() {
	c.running.Store(true)
	defer c.running.Store(false)

	if c.isHTTPImageEndpoint() {
		c.captureHTTPImages()
		return
	}
	c.captureFFmpeg()
}

func (c *Capture) isHTTPImageEndpoint() bool {
	return (strings.HasPrefix(c.device, "http://") || strings.HasPrefix(c.device, "https://")) &&
		(strings.Contains(c.device, ".jpg") || strings.Contains(c.device, ".jpeg") || strings.Contains(c.device, "image"))
}

func (c *Capture) captureHTTPImages() {
	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(c.fps)
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			resp, err := client.Get(c.device)
			if err != nil {
				c.logger.Printf("[Capture] Error fetching frame from %s: %v", c.device, err)
				continue
			}

			frame, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				c.logger.Printf("[Capture] Error reading frame: %v", err)
				continue
			}

			c.broadcastFrame(frame)
		}
	}
}

func (c *Capture) captureFFmpeg() {
	var args []string

	if strings.HasPrefix(c.device, "rtsp://") {
		args = []string{
			"-rtsp_transport", "tcp",
			"-i", c.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", c.fps),
			"-q:v", "5",
			"-",
		}
	} else if strings.HasPrefix(c.device, "http://") || strings.HasPrefix(c.device, "https://") {
		args = []string{
			"-i", c.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", c.fps),
			"-q:v", "5",
			"-",
		}
	} else {
		// V4L2 device (USB camera)
		args = []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
			"-framerate", fmt.Sprintf("%d", c.fps),
			"-i", c.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	}

	c.cmd = exec.Command("ffmpeg", args...)

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		c.logger.Printf("[Capture] Error creating stdout pipe: %v", err)
		return
	}

	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.logger.Printf("[Capture] Error creating stderr pipe: %v", err)
		return
	}

	if err := c.cmd.Start(); err != nil {
		c.logger.Printf("[Capture] Error starting ffmpeg: %v", err)
		return
	}

	// Consume stderr silently
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	frameBuffer := make([]byte, 0, 1024*1024)
	chunk := make([]byte, 8192)

	for {
		select {
		case <-c.stopCh:
			return
		default:
			n, err := stdout.Read(chunk)
			if err != nil {
				if err != io.EOF {
					c.logger.Printf("[Capture] Error reading frame: %v", err)
				}
				return
			}

			frameBuffer = append(frameBuffer, chunk[:n]...)

			// Extract complete JPEG frames
			for {
				frame := extractJPEGFrame(&frameBuffer)
				if frame == nil {
					break
				}
				c.broadcastFrame(frame)
			}
		}
	}
}

func (c *Capture) broadcastFrame(data []byte) {
	seq := c.frameSeq.Add(1)
	now := time.Now()

	frame := &ColorFrame{
		Data:      data,
		Seq:       seq,
		Timestamp: now,
	}

	c.statsMu.Lock()
	c.stats.FramesCaptured++
	c.stats.LastFrameTime = now.Unix()
	c.statsMu.Unlock()

	c.subMu.RLock()
	for sub := range c.subscribers {
		select {
		case sub.Channel <- frame:
		default:
			// Subscriber is slow, drop frame
			c.statsMu.Lock()
			c.stats.FramesDropped++
			c.statsMu.Unlock()
		}
	}
	c.subMu.RUnlock()
}

// extractJPEGFrame extracts a complete JPEG frame from buffer.
func extractJPEGFrame(buffer *[]byte) []byte {
	if len(*buffer) < 4 {
		return nil
	}

	// Find JPEG start marker (FFD8)
	startIdx := -1
	for i := 0; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return nil
	}

	// Find JPEG end marker (FFD9)
	endIdx := -1
	for i := startIdx + 2; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		return nil
	}

	frame := make([]byte, endIdx-startIdx)
	copy(frame, (*buffer)[startIdx:endIdx])
	*buffer = (*buffer)[endIdx:]

	return frame
}
