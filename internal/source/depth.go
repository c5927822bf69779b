package source

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync/atomic"
	"time"

	"kestrel/internal/vision"
)

// DepthFrame is one captured depth plane in meters.
type DepthFrame struct {
	Map       *vision.DepthMap
	Seq       uint64
	Timestamp time.Time
}

// DepthCapture reads aligned depth planes from a device via FFmpeg as raw
// little-endian float32 video and delivers them to a single consumer
// channel. Slow consumers drop planes rather than stall the reader.
type DepthCapture struct {
	device string
	fps    int
	width  int
	height int

	out      chan *DepthFrame
	stopCh   chan struct{}
	cmd      *exec.Cmd
	running  atomic.Bool
	frameSeq atomic.Uint64
	dropped  atomic.Uint64
	logger   *log.Logger
}

// NewDepthCapture creates a depth capture for the given device and plane
// geometry. Frames arrive on Frames after Start.
func NewDepthCapture(device string, fps, width, height int, logger *log.Logger) *DepthCapture {
	return &DepthCapture{
		device: device,
		fps:    fps,
		width:  width,
		height: height,
		out:    make(chan *DepthFrame, 2),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Frames returns the consumer channel.
func (d *DepthCapture) Frames() <-chan *DepthFrame {
	return d.out
}

// Dropped returns the count of planes discarded due to a slow consumer.
func (d *DepthCapture) Dropped() uint64 {
	return d.dropped.Load()
}

// IsRunning reports whether the capture loop is active.
func (d *DepthCapture) IsRunning() bool {
	return d.running.Load()
}

// Start launches the capture loop.
func (d *DepthCapture) Start() {
	go d.run()
	d.logger.Printf("[DepthCapture] Started capture (device: %s, %dx%d)", d.device, d.width, d.height)
}

// Stop halts capture.
func (d *DepthCapture) Stop() {
	close(d.stopCh)
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.logger.Printf("[DepthCapture] Stopped capture")
}

func (d *DepthCapture) run() {
	d.running.Store(true)
	defer d.running.Store(false)

	args := []string{
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", d.width, d.height),
		"-framerate", fmt.Sprintf("%d", d.fps),
		"-i", d.device,
		"-f", "rawvideo",
		"-pix_fmt", "grayf32le",
		"-",
	}

	d.cmd = exec.Command("ffmpeg", args...)

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		d.logger.Printf("[DepthCapture] Error creating stdout pipe: %v", err)
		return
	}

	stderr, err := d.cmd.StderrPipe()
	if err != nil {
		d.logger.Printf("[DepthCapture] Error creating stderr pipe: %v", err)
		return
	}

	if err := d.cmd.Start(); err != nil {
		d.logger.Printf("[DepthCapture] Error starting ffmpeg: %v", err)
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	planeSize := d.width * d.height * 4
	plane := make([]byte, planeSize)

	for {
		select {
		case <-d.stopCh:
			return
		default:
			if _, err := io.ReadFull(stdout, plane); err != nil {
				if err != io.EOF && err != io.ErrUnexpectedEOF {
					d.logger.Printf("[DepthCapture] Error reading plane: %v", err)
				}
				return
			}

			dm, err := vision.DepthMapFromRaw(plane, d.width, d.height)
			if err != nil {
				d.logger.Printf("[DepthCapture] Bad plane: %v", err)
				continue
			}

			frame := &DepthFrame{
				Map:       dm,
				Seq:       d.frameSeq.Add(1),
				Timestamp: time.Now(),
			}

			select {
			case d.out <- frame:
			default:
				d.dropped.Add(1)
			}
		}
	}
}
