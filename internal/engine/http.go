package engine

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"kestrel/internal/vision"
)

// HTTPEngine talks to a remote inference service over HTTP. The service
// owns the network; this client only ships tensors and receives the raw
// detection output.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
	mu       sync.Mutex

	inputWidth  int
	inputHeight int
	classes     []string
	outputSize  int
}

type modelInfo struct {
	InputWidth  int      `json:"input_width"`
	InputHeight int      `json:"input_height"`
	Cells       int      `json:"cells"`
	Classes     []string `json:"classes"`
}

type predictResponse struct {
	Output          []float32 `json:"output"`
	InferenceTimeMs float32   `json:"inference_time_ms"`
}

// NewHTTPEngine connects to the inference service and retrieves the model
// geometry. A failure here is fatal to startup: the pipeline cannot size
// its prediction history without it.
func NewHTTPEngine(endpoint string, timeout time.Duration) (*HTTPEngine, error) {
	e := &HTTPEngine{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}

	resp, err := e.client.Get(endpoint + "/model")
	if err != nil {
		return nil, fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d for model info", resp.StatusCode)
	}

	var info modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode model info: %w", err)
	}
	if info.InputWidth <= 0 || info.InputHeight <= 0 || info.Cells <= 0 || len(info.Classes) == 0 {
		return nil, fmt.Errorf("inference service reported invalid model geometry: %+v", info)
	}

	e.inputWidth = info.InputWidth
	e.inputHeight = info.InputHeight
	e.classes = info.Classes
	e.outputSize = info.Cells * RowStride(len(info.Classes))
	return e, nil
}

func (e *HTTPEngine) Name() string     { return "http" }
func (e *HTTPEngine) InputWidth() int  { return e.inputWidth }
func (e *HTTPEngine) InputHeight() int { return e.inputHeight }
func (e *HTTPEngine) OutputSize() int  { return e.outputSize }

// Classes returns a copy of the class labels.
func (e *HTTPEngine) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Predict ships the tensor as little-endian float32 planes and returns the
// raw output vector. One request is in flight at a time; the remote service
// runs a single network instance.
func (e *HTTPEngine) Predict(input *vision.Tensor) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body := make([]byte, len(input.Data)*4)
	for i, v := range input.Data {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(v))
	}

	req, err := http.NewRequest(http.MethodPost, e.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Tensor-Width", fmt.Sprintf("%d", input.Width))
	req.Header.Set("X-Tensor-Height", fmt.Sprintf("%d", input.Height))
	req.Header.Set("X-Tensor-Channels", fmt.Sprintf("%d", input.Channels))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, msg)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode predict response: %w", err)
	}
	if len(pr.Output) != e.outputSize {
		return nil, fmt.Errorf("inference output is %d elements, want %d", len(pr.Output), e.outputSize)
	}
	return pr.Output, nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (e *HTTPEngine) Close() error { return nil }

var _ Engine = (*HTTPEngine)(nil)
