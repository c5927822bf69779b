package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"kestrel/internal/vision"
)

// DNNEngine runs the network locally through the OpenCV DNN module.
type DNNEngine struct {
	net        gocv.Net
	classes    []string
	outNames   []string
	mu         sync.Mutex

	inputWidth  int
	inputHeight int
	outputSize  int
}

// DNNConfig selects the model files and compute backend for local inference.
type DNNConfig struct {
	WeightsPath string
	ConfigPath  string
	NamesPath   string
	InputWidth  int
	InputHeight int
	UseCUDA     bool
}

// NewDNNEngine loads the network and sizes its detection output with a
// dummy forward pass. Any failure here aborts startup.
func NewDNNEngine(cfg DNNConfig) (*DNNEngine, error) {
	net := gocv.ReadNet(cfg.WeightsPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s and %s", cfg.WeightsPath, cfg.ConfigPath)
	}

	if cfg.UseCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	namesBytes, err := os.ReadFile(cfg.NamesPath)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	var classes []string
	for _, line := range strings.Split(string(namesBytes), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			classes = append(classes, name)
		}
	}
	if len(classes) == 0 {
		net.Close()
		return nil, fmt.Errorf("class names file %s is empty", cfg.NamesPath)
	}

	e := &DNNEngine{
		net:         net,
		classes:     classes,
		outNames:    outputLayerNames(&net),
		inputWidth:  cfg.InputWidth,
		inputHeight: cfg.InputHeight,
	}

	// Size the detection output once with a zero tensor, the same way the
	// prediction history is sized.
	probe := vision.NewTensor(cfg.InputWidth, cfg.InputHeight, 3)
	out, err := e.forward(probe)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("probe inference failed: %w", err)
	}
	e.outputSize = len(out)
	if e.outputSize == 0 {
		net.Close()
		return nil, fmt.Errorf("network produced no detection outputs")
	}
	return e, nil
}

func (e *DNNEngine) Name() string     { return "dnn" }
func (e *DNNEngine) InputWidth() int  { return e.inputWidth }
func (e *DNNEngine) InputHeight() int { return e.inputHeight }
func (e *DNNEngine) OutputSize() int  { return e.outputSize }

// Classes returns a copy of the class labels.
func (e *DNNEngine) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Predict runs one forward pass. The output length is validated against the
// size computed at construction.
func (e *DNNEngine) Predict(input *vision.Tensor) ([]float32, error) {
	out, err := e.forward(input)
	if err != nil {
		return nil, err
	}
	if len(out) != e.outputSize {
		return nil, fmt.Errorf("inference output is %d elements, want %d", len(out), e.outputSize)
	}
	return out, nil
}

func (e *DNNEngine) forward(input *vision.Tensor) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]byte, len(input.Data)*4)
	for i, v := range input.Data {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, input.Channels, input.Height, input.Width}, gocv.MatTypeCV32F, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	e.net.SetInput(blob, "")
	outputs := e.net.ForwardLayers(e.outNames)

	var flat []float32
	for i := range outputs {
		vals, err := outputs[i].DataPtrFloat32()
		if err == nil {
			flat = append(flat, vals...)
		}
		outputs[i].Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read output layer %s: %w", e.outNames[i], err)
		}
	}
	return flat, nil
}

// Close releases the network.
func (e *DNNEngine) Close() error {
	return e.net.Close()
}

// outputLayerNames resolves the unconnected output layers of the network.
func outputLayerNames(net *gocv.Net) []string {
	names := net.GetLayerNames()
	var out []string
	for _, idx := range net.GetUnconnectedOutLayers() {
		// OpenCV layer indices are 1-based.
		if idx-1 >= 0 && idx-1 < len(names) {
			out = append(out, names[idx-1])
		}
	}
	return out
}

var _ Engine = (*DNNEngine)(nil)
