package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"framecheck/internal/logger"
	"framecheck/internal/models"
	"framecheck/internal/services/detection"

	"gocv.io/x/gocv"
)

// NetDetector runs an ONNX export through the OpenCV DNN module.
type NetDetector struct {
	net       gocv.Net
	inputSize int
	threshold float32
	logger    *logger.Logger
	mu        sync.Mutex
}

// NewNetDetector loads modelPath, which must be an export with NMS built in.
func NewNetDetector(modelPath string, inputSize int, threshold float32, logger *logger.Logger) (*NetDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("Detection network loaded from %s (input %dx%d)", modelPath, inputSize, inputSize)
	return &NetDetector{
		net:       net,
		inputSize: inputSize,
		threshold: threshold,
		logger:    logger,
	}, nil
}

// Infer implements Detector.
func (d *NetDetector) Infer(ctx context.Context, frame gocv.Mat) ([]models.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	scaleX := float32(frame.Cols()) / float32(d.inputSize)
	scaleY := float32(frame.Rows()) / float32(d.inputSize)
	return detection.DecodeNMSOutput(data, d.threshold, scaleX, scaleY)
}

// Close releases the network.
func (d *NetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
