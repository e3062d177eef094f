package ai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"framecheck/internal/logger"
	"framecheck/internal/models"
	"framecheck/internal/services/detection"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Tensor names and row count of an Ultralytics export with nms=True.
const (
	onnxInputName  = "images"
	onnxOutputName = "output0"
	maxDetections  = 300
)

// ONNXDetector runs the model with ONNX Runtime.
type ONNXDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputSize    int
	threshold    float32
	logger       *logger.Logger
	mu           sync.Mutex
}

// NewONNXDetector initialises the ONNX Runtime environment and opens a session
// on modelPath. libPath overrides the location of the shared library.
func NewONNXDetector(modelPath, libPath string, inputSize int, threshold float32, logger *logger.Logger) (*ONNXDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	size := int64(inputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maxDetections, detection.RowSize))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("ONNX Runtime session created for %s", modelPath)
	return &ONNXDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputSize:    inputSize,
		threshold:    threshold,
		logger:       logger,
	}, nil
}

// Infer implements Detector.
func (d *ONNXDetector) Infer(ctx context.Context, frame gocv.Mat) ([]models.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	input, scaleX, scaleY := detection.Preprocess(img, d.inputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return detection.DecodeNMSOutput(d.outputTensor.GetData(), d.threshold, scaleX, scaleY)
}

// Close destroys the session, its tensors and the environment.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
	return ort.DestroyEnvironment()
}
