// Package ai wraps the object detection model behind the Detector interface.
package ai

import (
	"context"
	"fmt"

	"framecheck/internal/config"
	"framecheck/internal/logger"
	"framecheck/internal/models"

	"gocv.io/x/gocv"
)

// Detector runs a model on one BGR frame and returns its raw boxes in frame
// pixel coordinates, in the order the model emitted them.
type Detector interface {
	Infer(ctx context.Context, frame gocv.Mat) ([]models.RawDetection, error)
	Close() error
}

// DetectorError reports a detector failure on a given frame.
type DetectorError struct {
	Frame int
	Err   error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector failed on frame %d: %v", e.Frame, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// New creates the detector selected by cfg.DetectorBackend.
func New(cfg *config.Config, logger *logger.Logger) (Detector, error) {
	switch cfg.DetectorBackend {
	case config.BackendOpenCV:
		return NewNetDetector(cfg.ModelPath, cfg.ModelInputSize, cfg.ScoreThreshold, logger)
	case config.BackendONNX:
		return NewONNXDetector(cfg.ModelPath, cfg.OnnxRuntimeLib, cfg.ModelInputSize, cfg.ScoreThreshold, logger)
	case config.BackendProcess:
		return NewProcessDetector(cfg.DetectorCommand, logger)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}
