package ai

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"framecheck/internal/logger"
	"framecheck/internal/models"
	"framecheck/internal/services/detection"

	"gocv.io/x/gocv"
)

// ProcessDetector delegates to an external program. For each frame the
// program is started, receives the PNG encoded frame on stdin and prints one
// JSON detection per line on stdout.
// The program applies its own score cut-off.
type ProcessDetector struct {
	name   string
	args   []string
	logger *logger.Logger
}

// NewProcessDetector splits command on whitespace into program and arguments.
func NewProcessDetector(command string, logger *logger.Logger) (*ProcessDetector, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("detector command is empty")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("detector command %q not found: %w", fields[0], err)
	}

	logger.Info("Using external detector: %s", command)
	return &ProcessDetector{
		name:   fields[0],
		args:   fields[1:],
		logger: logger,
	}, nil
}

// Infer implements Detector.
func (d *ProcessDetector) Infer(ctx context.Context, frame gocv.Mat) ([]models.RawDetection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.name, d.args...)
	cmd.Stdin = bytes.NewReader(buf.GetBytes())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("detector process failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("detector process failed: %w", err)
	}

	return detection.ParseProcessOutput(&stdout)
}

// Close implements Detector. Nothing is kept between frames.
func (d *ProcessDetector) Close() error {
	return nil
}
