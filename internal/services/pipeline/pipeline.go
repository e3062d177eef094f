// Package pipeline runs a video through the detector frame by frame and
// writes the artifacts the verifier later reads.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"framecheck/internal/catalog"
	"framecheck/internal/logger"
	"framecheck/internal/metrics"
	"framecheck/internal/models"
	"framecheck/internal/services/ai"
	"framecheck/internal/services/detection"
	"framecheck/internal/services/storage"

	"gocv.io/x/gocv"
)

var red = color.RGBA{R: 255, G: 0, B: 0, A: 0}

// Publisher receives annotated frames for live preview.
type Publisher interface {
	Publish(frame int, jpeg []byte, detections []models.Detection, plate string)
	GetClientCount() int
}

// FrameSource yields decoded frames. *gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(m *gocv.Mat) bool
}

// Options configure frame preprocessing and the failure policy.
type Options struct {
	Rotate          bool // 90° clockwise before detection
	Width, Height   int  // resize target, 0 keeps the size
	ContinueOnError bool // log detector failures and go on with the next frame
}

// Stats summarises a run.
type Stats struct {
	Frames     int // frames read from the source
	Failed     int // frames skipped after a detector error
	Detections int
	Plates     map[string]int // frames per plate text read, nil when none
}

// Frame is the outcome of one processed frame.
type Frame struct {
	Index      int
	Detections []models.Detection
	Plate      string
}

type Pipeline struct {
	detector  ai.Detector
	catalog   *catalog.Catalog
	store     *storage.ArtifactStore
	opts      Options
	metrics   *metrics.Metrics
	publisher Publisher
	logger    *logger.Logger
}

// New creates a pipeline. m and publisher may be nil.
func New(detector ai.Detector, cat *catalog.Catalog, store *storage.ArtifactStore, opts Options,
	m *metrics.Metrics, publisher Publisher, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		detector:  detector,
		catalog:   cat,
		store:     store,
		opts:      opts,
		metrics:   m,
		publisher: publisher,
		logger:    logger,
	}
}

// Detect runs the detector on frame and normalises its output.
func (p *Pipeline) Detect(ctx context.Context, frame gocv.Mat) ([]models.Detection, error) {
	raw, err := p.detector.Infer(ctx, frame)
	if err != nil {
		return nil, err
	}
	return detection.Normalize(raw, p.catalog)
}

// Annotate returns a copy of frame with a box around every detection and the
// label above it. The primary class is boxed without a label. The caller
// closes the returned Mat.
func (p *Pipeline) Annotate(frame gocv.Mat, detections []models.Detection) (gocv.Mat, error) {
	out := frame.Clone()
	for _, d := range detections {
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
		if err := gocv.Rectangle(&out, rect, red, 1); err != nil {
			out.Close()
			return gocv.Mat{}, fmt.Errorf("failed to draw rectangle: %w", err)
		}
		if p.catalog.IsPrimary(d.ClassID) {
			continue
		}
		pt := image.Pt(d.Box.X1, d.Box.Y1-5)
		if err := gocv.PutText(&out, d.Label, pt, gocv.FontHersheySimplex, 0.5, red, 1); err != nil {
			out.Close()
			return gocv.Mat{}, fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return out, nil
}

// Persist writes the annotated image, the raw image when enabled and the
// record file of frame index.
func (p *Pipeline) Persist(index int, raw, annotated gocv.Mat, detections []models.Detection) error {
	boxed, err := encode(gocv.PNGFileExt, annotated)
	if err != nil {
		return err
	}
	if err := p.store.WriteImage(storage.BoxDir, index, boxed); err != nil {
		return err
	}

	if p.store.SaveRaw() {
		rawPNG, err := encode(gocv.PNGFileExt, raw)
		if err != nil {
			return err
		}
		if err := p.store.WriteImage(storage.RawDir, index, rawPNG); err != nil {
			return err
		}
	}

	return p.store.WriteRecords(index, detections)
}

// ProcessFrame runs Detect, Annotate and Persist on one transformed frame,
// reads the plate and publishes the result. Detector failures are returned as
// *ai.DetectorError.
func (p *Pipeline) ProcessFrame(ctx context.Context, index int, frame gocv.Mat) (Frame, error) {
	start := time.Now()

	detections, err := p.Detect(ctx, frame)
	if err != nil {
		p.metrics.DetectorError()
		return Frame{}, &ai.DetectorError{Frame: index, Err: err}
	}

	annotated, err := p.Annotate(frame, detections)
	if err != nil {
		return Frame{}, err
	}
	defer annotated.Close()

	if err := p.Persist(index, frame, annotated, detections); err != nil {
		return Frame{}, err
	}

	result := Frame{
		Index:      index,
		Detections: detections,
		Plate:      detection.PlateText(detections, frame.Cols(), frame.Rows()),
	}

	labels := make([]string, len(detections))
	for i, d := range detections {
		labels[i] = d.Label
	}
	p.metrics.FrameProcessed(labels, time.Since(start))
	p.publish(annotated, result)
	return result, nil
}

func (p *Pipeline) publish(annotated gocv.Mat, f Frame) {
	if p.publisher == nil || p.publisher.GetClientCount() == 0 {
		return
	}
	jpeg, err := encode(gocv.JPEGFileExt, annotated)
	if err != nil {
		p.logger.Warning("Preview of frame %d skipped: %v", f.Index, err)
		return
	}
	p.publisher.Publish(f.Index, jpeg, f.Detections, f.Plate)
}

// Transform applies the configured rotation and resize from src into dst.
func (p *Pipeline) Transform(src gocv.Mat, dst *gocv.Mat) error {
	cur := src
	if p.opts.Rotate {
		rotated := gocv.NewMat()
		defer rotated.Close()
		if err := gocv.Rotate(cur, &rotated, gocv.Rotate90Clockwise); err != nil {
			return fmt.Errorf("failed to rotate frame: %w", err)
		}
		cur = rotated
	}

	if p.opts.Width > 0 && p.opts.Height > 0 {
		return gocv.Resize(cur, dst, image.Pt(p.opts.Width, p.opts.Height), 0, 0, gocv.InterpolationLinear)
	}
	return cur.CopyTo(dst)
}

// Run clears the output tree and processes every frame of the video at path.
func (p *Pipeline) Run(ctx context.Context, path string) (Stats, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	defer video.Close()

	if !video.IsOpened() {
		return Stats{}, fmt.Errorf("failed to open video %s", path)
	}
	p.logger.Info("Processing %s into %s", path, p.store.Root())
	return p.RunSource(ctx, video)
}

// RunSource is Run over an already opened frame source. Frame indices start
// at 0 and advance for every frame read, including failed ones.
func (p *Pipeline) RunSource(ctx context.Context, source FrameSource) (Stats, error) {
	var stats Stats

	if err := p.store.Prepare(); err != nil {
		return stats, err
	}

	img := gocv.NewMat()
	defer img.Close()
	frame := gocv.NewMat()
	defer frame.Close()

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			p.logger.Warning("Processing interrupted after %d frames", stats.Frames)
			return stats, err
		}
		if ok := source.Read(&img); !ok || img.Empty() {
			break
		}
		stats.Frames++

		if err := p.Transform(img, &frame); err != nil {
			return stats, err
		}

		result, err := p.ProcessFrame(ctx, index, frame)
		if err != nil {
			var detErr *ai.DetectorError
			if p.opts.ContinueOnError && errors.As(err, &detErr) && ctx.Err() == nil {
				p.logger.Error("%v", err)
				stats.Failed++
				continue
			}
			return stats, err
		}
		stats.Detections += len(result.Detections)
		p.logger.Debug("Frame %d: %d detection(s)", index, len(result.Detections))
		if result.Plate != "" {
			if stats.Plates == nil {
				stats.Plates = make(map[string]int)
			}
			stats.Plates[result.Plate]++
			p.logger.Debug("Frame %d: plate %s", index, result.Plate)
		}
	}

	p.logger.Info("Processed %d frames, %d detections, %d failed", stats.Frames, stats.Detections, stats.Failed)
	return stats, nil
}

func encode(ext gocv.FileExt, mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
