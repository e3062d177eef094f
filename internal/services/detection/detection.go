// Package detection turns raw detector output into normalised detections.
// It has no OpenCV dependency so every backend can share it.
package detection

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"

	"framecheck/internal/catalog"
	"framecheck/internal/models"

	"github.com/nfnt/resize"
)

// RowSize is the number of values per row of a model exported with built-in
// NMS: x1, y1, x2, y2, score, class.
const RowSize = 6

// DecodeNMSOutput reads rows of an NMS exported model output. Boxes are in
// model input coordinates and are scaled back with scaleX and scaleY. Rows
// scoring below threshold are dropped, and so are zero score rows, which
// only pad the fixed size output. Row order is kept.
func DecodeNMSOutput(data []float32, threshold, scaleX, scaleY float32) ([]models.RawDetection, error) {
	if len(data)%RowSize != 0 {
		return nil, fmt.Errorf("output length %d is not a multiple of %d", len(data), RowSize)
	}

	var out []models.RawDetection
	for i := 0; i < len(data); i += RowSize {
		row := data[i : i+RowSize]
		score := row[4]
		if score <= 0 || score < threshold {
			continue
		}
		out = append(out, models.RawDetection{
			ClassID: int(row[5]),
			X1:      row[0] * scaleX,
			Y1:      row[1] * scaleY,
			X2:      row[2] * scaleX,
			Y2:      row[3] * scaleY,
			Score:   score,
		})
	}
	return out, nil
}

// Normalize converts raw detections to integer pixel boxes with labels.
// Coordinates are truncated toward zero and inverted corners are swapped.
// A class id outside the catalog is an error.
func Normalize(raw []models.RawDetection, cat *catalog.Catalog) ([]models.Detection, error) {
	out := make([]models.Detection, 0, len(raw))
	for _, r := range raw {
		label, ok := cat.Label(r.ClassID)
		if !ok {
			return nil, fmt.Errorf("detector returned class id %d, catalog has %d classes", r.ClassID, cat.Len())
		}

		box := models.Box{X1: int(r.X1), Y1: int(r.Y1), X2: int(r.X2), Y2: int(r.Y2)}
		if box.X1 > box.X2 {
			box.X1, box.X2 = box.X2, box.X1
		}
		if box.Y1 > box.Y2 {
			box.Y1, box.Y2 = box.Y2, box.Y1
		}
		out = append(out, models.Detection{ClassID: r.ClassID, Label: label, Box: box})
	}
	return out, nil
}

// Plate characters are read from boxes whose top left corner lies inside this
// region, given as fractions of the frame size. Container classes and the
// separator are not characters.
var (
	plateMinX1, plateMaxX1 = 0.15, 0.85
	plateMinY1, plateMaxY1 = 0.2, 0.8

	plateExcluded = map[string]bool{"car": true, "number_plate": true, ".": true}
)

// PlateText reads a number plate from the detections of one frame: the labels
// of the character boxes in the central region, ordered left to right by x1.
// It returns "" when no character qualifies.
func PlateText(dets []models.Detection, frameW, frameH int) string {
	if frameW <= 0 || frameH <= 0 {
		return ""
	}

	chars := make([]models.Detection, 0, len(dets))
	for _, d := range dets {
		if plateExcluded[d.Label] {
			continue
		}
		x := float64(d.Box.X1) / float64(frameW)
		y := float64(d.Box.Y1) / float64(frameH)
		if x < plateMinX1 || x > plateMaxX1 || y < plateMinY1 || y > plateMaxY1 {
			continue
		}
		chars = append(chars, d)
	}
	sort.SliceStable(chars, func(i, j int) bool { return chars[i].Box.X1 < chars[j].Box.X1 })

	var b strings.Builder
	for _, d := range chars {
		b.WriteString(d.Label)
	}
	return b.String()
}

// processLine is one detection printed by an external detector process:
//
//	{"class":12,"box":[x1,y1,x2,y2],"score":0.9}
type processLine struct {
	Class *int      `json:"class"`
	Box   []float32 `json:"box"`
	Score float32   `json:"score"`
}

// ParseProcessOutput reads the JSON lines written by an external detector.
// Blank lines are ignored; any other line that is not a detection is an error.
func ParseProcessOutput(r io.Reader) ([]models.RawDetection, error) {
	var out []models.RawDetection

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var p processLine
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if p.Class == nil {
			return nil, fmt.Errorf("line %d: missing class", lineNo)
		}
		if len(p.Box) != 4 {
			return nil, fmt.Errorf("line %d: box needs 4 values, got %d", lineNo, len(p.Box))
		}
		out = append(out, models.RawDetection{
			ClassID: *p.Class,
			X1:      p.Box[0],
			Y1:      p.Box[1],
			X2:      p.Box[2],
			Y2:      p.Box[3],
			Score:   p.Score,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read detector output: %w", err)
	}
	return out, nil
}

// Preprocess resizes img to size x size and returns the pixels as a
// normalised CHW float tensor in RGB order, plus the factors that map model
// coordinates back to img.
func Preprocess(img image.Image, size int) (data []float32, scaleX, scaleY float32) {
	bounds := img.Bounds()
	scaleX = float32(bounds.Dx()) / float32(size)
	scaleY = float32(bounds.Dy()) / float32(size)

	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	rb := resized.Bounds()

	plane := size * size
	data = make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			i := y*size + x
			data[i] = float32(r>>8) / 255.0
			data[plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(b>>8) / 255.0
		}
	}
	return data, scaleX, scaleY
}
