package models

import "fmt"

// Box is a bounding box in integer pixel coordinates with X1<=X2 and Y1<=Y2.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Detection is one recognised object in a frame after normalisation.
type Detection struct {
	ClassID int    `json:"class_id"`
	Label   string `json:"label"`
	Box     Box    `json:"box"`
}

// Record renders the detection in the line format of a record file:
// "<class_id> <x1>,<y1>,<x2>,<y2>".
func (d Detection) Record() string {
	return fmt.Sprintf("%d %d,%d,%d,%d", d.ClassID, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}

// RawDetection is what a detector backend emits, before pixel rounding and
// label lookup.
type RawDetection struct {
	ClassID int     `json:"class"`
	X1      float32 `json:"x1"`
	Y1      float32 `json:"y1"`
	X2      float32 `json:"x2"`
	Y2      float32 `json:"y2"`
	Score   float32 `json:"score"`
}
