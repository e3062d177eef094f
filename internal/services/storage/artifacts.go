// Package storage writes the per-frame artifacts of a pipeline run.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"framecheck/internal/models"
)

// Artifact subdirectories of the output directory.
const (
	RawDir    = "raw"
	BoxDir    = "box"
	LabelsDir = "labels"
)

// ArtifactStore lays out the output tree of a run:
//
//	<root>/raw/frame_000000.png
//	<root>/box/frame_000000.png
//	<root>/labels/frame_000000.txt
type ArtifactStore struct {
	root      string
	recordExt string
	saveRaw   bool
	mu        sync.Mutex
}

// NewArtifactStore creates a store rooted at root. Nothing is written until Prepare.
func NewArtifactStore(root, recordExt string, saveRaw bool) *ArtifactStore {
	if recordExt == "" {
		recordExt = ".txt"
	}
	return &ArtifactStore{
		root:      root,
		recordExt: recordExt,
		saveRaw:   saveRaw,
	}
}

// Root returns the output directory.
func (s *ArtifactStore) Root() string {
	return s.root
}

// SaveRaw reports whether raw frames are kept.
func (s *ArtifactStore) SaveRaw() bool {
	return s.saveRaw
}

// LabelsPath returns the directory holding the record files.
func (s *ArtifactStore) LabelsPath() string {
	return filepath.Join(s.root, LabelsDir)
}

// Prepare removes the artifact directories of any previous run and creates
// them empty. Files in root outside those directories are left alone.
func (s *ArtifactStore) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dir := range []string{RawDir, BoxDir, LabelsDir} {
		path := filepath.Join(s.root, dir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to clear %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil
}

// FrameName returns the base name of frame index without extension.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%06d", index)
}

// ImagePath returns the path of an image artifact in dir (RawDir or BoxDir).
func (s *ArtifactStore) ImagePath(dir string, index int) string {
	return filepath.Join(s.root, dir, FrameName(index)+".png")
}

// RecordPath returns the path of the record file of a frame.
func (s *ArtifactStore) RecordPath(index int) string {
	return filepath.Join(s.root, LabelsDir, FrameName(index)+s.recordExt)
}

// WriteImage stores encoded image bytes for a frame.
func (s *ArtifactStore) WriteImage(dir string, index int, data []byte) error {
	if dir == RawDir && !s.saveRaw {
		return nil
	}
	path := s.ImagePath(dir, index)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteRecords stores one record line per detection. A frame without
// detections still gets an empty file.
func (s *ArtifactStore) WriteRecords(index int, detections []models.Detection) error {
	var b strings.Builder
	for _, d := range detections {
		b.WriteString(d.Record())
		b.WriteByte('\n')
	}

	path := s.RecordPath(index)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
