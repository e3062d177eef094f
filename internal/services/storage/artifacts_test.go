package storage

import (
	"os"
	"path/filepath"
	"testing"

	"framecheck/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore_PrepareClearsPreviousRun(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(root, ".txt", true)

	require.NoError(t, store.Prepare())
	require.NoError(t, store.WriteRecords(0, nil))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.me"), []byte("x"), 0644))

	require.NoError(t, store.Prepare())

	for _, dir := range []string{RawDir, BoxDir, LabelsDir} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
	_, err := os.Stat(filepath.Join(root, "keep.me"))
	assert.NoError(t, err)
}

func TestArtifactStore_WriteRecords(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), "", false)
	require.NoError(t, store.Prepare())

	dets := []models.Detection{
		{ClassID: 0, Label: "car", Box: models.Box{X1: 1, Y1: 2, X2: 300, Y2: 400}},
		{ClassID: 12, Label: "K", Box: models.Box{X1: 10, Y1: 20, X2: 30, Y2: 40}},
	}
	require.NoError(t, store.WriteRecords(7, dets))

	path := store.RecordPath(7)
	assert.Equal(t, "frame_000007.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0 1,2,300,400\n12 10,20,30,40\n", string(data))
}

func TestArtifactStore_EmptyFrameGetsEmptyFile(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), ".txt", false)
	require.NoError(t, store.Prepare())
	require.NoError(t, store.WriteRecords(3, nil))

	info, err := os.Stat(store.RecordPath(3))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestArtifactStore_WriteImage(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(root, ".txt", false)
	require.NoError(t, store.Prepare())

	require.NoError(t, store.WriteImage(BoxDir, 12, []byte("png")))
	data, err := os.ReadFile(filepath.Join(root, BoxDir, "frame_000012.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	// raw frames are skipped when disabled
	require.NoError(t, store.WriteImage(RawDir, 12, []byte("png")))
	_, err = os.Stat(filepath.Join(root, RawDir, "frame_000012.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestArtifactStore_WriteWithoutPrepareFails(t *testing.T) {
	store := NewArtifactStore(filepath.Join(t.TempDir(), "out"), ".txt", false)
	assert.Error(t, store.WriteRecords(0, nil))
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_000000", FrameName(0))
	assert.Equal(t, "frame_123456", FrameName(123456))
	assert.Equal(t, "frame_1234567", FrameName(1234567))
}
