package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framecheck/internal/models"
	"framecheck/internal/services/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeLabels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"frame_000000.txt": "0 0,0,100,100\n12 1,1,2,2\n12 3,3,4,4\n6 5,5,6,6\n",
		"frame_000001.txt": "12 1,1,2,2\n6 5,5,6,6\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestVerifyCommand(t *testing.T) {
	labels := writeLabels(t)
	tmp := t.TempDir()

	out, err := run(t, "verify", labels,
		"--expect", "K=2,E=1",
		"--db", filepath.Join(tmp, "runs.db"),
		"--log-dir", filepath.Join(tmp, "logs"))
	require.NoError(t, err)

	assert.Equal(t, "Files with detection problems:\n"+
		"frame_000001.txt: Missing -> K (required: 2, found: 1)\n"+
		"\nStatistics:\nCorrect: 1\nIncorrect: 1\nTotal: 2\n", out)

	history, err := run(t, "history",
		"--db", filepath.Join(tmp, "runs.db"),
		"--log-dir", filepath.Join(tmp, "logs"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(history), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], labels)
}

func TestVerifyCommand_FailOnIncorrect(t *testing.T) {
	labels := writeLabels(t)
	tmp := t.TempDir()

	_, err := run(t, "verify", labels, "--expect", "K=2", "--save=false", "--fail-on-incorrect",
		"--log-dir", filepath.Join(tmp, "logs"))
	assert.EqualError(t, err, "1 of 2 file(s) incorrect")
}

func TestVerifyCommand_ExpectedFile(t *testing.T) {
	labels := writeLabels(t)
	tmp := t.TempDir()
	expected := filepath.Join(tmp, "expected.yaml")
	require.NoError(t, os.WriteFile(expected, []byte("K: 1\nE: 1\n"), 0644))

	out, err := run(t, "verify", labels, "-e", expected, "--save=false", "--format", "json",
		"--log-dir", filepath.Join(tmp, "logs"))
	require.NoError(t, err)
	assert.Contains(t, out, `"correct": 1`)
	assert.Contains(t, out, `"incorrect": 1`)
}

func TestVerifyCommand_Errors(t *testing.T) {
	labels := writeLabels(t)
	logs := filepath.Join(t.TempDir(), "logs")

	_, err := run(t, "verify", labels, "--save=false", "--log-dir", logs)
	assert.Error(t, err, "no expected counts")

	_, err = run(t, "verify", labels, "--expect", "plate=1", "--save=false", "--log-dir", logs)
	assert.ErrorContains(t, err, "unknown class")

	_, err = run(t, "verify", labels, "--expect", "K=1", "-e", "x.yaml", "--save=false", "--log-dir", logs)
	assert.Error(t, err)
}

func TestHistoryCommand_Empty(t *testing.T) {
	tmp := t.TempDir()
	out, err := run(t, "history", "--db", filepath.Join(tmp, "runs.db"), "--log-dir", filepath.Join(tmp, "logs"))
	require.NoError(t, err)
	assert.Equal(t, "No verification runs stored\n", out)
}

func TestHistoryCommand_Delete(t *testing.T) {
	labels := writeLabels(t)
	tmp := t.TempDir()
	db := filepath.Join(tmp, "runs.db")
	logs := filepath.Join(tmp, "logs")

	_, err := run(t, "verify", labels, "--expect", "K=1", "--db", db, "--log-dir", logs)
	require.NoError(t, err)

	out, err := run(t, "history", "--format", "json", "--db", db, "--log-dir", logs)
	require.NoError(t, err)
	var runs []models.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)

	_, err = run(t, "history", "--delete", "--db", db, "--log-dir", logs)
	assert.Error(t, err)

	out, err = run(t, "history", runs[0].ID, "--delete", "--db", db, "--log-dir", logs)
	require.NoError(t, err)
	assert.Equal(t, "Deleted run "+runs[0].ID+"\n", out)

	out, err = run(t, "history", "--db", db, "--log-dir", logs)
	require.NoError(t, err)
	assert.Equal(t, "No verification runs stored\n", out)
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	cmd := processCommand()
	cmd.SetOut(&out)

	printStats(cmd, pipeline.Stats{
		Frames:     5,
		Detections: 21,
		Failed:     1,
		Plates:     map[string]int{"K2E": 3, "KZE": 1, "AB1": 1},
	}, "results")

	assert.Equal(t, "Frames: 5\nDetections: 21\nFailed frames: 1\n"+
		"Plates:\n  K2E (3 frame(s))\n  AB1 (1 frame(s))\n  KZE (1 frame(s))\n"+
		"Records: "+filepath.Join("results", "labels")+"\n", out.String())
}
