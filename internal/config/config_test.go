package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
)

// chdirTemp keeps Load from picking up a stray .env or framecheck.yaml.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DetectorBackend != BackendOpenCV {
		t.Errorf("Expected backend %s, got %s", BackendOpenCV, cfg.DetectorBackend)
	}
	if cfg.FrameWidth != 720 || cfg.FrameHeight != 1080 {
		t.Errorf("Expected 720x1080, got %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}
	if !cfg.Rotate {
		t.Error("Expected rotate to default to true")
	}
	if cfg.RecordExtension != ".txt" {
		t.Errorf("Expected .txt, got %s", cfg.RecordExtension)
	}
	if cfg.ContinueOnDetErr {
		t.Error("Expected detector errors to halt by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DETECTOR_BACKEND", "process")
	t.Setenv("VERIFY_WORKERS", "9")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("STRICT_RECORDS", "true")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DetectorBackend != BackendProcess {
		t.Errorf("Expected process backend, got %s", cfg.DetectorBackend)
	}
	if cfg.VerifyWorkers != 9 {
		t.Errorf("Expected 9 workers, got %d", cfg.VerifyWorkers)
	}
	if cfg.OutputDirectory != "/tmp/out" {
		t.Errorf("Expected /tmp/out, got %s", cfg.OutputDirectory)
	}
	if !cfg.StrictRecords {
		t.Error("Expected strict records")
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("VERIFY_WORKERS", "9")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("ext", ".txt", "")
	if err := flags.Parse([]string{"--workers=2", "--ext=lbl"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.VerifyWorkers != 2 {
		t.Errorf("Expected flag value 2, got %d", cfg.VerifyWorkers)
	}
	if cfg.RecordExtension != ".lbl" {
		t.Errorf("Expected normalised extension .lbl, got %s", cfg.RecordExtension)
	}
}

func TestLoad_UnsetFlagsKeepEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("VERIFY_WORKERS", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	if err := flags.Parse(nil); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.VerifyWorkers != 7 {
		t.Errorf("Expected environment value 7, got %d", cfg.VerifyWorkers)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"backend", Config{DetectorBackend: "tflite", VerifyWorkers: 1, ModelInputSize: 640, RecordExtension: ".txt"}},
		{"workers", Config{DetectorBackend: BackendONNX, VerifyWorkers: 0, ModelInputSize: 640, RecordExtension: ".txt"}},
		{"input size", Config{DetectorBackend: BackendONNX, VerifyWorkers: 1, ModelInputSize: 0, RecordExtension: ".txt"}},
		{"frame size", Config{DetectorBackend: BackendONNX, VerifyWorkers: 1, ModelInputSize: 640, FrameWidth: -1, RecordExtension: ".txt"}},
	}

	for _, tt := range tests {
		if err := tt.cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
