package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendOpenCV  = "opencv"
	BackendONNX    = "onnx"
	BackendProcess = "process"
)

type Config struct {
	Port int

	DetectorBackend  string  // opencv, onnx or process
	ModelPath        string  // ONNX export with NMS baked in
	ModelInputSize   int     // square network input, e.g. 640
	ScoreThreshold   float32 // cut-off applied to the model's own score column
	DetectorCommand  string  // used by the process backend
	OnnxRuntimeLib   string  // path to libonnxruntime, empty = system default
	ClassFile        string  // optional, one label per line; empty = built-in plate catalog
	OutputDirectory  string
	SaveRaw          bool
	Rotate           bool // rotate frames 90° clockwise before detection
	FrameWidth       int
	FrameHeight      int
	ContinueOnDetErr bool

	RecordExtension string
	VerifyWorkers   int
	StrictRecords   bool

	DatabasePath string
	LogDirectory string
	Debug        bool
	APIToken     string // required as a bearer token on mutating endpoints when set
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"port":              "port",
	"backend":           "detector_backend",
	"model":             "model_path",
	"input-size":        "model_input_size",
	"score":             "score_threshold",
	"detector-command":  "detector_command",
	"classes":           "class_file",
	"output":            "output_dir",
	"save-raw":          "save_raw",
	"rotate":            "rotate",
	"width":             "frame_width",
	"height":            "frame_height",
	"continue-on-error": "continue_on_detector_error",
	"ext":               "record_ext",
	"workers":           "verify_workers",
	"strict":            "strict_records",
	"db":                "db_path",
	"log-dir":           "log_dir",
	"debug":             "debug",
	"api-token":         "api_token",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("detector_backend", BackendOpenCV)
	v.SetDefault("model_path", filepath.Join(".", "models", "best.onnx"))
	v.SetDefault("model_input_size", 640)
	v.SetDefault("score_threshold", 0.25)
	v.SetDefault("detector_command", "")
	v.SetDefault("onnxruntime_lib", "")
	v.SetDefault("class_file", "")
	v.SetDefault("output_dir", filepath.Join(".", "results"))
	v.SetDefault("save_raw", false)
	v.SetDefault("rotate", true)
	v.SetDefault("frame_width", 720)
	v.SetDefault("frame_height", 1080)
	v.SetDefault("continue_on_detector_error", false)
	v.SetDefault("record_ext", ".txt")
	v.SetDefault("verify_workers", 4)
	v.SetDefault("strict_records", false)
	v.SetDefault("db_path", filepath.Join(".", "data", "framecheck.db"))
	v.SetDefault("log_dir", filepath.Join(".", "logs"))
	v.SetDefault("debug", false)
	v.SetDefault("api_token", "")
}

// Load builds the configuration from defaults, an optional .env file, the
// environment, an optional framecheck.yaml and finally any flags the user set.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetConfigName("framecheck")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Port:             v.GetInt("port"),
		DetectorBackend:  strings.ToLower(v.GetString("detector_backend")),
		ModelPath:        v.GetString("model_path"),
		ModelInputSize:   v.GetInt("model_input_size"),
		ScoreThreshold:   float32(v.GetFloat64("score_threshold")),
		DetectorCommand:  v.GetString("detector_command"),
		OnnxRuntimeLib:   v.GetString("onnxruntime_lib"),
		ClassFile:        v.GetString("class_file"),
		OutputDirectory:  v.GetString("output_dir"),
		SaveRaw:          v.GetBool("save_raw"),
		Rotate:           v.GetBool("rotate"),
		FrameWidth:       v.GetInt("frame_width"),
		FrameHeight:      v.GetInt("frame_height"),
		ContinueOnDetErr: v.GetBool("continue_on_detector_error"),
		RecordExtension:  v.GetString("record_ext"),
		VerifyWorkers:    v.GetInt("verify_workers"),
		StrictRecords:    v.GetBool("strict_records"),
		DatabasePath:     v.GetString("db_path"),
		LogDirectory:     v.GetString("log_dir"),
		Debug:            v.GetBool("debug"),
		APIToken:         v.GetString("api_token"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work at all.
func (c *Config) Validate() error {
	switch c.DetectorBackend {
	case BackendOpenCV, BackendONNX, BackendProcess:
	default:
		return fmt.Errorf("unknown detector backend %q", c.DetectorBackend)
	}
	if c.VerifyWorkers < 1 {
		return fmt.Errorf("verify workers must be at least 1, got %d", c.VerifyWorkers)
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("model input size must be positive, got %d", c.ModelInputSize)
	}
	if c.FrameWidth < 0 || c.FrameHeight < 0 {
		return fmt.Errorf("frame size must not be negative, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if !strings.HasPrefix(c.RecordExtension, ".") {
		c.RecordExtension = "." + c.RecordExtension
	}
	return nil
}
