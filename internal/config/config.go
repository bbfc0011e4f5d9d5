// Package config holds the immutable run configuration for fusionbatch.
//
// A Config is assembled once at startup from defaults, an optional TOML
// file, and CLI flag overrides, then resolved and validated before any
// target image is touched. Nothing mutates it afterwards.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrPrecondition marks fatal pre-run failures: a missing source image,
// target directory, FaceFusion installation, or interpreter. The batch
// never starts when validation returns an error wrapping this.
var ErrPrecondition = errors.New("precondition failed")

// Paths contains the input, output, and artifact locations.
type Paths struct {
	// Source is the face image to apply. It may point at a single file or
	// at a directory holding exactly one candidate image.
	Source string `toml:"source"`
	// Targets is the directory scanned for images to process.
	Targets string `toml:"targets"`
	// Output is the directory swapped images are written to. Created if
	// missing.
	Output string `toml:"output"`
	// ResultsFile is where the JSON run summary is written, relative to
	// the working directory unless absolute.
	ResultsFile string `toml:"results_file"`
}

// Tool locates the FaceFusion installation and its interpreter.
type Tool struct {
	// FaceFusionPath is the directory containing facefusion.py. Empty
	// means auto-detect across the usual install locations.
	FaceFusionPath string `toml:"facefusion_path"`
	// Python is the interpreter used to run facefusion.py. Empty means
	// prefer the installation's venv, then python3 on PATH. FaceFusion is
	// always invoked through this interpreter directly, never through a
	// login shell.
	Python string `toml:"python"`
	// TimeoutSeconds bounds a single invocation. Zero disables the limit.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Swap carries the FaceFusion flags forwarded on every invocation.
type Swap struct {
	Processors            []string `toml:"processors"`
	FaceSwapperModel      string   `toml:"face_swapper_model"`
	FaceEnhancerModel     string   `toml:"face_enhancer_model"`
	FrameEnhancerModel    string   `toml:"frame_enhancer_model"`
	ExecutionProviders    []string `toml:"execution_providers"`
	ExecutionThreadCount  int      `toml:"execution_thread_count"`
	FaceMaskTypes         []string `toml:"face_mask_types"`
	FaceDetectorAngles    []int    `toml:"face_detector_angles"`
	ReferenceFacePosition int      `toml:"reference_face_position"`
	SkipDownload          bool     `toml:"skip_download"`
}

// Batch controls loop behavior.
type Batch struct {
	// PauseMS is the pause between invocations in milliseconds.
	PauseMS int `toml:"pause_ms"`
	// SkipExisting records a skip instead of re-running targets whose
	// output file already exists.
	SkipExisting bool `toml:"skip_existing"`
	// DryRun prints each constructed command without executing it.
	DryRun bool `toml:"dry_run"`
	// Verbose streams subprocess output to the console instead of
	// keeping only a truncated excerpt on failure.
	Verbose bool `toml:"verbose"`
}

// Config is the complete run configuration.
type Config struct {
	Paths Paths `toml:"paths"`
	Tool  Tool  `toml:"tool"`
	Swap  Swap  `toml:"swap"`
	Batch Batch `toml:"batch"`
}

// ExecutionProviders FaceFusion accepts.
var ExecutionProviders = []string{"cpu", "cuda", "directml", "openvino", "rocm"}

// FaceSwapperModels FaceFusion ships with.
var FaceSwapperModels = []string{
	"inswapper_128",
	"inswapper_128_fp16",
	"simswap_256",
	"simswap_512_unofficial",
}

// Default returns the configuration used when no file or flags override it.
func Default() Config {
	return Config{
		Paths: Paths{
			Source:      "./source",
			Targets:     "./targets",
			Output:      "./output",
			ResultsFile: "facefusion_results.json",
		},
		Tool: Tool{},
		Swap: Swap{
			Processors:            []string{"face_swapper", "face_enhancer", "frame_enhancer"},
			FaceSwapperModel:      "inswapper_128",
			FaceEnhancerModel:     "gfpgan_1.4",
			FrameEnhancerModel:    "real_esrgan_x4",
			ExecutionProviders:    []string{"cpu"},
			ExecutionThreadCount:  4,
			FaceMaskTypes:         []string{"box", "occlusion"},
			FaceDetectorAngles:    []int{0},
			ReferenceFacePosition: 0,
			SkipDownload:          true,
		},
		Batch: Batch{
			PauseMS: 500,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error when path is empty; an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// Write persists cfg as TOML to path. Used by `fusionbatch init`.
func Write(cfg Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
