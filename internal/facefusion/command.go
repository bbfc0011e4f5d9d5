// Package facefusion builds and runs FaceFusion invocations.
package facefusion

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"fusionbatch/internal/config"
	"fusionbatch/internal/discovery"
	"fusionbatch/internal/imageinfo"
)

const (
	ProcessorFaceSwapper   = "face_swapper"
	ProcessorFaceEnhancer  = "face_enhancer"
	ProcessorFrameEnhancer = "frame_enhancer"
)

// Frame enhancement is known to fail or underperform above 4K UHD, so the
// processor is dropped for oversized targets.
const (
	MaxFrameEnhancerWidth  = 3840
	MaxFrameEnhancerHeight = 2160
)

// OutputName derives the deterministic output file name for one target:
// {source stem}_to_{target stem}{target ext}. The prefix guarantees the name
// never collides with the target's own basename.
func OutputName(sourcePath string, t discovery.Target) string {
	srcBase := filepath.Base(sourcePath)
	srcStem := strings.TrimSuffix(srcBase, filepath.Ext(srcBase))
	return fmt.Sprintf("%s_to_%s%s", srcStem, t.Stem, t.Ext)
}

// SelectProcessors returns the configured processor list with frame_enhancer
// removed when the target exceeds the enhancement size limit.
func SelectProcessors(configured []string, dims imageinfo.Dimensions) []string {
	oversized := dims.Width > MaxFrameEnhancerWidth || dims.Height > MaxFrameEnhancerHeight
	if !oversized {
		return configured
	}
	selected := make([]string, 0, len(configured))
	for _, p := range configured {
		if p == ProcessorFrameEnhancer {
			continue
		}
		selected = append(selected, p)
	}
	return selected
}

// BuildArgs constructs the full interpreter argument vector for one target
// and the resolved output path. Pure function of (cfg, target, dims).
func BuildArgs(cfg config.Config, t discovery.Target, dims imageinfo.Dimensions) (args []string, output string) {
	output = filepath.Join(cfg.Paths.Output, OutputName(cfg.Paths.Source, t))
	processors := SelectProcessors(cfg.Swap.Processors, dims)

	args = []string{
		filepath.Join(cfg.Tool.FaceFusionPath, config.ScriptName),
		"headless-run",
		"--source", cfg.Paths.Source,
		"--target", t.Path,
		"--output", output,
	}
	args = append(args, "--processors")
	args = append(args, processors...)

	// Model flags only for processors that remain selected.
	for _, p := range processors {
		switch p {
		case ProcessorFaceSwapper:
			args = append(args, "--face-swapper-model", cfg.Swap.FaceSwapperModel)
		case ProcessorFaceEnhancer:
			args = append(args, "--face-enhancer-model", cfg.Swap.FaceEnhancerModel)
		case ProcessorFrameEnhancer:
			args = append(args, "--frame-enhancer-model", cfg.Swap.FrameEnhancerModel)
		}
	}

	args = append(args, "--execution-providers")
	args = append(args, cfg.Swap.ExecutionProviders...)
	args = append(args, "--execution-thread-count", strconv.Itoa(cfg.Swap.ExecutionThreadCount))

	if len(cfg.Swap.FaceMaskTypes) > 0 {
		args = append(args, "--face-mask-types")
		args = append(args, cfg.Swap.FaceMaskTypes...)
	}
	if len(cfg.Swap.FaceDetectorAngles) > 0 {
		args = append(args, "--face-detector-angles")
		for _, angle := range cfg.Swap.FaceDetectorAngles {
			args = append(args, strconv.Itoa(angle))
		}
	}
	args = append(args, "--reference-face-position", strconv.Itoa(cfg.Swap.ReferenceFacePosition))

	if cfg.Swap.SkipDownload {
		args = append(args, "--skip-download")
	}
	for _, provider := range cfg.Swap.ExecutionProviders {
		if provider == "cuda" {
			args = append(args, "--execution-device-id", "0")
			break
		}
	}
	return args, output
}
