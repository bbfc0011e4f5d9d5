package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
)

// ScriptName is the FaceFusion entry point expected inside FaceFusionPath.
const ScriptName = "facefusion.py"

// defaultInstallDirs are probed when no facefusion_path is configured.
func defaultInstallDirs() []string {
	dirs := []string{"./facefusion", "/opt/facefusion"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append([]string{filepath.Join(home, "facefusion")}, dirs...)
		dirs = append(dirs, filepath.Join(home, "projects", "facefusion"))
	}
	return dirs
}

// Resolve fills in the auto-detected tool paths and validates every
// precondition the batch depends on. All returned errors wrap
// ErrPrecondition.
func (c *Config) Resolve() error {
	if err := c.resolveTool(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) resolveTool() error {
	if c.Tool.FaceFusionPath == "" {
		found := ""
		for _, dir := range defaultInstallDirs() {
			if fileExists(filepath.Join(dir, ScriptName)) {
				found = dir
				break
			}
		}
		if found == "" {
			return fmt.Errorf("%w: no FaceFusion installation found; set tool.facefusion_path or --facefusion-path", ErrPrecondition)
		}
		c.Tool.FaceFusionPath = found
	}

	if c.Tool.Python == "" {
		venv := filepath.Join(c.Tool.FaceFusionPath, "venv", "bin", "python")
		if fileExists(venv) {
			c.Tool.Python = venv
			return nil
		}
		path, err := exec.LookPath("python3")
		if err != nil {
			return fmt.Errorf("%w: no python interpreter: %s has no venv and python3 is not on PATH", ErrPrecondition, c.Tool.FaceFusionPath)
		}
		c.Tool.Python = path
	}
	return nil
}

// Validate checks the configuration without touching the tool auto-detect.
// All returned errors wrap ErrPrecondition.
func (c Config) Validate() error {
	if _, err := os.Stat(c.Paths.Source); err != nil {
		return fmt.Errorf("%w: source image not found: %s", ErrPrecondition, c.Paths.Source)
	}
	info, err := os.Stat(c.Paths.Targets)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: target directory not found: %s", ErrPrecondition, c.Paths.Targets)
	}
	if !fileExists(filepath.Join(c.Tool.FaceFusionPath, ScriptName)) {
		return fmt.Errorf("%w: %s not found in %s", ErrPrecondition, ScriptName, c.Tool.FaceFusionPath)
	}
	if c.Tool.Python == "" {
		return fmt.Errorf("%w: no python interpreter configured", ErrPrecondition)
	}
	if filepath.Base(c.Tool.Python) != c.Tool.Python && !fileExists(c.Tool.Python) {
		return fmt.Errorf("%w: python interpreter not found: %s", ErrPrecondition, c.Tool.Python)
	}
	for _, p := range c.Swap.ExecutionProviders {
		if !slices.Contains(ExecutionProviders, p) {
			return fmt.Errorf("%w: unknown execution provider %q", ErrPrecondition, p)
		}
	}
	if len(c.Swap.Processors) == 0 {
		return fmt.Errorf("%w: at least one processor is required", ErrPrecondition)
	}
	if c.Swap.ExecutionThreadCount < 1 {
		return fmt.Errorf("%w: execution_thread_count must be at least 1", ErrPrecondition)
	}
	if c.Tool.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds cannot be negative", ErrPrecondition)
	}
	if c.Batch.PauseMS < 0 {
		return fmt.Errorf("%w: pause_ms cannot be negative", ErrPrecondition)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
