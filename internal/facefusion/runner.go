package facefusion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"fusionbatch/internal/config"
	"fusionbatch/internal/discovery"
	"fusionbatch/internal/imageinfo"
)

// ErrorExcerptLen bounds the error text recorded per failed invocation. The
// full stream is only echoed to the console in verbose mode.
const ErrorExcerptLen = 200

// Result is the outcome of one invocation.
type Result struct {
	Target  string  `json:"target"`
	Output  string  `json:"output"`
	Success bool    `json:"success"`
	Skipped bool    `json:"skipped,omitempty"`
	Error   string  `json:"error,omitempty"`
	Seconds float64 `json:"seconds"`
}

// CommandRunner executes one external command and returns its captured
// streams. Tests inject a fake; the default runs the real interpreter.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)

// Runner executes FaceFusion once per target image.
type Runner struct {
	cfg    config.Config
	run    CommandRunner
	stdout io.Writer
	stderr io.Writer
}

// NewRunner creates a runner for cfg. The configuration must already be
// resolved and validated.
func NewRunner(cfg config.Config) *Runner {
	r := &Runner{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
	r.run = r.execute
	return r
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(run CommandRunner) *Runner {
	r.run = run
	return r
}

// Process runs FaceFusion for one target and always resolves to a Result;
// per-image errors are recorded, never raised.
func (r *Runner) Process(ctx context.Context, t discovery.Target) Result {
	start := time.Now()
	res := Result{Target: t.Base}

	dims, err := imageinfo.Probe(t.Path)
	if err != nil {
		res.Error = Excerpt(err.Error())
		res.Seconds = time.Since(start).Seconds()
		return res
	}

	args, output := BuildArgs(r.cfg, t, dims)
	res.Output = OutputName(r.cfg.Paths.Source, t)

	if r.cfg.Batch.SkipExisting {
		if _, err := os.Stat(output); err == nil {
			res.Success = true
			res.Skipped = true
			return res
		}
	}

	if r.cfg.Tool.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Tool.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	_, stderr, err := r.run(ctx, r.cfg.Tool.FaceFusionPath, r.cfg.Tool.Python, args...)
	res.Seconds = time.Since(start).Seconds()

	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Sprintf("timed out after %ds", r.cfg.Tool.TimeoutSeconds)
	case err != nil:
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		res.Error = Excerpt(msg)
	default:
		// FaceFusion occasionally exits 0 without producing a file.
		if _, statErr := os.Stat(output); statErr != nil {
			res.Error = fmt.Sprintf("process completed but output not created: %s", res.Output)
		} else {
			res.Success = true
		}
	}
	return res
}

// execute is the default command runner: direct interpreter invocation with
// the installation directory as working directory. Both streams are consumed
// on every path; verbose mode additionally mirrors them to the console.
func (r *Runner) execute(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if r.cfg.Batch.Verbose {
		cmd.Stdout = io.MultiWriter(r.stdout, &outBuf)
		cmd.Stderr = io.MultiWriter(r.stderr, &errBuf)
	}
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Excerpt truncates error text to ErrorExcerptLen characters.
func Excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= ErrorExcerptLen {
		return s
	}
	return s[:ErrorExcerptLen]
}
