// Package batch drives the sequential orchestration loop and the summary
// artifact.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"fusionbatch/internal/config"
	"fusionbatch/internal/discovery"
	"fusionbatch/internal/facefusion"
	"fusionbatch/internal/imageinfo"
	"fusionbatch/internal/ui"
)

// Processor runs the external tool for one target.
type Processor interface {
	Process(ctx context.Context, t discovery.Target) facefusion.Result
}

// Summary aggregates one run.
type Summary struct {
	Results     []facefusion.Result
	Successful  int
	Failed      int
	Elapsed     time.Duration
	Interrupted bool
}

// Orchestrator iterates targets strictly sequentially: one external process
// at a time, a short pause in between. The external tool loads large models
// per invocation, so parallel runs risk GPU memory exhaustion rather than
// speedup.
type Orchestrator struct {
	cfg       config.Config
	processor Processor
	out       io.Writer
	barOut    io.Writer
	pause     func(ctx context.Context, d time.Duration)
}

// New creates an orchestrator over a resolved configuration.
func New(cfg config.Config, processor Processor) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		processor: processor,
		out:       os.Stdout,
		barOut:    os.Stderr,
		pause:     sleepCtx,
	}
}

// WithOutput redirects console output (for testing).
func (o *Orchestrator) WithOutput(w io.Writer) *Orchestrator {
	o.out = w
	o.barOut = io.Discard
	return o
}

// WithPause replaces the inter-image pause (for testing).
func (o *Orchestrator) WithPause(pause func(ctx context.Context, d time.Duration)) *Orchestrator {
	o.pause = pause
	return o
}

// Run processes targets in discovery order. Per-image failures never abort
// the batch; cancellation is honored between iterations.
func (o *Orchestrator) Run(ctx context.Context, targets []discovery.Target) Summary {
	start := time.Now()
	summary := Summary{Results: make([]facefusion.Result, 0, len(targets))}

	if o.cfg.Batch.DryRun {
		o.dryRun(targets)
		summary.Elapsed = time.Since(start)
		return summary
	}

	var bar *progressbar.ProgressBar
	if !o.cfg.Batch.Verbose {
		bar = progressbar.NewOptions(len(targets),
			progressbar.OptionSetDescription("Swapping"),
			progressbar.OptionSetWriter(o.barOut),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
		)
	}

	pauseDuration := time.Duration(o.cfg.Batch.PauseMS) * time.Millisecond
	for i, target := range targets {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		result := o.processor.Process(ctx, target)
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		fmt.Fprintln(o.out, ui.ResultLine(i+1, len(targets), result))
		if bar != nil {
			bar.Add(1)
		}

		if i < len(targets)-1 && pauseDuration > 0 {
			o.pause(ctx, pauseDuration)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	summary.Elapsed = time.Since(start)
	return summary
}

// dryRun prints each constructed command without executing anything.
func (o *Orchestrator) dryRun(targets []discovery.Target) {
	for _, target := range targets {
		dims, err := imageinfo.Probe(target.Path)
		if err != nil {
			fmt.Fprintf(o.out, "%s %s: %v\n", ui.WarnStyle.Render("⚠"), target.Base, err)
			continue
		}
		args, _ := facefusion.BuildArgs(o.cfg, target, dims)
		fmt.Fprintf(o.out, "%s %s\n", o.cfg.Tool.Python, strings.Join(args, " "))
	}
}

// WriteResults persists the ordered result list as a JSON array. Written
// exactly once, at the end of a run; a write failure is surfaced separately
// and must not mask the processing exit code.
func WriteResults(path string, results []facefusion.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", path, err)
	}
	return nil
}

// sleepCtx pauses for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
