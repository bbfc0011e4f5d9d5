package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"fusionbatch/internal/config"
	"fusionbatch/internal/discovery"
	"fusionbatch/internal/facefusion"
	"fusionbatch/internal/mocks"
)

func writeImage(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if filepath.Ext(path) == ".png" {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 10})
	}
	if err != nil {
		t.Fatal(err)
	}
}

// fixture builds a resolved configuration, target images, fake runner, and
// an orchestrator writing into a buffer with pauses disabled.
type fixture struct {
	cfg     config.Config
	fake    *mocks.FakeCommandRunner
	out     bytes.Buffer
	orch    *Orchestrator
	targets []discovery.Target
	pauses  []time.Duration
}

func newFixture(t *testing.T, targetNames ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(dir, "face.jpg")
	cfg.Paths.Targets = filepath.Join(dir, "targets")
	cfg.Paths.Output = filepath.Join(dir, "output")
	cfg.Paths.ResultsFile = filepath.Join(dir, "results.json")
	cfg.Tool.FaceFusionPath = dir
	cfg.Tool.Python = "python3"
	cfg.Batch.PauseMS = 0

	writeImage(t, cfg.Paths.Source, 32, 32)
	for _, d := range []string{cfg.Paths.Targets, cfg.Paths.Output} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range targetNames {
		writeImage(t, filepath.Join(cfg.Paths.Targets, name), 32, 32)
	}

	targets, err := discovery.Targets(cfg.Paths.Targets)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{cfg: cfg, fake: mocks.NewFakeCommandRunner(), targets: targets}
	runner := facefusion.NewRunner(cfg).WithCommandRunner(f.fake.Run)
	f.orch = New(cfg, runner).WithOutput(&f.out).
		WithPause(func(_ context.Context, d time.Duration) { f.pauses = append(f.pauses, d) })
	return f
}

func TestRunFailSubsetKeepsOrderAndCounts(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg")
	f.fake.FailFor["b.jpg"] = "detector error"
	f.fake.FailFor["d.jpg"] = "swap error"

	summary := f.orch.Run(context.Background(), f.targets)

	if summary.Successful != 2 || summary.Failed != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", summary.Successful, summary.Failed)
	}
	wantOrder := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	for i, want := range wantOrder {
		if summary.Results[i].Target != want {
			t.Errorf("results[%d].Target = %q, want %q (discovery order)", i, summary.Results[i].Target, want)
		}
	}
	for _, r := range summary.Results {
		wantFail := r.Target == "b.jpg" || r.Target == "d.jpg"
		if r.Success == wantFail {
			t.Errorf("%s: Success = %v", r.Target, r.Success)
		}
	}
	if len(f.fake.Calls) != 4 {
		t.Errorf("invocations = %d, want 4", len(f.fake.Calls))
	}
}

func TestRunAllSucceed(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg")

	summary := f.orch.Run(context.Background(), f.targets)

	if summary.Failed != 0 || summary.Successful != 2 {
		t.Fatalf("counts = %d/%d, want 2/0", summary.Successful, summary.Failed)
	}
	if summary.Elapsed <= 0 {
		t.Error("elapsed time not measured")
	}
}

func TestRunInvocationsNeverOverlap(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg", "c.jpg")
	f.fake.Delay = 15 * time.Millisecond

	f.orch.Run(context.Background(), f.targets)

	if len(f.fake.Calls) != 3 {
		t.Fatalf("invocations = %d, want 3", len(f.fake.Calls))
	}
	if mocks.Overlapping(f.fake.Calls) {
		t.Error("invocations overlap in time; the batch must be strictly sequential")
	}
}

// An HD jpg keeps the full processor list, an oversized png loses
// frame_enhancer, and both succeed.
func TestRunMixedDimensionScenario(t *testing.T) {
	f := newFixture(t)
	writeImage(t, filepath.Join(f.cfg.Paths.Targets, "a.jpg"), 1920, 1080)
	writeImage(t, filepath.Join(f.cfg.Paths.Targets, "b.png"), 4000, 3000)
	targets, err := discovery.Targets(f.cfg.Paths.Targets)
	if err != nil {
		t.Fatal(err)
	}

	summary := f.orch.Run(context.Background(), targets)

	if summary.Successful != 2 || summary.Failed != 0 {
		t.Fatalf("counts = %d/%d, want 2/0", summary.Successful, summary.Failed)
	}
	if len(f.fake.Calls) != 2 {
		t.Fatalf("invocations = %d, want 2", len(f.fake.Calls))
	}
	if !slices.Contains(f.fake.Calls[0].Args, "frame_enhancer") {
		t.Error("1920x1080 target should keep frame_enhancer")
	}
	if slices.Contains(f.fake.Calls[1].Args, "frame_enhancer") {
		t.Error("4000x3000 target should drop frame_enhancer")
	}
}

func TestRunCancelledContextStopsBeforeNextInvocation(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := f.orch.Run(ctx, f.targets)

	if !summary.Interrupted {
		t.Error("summary should mark the run interrupted")
	}
	if len(f.fake.Calls) != 0 {
		t.Errorf("invocations = %d after cancellation, want 0", len(f.fake.Calls))
	}
}

func TestRunPausesBetweenInvocationsOnly(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg", "c.jpg")
	f.cfg.Batch.PauseMS = 250
	runner := facefusion.NewRunner(f.cfg).WithCommandRunner(f.fake.Run)
	f.orch = New(f.cfg, runner).WithOutput(&f.out).
		WithPause(func(_ context.Context, d time.Duration) { f.pauses = append(f.pauses, d) })

	f.orch.Run(context.Background(), f.targets)

	if len(f.pauses) != 2 {
		t.Fatalf("pauses = %d, want 2 (no pause after the last image)", len(f.pauses))
	}
	for _, d := range f.pauses {
		if d != 250*time.Millisecond {
			t.Errorf("pause = %v, want 250ms", d)
		}
	}
}

func TestRunProgressLines(t *testing.T) {
	f := newFixture(t, "a.jpg", "b.jpg")
	f.fake.FailFor["b.jpg"] = "no face detected in frame"

	f.orch.Run(context.Background(), f.targets)

	out := f.out.String()
	if !strings.Contains(out, "[1/2]") || !strings.Contains(out, "[2/2]") {
		t.Errorf("missing per-image progress lines:\n%s", out)
	}
	if !strings.Contains(out, "no face detected") {
		t.Errorf("failure line should carry the error excerpt:\n%s", out)
	}
}

func TestDryRunPrintsCommandsWithoutExecuting(t *testing.T) {
	f := newFixture(t, "a.jpg")
	f.cfg.Batch.DryRun = true
	runner := facefusion.NewRunner(f.cfg).WithCommandRunner(f.fake.Run)
	f.orch = New(f.cfg, runner).WithOutput(&f.out)

	summary := f.orch.Run(context.Background(), f.targets)

	if len(f.fake.Calls) != 0 {
		t.Errorf("dry run invoked the tool %d times", len(f.fake.Calls))
	}
	if len(summary.Results) != 0 {
		t.Errorf("dry run recorded %d results", len(summary.Results))
	}
	out := f.out.String()
	if !strings.Contains(out, "headless-run") || !strings.Contains(out, "--target") {
		t.Errorf("dry run output missing the constructed command:\n%s", out)
	}
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	results := []facefusion.Result{
		{Target: "a.jpg", Output: "face_to_a.jpg", Success: true, Seconds: 1.5},
		{Target: "b.jpg", Success: false, Error: "boom"},
	}

	if err := WriteResults(path, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []facefusion.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("results file is not a JSON array: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d records, want 2", len(decoded))
	}
	if decoded[0].Target != "a.jpg" || !decoded[0].Success {
		t.Errorf("first record = %+v", decoded[0])
	}
	if decoded[1].Error != "boom" {
		t.Errorf("second record error = %q", decoded[1].Error)
	}
}

func TestWriteResultsUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "results.json")
	if err := WriteResults(path, nil); err == nil {
		t.Fatal("expected error for unwritable results path")
	}
}
