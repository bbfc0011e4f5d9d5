// Package mocks provides fakes for the process-execution seam used across
// tests.
package mocks

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// CommandCall records one invocation seen by the fake runner.
type CommandCall struct {
	Dir   string
	Name  string
	Args  []string
	Start time.Time
	End   time.Time
}

// FakeCommandRunner stands in for the external tool. It records every call
// with start/end timestamps, fails for configured targets, and by default
// creates the output file the way the real tool would.
type FakeCommandRunner struct {
	Calls []CommandCall
	// FailFor maps a target basename to the stderr text returned for it.
	FailFor map[string]string
	// SkipOutput suppresses output-file creation on success.
	SkipOutput bool
	// Delay stretches each call, for overlap detection.
	Delay time.Duration
}

// NewFakeCommandRunner returns a fake that succeeds for every target.
func NewFakeCommandRunner() *FakeCommandRunner {
	return &FakeCommandRunner{FailFor: make(map[string]string)}
}

// Run implements facefusion.CommandRunner.
func (f *FakeCommandRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	call := CommandCall{Dir: dir, Name: name, Args: args, Start: time.Now()}
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	defer func() {
		call.End = time.Now()
		f.Calls = append(f.Calls, call)
	}()

	target := ArgValue(args, "--target")
	for base, stderr := range f.FailFor {
		if strings.HasSuffix(target, base) {
			return nil, []byte(stderr), errors.New("exit status 1")
		}
	}

	if !f.SkipOutput {
		if output := ArgValue(args, "--output"); output != "" {
			if err := os.WriteFile(output, []byte("fake output"), 0o644); err != nil {
				return nil, []byte(err.Error()), err
			}
		}
	}
	return []byte("ok"), nil, nil
}

// ArgValue returns the value following flag in args, or "".
func ArgValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Overlapping reports whether any two recorded calls overlap in time.
func Overlapping(calls []CommandCall) bool {
	for i := range calls {
		for j := i + 1; j < len(calls); j++ {
			if calls[i].Start.Before(calls[j].End) && calls[j].Start.Before(calls[i].End) {
				return true
			}
		}
	}
	return false
}
