// Package cmd wires the CLI surface.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fusionbatch/internal/batch"
	"fusionbatch/internal/config"
	"fusionbatch/internal/discovery"
	"fusionbatch/internal/facefusion"
	"fusionbatch/internal/ui"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// errBatchFailed signals that at least one image failed; the summary
	// has already been printed.
	errBatchFailed = errors.New("batch finished with failures")
	// errInterrupted signals cancellation between invocations.
	errInterrupted = errors.New("batch interrupted")
)

type options struct {
	configPath     string
	source         string
	targets        string
	output         string
	facefusionPath string
	python         string
	provider       string
	model          string
	timeout        int
	verbose        bool
	dryRun         bool
	skipExisting   bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:     "fusionbatch",
	Short:   "Batch face swapping with FaceFusion",
	Version: Version,
	Long: `fusionbatch applies one source face to every image in a target
directory by invoking FaceFusion once per image, strictly sequentially,
and writes a JSON results summary at the end.

FaceFusion is invoked through its python interpreter directly; no shell
profile is involved. Exit code is 0 only when every image succeeded.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBatch,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&opts.source, "source", "", "source face image, or directory holding one")
	flags.StringVar(&opts.targets, "targets", "", "directory of target images")
	flags.StringVar(&opts.output, "output", "", "output directory")
	flags.StringVar(&opts.facefusionPath, "facefusion-path", "", "FaceFusion installation directory (auto-detect when empty)")
	flags.StringVar(&opts.python, "python", "", "python interpreter used to run FaceFusion")
	flags.StringVar(&opts.provider, "provider", "", "execution provider: cpu, cuda, directml, openvino, rocm")
	flags.StringVar(&opts.model, "model", "", "face swapper model")
	flags.IntVar(&opts.timeout, "timeout", 0, "per-invocation limit in seconds (0 = none)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "stream FaceFusion output to the console")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print each command without executing")
	flags.BoolVar(&opts.skipExisting, "skip-existing", false, "skip targets whose output already exists")

	rootCmd.AddCommand(initCmd)
}

// Execute runs the CLI and maps outcomes to process exit codes.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, errInterrupted):
			fmt.Fprintln(os.Stderr, ui.WarnStyle.Render("⚠  batch interrupted"))
			return 130
		case errors.Is(err, errBatchFailed):
			return 1
		default:
			fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("❌ "+err.Error()))
			return 1
		}
	}
	return 0
}

// buildConfig layers CLI flags over the loaded configuration.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.source != "" {
		cfg.Paths.Source = opts.source
	}
	if opts.targets != "" {
		cfg.Paths.Targets = opts.targets
	}
	if opts.output != "" {
		cfg.Paths.Output = opts.output
	}
	if opts.facefusionPath != "" {
		cfg.Tool.FaceFusionPath = opts.facefusionPath
	}
	if opts.python != "" {
		cfg.Tool.Python = opts.python
	}
	if opts.provider != "" {
		cfg.Swap.ExecutionProviders = []string{opts.provider}
	}
	if opts.model != "" {
		cfg.Swap.FaceSwapperModel = opts.model
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Tool.TimeoutSeconds = opts.timeout
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Batch.Verbose = opts.verbose
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Batch.DryRun = opts.dryRun
	}
	if cmd.Flags().Changed("skip-existing") {
		cfg.Batch.SkipExisting = opts.skipExisting
	}
	return cfg, nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	source, ignored, err := discovery.Source(cfg.Paths.Source)
	if err != nil {
		return err
	}
	if len(ignored) > 0 {
		fmt.Fprintf(os.Stderr, "%s using %s; ignoring %d other candidate(s)\n",
			ui.WarnStyle.Render("⚠"), source, len(ignored))
	}
	cfg.Paths.Source = source

	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.Output, 0o755); err != nil {
		return fmt.Errorf("prepare output directory: %w", err)
	}

	targets, err := discovery.Targets(cfg.Paths.Targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no image files found in %s", cfg.Paths.Targets)
	}

	fmt.Println(ui.Header(cfg.Paths.Source, cfg.Paths.Targets, cfg.Paths.Output, len(targets)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := facefusion.NewRunner(cfg)
	summary := batch.New(cfg, runner).Run(ctx, targets)

	if cfg.Batch.DryRun {
		return nil
	}

	fmt.Println(ui.SummaryTable(summary.Successful, summary.Failed, summary.Elapsed, cfg.Paths.ResultsFile))
	if err := batch.WriteResults(cfg.Paths.ResultsFile, summary.Results); err != nil {
		// The run outcome still decides the exit code; the write failure
		// is surfaced on its own.
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("⚠  "+err.Error()))
	}

	if summary.Interrupted {
		return errInterrupted
	}
	if summary.Failed > 0 {
		return errBatchFailed
	}
	return nil
}
