package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"fusionbatch/internal/config"
	"fusionbatch/internal/ui"
)

var initSample bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file (interactive, or --sample for the annotated template)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initSample, "sample", false, "write the annotated sample config without prompting")
}

func runInit(_ *cobra.Command, args []string) error {
	path := "fusionbatch.toml"
	if len(args) == 1 {
		path = args[0]
	}

	if initSample {
		if err := config.WriteSample(path); err != nil {
			return err
		}
		fmt.Println(ui.SuccessStyle.Render("✅ wrote " + path))
		return nil
	}

	cfg := config.Default()

	providerPrompt := promptui.Select{
		Label: "Execution provider",
		Items: config.ExecutionProviders,
	}
	_, provider, err := providerPrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Swap.ExecutionProviders = []string{provider}

	modelPrompt := promptui.Select{
		Label: "Face swapper model",
		Items: config.FaceSwapperModels,
	}
	_, model, err := modelPrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Swap.FaceSwapperModel = model

	pathPrompt := promptui.Prompt{
		Label:   "FaceFusion installation path (empty = auto-detect)",
		Default: cfg.Tool.FaceFusionPath,
	}
	installPath, err := pathPrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt cancelled: %w", err)
	}
	cfg.Tool.FaceFusionPath = installPath

	if err := config.Write(cfg, path); err != nil {
		return err
	}
	fmt.Println(ui.SuccessStyle.Render("✅ wrote " + path))
	return nil
}
