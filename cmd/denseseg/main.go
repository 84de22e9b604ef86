package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sugarme/denseseg/config"
)

// flag variables
var (
	configFile string
	verbose    bool
	overrides  config.Config
	cuda       bool
)

func main() {
	root := &cobra.Command{
		Use:           "denseseg",
		Short:         "Inspect and run PixelNet, UNet and SegNet segmentation models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "specify YAML config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "specify whether to log debug messages")
	flags.StringVar(&overrides.Model, "model", "", "specify model name (see `denseseg models`)")
	flags.Int64Var(&overrides.Classes, "classes", 0, "specify number of classes")
	flags.StringVar(&overrides.Weights, "weights", "", "specify full path to model weight '.ot' file")
	flags.StringVar(&overrides.Load, "load", "", "specify weight load mode: pretrained, checkpoint or none")
	flags.BoolVar(&cuda, "cuda", false, "specify whether using CUDA or not")

	root.AddCommand(newModelsCmd(), newCheckCmd(), newVarsCmd(), newPredictCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the config file (or defaults) and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	if overrides.Model != "" {
		cfg.Model = overrides.Model
	}
	if overrides.Classes > 0 {
		cfg.Classes = overrides.Classes
		if int64(len(cfg.Names)) != cfg.Classes {
			cfg.Names = nil
		}
	}
	if overrides.Weights != "" {
		cfg.Weights = overrides.Weights
	}
	if overrides.Load != "" {
		cfg.Load = overrides.Load
	}
	if cuda {
		cfg.Device = "cuda"
	}

	return cfg, cfg.Validate()
}
