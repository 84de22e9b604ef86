package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
	"go.uber.org/zap"

	"github.com/sugarme/denseseg/config"
	"github.com/sugarme/denseseg/encoder"
	"github.com/sugarme/denseseg/models"
	"github.com/sugarme/denseseg/pixelnet"
)

// buildModel creates the configured model and loads its weights.
func buildModel(cfg *config.Config, logger *zap.Logger) (*nn.VarStore, ts.ModuleT, error) {
	vs := nn.NewVarStore(cfg.GetDevice())
	net, err := models.New(cfg.Model, vs.Root(), cfg.Classes)
	if err != nil {
		return nil, nil, err
	}
	if m, ok := net.(*pixelnet.PixelNet); ok {
		m.SetChunkSize(cfg.ChunkSize)
	}

	if err := loadWeights(vs, cfg, logger); err != nil {
		return nil, nil, err
	}

	return vs, net, nil
}

func loadWeights(vs *nn.VarStore, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Load == config.LoadNone {
		logger.Warn("no weights loaded, model is randomly initialised")
		return nil
	}

	modelPath, err := filepath.Abs(cfg.Weights)
	if err != nil {
		return err
	}

	switch cfg.Load {
	case config.LoadCheckpoint:
		if err := vs.Load(modelPath); err != nil {
			return errors.Wrapf(err, "loading checkpoint %s", modelPath)
		}
		logger.Info("checkpoint loaded", zap.String("path", modelPath))
	case config.LoadPretrained:
		backbone, err := models.Backbone(cfg.Model)
		if err != nil {
			return err
		}
		if want := encoder.PretrainedName(backbone); filepath.Base(modelPath) != want {
			logger.Warn("weights file name does not match backbone",
				zap.String("backbone", backbone), zap.String("expected", want), zap.String("path", modelPath))
		}
		missings, err := vs.LoadPartial(modelPath)
		if err != nil {
			return errors.Wrapf(err, "loading pretrained weights %s", modelPath)
		}
		logger.Info("pretrained weights loaded",
			zap.String("path", modelPath), zap.Int("missing", len(missings)))
		for _, m := range missings {
			logger.Debug("missing variable", zap.String("name", m))
		}
	}

	return nil
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range models.Names() {
				backbone, err := models.Backbone(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %v\n", name, backbone)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		batchSize int64
		repeat    int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Forward random images through a model and report output shape and timing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, net, err := buildModel(cfg, logger)
			if err != nil {
				return err
			}

			device := cfg.GetDevice()
			image := ts.MustRand([]int64{batchSize, 3, int64(cfg.Height), int64(cfg.Width)}, gotch.Float, device)
			defer image.MustDrop()

			for i := 0; i < repeat; i++ {
				start := time.Now()
				ts.NoGrad(func() {
					logit := net.ForwardT(image, false)
					logger.Info("forward done",
						zap.Int("iter", i),
						zap.Int64s("input", image.MustSize()),
						zap.Int64s("output", logit.MustSize()),
						zap.Duration("taken", time.Since(start)))
					logit.MustDrop()
				})
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&batchSize, "batch", 1, "specify batch size")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "specify number of forward passes")

	return cmd
}

func newVarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vars",
		Short: "Print model variables sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			vs, _, err := buildModel(cfg, logger)
			if err != nil {
				return err
			}

			printVars(cmd, vs)
			return nil
		},
	}
}

// printVars print variables sorted by name
func printVars(cmd *cobra.Command, vs *nn.VarStore) {
	vars := vs.Variables()
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := vars[n]
		fmt.Fprintf(cmd.OutOrStdout(), "%v \t\t %v\n", n, v.MustSize())
	}
}
