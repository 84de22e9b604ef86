package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
	"go.uber.org/zap"

	"github.com/sugarme/denseseg/config"
	"github.com/sugarme/denseseg/encoder"
	"github.com/sugarme/denseseg/imgutil"
	"github.com/sugarme/denseseg/report"
)

func newPredictCmd() *cobra.Command {
	var (
		outputDir string
		opacity   uint8
		noReport  bool
	)
	cmd := &cobra.Command{
		Use:   "predict IMAGE...",
		Short: "Segment images and write masks, overlays and class statistics",
		Args:  cobra.MinimumNArgs(1),
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
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			_, net, err := buildModel(cfg, logger)
			if err != nil {
				return err
			}

			p := &predictor{
				cfg:     cfg,
				net:     net,
				logger:  logger,
				opacity: opacity,
				report:  !noReport,
			}
			for _, file := range args {
				if err := p.run(file); err != nil {
					return errors.Wrapf(err, "predicting %s", file)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "specify output directory")
	cmd.Flags().Uint8Var(&opacity, "opacity", 128, "specify mask opacity of the overlay image (0-255)")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip class statistics CSV and chart")

	return cmd
}

type predictor struct {
	cfg     *config.Config
	net     ts.ModuleT
	logger  *zap.Logger
	opacity uint8
	report  bool
}

func (p *predictor) run(file string) error {
	img, err := imgutil.ReadImage(file)
	if err != nil {
		return err
	}

	x := imgutil.ToTensor(img, p.cfg.Width, p.cfg.Height).MustTo(p.cfg.GetDevice(), true)
	input := encoder.Normalize(x)
	x.MustDrop()

	var logits *ts.Tensor
	ts.NoGrad(func() {
		logits = p.net.ForwardT(input, false).MustTo(gotch.CPU, true)
	})
	input.MustDrop()

	mask, err := imgutil.MaskFromLogits(logits)
	logits.MustDrop()
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	maskImg := imgutil.ResizeMask(mask.Image(imgutil.Palette(int(p.cfg.Classes))), bounds.Dx(), bounds.Dy())

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	out := func(suffix string) string {
		return filepath.Join(p.cfg.OutputDir, name+suffix)
	}
	if err := imgutil.Save(maskImg, out("_mask.png")); err != nil {
		return err
	}
	if err := imgutil.Save(imgutil.Overlay(img, maskImg, p.opacity), out("_overlay.png")); err != nil {
		return err
	}

	names := make([]string, p.cfg.Classes)
	for i := range names {
		names[i] = p.cfg.ClassName(i)
	}
	stats := report.Stats(mask, names)

	if p.report {
		if err := writeStats(out("_classes.csv"), stats); err != nil {
			return err
		}
		if err := report.PlotDistribution(stats, name, out("_classes.png")); err != nil {
			return err
		}
	}

	fields := []zap.Field{zap.String("image", file), zap.String("output", p.cfg.OutputDir)}
	for _, s := range stats {
		if s.Pixels > 0 {
			fields = append(fields, zap.Float64(s.Name, s.Ratio))
		}
	}
	p.logger.Info("prediction saved", fields...)

	return nil
}

func writeStats(file string, stats []report.ClassStat) (err error) {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", file)
		}
	}()

	return report.WriteCSV(f, stats)
}
