// Package report summarises predicted masks as per-class pixel statistics.
package report

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/denseseg/imgutil"
)

// ClassStat is the share of a mask covered by one class.
type ClassStat struct {
	Class  int
	Name   string
	Pixels int
	Ratio  float64
}

// Stats counts the pixels of each class of mask. names gives the class count
// and labels.
func Stats(mask *imgutil.Mask, names []string) []ClassStat {
	counts := mask.Counts(len(names))
	total := float64(len(mask.Labels))

	stats := make([]ClassStat, len(names))
	for i, n := range names {
		stats[i] = ClassStat{
			Class:  i,
			Name:   n,
			Pixels: counts[i],
		}
		if total > 0 {
			stats[i].Ratio = float64(counts[i]) / total
		}
	}
	return stats
}

// WriteCSV writes stats as CSV with a header row.
func WriteCSV(w io.Writer, stats []ClassStat) error {
	if len(stats) == 0 {
		return errors.New("no class statistics to write")
	}

	df := dataframe.LoadStructs(stats)
	if df.Err != nil {
		return errors.Wrap(df.Err, "building dataframe")
	}

	return df.WriteCSV(w)
}

// PlotDistribution saves a bar chart of class ratios to file (png, svg, pdf ...).
func PlotDistribution(stats []ClassStat, title, file string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.Y.Label.Text = "pixels (%)"

	values := make(plotter.Values, len(stats))
	names := make([]string, len(stats))
	for i, s := range stats {
		values[i] = 100 * s.Ratio
		names[i] = s.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "building bar chart")
	}
	p.Add(bars)
	p.NominalX(names...)

	width := vg.Length(len(stats)) * vg.Points(24)
	if width < 4*vg.Inch {
		width = 4 * vg.Inch
	}

	return p.Save(width, 4*vg.Inch, file)
}
