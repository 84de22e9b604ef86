package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/denseseg/imgutil"
	"github.com/sugarme/denseseg/report"
)

var mask = &imgutil.Mask{
	Width:  4,
	Height: 2,
	Labels: []int{0, 0, 0, 0, 1, 1, 2, 0},
}

func TestStats(t *testing.T) {
	stats := report.Stats(mask, []string{"bg", "cat", "dog", "bird"})
	require.Len(t, stats, 4)

	assert.Equal(t, report.ClassStat{Class: 0, Name: "bg", Pixels: 5, Ratio: 0.625}, stats[0])
	assert.Equal(t, 2, stats[1].Pixels)
	assert.Equal(t, 0.125, stats[2].Ratio)
	assert.Equal(t, 0, stats[3].Pixels)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, report.Stats(mask, []string{"bg", "cat", "dog"})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Class,Name,Pixels,Ratio", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,bg,5,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,cat,2,"), lines[2])

	assert.Error(t, report.WriteCSV(&buf, nil))
}

func TestPlotDistribution(t *testing.T) {
	file := filepath.Join(t.TempDir(), "dist.png")
	err := report.PlotDistribution(report.Stats(mask, []string{"bg", "cat", "dog"}), "test", file)
	require.NoError(t, err)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}
