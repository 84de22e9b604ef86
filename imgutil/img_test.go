package imgutil_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/tiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/imgutil"
)

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	src := uniform(6, 4, color.NRGBA{R: 200, G: 10, B: 30, A: 255})

	pngFile := filepath.Join(dir, "a.png")
	f, err := os.Create(pngFile)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	f.Close()

	tifFile := filepath.Join(dir, "a.tiff")
	f, err = os.Create(tifFile)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, src, nil))
	f.Close()

	for _, file := range []string{pngFile, tifFile} {
		img, err := imgutil.ReadImage(file)
		require.NoError(t, err, file)
		assert.Equal(t, 6, img.Bounds().Dx())
		assert.Equal(t, 4, img.Bounds().Dy())
		r, _, _, _ := img.At(1, 1).RGBA()
		assert.Equal(t, uint32(200), r>>8)
	}

	_, err = imgutil.ReadImage(filepath.Join(dir, "a.bmp"))
	assert.Error(t, err)
	_, err = imgutil.ReadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestToTensor(t *testing.T) {
	img := uniform(10, 10, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	x := imgutil.ToTensor(img, 8, 6)
	assert.Equal(t, []int64{1, 3, 6, 8}, x.MustSize())

	vals := x.Float64Values()
	assert.InDelta(t, 1.0, vals[0], 5e-3)
	assert.InDelta(t, 0.0, vals[48], 5e-3)
	assert.InDelta(t, 0.2, vals[96], 5e-3)
	x.MustDrop()
}

func TestSave(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "m.png")
	require.NoError(t, imgutil.Save(uniform(3, 3, color.NRGBA{A: 255}), file))
	_, err := os.Stat(file)
	assert.NoError(t, err)
}

func TestMaskFromLogits(t *testing.T) {
	// 2 classes, 1x3 image: class 1 wins at pixel 1 only, tie at pixel 2.
	logits := ts.MustOfSlice([]float32{
		0.9, 0.1, 0.5,
		0.2, 0.8, 0.5,
	}).MustView([]int64{1, 2, 1, 3}, true)

	mask, err := imgutil.MaskFromLogits(logits)
	require.NoError(t, err)
	assert.Equal(t, 3, mask.Width)
	assert.Equal(t, 1, mask.Height)
	assert.Equal(t, []int{0, 1, 0}, mask.Labels)
	assert.Equal(t, []int{2, 1, 0}, mask.Counts(3))
	logits.MustDrop()

	batch := ts.MustZeros([]int64{2, 2, 1, 3}, gotch.Float, gotch.CPU)
	_, err = imgutil.MaskFromLogits(batch)
	assert.Error(t, err)
	batch.MustDrop()
}

func TestPalette(t *testing.T) {
	p := imgutil.Palette(21)
	require.Len(t, p, 21)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, p[0])
	assert.Equal(t, color.NRGBA{128, 0, 0, 255}, p[1])
	assert.Equal(t, color.NRGBA{0, 128, 0, 255}, p[2])
	assert.Equal(t, color.NRGBA{192, 128, 128, 255}, p[15])
}

func TestMaskImage(t *testing.T) {
	mask := &imgutil.Mask{Width: 2, Height: 2, Labels: []int{0, 1, 2, 9}}
	img := mask.Image(imgutil.Palette(3))

	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{128, 0, 0, 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{0, 128, 0, 255}, img.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(1, 1))

	big := imgutil.ResizeMask(img, 8, 6)
	assert.Equal(t, 8, big.Bounds().Dx())
	assert.Equal(t, 6, big.Bounds().Dy())
	r, g, _, _ := big.At(7, 0).RGBA()
	assert.Equal(t, uint32(128), r>>8)
	assert.Equal(t, uint32(0), g>>8)
}

func TestOverlay(t *testing.T) {
	img := uniform(8, 8, color.NRGBA{A: 255})
	mask := uniform(4, 4, color.NRGBA{R: 255, A: 255})

	opaque := imgutil.Overlay(img, mask, 255)
	assert.Equal(t, image.Rect(0, 0, 8, 8), opaque.Bounds())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, opaque.RGBAAt(5, 5))

	clear := imgutil.Overlay(img, mask, 0)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, clear.RGBAAt(5, 5))
}
