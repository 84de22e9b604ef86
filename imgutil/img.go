// Package imgutil converts between images and the tensors the models consume
// and produce.
package imgutil

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
)

// ReadImage reads image from file (png, jpeg or tiff).
func ReadImage(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".tiff", ".tif":
		img, err = tiff.Decode(f)
	default:
		return nil, errors.Errorf("unsupported image format: %v", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filepath.Base(filename))
	}

	return img, nil
}

// ToTensor resizes img to width x height and returns a [1 3 H W] float tensor
// with RGB values scaled to [0, 1].
func ToTensor(img image.Image, width, height int) *ts.Tensor {
	resized := imaging.Resize(img, width, height, imaging.Linear)

	npix := width * height
	data := make([]float32, 3*npix)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := resized.NRGBAAt(x, y)
			i := y*width + x
			data[i] = float32(c.R) / 255
			data[npix+i] = float32(c.G) / 255
			data[2*npix+i] = float32(c.B) / 255
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{1, 3, int64(height), int64(width)}, true)
}

// Save writes img to file, format from the file extension.
func Save(img image.Image, file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	return errors.Wrapf(imaging.Save(img, file), "saving %s", filepath.Base(file))
}
