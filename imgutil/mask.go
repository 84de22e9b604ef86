package imgutil

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

// Mask is a per-pixel class map.
type Mask struct {
	Width, Height int
	// Labels holds the class of each pixel, row-major.
	Labels []int
}

// MaskFromLogits takes the highest scoring class of every pixel of logits
// ([N H W] or [1 N H W]).
func MaskFromLogits(logits *ts.Tensor) (*Mask, error) {
	size := logits.MustSize()
	if len(size) == 4 {
		if size[0] != 1 {
			return nil, errors.Errorf("expected a single image, got batch of %d", size[0])
		}
		size = size[1:]
	}
	if len(size) != 3 {
		return nil, errors.Errorf("expected logits of shape [N H W], got %v", logits.MustSize())
	}

	return Argmax(logits.Float64Values(), int(size[0]), int(size[1]), int(size[2])), nil
}

// Argmax computes the class map of channel-first scores (nclasses x h x w).
// Ties resolve to the lowest class.
func Argmax(scores []float64, nclasses, h, w int) *Mask {
	npix := h * w
	labels := make([]int, npix)
	for p := 0; p < npix; p++ {
		best := scores[p]
		for c := 1; c < nclasses; c++ {
			if v := scores[c*npix+p]; v > best {
				best = v
				labels[p] = c
			}
		}
	}

	return &Mask{Width: w, Height: h, Labels: labels}
}

// Counts returns the number of pixels of each class.
func (m *Mask) Counts(nclasses int) []int {
	counts := make([]int, nclasses)
	for _, l := range m.Labels {
		if l >= 0 && l < nclasses {
			counts[l]++
		}
	}
	return counts
}

// Image colours the mask with palette; labels outside the palette are black.
func (m *Mask) Image(palette []color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, l := range m.Labels {
		c := color.NRGBA{A: 255}
		if l >= 0 && l < len(palette) {
			c = palette[l]
		}
		img.SetNRGBA(i%m.Width, i/m.Width, c)
	}
	return img
}

// ResizeMask scales a mask image with nearest neighbour so no new colours
// (classes) appear.
func ResizeMask(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
}

// Palette returns the PASCAL VOC colour map for n classes.
func Palette(n int) []color.NRGBA {
	palette := make([]color.NRGBA, n)
	for i := 0; i < n; i++ {
		var r, g, b uint8
		c := i
		for j := 0; j < 8; j++ {
			r |= uint8((c>>0)&1) << (7 - j)
			g |= uint8((c>>1)&1) << (7 - j)
			b |= uint8((c>>2)&1) << (7 - j)
			c >>= 3
		}
		palette[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return palette
}

// Overlay draws mask over img with the given opacity (0-255). mask is scaled
// to img size when needed.
func Overlay(img, mask image.Image, opacity uint8) *image.RGBA {
	rec := image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
	if mask.Bounds().Dx() != rec.Dx() || mask.Bounds().Dy() != rec.Dy() {
		mask = ResizeMask(mask, rec.Dx(), rec.Dy())
	}

	dst := image.NewRGBA(rec)
	draw.Draw(dst, rec, img, img.Bounds().Min, draw.Src)

	alpha := image.NewUniform(color.Alpha{opacity})
	draw.DrawMask(dst, rec, mask, mask.Bounds().Min, alpha, image.Point{}, draw.Over)

	return dst
}
