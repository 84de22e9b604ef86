package encoder

import (
	ts "github.com/sugarme/gotch/tensor"
)

// Encoder is encoder interface for a image segmentation model.
//
// ForwardAll returns the tapped feature maps of a backbone. Channels reports
// the channel count of each tap, in the same shallow to deep order.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) *Features
	Channels() []int64
}

// Features holds backbone outputs for one forward pass.
type Features struct {
	// Taps are feature maps ordered from shallow (high resolution) to deep.
	Taps []*ts.Tensor
	// Bottom is the deepest output after the final down sampling.
	Bottom *ts.Tensor
}

// Drop frees all tensors held by f.
func (f *Features) Drop() {
	for _, t := range f.Taps {
		t.MustDrop()
	}
	if f.Bottom != nil {
		f.Bottom.MustDrop()
	}
	f.Taps = nil
	f.Bottom = nil
}

// Backbone names.
const (
	VGG16    = "vgg16"
	ResNet34 = "resnet34"
)

// PretrainedName returns the conventional file name of the ImageNet weights of a
// backbone, e.g. "vgg16.ot".
func PretrainedName(backbone string) string {
	return backbone + ".ot"
}

// MinInputSize returns the smallest input side a backbone accepts. VGG16 pools
// five times; ResNet34 downsamples by 32 and pools once more for the bottom.
func MinInputSize(backbone string) int {
	if backbone == ResNet34 {
		return 64
	}
	return 32
}

// Normalize standardises an RGB image batch ([B 3 H W], values in [0, 1]) with
// the ImageNet mean and standard deviation the pretrained backbones expect.
func Normalize(x *ts.Tensor) *ts.Tensor {
	meanVals := []float32{0.485, 0.456, 0.406} // image RGB mean
	sdVals := []float32{0.229, 0.224, 0.225}   // image RGB standard error

	device := x.MustDevice()
	mean := ts.MustOfSlice(meanVals).MustView([]int64{1, 3, 1, 1}, true).MustTo(device, true)
	sd := ts.MustOfSlice(sdVals).MustView([]int64{1, 3, 1, 1}, true).MustTo(device, true)

	// x = (x - mean)/sd
	n := x.MustSub(mean, false).MustDiv(sd, true)
	mean.MustDrop()
	sd.MustDrop()

	return n
}

func maxPool2x2(x *ts.Tensor) *ts.Tensor {
	return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
}
