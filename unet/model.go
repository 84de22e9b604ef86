package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/base"
	"github.com/sugarme/denseseg/encoder"
)

// Unet is a UNET model struct
// Ref: https://arxiv.org/abs/1505.04597
type UNet struct {
	encoder  encoder.Encoder
	decoder  *UNetDecoder
	linear   *nn.SequentialT
	nclasses int64
}

type options struct {
	attention bool
}

// Option configures a UNet.
type Option func(*options)

// WithAttention adds SCSE attention on each concatenated decoder input.
func WithAttention() Option {
	return func(o *options) {
		o.attention = true
	}
}

// NewUNet creates a UNet on the given encoder. The per-pixel classifier is a
// MLP 64 -> 256 -> 256 -> nclasses under `p/linear`.
func NewUNet(p *nn.Path, enc encoder.Encoder, nclasses int64, opts ...Option) *UNet {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	dec := NewUNetDecoder(p, enc.Channels(), o.attention)
	linear := base.NewPixelHead(p.Sub("linear"), dec.OutChannels(), []int64{256, 256}, nclasses, 0.5)

	return &UNet{
		encoder:  enc,
		decoder:  dec,
		linear:   linear,
		nclasses: nclasses,
	}
}

// DefaultUNet creates UNet with default values.
// VGG16 as encoder.
func DefaultUNet(p *nn.Path, nclasses int64, opts ...Option) *UNet {
	return NewUNet(p, encoder.NewVGG16Encoder(p), nclasses, opts...)
}

// NumClasses returns the number of output classes.
func (n *UNet) NumClasses() int64 {
	return n.nclasses
}

// ForwardT implements ts.ModuleT for UNet struct.
//
// Output: [B nclasses H W]. With encoders whose shallowest tap is below input
// resolution (ResNet34), logits are bilinearly upsampled to input size.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	size := x.MustSize()
	if len(size) != 4 {
		panic(fmt.Sprintf("unet: expected input of shape [B C H W], got %v", size))
	}

	feats := n.encoder.ForwardAll(x, train)
	out := n.decoder.ForwardFeatures(feats, train)
	feats.Drop()

	logits := base.ApplyPixelwise(n.linear, out, train)
	out.MustDrop()

	masks := base.Upsample(logits, size[2:])
	logits.MustDrop()

	return masks
}
