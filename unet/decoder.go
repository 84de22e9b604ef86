package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/base"
	"github.com/sugarme/denseseg/encoder"
)

// DecoderLayer upsamples its input to the skip resolution, concatenates
// [x, skip] on channels and applies a double conv.
type DecoderLayer struct {
	Attn *base.Attention
	Conv *nn.SequentialT
}

// ForwardSkip upsamples x to skip size, concatenates and forwards through double conv.
func (d *DecoderLayer) ForwardSkip(x, skip *ts.Tensor, train bool) *ts.Tensor {
	up := base.Upsample(x, skip.MustSize()[2:])
	cat := ts.MustCat([]ts.Tensor{*up, *skip}, 1)
	up.MustDrop()
	attn := d.Attn.ForwardT(cat, train)
	cat.MustDrop()
	out := d.Conv.ForwardT(attn, train)
	attn.MustDrop()

	return out
}

// NewDecoderLayer creates a DecoderLayer. attnPath is nil when no attention is used.
func NewDecoderLayer(p, attnPath *nn.Path, cIn, skip, cOut int64) *DecoderLayer {
	attn := base.NewAttention()
	if attnPath != nil {
		attn = base.NewAttention(base.NewSCSE(attnPath, cIn+skip))
	}

	return &DecoderLayer{
		Attn: attn,
		Conv: base.DoubleConv(p, cIn+skip, cOut),
	}
}

// UNetDecoder is Decoder struct for UNet model.
type UNetDecoder struct {
	bridge *nn.SequentialT
	layers []*DecoderLayer
	cOut   int64
}

// NewUNetDecoder creates UNetDecoder for an encoder with the given tap channels.
//
// The bridge (`conv1024`) doubles the deepest channel count. Decoder stage i
// (`conv.i`) consumes the previous stage output plus the i-th deepest tap and
// outputs as many channels as that tap. For VGG16 this gives
// 1536->512, 1024->512, 768->256, 384->128 and 192->64.
func NewUNetDecoder(p *nn.Path, encoderChannels []int64, attention bool) *UNetDecoder {
	n := len(encoderChannels)
	deepest := encoderChannels[n-1]
	bridge := base.DoubleConv(p.Sub("conv1024"), deepest, 2*deepest)

	layers := make([]*DecoderLayer, n)
	prev := 2 * deepest
	for i := 0; i < n; i++ {
		skip := encoderChannels[n-1-i]
		var attnPath *nn.Path
		if attention {
			attnPath = p.Sub("attn").Sub(fmt.Sprint(i))
		}
		layers[i] = NewDecoderLayer(p.Sub("conv").Sub(fmt.Sprint(i)), attnPath, prev, skip, skip)
		prev = skip
	}

	return &UNetDecoder{
		bridge: bridge,
		layers: layers,
		cOut:   prev,
	}
}

// OutChannels returns the channel count of the decoder output.
func (d *UNetDecoder) OutChannels() int64 {
	return d.cOut
}

// ForwardFeatures runs the bridge on the bottom features then walks the taps
// from deep to shallow.
func (d *UNetDecoder) ForwardFeatures(feats *encoder.Features, train bool) *ts.Tensor {
	if len(feats.Taps) != len(d.layers) {
		panic(fmt.Sprintf("unet: expected %d feature maps, got %d", len(d.layers), len(feats.Taps)))
	}

	// e.g. VGG16, input [B 3 224 224]:
	// bottom [B 512 7 7] -> bridge [B 1024 7 7]
	// z0 [B 512 14 14], z1 [B 512 28 28], z2 [B 256 56 56],
	// z3 [B 128 112 112], z4 [B 64 224 224]
	x := d.bridge.ForwardT(feats.Bottom, train)
	n := len(feats.Taps)
	for i, layer := range d.layers {
		z := layer.ForwardSkip(x, feats.Taps[n-1-i], train)
		x.MustDrop()
		x = z
	}

	return x
}
