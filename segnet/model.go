package segnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/base"
	"github.com/sugarme/denseseg/encoder"
)

// decoderConfig lists (cIn, cOut, number of conv blocks) of each decoder
// stage, deepest first.
var decoderConfig = []struct {
	cIn, cOut int64
	n         int
}{
	{512, 512, 3},
	{512, 256, 3},
	{256, 128, 3},
	{128, 64, 2},
	{64, 64, 2},
}

// SegNet is an encoder-decoder network where the decoder upsamples with the
// max-pooling indices memorised by the encoder.
// Ref: https://arxiv.org/abs/1511.00561
type SegNet struct {
	encoder  *encoder.VGGEncoder
	decoder  []*nn.SequentialT
	linear   *nn.SequentialT
	nclasses int64
}

// NewSegNet creates SegNet with VGG16 stages as encoder (`p/features`),
// decoder stages under `p/conv/5..9` and a linear classifier under `p/linear`.
func NewSegNet(p *nn.Path, nclasses int64) *SegNet {
	enc := encoder.NewVGG16Encoder(p)

	cp := p.Sub("conv")
	decoder := make([]*nn.SequentialT, len(decoderConfig))
	for i, cfg := range decoderConfig {
		decoder[i] = base.ConvBlocks(cp.Sub(fmt.Sprint(enc.NumStages()+i)), cfg.cIn, cfg.cOut, cfg.n)
	}

	linear := nn.SeqT()
	linear.Add(nn.NewLinear(p.Sub("linear"), 64, nclasses, nn.DefaultLinearConfig()))

	return &SegNet{
		encoder:  enc,
		decoder:  decoder,
		linear:   linear,
		nclasses: nclasses,
	}
}

// NumClasses returns the number of output classes.
func (n *SegNet) NumClasses() int64 {
	return n.nclasses
}

// ForwardT implements ts.ModuleT for SegNet struct.
func (n *SegNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	size := x.MustSize()
	if len(size) != 4 {
		panic(fmt.Sprintf("segnet: expected input of shape [B C H W], got %v", size))
	}

	nstages := n.encoder.NumStages()
	shapes := make([][]int64, nstages)
	indices := make([]*ts.Tensor, nstages)

	// Encode: conv stage then 2x2 max-pool, remembering where maxima came from.
	in := x
	for i := 0; i < nstages; i++ {
		shapes[i] = in.MustSize()[2:]
		out := n.encoder.Stage(i).ForwardT(in, train)
		if i > 0 {
			in.MustDrop()
		}
		pooled, idx := base.MaxPool2x2(out)
		out.MustDrop()
		indices[i] = idx
		in = pooled
	}

	// Decode: unpool to the recorded size then conv blocks, deepest first.
	for i, stage := range n.decoder {
		j := nstages - 1 - i
		up := in.MustMaxUnpool2d(indices[j], shapes[j], true)
		indices[j].MustDrop()
		in = stage.ForwardT(up, train)
		up.MustDrop()
	}

	logits := base.ApplyPixelwise(n.linear, in, train)
	in.MustDrop()

	return logits
}
