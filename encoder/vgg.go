package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// vgg16Config lists the conv output channels of each VGG16 stage. Every stage
// is followed by a 2x2 max-pool.
var vgg16Config = [][]int64{
	{64, 64},
	{128, 128},
	{256, 256, 256},
	{512, 512, 512},
	{512, 512, 512},
}

// VGGEncoder is the convolutional part (`features`) of VGG16.
//
// Layers are numbered as torchvision does (conv at even slots followed by
// ReLU, max-pool closing each stage), so ImageNet weights exported from
// torchvision load with vs.LoadPartial. Taps are the ReLU outputs right
// before each pool: layers 3, 8, 15, 22 and 29.
type VGGEncoder struct {
	stages   []*nn.SequentialT
	channels []int64
	tapIdx   []int
}

// NewVGG16Encoder creates VGG16 feature layers under `p/features`.
func NewVGG16Encoder(p *nn.Path) *VGGEncoder {
	fp := p.Sub("features")

	var (
		stages   []*nn.SequentialT
		channels []int64
		tapIdx   []int
	)
	var cIn int64 = 3
	layerIdx := 0
	for _, cfg := range vgg16Config {
		stage := nn.SeqT()
		for _, cOut := range cfg {
			stage.Add(conv2d(fp.Sub(fmt.Sprint(layerIdx)), cIn, cOut, 3, 1, 1))
			stage.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
				return xs.MustRelu(false)
			}))
			layerIdx += 2
			cIn = cOut
		}
		stages = append(stages, stage)
		channels = append(channels, cIn)
		tapIdx = append(tapIdx, layerIdx-1)
		layerIdx++ // max-pool
	}

	return &VGGEncoder{
		stages:   stages,
		channels: channels,
		tapIdx:   tapIdx,
	}
}

// ForwardAll implements Encoder interface for VGGEncoder.
func (e *VGGEncoder) ForwardAll(x *ts.Tensor, train bool) *Features {
	var taps []*ts.Tensor
	in := x
	for i, stage := range e.stages {
		out := stage.ForwardT(in, train)
		if i > 0 {
			in.MustDrop()
		}
		taps = append(taps, out)
		in = maxPool2x2(out)
	}

	return &Features{
		Taps:   taps,
		Bottom: in,
	}
}

// Channels implements Encoder interface for VGGEncoder.
func (e *VGGEncoder) Channels() []int64 {
	return e.channels
}

// TapLayers returns the torchvision layer indices the taps are taken from.
func (e *VGGEncoder) TapLayers() []int {
	return e.tapIdx
}

// NumStages returns the number of conv stages (one per max-pool).
func (e *VGGEncoder) NumStages() int {
	return len(e.stages)
}

// Stage returns the conv/ReLU block of stage i, without its max-pool.
func (e *VGGEncoder) Stage(i int) ts.ModuleT {
	return e.stages[i]
}
