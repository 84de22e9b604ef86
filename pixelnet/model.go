package pixelnet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/base"
	"github.com/sugarme/denseseg/encoder"
)

// DefaultChunkSize is the number of pixels classified at once in dense mode.
const DefaultChunkSize int64 = 10000

// PixelNet classifies every pixel from a hypercolumn of backbone features
// upsampled to input resolution.
// Ref: https://arxiv.org/abs/1702.06506
//
// In sampling mode (SetTrain(true)) only the pixels set with SetSampleIndex
// are classified and the output is [B N S]. Otherwise all pixels are
// classified, ChunkSize at a time, and the output is [B N H W].
type PixelNet struct {
	encoder   encoder.Encoder
	linear    *nn.SequentialT
	nclasses  int64
	chunkSize int64

	sampling bool
	index    *ts.Tensor
	maxIndex int64
}

// Option configures a PixelNet.
type Option func(*PixelNet)

// WithChunkSize sets how many pixels the classifier processes at once in dense mode.
func WithChunkSize(n int64) Option {
	return func(m *PixelNet) {
		m.SetChunkSize(n)
	}
}

// NewPixelNet creates a PixelNet on top of the given encoder. The classifier
// lives under `p/linear`.
func NewPixelNet(p *nn.Path, enc encoder.Encoder, nclasses int64, opts ...Option) *PixelNet {
	var cIn int64
	for _, c := range enc.Channels() {
		cIn += c
	}
	linear := base.NewPixelHead(p.Sub("linear"), cIn, []int64{2048}, nclasses, 0.5)

	m := &PixelNet{
		encoder:   enc,
		linear:    linear,
		nclasses:  nclasses,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// DefaultPixelNet creates PixelNet with VGG16 as encoder.
// Hypercolumn: 64 + 128 + 256 + 512 + 512 = 1472 channels.
func DefaultPixelNet(p *nn.Path, nclasses int64, opts ...Option) *PixelNet {
	return NewPixelNet(p, encoder.NewVGG16Encoder(p), nclasses, opts...)
}

// SetTrain switches between sampling mode (true) and dense mode (false).
func (m *PixelNet) SetTrain(flag bool) {
	m.sampling = flag
}

// Sampling reports whether the model is in sampling mode.
func (m *PixelNet) Sampling() bool {
	return m.sampling
}

// SetSampleIndex sets the flat pixel positions (row-major over H*W) classified
// in sampling mode. It replaces any previous index.
func (m *PixelNet) SetSampleIndex(idx []int64) {
	if len(idx) == 0 {
		panic("pixelnet: empty sample index")
	}
	if m.index != nil {
		m.index.MustDrop()
	}
	m.maxIndex = 0
	for _, i := range idx {
		if i < 0 {
			panic(fmt.Sprintf("pixelnet: negative sample position %d", i))
		}
		if i > m.maxIndex {
			m.maxIndex = i
		}
	}
	m.index = ts.MustOfSlice(idx)
}

// SetChunkSize sets the dense mode chunk size. Non-positive values restore the default.
func (m *PixelNet) SetChunkSize(n int64) {
	if n <= 0 {
		n = DefaultChunkSize
	}
	m.chunkSize = n
}

// NumClasses returns the number of output classes.
func (m *PixelNet) NumClasses() int64 {
	return m.nclasses
}

// ForwardT implements ts.ModuleT for PixelNet struct.
func (m *PixelNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	size := x.MustSize()
	if len(size) != 4 {
		panic(fmt.Sprintf("pixelnet: expected input of shape [B C H W], got %v", size))
	}
	bsize, hw := size[0], size[2:]
	if m.sampling {
		m.checkIndex(hw)
	}

	feats := m.encoder.ForwardAll(x, train)
	maps := make([]*ts.Tensor, len(feats.Taps))
	for i, tap := range feats.Taps {
		up := base.Upsample(tap, hw)
		maps[i] = up.MustView([]int64{bsize, tap.MustSize()[1], -1}, true)
	}
	feats.Drop()

	var out *ts.Tensor
	if m.sampling {
		out = m.forwardSampled(maps, train)
	} else {
		out = m.forwardDense(maps, bsize, hw, train)
	}

	for _, up := range maps {
		up.MustDrop()
	}

	return out
}

// forwardSampled classifies the stored sample positions. maps: [B C_i H*W].
func (m *PixelNet) forwardSampled(maps []*ts.Tensor, train bool) *ts.Tensor {
	idx := m.index.MustTo(maps[0].MustDevice(), false)
	selected := make([]ts.Tensor, len(maps))
	for i, up := range maps {
		selected[i] = *up.MustIndexSelect(2, idx, false)
	}
	idx.MustDrop()

	hypercol := ts.MustCat(selected, 1) // [B C S]
	for i := range selected {
		selected[i].MustDrop()
	}

	out := base.ApplyPointwise(m.linear, hypercol, train) // [B N S]
	hypercol.MustDrop()

	return out
}

func (m *PixelNet) checkIndex(hw []int64) {
	if m.index == nil {
		panic("pixelnet: sampling mode without sample index, call SetSampleIndex first")
	}
	if npix := hw[0] * hw[1]; m.maxIndex >= npix {
		panic(fmt.Sprintf("pixelnet: sample position %d out of range for %v input", m.maxIndex, hw))
	}
}

// forwardDense classifies all pixels in chunks to bound the memory used by the
// fully connected layers.
func (m *PixelNet) forwardDense(maps []*ts.Tensor, bsize int64, hw []int64, train bool) *ts.Tensor {
	npix := hw[0] * hw[1]

	var outputs []ts.Tensor
	for start := int64(0); start < npix; start += m.chunkSize {
		length := m.chunkSize
		if start+length > npix {
			length = npix - start
		}

		parts := make([]ts.Tensor, len(maps))
		for i, up := range maps {
			parts[i] = *up.MustNarrow(2, start, length, false)
		}
		hypercol := ts.MustCat(parts, 1)
		for i := range parts {
			parts[i].MustDrop()
		}

		out := base.ApplyPointwise(m.linear, hypercol, train)
		hypercol.MustDrop()
		outputs = append(outputs, *out)
	}

	all := ts.MustCat(outputs, 2) // [B N H*W]
	for i := range outputs {
		outputs[i].MustDrop()
	}

	return all.MustReshape([]int64{bsize, m.nclasses, hw[0], hw[1]}, true)
}
