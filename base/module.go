package base

import (
	"fmt"
	"reflect"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// Identity is a nn.Module placeholder.
// It forwards the input tensor as such.
type Identity struct{}

// Forward implement nn.Module for Identity struct
func (i *Identity) Forward(x *ts.Tensor) *ts.Tensor {
	return x.MustShallowClone()
}

// Forward implement nn.ModuleT for Identity struct.
func (i *Identity) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return x.MustShallowClone()
}

// NewIdentity creates a new Identity struct.
func NewIdentity() *Identity {
	return &Identity{}
}

// SCSE is concurrent spatial and channel squeeze and excitement module.
// Ref. https://arxiv.org/abs/1808.08127
type SCSE struct {
	cSE *nn.SequentialT
	sSE *nn.SequentialT
}

// ForwardT implement ts.ModuleT for SCSE struct.
func (m *SCSE) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	cse := m.cSE.ForwardT(x, train)
	sse := m.sSE.ForwardT(x, train)
	cmul := x.MustMul(cse, false)
	smul := x.MustMul(sse, false)
	res := cmul.MustAdd(smul, false)

	cse.MustDrop()
	sse.MustDrop()
	cmul.MustDrop()
	smul.MustDrop()

	return res
}

// NewSCSE creates new SCSE.
func NewSCSE(p *nn.Path, cIn int64, reductionOpt ...int64) *SCSE {
	var reduction int64 = 16
	if len(reductionOpt) > 0 {
		reduction = reductionOpt[0]
	}
	cMid := cIn / reduction
	if cMid < 1 {
		cMid = 1
	}

	// Channel squeeze excite
	chanSeq := nn.SeqT()
	chanSeq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustAdaptiveAvgPool2d([]int64{1, 1}, false)
	}))
	chanSeq.Add(Conv2d(p.Sub("sqzconv1"), cIn, cMid, 1, 0, 1))
	chanSeq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))
	chanSeq.Add(Conv2d(p.Sub("sqzconv2"), cMid, cIn, 1, 0, 1))
	chanSeq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustSigmoid(false)
	}))

	// Spatial squeeze excite
	spatSeq := nn.SeqT()
	spatSeq.Add(Conv2d(p.Sub("spatconv"), cIn, 1, 1, 0, 1))
	spatSeq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustSigmoid(false)
	}))

	return &SCSE{
		cSE: chanSeq,
		sSE: spatSeq,
	}
}

type Attention struct {
	attn ts.ModuleT
}

func (a *Attention) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return a.attn.ForwardT(x, train)
}

// NewAttention creates a new Attention. Without a module it is an Identity.
func NewAttention(moduleOpt ...ts.ModuleT) *Attention {
	var attention ts.ModuleT = &Identity{}
	if len(moduleOpt) > 0 {
		attention = moduleOpt[0]
		// Only support SCSE struct.
		typ := reflect.Indirect(reflect.ValueOf(attention)).Type()
		if typ.Name() != "SCSE" {
			panic(fmt.Sprintf("Unsupported module type. Only support SCSE module type. Got %v\n", typ.Name()))
		}
	}

	return &Attention{attention}
}

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// ConvRelu adds a biased 3x3 convolution followed by ReLU to seq.
// Variables live at `p.Sub(idx)` so that the layout mirrors torch `nn.Sequential`.
func ConvRelu(seq *nn.SequentialT, p *nn.Path, idx int, cIn, cOut int64) {
	seq.Add(Conv2d(p.Sub(fmt.Sprint(idx)), cIn, cOut, 3, 1, 1))
	seq.AddFn(nn.NewFunc(relu))
}

// DoubleConv creates two 3x3 (conv, ReLU) pairs keeping spatial size.
//
// Variables: `0` and `2` under p, as `nn.Sequential(conv, relu, conv, relu)`.
func DoubleConv(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	seq := nn.SeqT()
	ConvRelu(seq, p, 0, cIn, cOut)
	ConvRelu(seq, p, 2, cOut, cOut)

	return seq
}

// ConvBlocks creates n blocks of (3x3 conv, BatchNorm, ReLU). The first block maps
// cIn to cOut, the rest keep cOut channels.
func ConvBlocks(p *nn.Path, cIn, cOut int64, n int) *nn.SequentialT {
	seq := nn.SeqT()
	for i := 0; i < n; i++ {
		in := cOut
		if i == 0 {
			in = cIn
		}
		bp := p.Sub(fmt.Sprint(i))
		seq.Add(Conv2d(bp.Sub("0"), in, cOut, 3, 1, 1))
		seq.Add(nn.BatchNorm2D(bp.Sub("1"), cOut, nn.DefaultBatchNormConfig()))
		seq.AddFn(nn.NewFunc(relu))
	}

	return seq
}

// Upsample resizes x ([B C H W]) to the given spatial size using bilinear
// interpolation with aligned corners. Returns a copy when size already matches.
func Upsample(x *ts.Tensor, size []int64) *ts.Tensor {
	xSize := x.MustSize()
	if reflect.DeepEqual(xSize[2:], size) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleBilinear2d(size, true, nil, nil, false)
}

func relu(xs *ts.Tensor) *ts.Tensor {
	return xs.MustRelu(false)
}
