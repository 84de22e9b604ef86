package base

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// NewPixelHead creates a per-pixel MLP classifier (nn.SequentialT).
//
// Each hidden width adds Linear -> ReLU -> Dropout, a final Linear projects to
// nclasses. Variables are numbered as in torch `nn.Sequential`, e.g. for one
// hidden layer: `0` (linear), `3` (linear). The head works on the last axis,
// feed it channels-last tensors.
func NewPixelHead(p *nn.Path, cIn int64, hidden []int64, nclasses int64, dropout float64) *nn.SequentialT {
	seq := nn.SeqT()
	idx := 0
	in := cIn
	for _, h := range hidden {
		seq.Add(nn.NewLinear(p.Sub(fmt.Sprint(idx)), in, h, nn.DefaultLinearConfig()))
		seq.AddFn(nn.NewFunc(relu))
		seq.AddFnT(Dropout(dropout))
		idx += 3
		in = h
	}
	seq.Add(nn.NewLinear(p.Sub(fmt.Sprint(idx)), in, nclasses, nn.DefaultLinearConfig()))

	return seq
}

// Dropout zeroes elements with probability p in training mode only.
func Dropout(p float64) nn.FuncT {
	return nn.NewFuncT(func(xs *ts.Tensor, train bool) *ts.Tensor {
		return ts.MustDropout(xs, p, train)
	})
}

// ChannelsLast permutes [B C H W] to [B H W C].
func ChannelsLast(x *ts.Tensor, del bool) *ts.Tensor {
	return x.MustPermute([]int64{0, 2, 3, 1}, del)
}

// ChannelsFirst permutes [B H W C] to [B C H W].
func ChannelsFirst(x *ts.Tensor, del bool) *ts.Tensor {
	return x.MustPermute([]int64{0, 3, 1, 2}, del)
}

// ApplyPixelwise applies a channels-last head to every pixel of x ([B C H W])
// and returns [B N H W].
func ApplyPixelwise(head ts.ModuleT, x *ts.Tensor, train bool) *ts.Tensor {
	last := ChannelsLast(x, false)
	out := head.ForwardT(last, train)
	last.MustDrop()

	return ChannelsFirst(out, true)
}

// ApplyPointwise applies a channels-last head to a [B C S] tensor of S points
// and returns [B N S].
func ApplyPointwise(head ts.ModuleT, x *ts.Tensor, train bool) *ts.Tensor {
	last := x.MustPermute([]int64{0, 2, 1}, false)
	out := head.ForwardT(last, train)
	last.MustDrop()

	return out.MustPermute([]int64{0, 2, 1}, true)
}
