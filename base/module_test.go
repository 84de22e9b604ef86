package base_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/base"
)

func TestPixelHead(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	head := base.NewPixelHead(vs.Root(), 8, []int64{16, 16}, 3, 0.5)

	vars := vs.Variables()
	for name, size := range map[string][]int64{
		"0.weight": {16, 8},
		"3.weight": {16, 16},
		"6.weight": {3, 16},
		"6.bias":   {3},
	} {
		v, ok := vars[name]
		require.True(t, ok, name)
		assert.Equal(t, size, v.MustSize(), name)
	}

	x := ts.MustRand([]int64{2, 8, 5, 7}, gotch.Float, gotch.CPU)
	out := base.ApplyPixelwise(head, x, false)
	assert.Equal(t, []int64{2, 3, 5, 7}, out.MustSize())

	pts := ts.MustRand([]int64{2, 8, 11}, gotch.Float, gotch.CPU)
	pout := base.ApplyPointwise(head, pts, false)
	assert.Equal(t, []int64{2, 3, 11}, pout.MustSize())

	x.MustDrop()
	out.MustDrop()
	pts.MustDrop()
	pout.MustDrop()
}

func TestChannelsPermute(t *testing.T) {
	x := ts.MustRand([]int64{1, 3, 4, 5}, gotch.Float, gotch.CPU)
	last := base.ChannelsLast(x, false)
	assert.Equal(t, []int64{1, 4, 5, 3}, last.MustSize())
	first := base.ChannelsFirst(last, true)
	assert.Equal(t, []int64{1, 3, 4, 5}, first.MustSize())
	assert.InDeltaSlice(t, x.Float64Values(), first.Float64Values(), 1e-7)

	x.MustDrop()
	first.MustDrop()
}

func TestUpsample(t *testing.T) {
	// 2x2 ramp, corners are kept with aligned corners.
	x := ts.MustOfSlice([]float32{0, 1, 2, 3}).MustView([]int64{1, 1, 2, 2}, true)
	up := base.Upsample(x, []int64{3, 3})
	assert.Equal(t, []int64{1, 1, 3, 3}, up.MustSize())
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1, 1.5, 2, 2, 2.5, 3}, up.Float64Values(), 1e-6)

	same := base.Upsample(x, []int64{2, 2})
	assert.Equal(t, x.Float64Values(), same.Float64Values())

	x.MustDrop()
	up.MustDrop()
	same.MustDrop()
}

func TestConvBuilders(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	root := vs.Root()
	double := base.DoubleConv(root.Sub("double"), 3, 8)
	blocks := base.ConvBlocks(root.Sub("blocks"), 8, 4, 3)
	scse := base.NewAttention(base.NewSCSE(root.Sub("scse"), 4))

	vars := vs.Variables()
	for _, name := range []string{"double.0.weight", "double.2.weight", "blocks.0.0.weight", "blocks.2.1.running_mean", "scse.spatconv.weight"} {
		_, ok := vars[name]
		assert.True(t, ok, "missing variable %q", name)
	}

	x := ts.MustRand([]int64{2, 3, 6, 6}, gotch.Float, gotch.CPU)
	ts.NoGrad(func() {
		d := double.ForwardT(x, false)
		b := blocks.ForwardT(d, false)
		a := scse.ForwardT(b, false)
		assert.Equal(t, []int64{2, 4, 6, 6}, a.MustSize())
		d.MustDrop()
		b.MustDrop()
		a.MustDrop()
	})
	x.MustDrop()
}

func TestAttentionIdentity(t *testing.T) {
	attn := base.NewAttention()
	x := ts.MustRand([]int64{1, 2, 3, 3}, gotch.Float, gotch.CPU)
	y := attn.ForwardT(x, false)
	assert.Equal(t, x.Float64Values(), y.Float64Values())

	assert.Panics(t, func() { base.NewAttention(base.NewIdentity()) })

	x.MustDrop()
	y.MustDrop()
}

func TestDropout(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	head := base.NewPixelHead(vs.Root(), 16, []int64{64}, 4, 0.5)
	x := ts.MustRand([]int64{1, 16, 8, 8}, gotch.Float, gotch.CPU)

	var evalA, evalB, trainA, trainB *ts.Tensor
	ts.NoGrad(func() {
		evalA = base.ApplyPixelwise(head, x, false)
		evalB = base.ApplyPixelwise(head, x, false)
		trainA = base.ApplyPixelwise(head, x, true)
		trainB = base.ApplyPixelwise(head, x, true)
	})

	assert.Equal(t, evalA.Float64Values(), evalB.Float64Values())
	assert.NotEqual(t, trainA.Float64Values(), trainB.Float64Values())

	for _, y := range []*ts.Tensor{x, evalA, evalB, trainA, trainB} {
		y.MustDrop()
	}
}

func TestMaxPool2x2(t *testing.T) {
	// Channel 0 has distinct maxima, channel 1 is all ties. The last row is odd
	// and ignored by the pool.
	data := []float32{
		1, 5, 2, 0, 9,
		3, 4, 8, 7, 9,
		6, 6, 6, 6, 6,

		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
	}
	x := ts.MustOfSlice(data).MustView([]int64{1, 2, 3, 5}, true)

	pooled, indices := base.MaxPool2x2(x)
	assert.Equal(t, []int64{1, 2, 1, 2}, pooled.MustSize())
	assert.Equal(t, []float64{5, 8, 0, 0}, pooled.Float64Values())
	assert.Equal(t, []int64{1, 7, 0, 2}, indices.Int64Values())

	up := pooled.MustMaxUnpool2d(indices, []int64{3, 5}, false)
	want := make([]float64, 30)
	want[1], want[7] = 5, 8
	assert.Equal(t, want, up.Float64Values())

	x.MustDrop()
	pooled.MustDrop()
	indices.MustDrop()
	up.MustDrop()
}
