package encoder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/denseseg/encoder"
)

func TestVGG16Encoder(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	enc := encoder.NewVGG16Encoder(vs.Root())

	assert.Equal(t, []int64{64, 128, 256, 512, 512}, enc.Channels())
	assert.Equal(t, []int{3, 8, 15, 22, 29}, enc.TapLayers())
	assert.Equal(t, 5, enc.NumStages())

	// torchvision layout: conv weights at even slots of `features`.
	vars := vs.Variables()
	for _, name := range []string{"features.0.weight", "features.2.bias", "features.10.weight", "features.28.weight"} {
		_, ok := vars[name]
		assert.True(t, ok, "missing variable %q", name)
	}
	assert.Len(t, vars, 26) // 13 conv layers, weight + bias

	x := ts.MustRand([]int64{2, 3, 64, 48}, gotch.Float, gotch.CPU)
	var feats *encoder.Features
	ts.NoGrad(func() {
		feats = enc.ForwardAll(x, false)
	})
	require.Len(t, feats.Taps, 5)

	want := [][]int64{
		{2, 64, 64, 48},
		{2, 128, 32, 24},
		{2, 256, 16, 12},
		{2, 512, 8, 6},
		{2, 512, 4, 3},
	}
	for i, tap := range feats.Taps {
		assert.Equal(t, want[i], tap.MustSize(), "tap %d", i)
	}
	assert.Equal(t, []int64{2, 512, 2, 1}, feats.Bottom.MustSize())

	feats.Drop()
	x.MustDrop()
}

func TestResNet34Encoder(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	enc := encoder.NewResNet34Encoder(vs.Root())

	vars := vs.Variables()
	for _, name := range []string{"conv1.weight", "bn1.running_mean", "layer1.0.conv1.weight", "layer4.0.downsample.0.weight"} {
		_, ok := vars[name]
		assert.True(t, ok, "missing variable %q", name)
	}

	x := ts.MustRand([]int64{1, 3, 128, 128}, gotch.Float, gotch.CPU)
	var feats *encoder.Features
	ts.NoGrad(func() {
		feats = enc.ForwardAll(x, false)
	})
	require.Len(t, feats.Taps, len(enc.Channels()))

	sizes := []int64{64, 32, 16, 8, 4}
	for i, tap := range feats.Taps {
		size := tap.MustSize()
		assert.Equal(t, enc.Channels()[i], size[1])
		assert.Equal(t, sizes[i], size[2])
	}
	assert.Equal(t, []int64{1, 512, 2, 2}, feats.Bottom.MustSize())

	feats.Drop()
	x.MustDrop()
}

func TestNormalize(t *testing.T) {
	x := ts.MustOnes([]int64{1, 3, 2, 2}, gotch.Float, gotch.CPU)
	n := encoder.Normalize(x)

	vals := n.Float64Values()
	require.Len(t, vals, 12)
	assert.InDelta(t, (1-0.485)/0.229, vals[0], 1e-4)
	assert.InDelta(t, (1-0.456)/0.224, vals[4], 1e-4)
	assert.InDelta(t, (1-0.406)/0.225, vals[8], 1e-4)

	x.MustDrop()
	n.MustDrop()
}

func TestPretrainedName(t *testing.T) {
	assert.Equal(t, "vgg16.ot", encoder.PretrainedName(encoder.VGG16))
	assert.Equal(t, "resnet34.ot", encoder.PretrainedName(encoder.ResNet34))
}

func TestMinInputSize(t *testing.T) {
	assert.Equal(t, 32, encoder.MinInputSize(encoder.VGG16))
	assert.Equal(t, 64, encoder.MinInputSize(encoder.ResNet34))
}
