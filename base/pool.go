package base

import (
	ts "github.com/sugarme/gotch/tensor"
)

// MaxPool2x2 applies a 2x2 max-pool with stride 2 to x ([B C H W]) and returns
// the pooled tensor together with the flat (row-major over H*W) position of
// each maximum, as expected by MaxUnpool2d. Odd trailing rows and columns are
// dropped. Ties resolve to the first position of the window in row-major order.
func MaxPool2x2(x *ts.Tensor) (pooled, indices *ts.Tensor) {
	size := x.MustSize()
	b, c, h, w := size[0], size[1], size[2], size[3]
	ho, wo := h/2, w/2

	pooled = x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)

	// [B C Ho 2 Wo 2] -> [B C Ho Wo 4], window in row-major order.
	crop := x.MustNarrow(2, 0, 2*ho, false).MustNarrow(3, 0, 2*wo, true)
	windows := crop.MustReshape([]int64{b, c, ho, 2, wo, 2}, true).
		MustPermute([]int64{0, 1, 2, 4, 3, 5}, true).
		MustReshape([]int64{b, c, ho, wo, 4}, true)
	arg := windows.MustArgmax([]int64{4}, false, true).MustView([]int64{-1}, true)

	device := x.MustDevice()
	offsets := ts.MustOfSlice([]int64{0, 1, w, w + 1}).MustTo(device, true)
	within := offsets.MustIndexSelect(0, arg, true).MustView([]int64{b, c, ho, wo}, true)
	arg.MustDrop()

	corners := make([]int64, ho*wo)
	for i := int64(0); i < ho; i++ {
		for j := int64(0); j < wo; j++ {
			corners[i*wo+j] = 2*i*w + 2*j
		}
	}
	origin := ts.MustOfSlice(corners).MustView([]int64{1, 1, ho, wo}, true).MustTo(device, true)
	indices = within.MustAdd(origin, true)
	origin.MustDrop()

	return pooled, indices
}
