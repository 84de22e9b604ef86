package pixelnet

import (
	"math/rand"

	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
)

// GenerateSampleIndex draws a class-balanced set of flat pixel positions from a
// label map (H*W values, row-major).
//
// Each class in [0, nclasses) that occurs in labels contributes nsamples/nclasses
// positions drawn with replacement; classes absent from the map are skipped, so
// the result may hold fewer than nsamples positions. The result is shuffled.
func GenerateSampleIndex(labels []int64, nclasses, nsamples int, rng *rand.Rand) ([]int64, error) {
	if nclasses <= 0 {
		return nil, errors.Errorf("invalid number of classes: %d", nclasses)
	}
	perClass := nsamples / nclasses
	if perClass <= 0 {
		return nil, errors.Errorf("%d samples cannot be spread over %d classes", nsamples, nclasses)
	}

	positions := make([][]int64, nclasses)
	for i, l := range labels {
		if l < 0 || l >= int64(nclasses) {
			continue
		}
		positions[l] = append(positions[l], int64(i))
	}

	var index []int64
	for _, pos := range positions {
		if len(pos) == 0 {
			continue
		}
		for j := 0; j < perClass; j++ {
			index = append(index, pos[rng.Intn(len(pos))])
		}
	}
	if len(index) == 0 {
		return nil, errors.New("label map has no pixel of a known class")
	}

	rng.Shuffle(len(index), func(i, j int) {
		index[i], index[j] = index[j], index[i]
	})

	return index, nil
}

// SampleIndexFromTensor is GenerateSampleIndex for a label tensor of one image
// ([H W] or [1 H W], integer class ids).
func SampleIndexFromTensor(labels *ts.Tensor, nclasses, nsamples int, rng *rand.Rand) ([]int64, error) {
	size := labels.MustSize()
	if len(size) < 2 || len(size) > 3 || (len(size) == 3 && size[0] != 1) {
		return nil, errors.Errorf("expected label map of shape [H W] or [1 H W], got %v", size)
	}

	return GenerateSampleIndex(labels.Int64Values(), nclasses, nsamples, rng)
}
