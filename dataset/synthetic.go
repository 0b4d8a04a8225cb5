package dataset

import (
	"image"
	"image/color"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultSyntheticSize    = 1000
	DefaultSyntheticClasses = 100
	syntheticSide           = 32
)

// SyntheticSet generates smooth random RGB images on demand. Entry i is
// always the same image for a given seed and carries label i % classes.
type SyntheticSet struct {
	n, classes int
	seed       uint64
}

// NewSynthetic returns a generator of n images over the given class count.
func NewSynthetic(n, classes int, seed uint64) *SyntheticSet {
	return &SyntheticSet{n: n, classes: classes, seed: seed}
}

func (s *SyntheticSet) Len() int { return s.n }

func (s *SyntheticSet) Get(i int) (image.Image, int, error) {
	if err := checkIndex(i, s.n); err != nil {
		return nil, 0, err
	}
	u := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(s.seed*1_000_003 + uint64(i))}
	var base, dx, dy [3]float64
	for c := 0; c < 3; c++ {
		base[c] = u.Rand()
		dx[c] = u.Rand() - 0.5
		dy[c] = u.Rand() - 0.5
	}
	img := image.NewRGBA(image.Rect(0, 0, syntheticSide, syntheticSide))
	for y := 0; y < syntheticSide; y++ {
		for x := 0; x < syntheticSide; x++ {
			var px [3]uint8
			for c := 0; c < 3; c++ {
				v := base[c] + dx[c]*float64(x)/syntheticSide + dy[c]*float64(y)/syntheticSide
				px[c] = toByte(v)
			}
			img.SetRGBA(x, y, color.RGBA{R: px[0], G: px[1], B: px[2], A: 0xff})
		}
	}
	return img, i % s.classes, nil
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
