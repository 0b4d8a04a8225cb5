// Package dummy draws the initial guesses for the reconstructed images and
// label logits. It only ever sees shapes, never ground-truth values.
package dummy

import (
	"fmt"

	"gradleak/autograd"
	"gradleak/tensor"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution selects how dummy values are sampled.
type Distribution int

const (
	Uniform       Distribution = iota // U(0, 1)
	Gaussian                          // N(0, 1)
	GaussianShift                     // N(0.5, 0.5)
)

func (d Distribution) String() string {
	switch d {
	case Uniform:
		return "uniform"
	case Gaussian:
		return "gaussian"
	case GaussianShift:
		return "gaussian_shift"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// ParseDistribution maps a configuration name to a Distribution.
func ParseDistribution(name string) (Distribution, error) {
	switch name {
	case "uniform":
		return Uniform, nil
	case "gaussian":
		return Gaussian, nil
	case "gaussian_shift":
		return GaussianShift, nil
	default:
		return 0, fmt.Errorf("unknown init type %q: only 'uniform', 'gaussian' and 'gaussian_shift' are accepted", name)
	}
}

type sampler interface{ Rand() float64 }

func (d Distribution) sampler(src rand.Source) (sampler, error) {
	switch d {
	case Uniform:
		return distuv.Uniform{Min: 0, Max: 1, Src: src}, nil
	case Gaussian:
		return distuv.Normal{Mu: 0, Sigma: 1, Src: src}, nil
	case GaussianShift:
		return distuv.Normal{Mu: 0.5, Sigma: 0.5, Src: src}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %v", d)
	}
}

// Sample returns a tensor of the given shape filled i.i.d. from d.
func Sample(shape []int, d Distribution, src rand.Source) (*tensor.Tensor, error) {
	s, err := d.sampler(src)
	if err != nil {
		return nil, err
	}
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = s.Rand()
	}
	return t, nil
}

// Init draws the dummy image batch and the dummy label logits, both as
// trainable leaves.
func Init(dataShape, labelShape []int, d Distribution, src rand.Source) (data, label *autograd.Variable, err error) {
	dt, err := Sample(dataShape, d, src)
	if err != nil {
		return nil, nil, err
	}
	lt, err := Sample(labelShape, d, src)
	if err != nil {
		return nil, nil, err
	}
	return autograd.Param(dt), autograd.Param(lt), nil
}
