// Package measure compares two gradient lists with a differentiable distance.
//
// The dummy list is usually produced by autograd.Grad with createGraph set,
// so the returned scalar can be differentiated back to the inputs that
// produced those gradients.
package measure

import (
	"errors"
	"fmt"
	"math"

	"gradleak/autograd"
	"gradleak/tensor"

	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch is returned when two gradient lists differ in length or
// in the shape of any element.
var ErrShapeMismatch = errors.New("gradient shape mismatch")

// Kind selects a measure implementation.
type Kind int

const (
	Euclidean Kind = iota
	Gaussian
)

func (k Kind) String() string {
	switch k {
	case Euclidean:
		return "euclidean"
	case Gaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "euclidean":
		return Euclidean, nil
	case "gaussian":
		return Gaussian, nil
	default:
		return 0, fmt.Errorf("unknown measure %q: only 'euclidean' and 'gaussian' are accepted", name)
	}
}

// Measure maps a pair of gradient lists to a scalar distance.
type Measure interface {
	Measure(original, dummy autograd.GradientList) (*autograd.Variable, error)
	Kind() Kind
}

// New builds the measure of the given kind. The gaussian measure estimates
// its sigma from original and uses q as bandwidth; euclidean ignores both.
func New(kind Kind, original autograd.GradientList, q float64) (Measure, error) {
	switch kind {
	case Euclidean:
		return EuclideanMeasure{}, nil
	case Gaussian:
		return NewGaussian(original, q), nil
	default:
		return nil, fmt.Errorf("unknown measure kind %v", kind)
	}
}

func checkShapes(original, dummy autograd.GradientList) error {
	if len(original) != len(dummy) {
		return fmt.Errorf("%w: %d original tensors vs %d dummy tensors", ErrShapeMismatch, len(original), len(dummy))
	}
	for i := range original {
		if !tensor.SameShape(original[i].Value, dummy[i].Value) {
			return fmt.Errorf("%w: tensor %d has shape %v vs %v", ErrShapeMismatch, i, original[i].Shape(), dummy[i].Shape())
		}
	}
	return nil
}

// EuclideanMeasure is the sum over tensor pairs of the squared elementwise
// differences, the distance of the original DLG formulation.
type EuclideanMeasure struct{}

func (EuclideanMeasure) Kind() Kind { return Euclidean }

func (EuclideanMeasure) Measure(original, dummy autograd.GradientList) (*autograd.Variable, error) {
	if err := checkShapes(original, dummy); err != nil {
		return nil, err
	}
	total := autograd.Scalar(0)
	for i := range original {
		total = autograd.Add(total, squaredDistance(original[i], dummy[i]))
	}
	return total, nil
}

func squaredDistance(a, b *autograd.Variable) *autograd.Variable {
	return autograd.Sum(autograd.Square(autograd.Sub(a, b)))
}

// MinBandwidth bounds the gaussian kernel denominator away from zero.
const MinBandwidth = 1e-12

// GaussianMeasure sums, over tensor pairs, 1 - exp(-d / (2 Sigma Q)) where d is
// the squared euclidean distance of the pair. Sigma is the variance of the
// original gradient values. Each term lies in [0, 1), is 0 for identical
// tensors and grows with d.
type GaussianMeasure struct {
	Sigma float64
	Q     float64
}

// NewGaussian estimates Sigma once as the variance of every original gradient
// value concatenated together.
func NewGaussian(original autograd.GradientList, q float64) *GaussianMeasure {
	values := original.Flatten()
	sigma := 0.0
	if len(values) > 1 {
		sigma = stat.Variance(values, nil)
	}
	return &GaussianMeasure{Sigma: sigma, Q: q}
}

func (*GaussianMeasure) Kind() Kind { return Gaussian }

// Bandwidth is the kernel denominator 2*Sigma*Q, floored at MinBandwidth.
func (m *GaussianMeasure) Bandwidth() float64 {
	h := 2 * m.Sigma * m.Q
	if math.IsNaN(h) || h < MinBandwidth {
		return MinBandwidth
	}
	return h
}

func (m *GaussianMeasure) Measure(original, dummy autograd.GradientList) (*autograd.Variable, error) {
	if err := checkShapes(original, dummy); err != nil {
		return nil, err
	}
	h := m.Bandwidth()
	total := autograd.Scalar(0)
	for i := range original {
		d := squaredDistance(original[i], dummy[i])
		similarity := autograd.Exp(autograd.Scale(d, -1/h))
		total = autograd.Add(total, autograd.AddScalar(autograd.Neg(similarity), 1))
	}
	return total, nil
}
