package layers

import (
	"fmt"

	"gradleak/autograd"
)

// Flatten layer: reshapes [N, ...] to [N, rest], keeping the batch axis.
type Flatten struct{}

func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	shape := x.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("Flatten: expected a batched input, got %v", shape)
	}
	rest := 1
	for _, d := range shape[1:] {
		rest *= d
	}
	return autograd.Reshape(x, shape[0], rest), nil
}

func (f *Flatten) Parameters() []*autograd.Variable { return nil }

func (f *Flatten) Tag() string {
	return "Flatten"
}
