package layers

import (
	"gradleak/autograd"
)

// Sigmoid applies the logistic function elementwise. Unlike ReLU its second
// derivative is non-zero, which gradient matching depends on.
type Sigmoid struct{}

func NewSigmoid() *Sigmoid { return &Sigmoid{} }

func (s *Sigmoid) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	return autograd.Sigmoid(x), nil
}

func (s *Sigmoid) Parameters() []*autograd.Variable { return nil }

func (s *Sigmoid) Tag() string {
	return "Sigmoid"
}
