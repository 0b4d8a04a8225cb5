package layers

import (
	"fmt"

	"gradleak/autograd"
	"gradleak/tensor"
)

// Linear is a fully-connected layer: y = x W^T + b.
type Linear struct {
	W, B *autograd.Variable // W is [outDim, inDim], B is [outDim]
}

// NewLinear(inDim→outDim) allocates zero weights; use an initializer to fill them.
func NewLinear(inDim, outDim int) *Linear {
	return &Linear{
		W: autograd.Param(tensor.New(outDim, inDim)),
		B: autograd.Param(tensor.New(outDim)),
	}
}

// Forward maps x [batch, inDim] to [batch, outDim].
func (l *Linear) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	inDim := l.W.Shape()[1]
	if len(x.Shape()) != 2 || x.Shape()[1] != inDim {
		return nil, fmt.Errorf("Linear: expected [batch, %d] input, got %v", inDim, x.Shape())
	}
	y := autograd.MatMul(x, autograd.Transpose(l.W))
	return autograd.Add(y, autograd.RepeatRows(l.B, x.Shape()[0])), nil
}

// Parameters returns weight then bias.
func (l *Linear) Parameters() []*autograd.Variable {
	return []*autograd.Variable{l.W, l.B}
}

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear(%d->%d)", l.W.Shape()[1], l.W.Shape()[0])
}
