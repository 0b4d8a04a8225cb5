package nn

import (
	"gradleak/autograd"
)

// Module defines a single layer/unit in the network.
type Module interface {
	// Forward maps an input batch to an output batch, recording the graph
	// whenever the input or the module's parameters require gradients.
	Forward(x *autograd.Variable) (*autograd.Variable, error)
	// Parameters lists the trainable tensors in a fixed, stable order.
	Parameters() []*autograd.Variable
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Parameters concatenates the parameters of all layers, first layer first.
func (s *Sequential) Parameters() []*autograd.Variable {
	var params []*autograd.Variable
	for _, layer := range s.Layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// ZeroGrad clears the accumulated gradients of every parameter of m.
func ZeroGrad(m Module) {
	autograd.ZeroGrads(m.Parameters()...)
}
