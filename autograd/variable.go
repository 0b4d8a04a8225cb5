// Package autograd implements reverse-mode automatic differentiation over
// tensor.Tensor values.
//
// Every operation records a node in a dynamic graph. Backward rules are
// themselves written with the differentiable operations of this package, so a
// gradient computed with createGraph set is an ordinary Variable that can be
// differentiated again. This is what lets an objective depend on the gradient
// of another objective:
//
//	loss := nn.CrossEntropyForOnehot(model(x), y)
//	dy, _ := autograd.Grad(loss, params, true) // part of the graph
//	diff := autograd.Sum(autograd.Square(autograd.Sub(dy[0], target)))
//	_ = diff.Backward()                        // x.Grad now holds d diff / dx
//
// The graph is not safe for concurrent use.
package autograd

import (
	"fmt"

	"gradleak/tensor"

	"gonum.org/v1/gonum/floats"
)

// Variable is a node of the computation graph.
type Variable struct {
	Value *tensor.Tensor
	// Grad accumulates d(output)/d(v) across Backward calls on leaves.
	Grad *tensor.Tensor

	requiresGrad bool
	creator      *node
}

type node struct {
	op     op
	inputs []*Variable
}

// op is a differentiable operation. backward returns one gradient per input
// (nil where the input does not require a gradient), built from Variables so
// that the result stays differentiable.
type op interface {
	name() string
	backward(out, grad *Variable) []*Variable
}

// NewVariable wraps t. t is not copied.
func NewVariable(t *tensor.Tensor, requiresGrad bool) *Variable {
	return &Variable{Value: t, requiresGrad: requiresGrad}
}

// Constant wraps t as a leaf that never receives gradients.
func Constant(t *tensor.Tensor) *Variable { return NewVariable(t, false) }

// Param wraps t as a trainable leaf.
func Param(t *tensor.Tensor) *Variable { return NewVariable(t, true) }

// Scalar returns a constant holding a single value.
func Scalar(v float64) *Variable {
	return Constant(&tensor.Tensor{Data: []float64{v}, Shape: []int{1}})
}

// RequiresGrad reports whether gradients flow into v.
func (v *Variable) RequiresGrad() bool { return v.requiresGrad }

// SetRequiresGrad marks a leaf as trainable or frozen.
func (v *Variable) SetRequiresGrad(b bool) {
	if v.creator != nil {
		panic("autograd: SetRequiresGrad on a non-leaf variable")
	}
	v.requiresGrad = b
}

// IsLeaf reports whether v was created by the user rather than an operation.
func (v *Variable) IsLeaf() bool { return v.creator == nil }

// Shape is shorthand for v.Value.Shape.
func (v *Variable) Shape() []int { return v.Value.Shape }

// Item returns the single value of a one-element variable.
func (v *Variable) Item() float64 {
	if len(v.Value.Data) != 1 {
		panic(fmt.Sprintf("autograd: Item on variable of shape %v", v.Value.Shape))
	}
	return v.Value.Data[0]
}

func (v *Variable) String() string {
	if v.creator == nil {
		return fmt.Sprintf("Variable(leaf %v)", v.Value.Shape)
	}
	return fmt.Sprintf("Variable(%s %v)", v.creator.op.name(), v.Value.Shape)
}

// Detach returns a leaf holding a deep copy of v's value, cut from the graph.
func (v *Variable) Detach() *Variable {
	return Constant(v.Value.Clone())
}

// ZeroGrad clears the accumulated gradient in place.
func (v *Variable) ZeroGrad() {
	if v.Grad == nil {
		return
	}
	for i := range v.Grad.Data {
		v.Grad.Data[i] = 0
	}
}

// ZeroGrads clears the accumulated gradients of every variable.
func ZeroGrads(vars ...*Variable) {
	for _, v := range vars {
		v.ZeroGrad()
	}
}

func (v *Variable) accumulate(g *tensor.Tensor) {
	if v.Grad == nil || !tensor.SameShape(v.Grad, g) {
		v.Grad = g.Clone()
		return
	}
	floats.Add(v.Grad.Data, g.Data)
}

// GradientList holds one gradient per parameter, in parameter order.
type GradientList []*Variable

// Detach deep-copies every gradient out of the graph.
func (gl GradientList) Detach() GradientList {
	out := make(GradientList, len(gl))
	for i, g := range gl {
		out[i] = g.Detach()
	}
	return out
}

// Tensors returns the underlying values.
func (gl GradientList) Tensors() []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(gl))
	for i, g := range gl {
		out[i] = g.Value
	}
	return out
}

// Flatten concatenates all values in order.
func (gl GradientList) Flatten() []float64 {
	n := 0
	for _, g := range gl {
		n += g.Value.Numel()
	}
	out := make([]float64, 0, n)
	for _, g := range gl {
		out = append(out, g.Value.Data...)
	}
	return out
}
