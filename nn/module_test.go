package nn

import (
	"errors"
	"testing"

	"gradleak/autograd"
	"gradleak/tensor"
)

// dummy layer: adds a trainable constant
type addLayer struct{ c *autograd.Variable }

func newAddLayer(c float64) *addLayer {
	return &addLayer{c: autograd.Param(tensor.Full(c, 1))}
}

func (l *addLayer) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	return autograd.Add(x, autograd.Expand(l.c, x.Shape()...)), nil
}
func (l *addLayer) Parameters() []*autograd.Variable { return []*autograd.Variable{l.c} }

// dummy layer: error on forward
type errLayer struct{}

func (l *errLayer) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	return nil, errors.New("fail")
}
func (l *errLayer) Parameters() []*autograd.Variable { return nil }

func TestSequentialPlain(t *testing.T) {
	a := tensor.New(1)
	a.Data[0] = 1
	seq := &Sequential{Layers: []Module{newAddLayer(2), newAddLayer(3)}}
	out, err := seq.Forward(autograd.Constant(a))
	if err != nil {
		t.Fatal(err)
	}
	if out.Value.Data[0] != 6 {
		t.Fatalf("expected 6, got %f", out.Value.Data[0])
	}
}

func TestSequentialError(t *testing.T) {
	seq := &Sequential{Layers: []Module{newAddLayer(0), &errLayer{}}}
	if _, err := seq.Forward(autograd.Constant(tensor.New(1))); err == nil {
		t.Fatal("expected error from errLayer")
	}
}

func TestSequentialParametersOrderAndZeroGrad(t *testing.T) {
	first, second := newAddLayer(1), newAddLayer(2)
	seq := &Sequential{Layers: []Module{first, &errLayer{}, second}}
	params := seq.Parameters()
	if len(params) != 2 || params[0] != first.c || params[1] != second.c {
		t.Fatalf("unexpected parameter order: %v", params)
	}

	out := autograd.Add(first.c, second.c)
	if err := out.Backward(); err != nil {
		t.Fatal(err)
	}
	if first.c.Grad.Data[0] != 1 {
		t.Fatalf("expected grad 1, got %f", first.c.Grad.Data[0])
	}
	ZeroGrad(seq)
	if first.c.Grad.Data[0] != 0 || second.c.Grad.Data[0] != 0 {
		t.Fatalf("ZeroGrad left gradients behind")
	}
}
