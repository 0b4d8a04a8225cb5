package layers

import (
	"fmt"

	"gradleak/autograd"
	"gradleak/tensor"
)

// Conv2D is a square-kernel 2-D convolution over [N, C, H, W] batches.
//
// The forward pass unfolds the input into patches (Im2Col), multiplies by the
// flattened kernel and folds the result back to channels-first layout. Every
// step is an autograd operation, so gradients of any order are available.
type Conv2D struct {
	W *autograd.Variable // [outChan, inChan, k, k]
	B *autograd.Variable // [outChan]

	InChan, OutChan int
	Geometry        tensor.ConvGeometry
}

// NewConv2D allocates zero weights for a k×k kernel.
func NewConv2D(inChan, outChan, k, stride, padding int) *Conv2D {
	return &Conv2D{
		W:        autograd.Param(tensor.New(outChan, inChan, k, k)),
		B:        autograd.Param(tensor.New(outChan)),
		InChan:   inChan,
		OutChan:  outChan,
		Geometry: tensor.ConvGeometry{Kernel: k, Stride: stride, Padding: padding},
	}
}

// OutputSize returns the spatial size produced for an h×w input.
func (c *Conv2D) OutputSize(h, w int) (int, int) {
	return c.Geometry.OutSize(h), c.Geometry.OutSize(w)
}

// Forward maps x [N, InChan, H, W] to [N, OutChan, OH, OW].
func (c *Conv2D) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != c.InChan {
		return nil, fmt.Errorf("Conv2D: expected [N, %d, H, W] input, got %v", c.InChan, shape)
	}
	n := shape[0]
	oh, ow := c.OutputSize(shape[2], shape[3])
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("Conv2D: kernel %d does not fit input %v", c.Geometry.Kernel, shape)
	}
	k := c.Geometry.Kernel

	// patches [N*OH*OW, C*k*k] times kernel^T [C*k*k, OC]
	cols := autograd.Im2Col(x, c.Geometry)
	kernel := autograd.Reshape(c.W, c.OutChan, c.InChan*k*k)
	y := autograd.MatMul(cols, autograd.Transpose(kernel))
	y = autograd.Add(y, autograd.RepeatRows(c.B, n*oh*ow))
	y = autograd.Reshape(y, n, oh, ow, c.OutChan)
	return autograd.Permute(y, 0, 3, 1, 2), nil
}

// Parameters returns weight then bias.
func (c *Conv2D) Parameters() []*autograd.Variable {
	return []*autograd.Variable{c.W, c.B}
}

func (c *Conv2D) Tag() string {
	return fmt.Sprintf("Conv2D(%d->%d, k=%d, s=%d, p=%d)", c.InChan, c.OutChan,
		c.Geometry.Kernel, c.Geometry.Stride, c.Geometry.Padding)
}
