package autograd

import (
	"math"
	"testing"

	"gradleak/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func param(shape []int, data ...float64) *Variable {
	t, err := tensor.FromData(data, shape...)
	if err != nil {
		panic(err)
	}
	return Param(t)
}

func ramp(n int, scale, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i)+offset) * scale
	}
	return out
}

// checkGradient compares the analytic gradient of f at x against central
// finite differences.
func checkGradient(t *testing.T, f func(x *Variable) *Variable, shape []int, x0 []float64, tol float64) {
	t.Helper()
	x := param(shape, x0...)
	out := f(x)
	got, err := Grad(out, []*Variable{x}, false)
	require.NoError(t, err)

	want := fd.Gradient(nil, func(v []float64) float64 {
		return f(param(shape, v...)).Item()
	}, x0, &fd.Settings{Formula: fd.Central})
	require.Len(t, got[0].Value.Data, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[0].Value.Data[i], tol, "component %d", i)
	}
}

func TestElementwiseGradients(t *testing.T) {
	shape := []int{2, 3}
	x0 := ramp(6, 1.5, 0.3)
	c := Constant(&tensor.Tensor{Data: ramp(6, 0.7, 2), Shape: shape})

	checkGradient(t, func(x *Variable) *Variable {
		return Sum(Mul(Sigmoid(x), Exp(Scale(x, 0.5))))
	}, shape, x0, 1e-6)

	checkGradient(t, func(x *Variable) *Variable {
		return Sum(Square(Sub(AddScalar(x, 2), c)))
	}, shape, x0, 1e-6)
}

func TestMatMulAndReductionGradients(t *testing.T) {
	w := Constant(&tensor.Tensor{Data: ramp(12, 1, 1), Shape: []int{3, 4}})
	b := Constant(&tensor.Tensor{Data: ramp(4, 1, 5), Shape: []int{4}})
	checkGradient(t, func(x *Variable) *Variable {
		h := Add(MatMul(x, w), RepeatRows(b, 2))
		return Sum(Mul(Sigmoid(h), RepeatCols(RowSums(h), 4)))
	}, []int{2, 3}, ramp(6, 0.5, 0), 1e-6)
}

func TestLogSoftmaxGradient(t *testing.T) {
	target := Constant(&tensor.Tensor{Data: []float64{0, 1, 0, 0.2, 0.3, 0.5}, Shape: []int{2, 3}})
	checkGradient(t, func(x *Variable) *Variable {
		return Neg(Sum(Mul(target, LogSoftmax(x))))
	}, []int{2, 3}, ramp(6, 2, 0.1), 1e-6)
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	x := param([]int{2, 3}, 1, 2, 3, -1, 0, 1000)
	p := Softmax(x)
	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += p.Value.At(i, j)
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestConvPathGradient(t *testing.T) {
	g := tensor.ConvGeometry{Kernel: 3, Stride: 2, Padding: 1}
	shape := []int{1, 2, 4, 4}
	w := Constant(&tensor.Tensor{Data: ramp(18*3, 0.3, 0.5), Shape: []int{18, 3}})
	checkGradient(t, func(x *Variable) *Variable {
		cols := Im2Col(x, g)
		y := Reshape(MatMul(cols, w), 1, 2, 2, 3)
		y = Permute(y, 0, 3, 1, 2)
		return Sum(Square(Sigmoid(y)))
	}, shape, ramp(32, 1, 0.2), 1e-6)
}

// The gradient of a gradient: f(x) = ||d/dw L(w, x)||^2 must itself be
// differentiable with respect to x.
func TestSecondOrderGradient(t *testing.T) {
	w0 := ramp(6, 0.8, 1.1)
	f := func(x *Variable) *Variable {
		w := param([]int{3, 2}, w0...)
		onehot := Constant(&tensor.Tensor{Data: []float64{1, 0, 0, 1}, Shape: []int{2, 2}})
		h := Sigmoid(MatMul(x, w))
		loss := Neg(Sum(Mul(onehot, LogSoftmax(h))))
		dw, err := Grad(loss, []*Variable{w}, true)
		if err != nil {
			panic(err)
		}
		return Sum(Square(dw[0]))
	}
	checkGradient(t, f, []int{2, 3}, ramp(6, 1, 0.4), 1e-5)
}

// Same as above through the convolution path: Im2Col, RepeatRows, Reshape
// and Permute, with Col2Im appearing in the first backward pass.
func TestSecondOrderGradientThroughConvolution(t *testing.T) {
	g := tensor.ConvGeometry{Kernel: 3, Stride: 2, Padding: 1}
	w0 := ramp(2*18, 0.4, 0.7)
	b0 := ramp(2, 0.3, 2.5)
	f := func(x *Variable) *Variable {
		w := param([]int{2, 18}, w0...)
		b := param([]int{2}, b0...)
		onehot := Constant(&tensor.Tensor{Data: []float64{0, 0, 1, 0, 0, 0, 0, 0}, Shape: []int{1, 8}})
		y := Add(MatMul(Im2Col(x, g), Transpose(w)), RepeatRows(b, 4))
		y = Permute(Reshape(y, 1, 2, 2, 2), 0, 3, 1, 2)
		logits := Reshape(Sigmoid(y), 1, 8)
		loss := Neg(Sum(Mul(onehot, LogSoftmax(logits))))
		grads, err := Grad(loss, []*Variable{w, b}, true)
		if err != nil {
			panic(err)
		}
		return Add(Sum(Square(grads[0])), Sum(Square(grads[1])))
	}
	checkGradient(t, f, []int{1, 2, 4, 4}, ramp(32, 1, 0.2), 1e-5)
}

func TestBackwardAccumulatesIntoLeaves(t *testing.T) {
	x := param([]int{2}, 1, 2)
	y := Sum(Square(x))
	require.NoError(t, y.Backward())
	assert.Equal(t, []float64{2, 4}, x.Grad.Data)

	require.NoError(t, Sum(Square(x)).Backward())
	assert.Equal(t, []float64{4, 8}, x.Grad.Data)

	x.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, x.Grad.Data)
}

func TestGradOfUnreachableInputIsZero(t *testing.T) {
	x := param([]int{2}, 1, 2)
	z := param([]int{3}, 1, 2, 3)
	grads, err := Grad(Sum(x), []*Variable{x, z}, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, grads[0].Value.Data)
	assert.Equal(t, []float64{0, 0, 0}, grads[1].Value.Data)
	assert.True(t, grads[1].IsLeaf())
}

func TestGradRejectsNonScalar(t *testing.T) {
	x := param([]int{2}, 1, 2)
	_, err := Grad(Square(x), []*Variable{x}, false)
	require.Error(t, err)
	require.Error(t, Square(x).Backward())
}

func TestDetachCopies(t *testing.T) {
	x := param([]int{2}, 1, 2)
	d := x.Detach()
	x.Value.Data[0] = 9
	assert.Equal(t, 1.0, d.Value.Data[0])
	assert.False(t, d.RequiresGrad())
}

func TestConstantsRecordNoGraph(t *testing.T) {
	a := Constant(tensor.Full(1, 2))
	b := Add(a, a)
	assert.True(t, b.IsLeaf())
	assert.False(t, b.RequiresGrad())
}
