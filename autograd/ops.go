package autograd

import (
	"fmt"
	"math"

	"gradleak/tensor"

	"gonum.org/v1/gonum/floats"
)

func record(value *tensor.Tensor, o op, inputs ...*Variable) *Variable {
	v := &Variable{Value: value}
	for _, in := range inputs {
		if in.requiresGrad {
			v.requiresGrad = true
			break
		}
	}
	if v.requiresGrad {
		v.creator = &node{op: o, inputs: inputs}
	}
	return v
}

func mustSameShape(name string, a, b *Variable) {
	if !tensor.SameShape(a.Value, b.Value) {
		panic(fmt.Sprintf("autograd: %s shape mismatch %v vs %v", name, a.Value.Shape, b.Value.Shape))
	}
}

func must(t *tensor.Tensor, err error) *tensor.Tensor {
	if err != nil {
		panic("autograd: " + err.Error())
	}
	return t
}

func needs(v *Variable) bool { return v.requiresGrad }

// Add returns a+b elementwise.
func Add(a, b *Variable) *Variable {
	mustSameShape("Add", a, b)
	out := tensor.New(a.Value.Shape...)
	floats.AddTo(out.Data, a.Value.Data, b.Value.Data)
	return record(out, addOp{}, a, b)
}

type addOp struct{}

func (addOp) name() string { return "Add" }
func (addOp) backward(_, g *Variable) []*Variable {
	return []*Variable{g, g}
}

// Sub returns a-b elementwise.
func Sub(a, b *Variable) *Variable {
	mustSameShape("Sub", a, b)
	out := tensor.New(a.Value.Shape...)
	floats.SubTo(out.Data, a.Value.Data, b.Value.Data)
	return record(out, subOp{b}, a, b)
}

type subOp struct{ b *Variable }

func (subOp) name() string { return "Sub" }
func (o subOp) backward(_, g *Variable) []*Variable {
	var gb *Variable
	if needs(o.b) {
		gb = Neg(g)
	}
	return []*Variable{g, gb}
}

// Mul returns a*b elementwise.
func Mul(a, b *Variable) *Variable {
	mustSameShape("Mul", a, b)
	out := tensor.New(a.Value.Shape...)
	floats.MulTo(out.Data, a.Value.Data, b.Value.Data)
	return record(out, mulOp{a, b}, a, b)
}

type mulOp struct{ a, b *Variable }

func (mulOp) name() string { return "Mul" }
func (o mulOp) backward(_, g *Variable) []*Variable {
	grads := make([]*Variable, 2)
	if needs(o.a) {
		grads[0] = Mul(g, o.b)
	}
	if needs(o.b) {
		grads[1] = Mul(g, o.a)
	}
	return grads
}

// Square returns a*a elementwise.
func Square(a *Variable) *Variable { return Mul(a, a) }

// Scale returns c*a.
func Scale(a *Variable, c float64) *Variable {
	out := tensor.New(a.Value.Shape...)
	floats.ScaleTo(out.Data, c, a.Value.Data)
	return record(out, scaleOp{c}, a)
}

type scaleOp struct{ c float64 }

func (scaleOp) name() string { return "Scale" }
func (o scaleOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Scale(g, o.c)}
}

// Neg returns -a.
func Neg(a *Variable) *Variable { return Scale(a, -1) }

// AddScalar returns a+c.
func AddScalar(a *Variable, c float64) *Variable {
	out := a.Value.Clone()
	floats.AddConst(c, out.Data)
	return record(out, addScalarOp{}, a)
}

type addScalarOp struct{}

func (addScalarOp) name() string { return "AddScalar" }
func (addScalarOp) backward(_, g *Variable) []*Variable {
	return []*Variable{g}
}

// Exp returns e^a elementwise.
func Exp(a *Variable) *Variable {
	out := tensor.New(a.Value.Shape...)
	for i, v := range a.Value.Data {
		out.Data[i] = math.Exp(v)
	}
	return record(out, expOp{}, a)
}

type expOp struct{}

func (expOp) name() string { return "Exp" }
func (expOp) backward(out, g *Variable) []*Variable {
	return []*Variable{Mul(g, out)}
}

// Sigmoid returns 1/(1+e^-a) elementwise.
func Sigmoid(a *Variable) *Variable {
	out := tensor.New(a.Value.Shape...)
	for i, v := range a.Value.Data {
		out.Data[i] = 1 / (1 + math.Exp(-v))
	}
	return record(out, sigmoidOp{}, a)
}

type sigmoidOp struct{}

func (sigmoidOp) name() string { return "Sigmoid" }

// d sigmoid = s * (1 - s), expressed through s so it stays differentiable.
func (sigmoidOp) backward(out, g *Variable) []*Variable {
	return []*Variable{Mul(g, Mul(out, AddScalar(Neg(out), 1)))}
}

// Sum reduces a to a one-element tensor.
func Sum(a *Variable) *Variable {
	out := &tensor.Tensor{Data: []float64{floats.Sum(a.Value.Data)}, Shape: []int{1}}
	return record(out, sumOp{shape: a.Value.Shape}, a)
}

type sumOp struct{ shape []int }

func (sumOp) name() string { return "Sum" }
func (o sumOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Expand(g, o.shape...)}
}

// Expand broadcasts a one-element variable to shape.
func Expand(a *Variable, shape ...int) *Variable {
	if a.Value.Numel() != 1 {
		panic(fmt.Sprintf("autograd: Expand of shape %v", a.Value.Shape))
	}
	return record(tensor.Full(a.Value.Data[0], shape...), expandOp{}, a)
}

type expandOp struct{}

func (expandOp) name() string { return "Expand" }
func (expandOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Sum(g)}
}

// MatMul returns the matrix product of 2-D variables.
func MatMul(a, b *Variable) *Variable {
	return record(must(tensor.MatMul(a.Value, b.Value)), matMulOp{a, b}, a, b)
}

type matMulOp struct{ a, b *Variable }

func (matMulOp) name() string { return "MatMul" }
func (o matMulOp) backward(_, g *Variable) []*Variable {
	grads := make([]*Variable, 2)
	if needs(o.a) {
		grads[0] = MatMul(g, Transpose(o.b))
	}
	if needs(o.b) {
		grads[1] = MatMul(Transpose(o.a), g)
	}
	return grads
}

// Transpose swaps the axes of a 2-D variable.
func Transpose(a *Variable) *Variable {
	return record(must(tensor.Transpose(a.Value)), transposeOp{}, a)
}

type transposeOp struct{}

func (transposeOp) name() string { return "Transpose" }
func (transposeOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Transpose(g)}
}

// Reshape returns a with a new shape of equal size. Data is copied.
func Reshape(a *Variable, shape ...int) *Variable {
	out := must(a.Value.Clone().Reshape(shape...))
	return record(out, reshapeOp{shape: a.Value.Shape}, a)
}

type reshapeOp struct{ shape []int }

func (reshapeOp) name() string { return "Reshape" }
func (o reshapeOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Reshape(g, o.shape...)}
}

// Permute reorders the axes of a.
func Permute(a *Variable, axes ...int) *Variable {
	out := must(tensor.Permute(a.Value, axes...))
	return record(out, permuteOp{inverse: tensor.InversePermutation(axes)}, a)
}

type permuteOp struct{ inverse []int }

func (permuteOp) name() string { return "Permute" }
func (o permuteOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Permute(g, o.inverse...)}
}

func dims2(name string, a *Variable) (int, int) {
	if len(a.Value.Shape) != 2 {
		panic(fmt.Sprintf("autograd: %s requires a 2-D variable, got %v", name, a.Value.Shape))
	}
	return a.Value.Shape[0], a.Value.Shape[1]
}

// RepeatRows stacks the vector v [n] m times into [m,n].
func RepeatRows(v *Variable, m int) *Variable {
	n := v.Value.Numel()
	out := tensor.New(m, n)
	for i := 0; i < m; i++ {
		copy(out.Data[i*n:(i+1)*n], v.Value.Data)
	}
	return record(out, repeatRowsOp{}, v)
}

type repeatRowsOp struct{}

func (repeatRowsOp) name() string { return "RepeatRows" }
func (repeatRowsOp) backward(_, g *Variable) []*Variable {
	return []*Variable{ColumnSums(g)}
}

// ColumnSums reduces x [m,n] over its rows into [n].
func ColumnSums(x *Variable) *Variable {
	m, n := dims2("ColumnSums", x)
	out := tensor.New(n)
	for i := 0; i < m; i++ {
		floats.Add(out.Data, x.Value.Data[i*n:(i+1)*n])
	}
	return record(out, columnSumsOp{m: m}, x)
}

type columnSumsOp struct{ m int }

func (columnSumsOp) name() string { return "ColumnSums" }
func (o columnSumsOp) backward(_, g *Variable) []*Variable {
	return []*Variable{RepeatRows(g, o.m)}
}

// RepeatCols spreads v [m] across n columns into [m,n].
func RepeatCols(v *Variable, n int) *Variable {
	m := v.Value.Numel()
	out := tensor.New(m, n)
	for i := 0; i < m; i++ {
		row := out.Data[i*n : (i+1)*n]
		for j := range row {
			row[j] = v.Value.Data[i]
		}
	}
	return record(out, repeatColsOp{}, v)
}

type repeatColsOp struct{}

func (repeatColsOp) name() string { return "RepeatCols" }
func (repeatColsOp) backward(_, g *Variable) []*Variable {
	return []*Variable{RowSums(g)}
}

// RowSums reduces x [m,n] over its columns into [m].
func RowSums(x *Variable) *Variable {
	m, n := dims2("RowSums", x)
	out := tensor.New(m)
	for i := 0; i < m; i++ {
		out.Data[i] = floats.Sum(x.Value.Data[i*n : (i+1)*n])
	}
	return record(out, rowSumsOp{n: n}, x)
}

type rowSumsOp struct{ n int }

func (rowSumsOp) name() string { return "RowSums" }
func (o rowSumsOp) backward(_, g *Variable) []*Variable {
	return []*Variable{RepeatCols(g, o.n)}
}

// LogSoftmax normalizes each row of x [m,n] into log-probabilities.
func LogSoftmax(x *Variable) *Variable {
	m, n := dims2("LogSoftmax", x)
	out := tensor.New(m, n)
	for i := 0; i < m; i++ {
		row := x.Value.Data[i*n : (i+1)*n]
		maxV := floats.Max(row)
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - maxV)
		}
		lse := maxV + math.Log(sum)
		for j, v := range row {
			out.Data[i*n+j] = v - lse
		}
	}
	return record(out, logSoftmaxOp{}, x)
}

type logSoftmaxOp struct{}

func (logSoftmaxOp) name() string { return "LogSoftmax" }

// d logsoftmax: g - softmax * rowsum(g)
func (logSoftmaxOp) backward(out, g *Variable) []*Variable {
	n := out.Value.Shape[1]
	return []*Variable{Sub(g, Mul(Exp(out), RepeatCols(RowSums(g), n)))}
}

// Softmax normalizes each row of x [m,n] into probabilities.
func Softmax(x *Variable) *Variable {
	return Exp(LogSoftmax(x))
}

// Im2Col unfolds x [N,C,H,W] into convolution patches.
func Im2Col(x *Variable, g tensor.ConvGeometry) *Variable {
	out := must(tensor.Im2Col(x.Value, g))
	return record(out, im2colOp{shape: x.Value.Shape, geom: g}, x)
}

type im2colOp struct {
	shape []int
	geom  tensor.ConvGeometry
}

func (im2colOp) name() string { return "Im2Col" }
func (o im2colOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Col2Im(g, o.shape, o.geom)}
}

// Col2Im folds patches back into an image of the given shape.
func Col2Im(cols *Variable, shape []int, g tensor.ConvGeometry) *Variable {
	out := must(tensor.Col2Im(cols.Value, shape, g))
	return record(out, col2imOp{geom: g}, cols)
}

type col2imOp struct{ geom tensor.ConvGeometry }

func (col2imOp) name() string { return "Col2Im" }
func (o col2imOp) backward(_, g *Variable) []*Variable {
	return []*Variable{Im2Col(g, o.geom)}
}
