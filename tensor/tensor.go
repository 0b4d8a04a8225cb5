package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a simple n-D array backed by a flat []float64 in row-major order.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a zero Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	return &Tensor{
		Data:  make([]float64, Size(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromData copies data into a tensor of the given shape.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	if Size(shape) != len(data) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(data), shape)
	}
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Full returns a tensor of the given shape with every element set to v.
func Full(v float64, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Size is the number of elements a tensor of the given shape holds.
func Size(shape []int) int {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return total
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int { return len(t.Data) }

// Clone deep-copies data and shape.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// Reshape returns a tensor sharing t's data under a new shape.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if Size(shape) != len(t.Data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v into %v", t.Shape, shape)
	}
	return &Tensor{Data: t.Data, Shape: append([]int(nil), shape...)}, nil
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	return EqualShapes(a.Shape, b.Shape)
}

// EqualShapes compares two shape slices.
func EqualShapes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
	}
	out := New(a.Shape...)
	floats.AddTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Sub returns a-b (same shape), or error if shapes differ.
func Sub(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
	}
	out := New(a.Shape...)
	floats.SubTo(out.Data, a.Data, b.Data)
	return out, nil
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d", k, k2)
	}
	out := New(r, c)
	if r == 0 || c == 0 || k == 0 {
		return out, nil
	}
	am := mat.NewDense(r, k, a.Data)
	bm := mat.NewDense(k, c, b.Data)
	om := mat.NewDense(r, c, out.Data)
	om.Mul(am, bm)
	return out, nil
}

// Transpose returns the transpose of a 2-D tensor.
func Transpose(a *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2-D tensor, got %v", a.Shape)
	}
	r, c := a.Shape[0], a.Shape[1]
	out := New(c, r)
	if r == 0 || c == 0 {
		return out, nil
	}
	om := mat.NewDense(c, r, out.Data)
	om.Copy(mat.NewDense(r, c, a.Data).T())
	return out, nil
}

// Permute reorders the axes of a: output axis i is input axis axes[i].
func Permute(a *Tensor, axes ...int) (*Tensor, error) {
	n := len(a.Shape)
	if len(axes) != n {
		return nil, fmt.Errorf("Permute: %d axes for %d-D tensor", len(axes), n)
	}
	seen := make([]bool, n)
	for _, ax := range axes {
		if ax < 0 || ax >= n || seen[ax] {
			return nil, fmt.Errorf("Permute: invalid axes %v", axes)
		}
		seen[ax] = true
	}

	inStrides := Strides(a.Shape)
	outShape := make([]int, n)
	strides := make([]int, n)
	for i, ax := range axes {
		outShape[i] = a.Shape[ax]
		strides[i] = inStrides[ax]
	}
	out := New(outShape...)
	idx := make([]int, n)
	for o := range out.Data {
		src := 0
		for i := 0; i < n; i++ {
			src += idx[i] * strides[i]
		}
		out.Data[o] = a.Data[src]
		// increment the multi-index in row-major order
		for i := n - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < outShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// InversePermutation returns the axes that undo Permute(a, axes...).
func InversePermutation(axes []int) []int {
	inv := make([]int, len(axes))
	for i, ax := range axes {
		inv[ax] = i
	}
	return inv
}

// Strides returns row-major strides for shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// At returns the element at the given indices.
// For a 4D tensor [a, b, c, d], At(i, j, k, l) returns the element at position [i][j][k][l].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
