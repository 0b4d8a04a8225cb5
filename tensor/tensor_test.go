package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestAddShapeMismatch(t *testing.T) {
	_, err := Add(New(3), New(2))
	require.Error(t, err)
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestTranspose(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	c, err := Transpose(a)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, c.Shape)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, c.Data)
}

func TestPermuteRoundTrip(t *testing.T) {
	a := New(2, 3, 4)
	for i := range a.Data {
		a.Data[i] = float64(i)
	}
	axes := []int{2, 0, 1}
	p, err := Permute(a, axes...)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, p.Shape)
	assert.Equal(t, a.At(1, 2, 3), p.At(3, 1, 2))

	back, err := Permute(p, InversePermutation(axes)...)
	require.NoError(t, err)
	assert.Equal(t, a.Data, back.Data)
}

func TestIm2ColIdentityKernel(t *testing.T) {
	x := New(1, 1, 3, 3)
	for i := range x.Data {
		x.Data[i] = float64(i + 1)
	}
	cols, err := Im2Col(x, ConvGeometry{Kernel: 1, Stride: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{9, 1}, cols.Shape)
	assert.Equal(t, x.Data, cols.Data)
}

func TestIm2ColPadding(t *testing.T) {
	x := Full(1, 1, 1, 2, 2)
	g := ConvGeometry{Kernel: 3, Stride: 1, Padding: 1}
	cols, err := Im2Col(x, g)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9}, cols.Shape)
	// top-left patch sees the four real pixels in its lower-right corner
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 0, 1, 1}, cols.Data[:9])
}

// Col2Im is the adjoint of Im2Col: <Im2Col(x), y> == <x, Col2Im(y)>.
func TestCol2ImAdjoint(t *testing.T) {
	g := ConvGeometry{Kernel: 3, Stride: 2, Padding: 1}
	x := New(2, 2, 5, 5)
	for i := range x.Data {
		x.Data[i] = float64(i%7) - 3
	}
	cols, err := Im2Col(x, g)
	require.NoError(t, err)
	y := New(cols.Shape...)
	for i := range y.Data {
		y.Data[i] = float64(i%5) * 0.5
	}
	folded, err := Col2Im(y, x.Shape, g)
	require.NoError(t, err)

	lhs, rhs := 0.0, 0.0
	for i := range cols.Data {
		lhs += cols.Data[i] * y.Data[i]
	}
	for i := range x.Data {
		rhs += x.Data[i] * folded.Data[i]
	}
	assert.InDelta(t, lhs, rhs, 1e-9)
}

func TestAtSet(t *testing.T) {
	a := New(2, 2)
	a.Set(7, 1, 0)
	assert.Equal(t, 7.0, a.At(1, 0))
	assert.Equal(t, 7.0, a.Data[2])
	assert.Panics(t, func() { a.At(2, 0) })
}
