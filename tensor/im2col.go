package tensor

import "fmt"

// ConvGeometry describes a square-kernel 2-D convolution window.
type ConvGeometry struct {
	Kernel  int
	Stride  int
	Padding int
}

// OutSize returns the spatial output length for an input of length in.
func (g ConvGeometry) OutSize(in int) int {
	return (in+2*g.Padding-g.Kernel)/g.Stride + 1
}

func (g ConvGeometry) validate(h, w int) error {
	if g.Kernel <= 0 || g.Stride <= 0 || g.Padding < 0 {
		return fmt.Errorf("invalid conv geometry %+v", g)
	}
	if g.OutSize(h) <= 0 || g.OutSize(w) <= 0 {
		return fmt.Errorf("conv geometry %+v does not fit %dx%d input", g, h, w)
	}
	return nil
}

// Im2Col unfolds x [N,C,H,W] into patches [N*OH*OW, C*K*K]. Rows enumerate
// (n, oh, ow) and columns enumerate (c, kh, kw), both row-major. Padded
// positions contribute zeros.
func Im2Col(x *Tensor, g ConvGeometry) (*Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("Im2Col requires [N,C,H,W], got %v", x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if err := g.validate(h, w); err != nil {
		return nil, err
	}
	oh, ow := g.OutSize(h), g.OutSize(w)
	k := g.Kernel
	cols := New(n*oh*ow, c*k*k)
	g.walk(n, c, h, w, func(row, col, src int) {
		cols.Data[row*cols.Shape[1]+col] = x.Data[src]
	})
	return cols, nil
}

// Col2Im folds patches back into an [N,C,H,W] tensor of the given shape,
// summing overlapping contributions. It is the adjoint of Im2Col.
func Col2Im(cols *Tensor, shape []int, g ConvGeometry) (*Tensor, error) {
	if len(shape) != 4 {
		return nil, fmt.Errorf("Col2Im requires a [N,C,H,W] target shape, got %v", shape)
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if err := g.validate(h, w); err != nil {
		return nil, err
	}
	oh, ow := g.OutSize(h), g.OutSize(w)
	k := g.Kernel
	if len(cols.Shape) != 2 || cols.Shape[0] != n*oh*ow || cols.Shape[1] != c*k*k {
		return nil, fmt.Errorf("Col2Im: patches %v do not match image %v", cols.Shape, shape)
	}
	x := New(shape...)
	g.walk(n, c, h, w, func(row, col, src int) {
		x.Data[src] += cols.Data[row*cols.Shape[1]+col]
	})
	return x, nil
}

// walk visits every in-bounds (patch row, patch column, image offset) triple.
func (g ConvGeometry) walk(n, c, h, w int, visit func(row, col, src int)) {
	oh, ow := g.OutSize(h), g.OutSize(w)
	k := g.Kernel
	for b := 0; b < n; b++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				row := (b*oh+y)*ow + x
				for ch := 0; ch < c; ch++ {
					for ky := 0; ky < k; ky++ {
						iy := y*g.Stride - g.Padding + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < k; kx++ {
							ix := x*g.Stride - g.Padding + kx
							if ix < 0 || ix >= w {
								continue
							}
							col := (ch*k+ky)*k + kx
							visit(row, col, ((b*c+ch)*h+iy)*w+ix)
						}
					}
				}
			}
		}
	}
}
