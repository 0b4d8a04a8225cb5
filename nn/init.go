package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// InitUniform fills every parameter of m, weights and biases alike, with
// samples from U(lo, hi).
func InitUniform(m Module, lo, hi float64, src rand.Source) {
	dist := distuv.Uniform{Min: lo, Max: hi, Src: src}
	for _, p := range m.Parameters() {
		for i := range p.Value.Data {
			p.Value.Data[i] = dist.Rand()
		}
	}
}

// InitDefault applies the classic DLG initialization, U(-0.5, 0.5).
func InitDefault(m Module, src rand.Source) {
	InitUniform(m, -0.5, 0.5, src)
}

// InitZero sets every parameter of m to zero.
func InitZero(m Module) {
	for _, p := range m.Parameters() {
		for i := range p.Value.Data {
			p.Value.Data[i] = 0
		}
	}
}
