package layers

import (
	"testing"

	"gradleak/autograd"
	"gradleak/tensor"
)

func TestFlatten_Plain(t *testing.T) {
	f := NewFlatten()
	input := tensor.New(2, 3, 2, 2)
	for i := range input.Data {
		input.Data[i] = float64(i)
	}
	out, err := f.Forward(autograd.Constant(input))
	if err != nil {
		t.Fatalf("flatten error: %v", err)
	}
	if len(out.Shape()) != 2 || out.Shape()[0] != 2 || out.Shape()[1] != 12 {
		t.Fatalf("flatten shape %v, want [2 12]", out.Shape())
	}
	for i, v := range out.Value.Data {
		if v != float64(i) {
			t.Fatalf("flatten reordered data at %d", i)
		}
	}
	if _, err := f.Forward(autograd.Constant(tensor.New(4))); err == nil {
		t.Fatalf("expected error for unbatched input")
	}
}
