package nn

import (
	"fmt"

	"gradleak/autograd"
	"gradleak/tensor"

	"gonum.org/v1/gonum/floats"
)

// CrossEntropyForOnehot is the batch mean of -sum(target * log_softmax(pred)).
// target may be a hard one-hot or any soft distribution per row, and gradients
// flow into both arguments.
func CrossEntropyForOnehot(pred, target *autograd.Variable) (*autograd.Variable, error) {
	if len(pred.Shape()) != 2 || !tensor.SameShape(pred.Value, target.Value) {
		return nil, fmt.Errorf("cross entropy: prediction %v and target %v must be equal [batch, classes] shapes", pred.Shape(), target.Shape())
	}
	batch := pred.Shape()[0]
	if batch == 0 {
		return nil, fmt.Errorf("cross entropy: empty batch")
	}
	nll := autograd.Neg(autograd.Sum(autograd.Mul(target, autograd.LogSoftmax(pred))))
	return autograd.Scale(nll, 1/float64(batch)), nil
}

// LabelToOnehot encodes class indices as a [len(labels), classes] tensor.
func LabelToOnehot(labels []int, classes int) (*tensor.Tensor, error) {
	out := tensor.New(len(labels), classes)
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, fmt.Errorf("label %d out of range [0, %d)", l, classes)
		}
		out.Set(1, i, l)
	}
	return out, nil
}

// RecoveredLabels reads the most probable class of every row of label
// logits. Softmax keeps the order of the logits, so the largest logit wins;
// the first one on ties.
func RecoveredLabels(logits *tensor.Tensor) []int {
	rows, cols := logits.Shape[0], logits.Shape[1]
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.MaxIdx(logits.Data[i*cols : (i+1)*cols])
	}
	return out
}
