package attack

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gradleak/autograd"
	"gradleak/measure"
	"gradleak/nn"
	"gradleak/utils"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// ErrNonFinite is returned when the gradient distance or its gradient
// stops being a finite number.
var ErrNonFinite = errors.New("non-finite objective")

// objective is the closure the optimizer re-evaluates: the distance between
// the intercepted gradients and the gradients the dummy batch produces.
//
// The optimizer coordinates are the dummy data values followed by the dummy
// label logits.
type objective struct {
	net      nn.Module
	measure  measure.Measure
	original autograd.GradientList
	data     *autograd.Variable
	label    *autograd.Variable
	stats    *utils.TimingStats

	cached bool
	lastX  []float64
	lastF  float64
	lastG  []float64
	err    error
}

func newObjective(net nn.Module, m measure.Measure, original autograd.GradientList, data, label *autograd.Variable, stats *utils.TimingStats) *objective {
	return &objective{
		net:      net,
		measure:  m,
		original: original,
		data:     data,
		label:    label,
		stats:    stats,
	}
}

func (o *objective) dim() int { return o.data.Value.Numel() + o.label.Value.Numel() }

// point returns the optimizer coordinates of the current dummy values.
func (o *objective) point() []float64 {
	x := make([]float64, 0, o.dim())
	x = append(x, o.data.Value.Data...)
	return append(x, o.label.Value.Data...)
}

// load writes the optimizer coordinates x back into the dummy values.
func (o *objective) load(x []float64) {
	n := o.data.Value.Numel()
	copy(o.data.Value.Data, x[:n])
	copy(o.label.Value.Data, x[n:])
}

func (o *objective) invalidate() { o.cached = false }

// evaluate returns the gradient distance at x and its gradient with respect
// to x. Repeated calls at the same point reuse the last result.
func (o *objective) evaluate(x []float64) (float64, []float64, error) {
	if o.cached && floats.Equal(x, o.lastX) {
		return o.lastF, o.lastG, nil
	}
	o.load(x)
	f, err := o.closure()
	if err != nil {
		return 0, nil, err
	}
	g := make([]float64, 0, o.dim())
	g = appendGrad(g, o.data)
	g = appendGrad(g, o.label)
	if math.IsNaN(f) || math.IsInf(f, 0) || floats.HasNaN(g) || hasInf(g) {
		return 0, nil, fmt.Errorf("%w: distance %v", ErrNonFinite, f)
	}
	o.cached = true
	o.lastX = append(o.lastX[:0], x...)
	o.lastF = f
	o.lastG = g
	return f, g, nil
}

// closure runs one full evaluation on the currently loaded dummy values and
// leaves d(distance)/d(dummy) in the Grad fields of data and label.
func (o *objective) closure() (float64, error) {
	o.stats.Evaluations++
	params := o.net.Parameters()
	autograd.ZeroGrads(o.data, o.label)
	autograd.ZeroGrads(params...)

	start := time.Now()
	pred, err := o.net.Forward(o.data)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}
	soft := autograd.Softmax(o.label)
	loss, err := nn.CrossEntropyForOnehot(pred, soft)
	if err != nil {
		return 0, err
	}
	o.stats.ForwardTime += time.Since(start)

	start = time.Now()
	dummyGrad, err := autograd.Grad(loss, params, true)
	if err != nil {
		return 0, fmt.Errorf("dummy gradient: %w", err)
	}
	o.stats.InnerGradTime += time.Since(start)

	start = time.Now()
	dist, err := o.measure.Measure(o.original, dummyGrad)
	if err != nil {
		return 0, err
	}
	o.stats.MeasureTime += time.Since(start)

	start = time.Now()
	if err := dist.Backward(); err != nil {
		return 0, fmt.Errorf("distance gradient: %w", err)
	}
	o.stats.OuterGradTime += time.Since(start)
	return dist.Item(), nil
}

func appendGrad(dst []float64, v *autograd.Variable) []float64 {
	if v.Grad == nil {
		return append(dst, make([]float64, v.Value.Numel())...)
	}
	return append(dst, v.Grad.Data...)
}

func hasInf(s []float64) bool {
	for _, v := range s {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// problem exposes the objective to gonum. Evaluation errors stop the
// optimizer through Status.
func (o *objective) problem() optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			f, _, err := o.evaluate(x)
			if err != nil {
				o.err = err
				return math.NaN()
			}
			return f
		},
		Grad: func(grad, x []float64) {
			_, g, err := o.evaluate(x)
			if err != nil {
				o.err = err
				for i := range grad {
					grad[i] = math.NaN()
				}
				return
			}
			copy(grad, g)
		},
		Status: func() (optimize.Status, error) {
			if o.err != nil {
				return optimize.Failure, o.err
			}
			return optimize.NotTerminated, nil
		},
	}
}
