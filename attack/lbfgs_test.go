package attack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// bowl is f(x) = ||x||^2 / 2, whose gradient is x.
func bowl(evals *int) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			*evals++
			return floats.Dot(x, x) / 2
		},
		Grad: func(grad, x []float64) {
			copy(grad, x)
		},
	}
}

func minimizeWith(t *testing.T, m *lbfgs, p optimize.Problem, x []float64) []float64 {
	t.Helper()
	_, err := optimize.Minimize(p, x, &optimize.Settings{Converger: optimize.NeverTerminate{}}, m)
	require.NoError(t, err)
	return m.Point()
}

func TestLBFGSStepScalesWithLR(t *testing.T) {
	// first step: min(1, 1/|g|_1)*lr along -g, then steps of lr along the
	// exact Newton direction -x; the last step is taken without evaluating
	for _, lr := range []float64{1e-3, 0.1, 0.5} {
		evals := 0
		got := minimizeWith(t, newLBFGS(lr, 4, 10), bowl(&evals), []float64{3, 4})
		factor := (1 - lr/7) * (1 - lr) * (1 - lr) * (1 - lr)
		assert.InDeltaSlice(t, []float64{3 * factor, 4 * factor}, got, 1e-12, "lr %g", lr)
		assert.Equal(t, 4, evals, "lr %g", lr)
	}
}

func TestLBFGSKeepsHistoryAcrossCalls(t *testing.T) {
	m := newLBFGS(1, 1, 10)
	evals := 0
	x := minimizeWith(t, m, bowl(&evals), []float64{3, 4})
	assert.InDeltaSlice(t, []float64{18.0 / 7, 24.0 / 7}, x, 1e-12)

	// the second call reuses the first step's curvature pair and lands on
	// the minimum; a fresh method would take another gradient step instead
	x = minimizeWith(t, m, bowl(&evals), x)
	assert.InDeltaSlice(t, []float64{0, 0}, x, 1e-12)

	fresh := minimizeWith(t, newLBFGS(1, 1, 10), bowl(&evals), []float64{18.0 / 7, 24.0 / 7})
	assert.Greater(t, floats.Norm(fresh, 2), 1.0)
}

func TestLBFGSStopsAtStationaryPoint(t *testing.T) {
	evals := 0
	got := minimizeWith(t, newLBFGS(1, 20, 10), bowl(&evals), []float64{1e-9, 0})
	assert.Equal(t, []float64{1e-9, 0}, got)
	assert.Equal(t, 1, evals)
}

func TestLBFGSEvaluatesOncePerIteration(t *testing.T) {
	evals := 0
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			evals++
			return x[0]*x[0] + 100*x[1]*x[1]
		},
		Grad: func(grad, x []float64) {
			grad[0] = 2 * x[0]
			grad[1] = 200 * x[1]
		},
	}
	m := newLBFGS(0.01, 8, 10)
	minimizeWith(t, m, p, []float64{1, 1})
	assert.Equal(t, 10, m.MaxEval)
	assert.LessOrEqual(t, evals, m.MaxIter)
	assert.Greater(t, evals, 1)
}
