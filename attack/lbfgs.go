package attack

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

var _ optimize.Method = (*lbfgs)(nil)

// lbfgs is a limited-memory BFGS method that moves exactly LR along every
// quasi-Newton direction; the first iteration of a run moves
// min(1, 1/|g|_1)*LR along the negative gradient. There is no line search.
//
// The curvature history, the last direction and the iteration counter
// survive between Minimize calls, so the epochs of one reconstruction run
// continue a single optimization. Every call evaluates the starting point
// once and then runs at most MaxIter iterations.
type lbfgs struct {
	LR      float64
	MaxIter int
	MaxEval int
	Store   int
	// TolGrad stops a call once the largest gradient component is this small.
	TolGrad float64
	// TolChange stops a call once a step or the change in value is this small.
	TolChange float64

	s, y  [][]float64 // oldest first
	rho   []float64
	hDiag float64

	dir      []float64
	t        float64
	prevGrad []float64
	prevF    float64
	iter     int

	x      []float64 // point reached by the last call
	status optimize.Status
	err    error
}

func newLBFGS(lr float64, maxIter, store int) *lbfgs {
	return &lbfgs{
		LR:        lr,
		MaxIter:   maxIter,
		MaxEval:   maxIter * 5 / 4,
		Store:     store,
		TolGrad:   1e-7,
		TolChange: 1e-9,
	}
}

func (*lbfgs) Uses(has optimize.Available) (optimize.Available, error) {
	if !has.Grad {
		return optimize.Available{}, errors.New("lbfgs: gradient required")
	}
	return optimize.Available{Grad: true}, nil
}

func (m *lbfgs) Init(dim, tasks int) int {
	m.status = optimize.NotTerminated
	m.err = nil
	return 1
}

func (m *lbfgs) Status() (optimize.Status, error) {
	return m.status, m.err
}

// Point returns the location reached by the last Minimize call.
func (m *lbfgs) Point() []float64 {
	return append([]float64(nil), m.x...)
}

func (m *lbfgs) Run(operation chan<- optimize.Task, result <-chan optimize.Task, tasks []optimize.Task) {
	m.run(operation, result, tasks[0])
	// result has to be closed before operation
	for range result {
	}
	close(operation)
}

// exchange hands task to Minimize and waits for it to come back. It reports
// false once Minimize has ended the run.
func exchange(operation chan<- optimize.Task, result <-chan optimize.Task, task optimize.Task, op optimize.Operation) (optimize.Task, bool) {
	task.Op = op
	operation <- task
	task = <-result
	return task, task.Op != optimize.PostIteration
}

func (m *lbfgs) run(operation chan<- optimize.Task, result <-chan optimize.Task, task optimize.Task) {
	evaluate := func() bool {
		next, ok := exchange(operation, result, task, optimize.FuncEvaluation|optimize.GradEvaluation)
		if !ok {
			return false
		}
		if next, ok = exchange(operation, result, next, optimize.MajorIteration); !ok {
			return false
		}
		task = next
		return true
	}
	defer func() { m.x = append(m.x[:0], task.X...) }()

	if !evaluate() {
		return
	}
	f, g := task.F, task.Gradient
	if floats.Norm(g, math.Inf(1)) <= m.TolGrad {
		m.done(operation, result, task)
		return
	}

	evals := 1
	for n := 1; n <= m.MaxIter; n++ {
		m.iter++
		if m.iter == 1 {
			m.dir = append(m.dir[:0], g...)
			floats.Scale(-1, m.dir)
			m.s, m.y, m.rho = nil, nil, nil
			m.hDiag = 1
		} else {
			m.nextDirection(g)
		}
		m.prevGrad = append(m.prevGrad[:0], g...)
		m.prevF = f

		m.t = m.LR
		if m.iter == 1 {
			m.t = math.Min(1, 1/floats.Norm(g, 1)) * m.LR
		}
		if floats.Dot(g, m.dir) > -m.TolChange {
			break
		}
		floats.AddScaled(task.X, m.t, m.dir)
		if n == m.MaxIter {
			break
		}

		if !evaluate() {
			return
		}
		f, g = task.F, task.Gradient
		evals++
		if evals >= m.MaxEval ||
			floats.Norm(g, math.Inf(1)) <= m.TolGrad ||
			m.t*floats.Norm(m.dir, math.Inf(1)) <= m.TolChange ||
			math.Abs(f-m.prevF) < m.TolChange {
			break
		}
	}
	m.done(operation, result, task)
}

func (m *lbfgs) done(operation chan<- optimize.Task, result <-chan optimize.Task, task optimize.Task) {
	m.status = optimize.MethodConverge
	exchange(operation, result, task, optimize.MethodDone)
}

// nextDirection records the curvature pair of the last step and puts -H*g
// into dir with the two-loop recursion.
func (m *lbfgs) nextDirection(g []float64) {
	y := make([]float64, len(g))
	floats.SubTo(y, g, m.prevGrad)
	s := make([]float64, len(g))
	floats.ScaleTo(s, m.t, m.dir)
	if ys := floats.Dot(y, s); ys > 1e-10 {
		if len(m.s) > 0 && len(m.s) >= m.Store {
			m.s, m.y, m.rho = m.s[1:], m.y[1:], m.rho[1:]
		}
		m.s = append(m.s, s)
		m.y = append(m.y, y)
		m.rho = append(m.rho, 1/ys)
		m.hDiag = ys / floats.Dot(y, y)
	}

	q := m.dir
	floats.ScaleTo(q, -1, g)
	alpha := make([]float64, len(m.s))
	for i := len(m.s) - 1; i >= 0; i-- {
		alpha[i] = m.rho[i] * floats.Dot(m.s[i], q)
		floats.AddScaled(q, -alpha[i], m.y[i])
	}
	floats.Scale(m.hDiag, q)
	for i := range m.s {
		beta := m.rho[i] * floats.Dot(m.y[i], q)
		floats.AddScaled(q, alpha[i]-beta, m.s[i])
	}
}
