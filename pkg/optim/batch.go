package optim

import "fmt"

// BatchOptimizer minimizes a full-batch Problem by repeatedly choosing
// a search direction, stepping along it with a line search, and
// checking the shared stopping criterion. It resets to steepest
// descent whenever the configured direction stops producing a descent
// direction or the line search fails to find an acceptable step,
// matching the fallback rule shared by every direction/line-search
// pairing.
type BatchOptimizer struct {
	Direction  Direction
	LineSearch LineSearch
	InitPolicy InitialStepPolicy
	MaxIters   int
	Eps        float32

	// OnIteration, when set, is called after every accepted step with
	// the iteration index and the point reached; returning true halts
	// Minimize early. The trainer uses this hook to evaluate held-out
	// folds, update its best-so-far result, and apply its stop policy
	// at each reporting point without the optimizer needing to know
	// anything about tasks or folds.
	OnIteration func(iter int, x []float32, value float32, gradNorm float32) (stop bool)
}

// NewBatchOptimizer builds a BatchOptimizer with the given direction
// and line search, a unit-step policy, a default stopping tolerance of
// 1e-6, and a 1000-iteration budget.
func NewBatchOptimizer(d Direction, ls LineSearch) *BatchOptimizer {
	return &BatchOptimizer{
		Direction:  d,
		LineSearch: ls,
		InitPolicy: InitStepUnit,
		MaxIters:   1000,
		Eps:        1e-6,
	}
}

// Minimize runs the configured direction/line-search pair from x0
// until the stopping criterion is met, the iteration budget is
// exhausted, or the problem reports a non-finite value (returned as an
// error; it is not wrapped in any sentinel, and the State returned with
// it is empty).
func (b *BatchOptimizer) Minimize(prob Problem, x0 []float32) (State, error) {
	x := append([]float32(nil), x0...)
	fx, grad, err := prob.ValueAndGrad(x)
	if err != nil {
		return State{}, fmt.Errorf("optim.BatchOptimizer.Minimize: %w", err)
	}
	if !isFinite(fx) {
		return State{}, fmt.Errorf("optim.BatchOptimizer.Minimize: non-finite initial value")
	}

	b.Direction.Reset()
	var prevStep, prevSlope, prevValue float32

	for iter := 0; iter < b.MaxIters; iter++ {
		if Stopping(grad, fx, b.Eps) {
			return State{X: x, Value: fx, GradNorm: gradInfNorm(grad), Iters: iter, Converged: true}, nil
		}

		d := b.Direction.Next(grad)
		if !isDescent(grad, d) {
			b.Direction.Reset()
			d = negate(grad)
		}
		slope := dot(grad, d)
		step0 := initStep(b.InitPolicy, iter, slope, prevStep, prevSlope, prevValue, fx)

		step, xNew, fNew, gNew, lsErr := b.LineSearch.Search(prob, x, fx, grad, d, step0)
		if lsErr != nil {
			b.Direction.Reset()
			d = negate(grad)
			slope = dot(grad, d)
			step, xNew, fNew, gNew, lsErr = b.LineSearch.Search(prob, x, fx, grad, d, 1)
			if lsErr != nil {
				return State{X: x, Value: fx, GradNorm: gradInfNorm(grad), Iters: iter}, fmt.Errorf("optim.BatchOptimizer.Minimize: %w", lsErr)
			}
		}
		if !isFinite(fNew) {
			return State{X: x, Value: fx, GradNorm: gradInfNorm(grad), Iters: iter}, fmt.Errorf("optim.BatchOptimizer.Minimize: non-finite value at iteration %d", iter)
		}

		b.Direction.Update(x, grad, xNew, gNew)
		prevStep, prevSlope, prevValue = step, slope, fx
		x, fx, grad = xNew, fNew, gNew

		if b.OnIteration != nil {
			if stop := b.OnIteration(iter, x, fx, gradInfNorm(grad)); stop {
				return State{X: x, Value: fx, GradNorm: gradInfNorm(grad), Iters: iter + 1}, nil
			}
		}
	}
	return State{X: x, Value: fx, GradNorm: gradInfNorm(grad), Iters: b.MaxIters, Converged: false}, nil
}

func isFinite(v float32) bool {
	return v == v && v < float32(1e38) && v > float32(-1e38)
}
