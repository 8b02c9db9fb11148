// Package optim implements the batch and stochastic optimizer family:
// line-search optimizers operating on a full-batch Problem, and
// stochastic per-step optimizers operating directly on a flat
// parameter/gradient pair, generalizing the teacher's single-parameter
// SGD/Adam (learn/optimizer.go) to the flat theta vector of an
// nn.Model.
package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Problem is the full-batch objective a batch Optimizer minimizes: a
// parameter vector of fixed Size, a Value evaluator, and a combined
// ValueAndGrad evaluator (cheaper than calling both separately when the
// objective shares forward work, as the Accumulator does).
type Problem interface {
	Size() int
	Value(x []float32) (float32, error)
	ValueAndGrad(x []float32) (float32, []float32, error)
}

// State is the result of a Minimize run: the best parameter vector
// found, its value and gradient norm, and the number of iterations
// taken before the stopping criterion was met or the iteration budget
// was exhausted.
type State struct {
	X         []float32
	Value     float32
	GradNorm  float32
	Iters     int
	Converged bool
}

// Stopping reports whether the infinity-norm of the gradient,
// normalized by max(1, |f|), falls below eps — the stopping criterion
// shared by every batch optimizer.
func Stopping(grad []float32, value float32, eps float32) bool {
	return gradInfNorm(grad)/maxFloat(1, absFloat(value)) < eps
}

// gradInfNorm computes the infinity norm of the gradient via
// gonum/floats.Norm, converting through float64 the way the
// gradient-norm stopping test is specified to use gonum primitives.
func gradInfNorm(g []float32) float32 {
	return float32(floats.Norm(toFloat64(g), math.Inf(1)))
}

func absFloat(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

func maxFloat(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func norm2(v []float32) float32 {
	return float32(floats.Norm(toFloat64(v), 2))
}

func dot(a, b []float32) float32 {
	return float32(floats.Dot(toFloat64(a), toFloat64(b)))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
