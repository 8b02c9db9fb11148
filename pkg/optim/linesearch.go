package optim

import (
	"errors"
	"fmt"
	"math"
)

// ErrLineSearchFailure is wrapped into every search-failure error a
// LineSearch implementation returns (not a descent direction, no
// acceptable step); errors from evaluating the Problem are returned
// without it, letting callers distinguish the two with errors.Is.
var ErrLineSearchFailure = errors.New("optim: line search failed")

func sqrtFloat32(v float32) float32 {
	if v < 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

// LineSearch picks a step length alpha along direction d from x with
// value fx and gradient gx, returning the accepted point, its value,
// and its gradient. Implementations that fail to find an acceptable
// step return an error; the caller (BatchOptimizer) resets to steepest
// descent when that happens.
type LineSearch interface {
	Search(prob Problem, x []float32, fx float32, gx, d []float32, initStep float32) (step float32, xNew []float32, fNew float32, gNew []float32, err error)
}

func stepPoint(x, d []float32, step float32) []float32 {
	out := make([]float32, len(x))
	for i := range x {
		out[i] = x[i] + step*d[i]
	}
	return out
}

// Backtracking implements Armijo backtracking line search: starting at
// initStep, shrink by Shrink until the sufficient-decrease condition
// f(x+step*d) <= fx + C1*step*<g,d> holds.
type Backtracking struct {
	Shrink  float32 // default 0.5
	C1      float32 // default 1e-4
	MaxIter int     // default 50
}

func NewBacktracking() *Backtracking {
	return &Backtracking{Shrink: 0.5, C1: 1e-4, MaxIter: 50}
}

func (b *Backtracking) Search(prob Problem, x []float32, fx float32, gx, d []float32, initStep float32) (float32, []float32, float32, []float32, error) {
	slope := dot(gx, d)
	if slope >= 0 {
		return 0, nil, 0, nil, fmt.Errorf("optim.Backtracking: direction is not a descent direction: %w", ErrLineSearchFailure)
	}
	step := initStep
	for i := 0; i < b.MaxIter; i++ {
		xNew := stepPoint(x, d, step)
		fNew, gNew, err := prob.ValueAndGrad(xNew)
		if err != nil {
			return 0, nil, 0, nil, fmt.Errorf("optim.Backtracking: %w", err)
		}
		if fNew <= fx+b.C1*step*slope {
			return step, xNew, fNew, gNew, nil
		}
		step *= b.Shrink
	}
	return 0, nil, 0, nil, fmt.Errorf("optim.Backtracking: no acceptable step after %d iterations: %w", b.MaxIter, ErrLineSearchFailure)
}

// Interpolation implements quadratic/cubic safeguarded interpolation:
// on an Armijo failure it fits a quadratic (first backtrack) or cubic
// (subsequent backtracks) through the evaluated points to pick the next
// trial step, falling back to bisection when the fit is degenerate.
type Interpolation struct {
	C1      float32
	MaxIter int
	MinStep float32
}

func NewInterpolation() *Interpolation {
	return &Interpolation{C1: 1e-4, MaxIter: 50, MinStep: 1e-10}
}

func (n *Interpolation) Search(prob Problem, x []float32, fx float32, gx, d []float32, initStep float32) (float32, []float32, float32, []float32, error) {
	slope := dot(gx, d)
	if slope >= 0 {
		return 0, nil, 0, nil, fmt.Errorf("optim.Interpolation: direction is not a descent direction: %w", ErrLineSearchFailure)
	}
	step := initStep
	prevStep, prevF := float32(0), float32(0)
	for i := 0; i < n.MaxIter; i++ {
		xNew := stepPoint(x, d, step)
		fNew, gNew, err := prob.ValueAndGrad(xNew)
		if err != nil {
			return 0, nil, 0, nil, fmt.Errorf("optim.Interpolation: %w", err)
		}
		if fNew <= fx+n.C1*step*slope {
			return step, xNew, fNew, gNew, nil
		}
		var next float32
		if i == 0 {
			// quadratic fit through fx, slope, and fNew at step
			next = -slope * step * step / (2 * (fNew - fx - slope*step))
		} else {
			next = cubicMinimizer(step, fNew, prevStep, prevF, fx, slope)
		}
		if next <= n.MinStep || next >= step || next != next { // NaN guard
			next = step / 2
		}
		prevStep, prevF = step, fNew
		step = next
		if step < n.MinStep {
			break
		}
	}
	return 0, nil, 0, nil, fmt.Errorf("optim.Interpolation: no acceptable step after %d iterations: %w", n.MaxIter, ErrLineSearchFailure)
}

// cubicMinimizer fits a cubic f0 + slope*t + c2*t^2 + c3*t^3 through
// (0, f0, slope), (b, fb), (a, fa) and returns the minimizer of that
// cubic, falling back to bisection (a/2) when the fit is not a proper
// cubic or has no real critical point.
func cubicMinimizer(a, fa, b, fb, f0, slope float32) float32 {
	ra := (fa - f0 - slope*a) / (a * a) // c2 + c3*a
	rb := (fb - f0 - slope*b) / (b * b) // c2 + c3*b
	c3 := (ra - rb) / (a - b)
	c2 := ra - c3*a
	disc := c2*c2 - 3*c3*slope
	if disc < 0 || c3 == 0 {
		return a / 2
	}
	return (-c2 + sqrtFloat32(disc)) / (3 * c3)
}

// CGDescent implements a Wolfe-condition line search (sufficient
// decrease plus curvature) in the style used by nonlinear CG
// directions, bracketing and then bisecting to satisfy both
// conditions.
type CGDescent struct {
	C1, C2  float32
	MaxIter int
}

func NewCGDescent() *CGDescent {
	return &CGDescent{C1: 1e-4, C2: 0.1, MaxIter: 50}
}

func (c *CGDescent) Search(prob Problem, x []float32, fx float32, gx, d []float32, initStep float32) (float32, []float32, float32, []float32, error) {
	slope := dot(gx, d)
	if slope >= 0 {
		return 0, nil, 0, nil, fmt.Errorf("optim.CGDescent: direction is not a descent direction: %w", ErrLineSearchFailure)
	}
	lo, hi := float32(0), float32(0)
	step := initStep
	haveHi := false
	for i := 0; i < c.MaxIter; i++ {
		xNew := stepPoint(x, d, step)
		fNew, gNew, err := prob.ValueAndGrad(xNew)
		if err != nil {
			return 0, nil, 0, nil, fmt.Errorf("optim.CGDescent: %w", err)
		}
		if fNew > fx+c.C1*step*slope {
			hi, haveHi = step, true
			step = (lo + hi) / 2
			continue
		}
		newSlope := dot(gNew, d)
		if newSlope < c.C2*slope {
			lo = step
			if haveHi {
				step = (lo + hi) / 2
			} else {
				step *= 2
			}
			continue
		}
		return step, xNew, fNew, gNew, nil
	}
	return 0, nil, 0, nil, fmt.Errorf("optim.CGDescent: no acceptable step after %d iterations: %w", c.MaxIter, ErrLineSearchFailure)
}

// InitialStepPolicy picks the trial step length fed to the line search
// at the start of each iteration.
type InitialStepPolicy int

const (
	InitStepUnit InitialStepPolicy = iota
	InitStepConsistent
	InitStepQuadratic
)

// initStep computes the candidate step per policy; prevStep and
// prevSlope describe the previous iteration (zero values on the first
// iteration, handled by the unit fallback).
func initStep(policy InitialStepPolicy, iter int, slope, prevStep, prevSlope, prevValue, value float32) float32 {
	if iter == 0 {
		return 1
	}
	switch policy {
	case InitStepConsistent:
		return prevStep * prevSlope / slope
	case InitStepQuadratic:
		denom := slope
		if denom == 0 {
			return 1
		}
		step := 2 * (value - prevValue) / denom
		if step <= 0 || step != step {
			return 1
		}
		return step
	default:
		return 1
	}
}
