// Package testfn implements a handful of synthetic benchmark functions
// used to exercise the batch optimizer family against known
// closed-form gradients, lifted from the original implementation's
// src/functions and src/optim/funcs (Rosenbrock, Dixon-Price,
// Himmelblau, Styblinski-Tang, Cauchy, Chung-Reynolds, three-hump
// camel), adapted to the optim.Problem contract.
package testfn

import "math"

// Function is a synthetic benchmark satisfying optim.Problem: a fixed
// dimensionality, a value evaluator, and a combined value+gradient
// evaluator.
type Function interface {
	Size() int
	Value(x []float32) (float32, error)
	ValueAndGrad(x []float32) (float32, []float32, error)
}

// Rosenbrock is the classic banana-valley function generalized to N
// dimensions: sum_i 100*(x_{i+1}-x_i^2)^2 + (1-x_i)^2.
type Rosenbrock struct{ Dims int }

func (f Rosenbrock) Size() int { return f.Dims }

func (f Rosenbrock) Value(x []float32) (float32, error) {
	var sum float32
	for i := 0; i < len(x)-1; i++ {
		d1 := x[i+1] - x[i]*x[i]
		d2 := 1 - x[i]
		sum += 100*d1*d1 + d2*d2
	}
	return sum, nil
}

func (f Rosenbrock) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := f.Value(x)
	g := make([]float32, len(x))
	for i := 0; i < len(x)-1; i++ {
		d1 := x[i+1] - x[i]*x[i]
		d2 := 1 - x[i]
		g[i] += -400*x[i]*d1 - 2*d2
		g[i+1] += 200 * d1
	}
	return v, g, nil
}

// DixonPrice is sum over i>=2 of i*(2x_i^2-x_{i-1})^2 plus (x_1-1)^2.
type DixonPrice struct{ Dims int }

func (f DixonPrice) Size() int { return f.Dims }

func (f DixonPrice) Value(x []float32) (float32, error) {
	d0 := x[0] - 1
	sum := d0 * d0
	for i := 1; i < len(x); i++ {
		d := 2*x[i]*x[i] - x[i-1]
		sum += float32(i+1) * d * d
	}
	return sum, nil
}

func (f DixonPrice) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := f.Value(x)
	g := make([]float32, len(x))
	g[0] += 2 * (x[0] - 1)
	for i := 1; i < len(x); i++ {
		d := 2*x[i]*x[i] - x[i-1]
		coef := float32(i + 1)
		g[i] += coef * 2 * d * 4 * x[i]
		g[i-1] += coef * 2 * d * (-1)
	}
	return v, g, nil
}

// Himmelblau is the fixed 2D function (x^2+y-11)^2 + (x+y^2-7)^2.
type Himmelblau struct{}

func (f Himmelblau) Size() int { return 2 }

func (f Himmelblau) Value(x []float32) (float32, error) {
	a := x[0]*x[0] + x[1] - 11
	b := x[0] + x[1]*x[1] - 7
	return a*a + b*b, nil
}

func (f Himmelblau) ValueAndGrad(x []float32) (float32, []float32, error) {
	a := x[0]*x[0] + x[1] - 11
	b := x[0] + x[1]*x[1] - 7
	v := a*a + b*b
	g := []float32{
		4*x[0]*a + 2*b,
		2*a + 4*x[1]*b,
	}
	return v, g, nil
}

// StyblinskiTang is sum(x^4 - 16x^2 + 5x) over the dimensions (not
// halved), matching the original's vgrad exactly: value x^4-16x^2+5x
// summed, gradient 4x^3-32x+5.
type StyblinskiTang struct{ Dims int }

func (f StyblinskiTang) Size() int { return f.Dims }

func (f StyblinskiTang) Value(x []float32) (float32, error) {
	var sum float32
	for _, xi := range x {
		sq := xi * xi
		sum += sq*sq - 16*sq + 5*xi
	}
	return sum, nil
}

func (f StyblinskiTang) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := f.Value(x)
	g := make([]float32, len(x))
	for i, xi := range x {
		g[i] = 4*xi*xi*xi - 32*xi + 5
	}
	return v, g, nil
}

// Cauchy is log(prod(1+x_i^2)), matching the original's fn_fval/fn_grad.
type Cauchy struct{ Dims int }

func (f Cauchy) Size() int { return f.Dims }

func (f Cauchy) Value(x []float32) (float32, error) {
	var prod float64 = 1
	for _, xi := range x {
		prod *= 1 + float64(xi)*float64(xi)
	}
	return float32(math.Log(prod)), nil
}

func (f Cauchy) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := f.Value(x)
	g := make([]float32, len(x))
	for i, xi := range x {
		g[i] = 2 * xi / (1 + xi*xi)
	}
	return v, g, nil
}

// ChungReynolds is (sum x_i^2)^2, matching the original's fn_fval/fn_grad.
type ChungReynolds struct{ Dims int }

func (f ChungReynolds) Size() int { return f.Dims }

func (f ChungReynolds) Value(x []float32) (float32, error) {
	var u float32
	for _, xi := range x {
		u += xi * xi
	}
	return u * u, nil
}

func (f ChungReynolds) ValueAndGrad(x []float32) (float32, []float32, error) {
	var u float32
	for _, xi := range x {
		u += xi * xi
	}
	g := make([]float32, len(x))
	for i, xi := range x {
		g[i] = 4 * u * xi
	}
	return u * u, g, nil
}

// ThreeHumpCamel is the fixed 2D function
// 2x^2 - 1.05x^4 + x^6/6 + xy + y^2.
type ThreeHumpCamel struct{}

func (f ThreeHumpCamel) Size() int { return 2 }

func (f ThreeHumpCamel) Value(x []float32) (float32, error) {
	x0, y := x[0], x[1]
	return 2*x0*x0 - 1.05*x0*x0*x0*x0 + (x0*x0*x0*x0*x0*x0)/6 + x0*y + y*y, nil
}

func (f ThreeHumpCamel) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := f.Value(x)
	x0, y := x[0], x[1]
	g := []float32{
		4*x0 - 4.2*x0*x0*x0 + (x0*x0*x0*x0*x0) + y,
		x0 + 2*y,
	}
	return v, g, nil
}
