package optim_test

import (
	"math"
	"testing"

	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/stretchr/testify/assert"
)

// TestAdamConvergesOnQuadraticLiteralScenario exercises the literal
// stochastic-ADAM scenario: f(x) = 0.5*||x||^2 over x0 = (1,...,1) in
// R^10, run for 50 epochs of 100 iterations each with the documented
// defaults, expecting the final infinity norm below 1e-3.
func TestAdamConvergesOnQuadraticLiteralScenario(t *testing.T) {
	const dims = 10
	x := make([]float32, dims)
	for i := range x {
		x[i] = 1
	}
	grad := func(x []float32) []float32 {
		g := make([]float32, len(x))
		copy(g, x)
		return g
	}

	adam := optim.NewAdam(1e-3, 0.9, 0.99, 1e-8)
	const epochs, itersPerEpoch = 50, 100
	for epoch := 0; epoch < epochs; epoch++ {
		for i := 0; i < itersPerEpoch; i++ {
			adam.Step(x, grad(x))
		}
	}

	var maxAbs float32
	for _, v := range x {
		a := v
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	assert.Less(t, float64(maxAbs), 1e-3, "||x_final||_inf should fall below 1e-3")
	assert.False(t, math.IsNaN(float64(maxAbs)))
}
