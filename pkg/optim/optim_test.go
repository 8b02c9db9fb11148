package optim_test

import (
	"testing"

	"github.com/nanocv-go/nanocv/internal/testfn"
	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadraticProblem is f(x) = 0.5 * sum((x_i - target_i)^2), a strictly
// convex sanity-check problem every batch optimizer should solve to
// the stopping tolerance.
type quadraticProblem struct {
	target []float32
}

func (q *quadraticProblem) Size() int { return len(q.target) }

func (q *quadraticProblem) Value(x []float32) (float32, error) {
	var v float32
	for i := range x {
		d := x[i] - q.target[i]
		v += 0.5 * d * d
	}
	return v, nil
}

func (q *quadraticProblem) ValueAndGrad(x []float32) (float32, []float32, error) {
	v, _ := q.Value(x)
	g := make([]float32, len(x))
	for i := range x {
		g[i] = x[i] - q.target[i]
	}
	return v, g, nil
}

func TestBatchOptimizerSteepestDescentConvergesOnQuadratic(t *testing.T) {
	prob := &quadraticProblem{target: []float32{1, -2, 3}}
	opt := optim.NewBatchOptimizer(&optim.SteepestDescent{}, optim.NewBacktracking())
	state, err := opt.Minimize(prob, []float32{0, 0, 0})
	require.NoError(t, err)
	assert.True(t, state.Converged)
	for i, want := range prob.target {
		assert.InDelta(t, float64(want), float64(state.X[i]), 1e-2)
	}
}

func TestBatchOptimizerLBFGSConvergesOnQuadratic(t *testing.T) {
	prob := &quadraticProblem{target: []float32{2, 2, -1, 0.5}}
	opt := optim.NewBatchOptimizer(optim.NewLBFGS(5), optim.NewInterpolation())
	state, err := opt.Minimize(prob, make([]float32, 4))
	require.NoError(t, err)
	assert.True(t, state.Converged)
	for i, want := range prob.target {
		assert.InDelta(t, float64(want), float64(state.X[i]), 1e-2)
	}
}

func TestBatchOptimizerNonlinearCGVariantsConverge(t *testing.T) {
	variants := []optim.CGVariant{
		optim.CGHestenesStiefel,
		optim.CGFletcherReeves,
		optim.CGPolakRibierePlus,
		optim.CGDaiYuan,
		optim.CGHybridHSDY,
	}
	for _, v := range variants {
		prob := &quadraticProblem{target: []float32{1, 1}}
		opt := optim.NewBatchOptimizer(optim.NewNonlinearCG(v), optim.NewCGDescent())
		state, err := opt.Minimize(prob, []float32{0, 0})
		require.NoError(t, err)
		assert.True(t, state.Converged)
	}
}

func TestStoppingCriterion(t *testing.T) {
	assert.True(t, optim.Stopping([]float32{1e-8, -1e-9}, 1, 1e-6))
	assert.False(t, optim.Stopping([]float32{0.1, 0}, 1, 1e-6))
}

func TestStochasticOptimizersReduceLossOnQuadratic(t *testing.T) {
	target := []float32{1, -1}
	grad := func(theta []float32) []float32 {
		g := make([]float32, len(theta))
		for i := range theta {
			g[i] = theta[i] - target[i]
		}
		return g
	}
	loss := func(theta []float32) float32 {
		var v float32
		for i := range theta {
			d := theta[i] - target[i]
			v += 0.5 * d * d
		}
		return v
	}

	optimizers := []optim.StochasticOptimizer{
		optim.NewSG(0.5, 50, 0.5),
		optim.NewASGD(0.5, 50, 0.5),
		optim.NewNGD(0.3, 50, 0.5),
		optim.NewSGM(0.1, 50, 0.5, 0.9),
		optim.NewAdaGrad(0.5, 1e-8),
		optim.NewAdaDelta(0.95, 1e-6),
		optim.NewAdam(0.1, 0.9, 0.999, 1e-8),
	}
	for _, o := range optimizers {
		t.Run(o.Name(), func(t *testing.T) {
			theta := []float32{0, 0}
			initial := loss(theta)
			for i := 0; i < 500; i++ {
				o.Step(theta, grad(theta))
			}
			final := loss(theta)
			assert.Less(t, float64(final), float64(initial))
		})
	}
}

func TestAGReducesLossOnQuadratic(t *testing.T) {
	target := []float32{2, 0}
	grad := func(theta []float32) []float32 {
		g := make([]float32, len(theta))
		for i := range theta {
			g[i] = theta[i] - target[i]
		}
		return g
	}
	loss := func(theta []float32) float32 {
		var v float32
		for i := range theta {
			d := theta[i] - target[i]
			v += 0.5 * d * d
		}
		return v
	}
	for _, restart := range []optim.AGRestart{optim.AGNoRestart, optim.AGFunctionRestart, optim.AGGradientRestart} {
		ag := optim.NewAG(0.1, 50, 0.5, restart)
		theta := []float32{0, 0}
		initial := loss(theta)
		for i := 0; i < 200; i++ {
			ag.StepWithValue(theta, grad(theta), loss(theta))
		}
		assert.Less(t, float64(loss(theta)), float64(initial))
	}
}

func TestBatchOptimizerMonotoneConvergenceOnSyntheticFunctions(t *testing.T) {
	cases := []struct {
		name string
		prob optim.Problem
		x0   []float32
	}{
		{"rosenbrock", testfn.Rosenbrock{Dims: 2}, []float32{-1.2, 1}},
		{"dixon-price", testfn.DixonPrice{Dims: 3}, []float32{1, 1, 1}},
		{"himmelblau", testfn.Himmelblau{}, []float32{0, 0}},
		{"chung-reynolds", testfn.ChungReynolds{Dims: 3}, []float32{1, -1, 0.5}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			startVal, err := c.prob.Value(c.x0)
			require.NoError(t, err)

			opt := optim.NewBatchOptimizer(optim.NewLBFGS(10), optim.NewInterpolation())
			opt.MaxIters = 500
			state, err := opt.Minimize(c.prob, c.x0)
			require.NoError(t, err)

			assert.LessOrEqual(t, float64(state.Value), float64(startVal)+1e-6)
		})
	}
}

func TestGridSearchPicksLowestLoss(t *testing.T) {
	candidates := []optim.Candidate{
		{Label: "slow", Build: func() optim.StochasticOptimizer { return optim.NewSG(0.01, 100, 0.5) }},
		{Label: "fast", Build: func() optim.StochasticOptimizer { return optim.NewSG(0.5, 100, 0.5) }},
	}
	target := []float32{1}
	result, err := optim.GridSearch(candidates, []float32{0}, 20, func(opt optim.StochasticOptimizer, theta []float32) (float32, error) {
		g := []float32{theta[0] - target[0]}
		opt.Step(theta, g)
		d := theta[0] - target[0]
		return 0.5 * d * d, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", result.Label)
}
