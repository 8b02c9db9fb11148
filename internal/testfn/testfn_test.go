package testfn_test

import (
	"testing"

	"github.com/nanocv-go/nanocv/internal/testfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fdEps = 1e-3

func finiteDiffGrad(t *testing.T, f testfn.Function, x []float32) []float32 {
	t.Helper()
	g := make([]float32, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + fdEps
		vp, err := f.Value(x)
		require.NoError(t, err)
		x[i] = orig - fdEps
		vm, err := f.Value(x)
		require.NoError(t, err)
		x[i] = orig
		g[i] = (vp - vm) / (2 * fdEps)
	}
	return g
}

func TestFunctionGradientsMatchFiniteDifference(t *testing.T) {
	cases := []struct {
		name string
		fn   testfn.Function
		x    []float32
	}{
		{"rosenbrock", testfn.Rosenbrock{Dims: 3}, []float32{0.5, -1, 2}},
		{"dixon-price", testfn.DixonPrice{Dims: 4}, []float32{1, -0.5, 0.3, 2}},
		{"himmelblau", testfn.Himmelblau{}, []float32{1.5, -2.3}},
		{"styblinski-tang", testfn.StyblinskiTang{Dims: 3}, []float32{-1, 2, 0.5}},
		{"cauchy", testfn.Cauchy{Dims: 3}, []float32{0.3, -0.7, 1.1}},
		{"chung-reynolds", testfn.ChungReynolds{Dims: 3}, []float32{0.2, -0.4, 0.6}},
		{"three-hump-camel", testfn.ThreeHumpCamel{}, []float32{0.8, -1.1}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, analytic, err := c.fn.ValueAndGrad(c.x)
			require.NoError(t, err)
			numeric := finiteDiffGrad(t, c.fn, c.x)
			for i := range analytic {
				assert.InDelta(t, float64(numeric[i]), float64(analytic[i]), 5e-2, "dim %d", i)
			}
		})
	}
}

func TestSizeMatchesDimensionCount(t *testing.T) {
	assert.Equal(t, 5, testfn.Rosenbrock{Dims: 5}.Size())
	assert.Equal(t, 2, testfn.Himmelblau{}.Size())
}
