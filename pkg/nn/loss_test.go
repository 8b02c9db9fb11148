package nn_test

import (
	"testing"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lossGradEps = 1e-3

func finiteDiffGradient(t *testing.T, loss nn.Loss, target, output tensor.Tensor) []tensor.Scalar {
	t.Helper()
	n := output.Size()
	out := make([]tensor.Scalar, n)
	data := output.Data()
	for i := 0; i < n; i++ {
		orig := data[i]
		data[i] = orig + lossGradEps
		vp, err := loss.Value(target, output)
		require.NoError(t, err)
		data[i] = orig - lossGradEps
		vm, err := loss.Value(target, output)
		require.NoError(t, err)
		data[i] = orig
		out[i] = (vp - vm) / (2 * lossGradEps)
	}
	return out
}

func TestClassificationLossesNonNegativeAndGradientMatches(t *testing.T) {
	losses := []nn.Loss{
		nn.NewMulticlassLogistic(),
		nn.NewMulticlassExponential(),
		nn.NewMulticlassSquare(),
		nn.NewMulticlassCauchy(),
		nn.NewSingleLabelLogistic(),
		nn.NewSingleLabelSquare(),
	}
	target := tensor.View([]tensor.Scalar{1, -1, -1}, 3)
	output := tensor.View([]tensor.Scalar{0.3, -0.2, 0.5}, 3)

	for _, l := range losses {
		l := l
		t.Run(l.Name(), func(t *testing.T) {
			v, err := l.Value(target, output)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, float64(v), 0.0)

			g, err := l.Gradient(target, output)
			require.NoError(t, err)
			numeric := finiteDiffGradient(t, l, target, output)
			for i, analytic := range g.Data() {
				assert.InDelta(t, float64(numeric[i]), float64(analytic), 1e-2, "index %d", i)
			}
		})
	}
}

func TestRegressionLossesZeroWhenEqual(t *testing.T) {
	target := tensor.View([]tensor.Scalar{1, 2, 3}, 3)
	output := tensor.View([]tensor.Scalar{1, 2, 3}, 3)

	for _, l := range []nn.Loss{nn.NewRegressionSquare(), nn.NewRegressionCauchy()} {
		v, err := l.Value(target, output)
		require.NoError(t, err)
		assert.Equal(t, tensor.Scalar(0), v)
	}
}

func TestRegressionGradientMatchesFiniteDifference(t *testing.T) {
	target := tensor.View([]tensor.Scalar{1, 2, 3}, 3)
	output := tensor.View([]tensor.Scalar{0.4, 2.3, 2.1}, 3)
	for _, l := range []nn.Loss{nn.NewRegressionSquare(), nn.NewRegressionCauchy()} {
		g, err := l.Gradient(target, output)
		require.NoError(t, err)
		numeric := finiteDiffGradient(t, l, target, output)
		for i, analytic := range g.Data() {
			assert.InDelta(t, float64(numeric[i]), float64(analytic), 1e-2)
		}
	}
}

func TestClassificationErrorSingleLabel(t *testing.T) {
	l := nn.NewSingleLabelSquare()
	target := tensor.View([]tensor.Scalar{1, -1, -1}, 3)
	correct := tensor.View([]tensor.Scalar{2, 0, 0}, 3)
	wrong := tensor.View([]tensor.Scalar{0, 5, 0}, 3)

	e, err := l.Error(target, correct)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar(0), e)

	e, err = l.Error(target, wrong)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar(1), e)
}

func TestLossShapeMismatchIsError(t *testing.T) {
	l := nn.NewRegressionSquare()
	target := tensor.New(3)
	output := tensor.New(2)
	_, err := l.Value(target, output)
	assert.Error(t, err)
}
