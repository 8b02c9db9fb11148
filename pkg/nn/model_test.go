package nn_test

import (
	"math/rand"
	"testing"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/nn/layers"
	"github.com/nanocv-go/nanocv/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildXORModel(t *testing.T) *nn.Model {
	t.Helper()
	m := nn.New(
		layers.NewAffine(2, 4, layers.WithName("affine1")),
		layers.NewActivation(layers.Tanh, layers.WithName("tanh")),
		layers.NewAffine(4, 2, layers.WithName("affine2")),
	)
	require.NoError(t, m.Resize(tensor.NewShape(2), tensor.NewShape(2)))
	m.InitParams(rand.New(rand.NewSource(1)))
	return m
}

func TestModelParamsRoundTrip(t *testing.T) {
	m := buildXORModel(t)
	theta := m.GetParams()
	mutated := make([]tensor.Scalar, len(theta))
	for i := range mutated {
		mutated[i] = theta[i] + 1
	}
	require.NoError(t, m.SetParams(mutated))
	assert.Equal(t, mutated, m.GetParams())
}

func TestModelSetParamsRejectsWrongSize(t *testing.T) {
	m := buildXORModel(t)
	err := m.SetParams(make([]tensor.Scalar, m.ParamCount()+1))
	assert.Error(t, err)
}

func TestAffineIdentityCheck(t *testing.T) {
	// End-to-end scenario 1: one affine layer I=O=3, W=I3, b=0, square
	// loss, input (1,2,3), target (1,2,3) -> value 0, gradient 0, error 0.
	m := nn.New(layers.NewAffine(3, 3, layers.WithName("identity")))
	require.NoError(t, m.Resize(tensor.NewShape(3), tensor.NewShape(3)))

	theta := make([]tensor.Scalar, m.ParamCount())
	// weights: 3x3 identity, biases: zero (biases occupy the tail 3 slots)
	theta[0], theta[4], theta[8] = 1, 1, 1
	require.NoError(t, m.SetParams(theta))

	in := tensor.View([]tensor.Scalar{1, 2, 3}, 3)
	out, err := m.Output(in)
	require.NoError(t, err)
	assert.Equal(t, []tensor.Scalar{1, 2, 3}, out.Data())

	target := tensor.View([]tensor.Scalar{1, 2, 3}, 3)
	loss := nn.NewRegressionSquare()
	v, err := loss.Value(target, out)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar(0), v)

	g, err := loss.Gradient(target, out)
	require.NoError(t, err)
	for _, x := range g.Data() {
		assert.Equal(t, tensor.Scalar(0), x)
	}

	_, grad, err := m.Grad(g)
	require.NoError(t, err)
	for _, x := range grad {
		assert.Equal(t, tensor.Scalar(0), x)
	}
}

func TestActivationSanityCheck(t *testing.T) {
	// Scenario 2: one tanh layer I=O=1, x=0, target=0, square loss.
	m := nn.New(layers.NewActivation(layers.Tanh, layers.WithName("tanh")))
	require.NoError(t, m.Resize(tensor.NewShape(1), tensor.NewShape(1)))

	in := tensor.View([]tensor.Scalar{0}, 1)
	out, err := m.Output(in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar(0), out.At(0))

	target := tensor.View([]tensor.Scalar{0}, 1)
	loss := nn.NewRegressionSquare()
	g, err := loss.Gradient(target, out)
	require.NoError(t, err)
	gIn, _, err := m.Grad(g)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar(0), gIn.At(0))
}

func TestModelCloneIsIndependent(t *testing.T) {
	m := buildXORModel(t)
	clone, err := m.Clone()
	require.NoError(t, err)
	assert.Equal(t, m.GetParams(), clone.GetParams())

	theta := clone.GetParams()
	theta[0] += 100
	require.NoError(t, clone.SetParams(theta))
	assert.NotEqual(t, m.GetParams(), clone.GetParams())
}
