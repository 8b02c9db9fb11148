// Package nn composes the layer palette into a model with one flat
// parameter vector, and defines the loss palette used to evaluate it.
package nn

import "github.com/nanocv-go/nanocv/pkg/tensor"

// ParamIndex identifies a named parameter slot within a layer, mirroring
// the teacher's nn/types.ParamIndex convention of addressing weights,
// biases, and kernels by a small fixed enum rather than by name.
type ParamIndex int

const (
	ParamWeights ParamIndex = iota
	ParamBiases
	ParamKernels
	ParamScale
	ParamShift
)

func (p ParamIndex) String() string {
	switch p {
	case ParamWeights:
		return "weights"
	case ParamBiases:
		return "biases"
	case ParamKernels:
		return "kernels"
	case ParamScale:
		return "scale"
	case ParamShift:
		return "shift"
	default:
		return "param"
	}
}

// Layer is a differentiable transformation with static input/output
// dimensions and a fixed parameter count. A Model owns one flat
// parameter vector theta and hands each layer a sub-slice view via
// BindParams; layers never allocate their own parameter storage.
//
// Forward and Backward must not reallocate on the hot path: Resize is
// the only place buffers are (re)configured, called once per
// dimension change.
type Layer interface {
	// Name identifies the layer for reports and serialization.
	Name() string

	// Resize validates inputShape against the layer's configuration and
	// returns the corresponding output shape, allocating any internal
	// buffers sized by the input. Returns tensor.ErrDimensionMismatch
	// (wrapped) if inputShape is incompatible with the layer.
	Resize(inputShape tensor.Shape) (tensor.Shape, error)

	// ParamCount returns the number of scalar parameters this layer
	// owns, valid after Resize.
	ParamCount() int

	// BindParams gives the layer its sub-slice views into the model's
	// flat parameter vector and flat gradient vector. grad may be nil
	// when the layer is used in inference-only mode.
	BindParams(theta, grad []tensor.Scalar)

	// InitParams fills the bound parameter slice with a fan-in/fan-out
	// scaled random initialization.
	InitParams(rng Rng)

	// Forward computes out = layer(in), caching whatever Backward
	// needs from this call.
	Forward(in tensor.Tensor) (tensor.Tensor, error)

	// Backward computes gIn = d L/d in given gOut = d L/d out, using
	// state cached by the last Forward, and accumulates
	// d L/d theta_layer into the bound gradient slice.
	Backward(gOut tensor.Tensor) (tensor.Tensor, error)

	// Clone returns a layer of the same configuration with its own,
	// independent forward/backward buffers and no bound parameters —
	// the caller must Resize and BindParams the clone. Used to give
	// each worker accumulator its own per-thread layer instances.
	Clone() Layer
}

// Rng is the subset of *rand.Rand the layer palette depends on for
// parameter initialization, kept as an interface so tests can supply
// deterministic sequences without threading *rand.Rand everywhere.
type Rng interface {
	Float32() float32
}
