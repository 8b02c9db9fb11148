package nn

import (
	"fmt"

	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Model composes layers into a single ordered chain sharing one flat
// parameter vector theta, matching the teacher's sequential Model but
// replacing its per-layer owned Parameter tensors with sub-slice views
// into one contiguous allocation (spec §4.3's "concatenation of
// per-layer parameter slices equals theta" invariant).
type Model struct {
	layers      []Layer
	inputShape  tensor.Shape
	outputShape tensor.Shape

	offsets []int // per-layer offset into theta/grad
	theta   []tensor.Scalar
	grad    []tensor.Scalar

	lastInput tensor.Tensor
}

// New constructs a Model from an ordered layer chain. Resize must be
// called before the model is usable.
func New(layers ...Layer) *Model {
	return &Model{layers: layers}
}

// Layers returns the model's ordered layer chain.
func (m *Model) Layers() []Layer { return m.layers }

// ParamCount returns the total size of theta, valid after Resize.
func (m *Model) ParamCount() int { return len(m.theta) }

// Resize validates each layer's declared input against the previous
// layer's declared output, computes per-layer parameter offsets, and
// allocates the flat theta/grad vectors. Returns tensor.ErrDimensionMismatch
// (wrapped) if adjacent layers disagree, or if the final output does
// not equal outDims when outDims is non-nil.
func (m *Model) Resize(inDims tensor.Shape, outDims tensor.Shape) error {
	if len(m.layers) == 0 {
		return fmt.Errorf("nn.Model.Resize: no layers configured")
	}
	shape := inDims.Clone()
	total := 0
	offsets := make([]int, len(m.layers))
	for i, l := range m.layers {
		offsets[i] = total
		out, err := l.Resize(shape)
		if err != nil {
			return fmt.Errorf("nn.Model.Resize: layer %d (%s): %w", i, l.Name(), err)
		}
		total += l.ParamCount()
		shape = out
	}
	if outDims != nil && !shape.Equal(outDims) {
		return fmt.Errorf("nn.Model.Resize: final output shape %v does not match declared %v: %w",
			shape, outDims, tensor.ErrDimensionMismatch)
	}
	m.inputShape = inDims.Clone()
	m.outputShape = shape
	m.offsets = offsets
	m.theta = make([]tensor.Scalar, total)
	m.grad = make([]tensor.Scalar, total)
	for i, l := range m.layers {
		l.BindParams(m.sliceTheta(i), m.sliceGrad(i))
	}
	return nil
}

func (m *Model) layerParamCount(i int) int {
	if i+1 < len(m.offsets) {
		return m.offsets[i+1] - m.offsets[i]
	}
	return len(m.theta) - m.offsets[i]
}

func (m *Model) sliceTheta(i int) []tensor.Scalar {
	off := m.offsets[i]
	return m.theta[off : off+m.layerParamCount(i)]
}

func (m *Model) sliceGrad(i int) []tensor.Scalar {
	off := m.offsets[i]
	return m.grad[off : off+m.layerParamCount(i)]
}

// InputShape and OutputShape return the shapes established at Resize.
func (m *Model) InputShape() tensor.Shape  { return m.inputShape }
func (m *Model) OutputShape() tensor.Shape { return m.outputShape }

// InitParams initializes every layer's bound parameter slice.
func (m *Model) InitParams(rng Rng) {
	for _, l := range m.layers {
		l.InitParams(rng)
	}
}

// SetParams overwrites theta in place; bitwise round-trip with
// GetParams per spec §4.3.
func (m *Model) SetParams(theta []tensor.Scalar) error {
	if len(theta) != len(m.theta) {
		return fmt.Errorf("nn.Model.SetParams: got %d values, want %d: %w",
			len(theta), len(m.theta), tensor.ErrDimensionMismatch)
	}
	copy(m.theta, theta)
	return nil
}

// GetParams returns a copy of theta.
func (m *Model) GetParams() []tensor.Scalar {
	out := make([]tensor.Scalar, len(m.theta))
	copy(out, m.theta)
	return out
}

// Output forwards in through every layer in order, caching whatever
// each layer needs for Backward.
func (m *Model) Output(in tensor.Tensor) (tensor.Tensor, error) {
	cur := in
	for i, l := range m.layers {
		out, err := l.Forward(cur)
		if err != nil {
			return tensor.Tensor{}, fmt.Errorf("nn.Model.Output: layer %d (%s): %w", i, l.Name(), err)
		}
		cur = out
	}
	m.lastInput = in
	return cur, nil
}

// Grad runs the reverse scan over the cached forward pass: at each
// layer it writes into the corresponding slice of gTheta (already
// bound to each layer via Resize) and propagates gIn backward. Grad
// zeroes the gradient vector before accumulating, since accumulation
// across multiple accumulator calls happens one level up in pkg/learn.
func (m *Model) Grad(gOut tensor.Tensor) (tensor.Tensor, []tensor.Scalar, error) {
	if m.lastInput.IsNil() {
		return tensor.Tensor{}, nil, fmt.Errorf("nn.Model.Grad: Output was not called")
	}
	for i := range m.grad {
		m.grad[i] = 0
	}
	cur := gOut
	for i := len(m.layers) - 1; i >= 0; i-- {
		gIn, err := m.layers[i].Backward(cur)
		if err != nil {
			return tensor.Tensor{}, nil, fmt.Errorf("nn.Model.Grad: layer %d (%s): %w", i, m.layers[i].Name(), err)
		}
		cur = gIn
	}
	return cur, m.grad, nil
}

// Clone returns an independent Model sharing no mutable state with m:
// every layer is cloned via Layer.Clone, re-resized, and rebound to a
// fresh theta/grad pair initialized from m's current parameters. This
// is what gives each worker accumulator its own forward/backward
// buffers per the concurrency model of spec §5.
func (m *Model) Clone() (*Model, error) {
	newLayers := make([]Layer, len(m.layers))
	for i, l := range m.layers {
		newLayers[i] = l.Clone()
	}
	clone := New(newLayers...)
	if err := clone.Resize(m.inputShape, m.outputShape); err != nil {
		return nil, fmt.Errorf("nn.Model.Clone: %w", err)
	}
	if err := clone.SetParams(m.GetParams()); err != nil {
		return nil, fmt.Errorf("nn.Model.Clone: %w", err)
	}
	return clone, nil
}
