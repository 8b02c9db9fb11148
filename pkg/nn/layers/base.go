// Package layers implements the fixed layer palette: elementwise
// activations, affine transforms, lowered convolution, and per-sample
// normalization, each built on the teacher's Base-embedding convention.
package layers

import (
	"fmt"
	"sync/atomic"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

var layerCounter int64

// Option configures a Base at construction time, following the
// teacher's functional-options pattern for layer configuration.
type Option func(*Base)

// WithName overrides the layer's generated name.
func WithName(name string) Option {
	return func(b *Base) { b.name = name }
}

// Base provides the bookkeeping shared by every layer in the palette:
// a generated name, cached input/output from the last Forward, and the
// bound parameter/gradient slices addressed by ParamIndex. Layers
// embed Base and implement Resize/Forward/Backward/InitParams
// themselves; Base does not implement the nn.Layer interface alone.
type Base struct {
	name     string
	layerIdx int64

	input  tensor.Tensor
	output tensor.Tensor

	paramShapes map[nn.ParamIndex]tensor.Shape
	paramOffset map[nn.ParamIndex]int
	theta       []tensor.Scalar
	grad        []tensor.Scalar
	paramCount  int
}

// NewBase creates a Base tagged with prefix for default naming, e.g.
// "affine_3" for the third affine-family layer constructed.
func NewBase(prefix string) Base {
	idx := atomic.AddInt64(&layerCounter, 1)
	return Base{
		name:        fmt.Sprintf("%s_%d", prefix, idx),
		layerIdx:    idx,
		paramShapes: make(map[nn.ParamIndex]tensor.Shape),
		paramOffset: make(map[nn.ParamIndex]int),
	}
}

func (b *Base) applyOptions(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func (b *Base) Name() string { return b.name }

// Input returns the tensor passed to the last Forward call.
func (b *Base) Input() tensor.Tensor { return b.input }

// Output returns the tensor produced by the last Forward call.
func (b *Base) Output() tensor.Tensor { return b.output }

func (b *Base) setIO(in, out tensor.Tensor) {
	b.input = in
	b.output = out
}

// declareParam registers a parameter slot of the given shape, growing
// the layer's total parameter count. Must be called during Resize,
// before BindParams.
func (b *Base) declareParam(idx nn.ParamIndex, shape tensor.Shape) {
	b.paramOffset[idx] = b.paramCount
	b.paramShapes[idx] = shape
	b.paramCount += shape.Size()
}

// ParamCount returns the total scalar parameter count declared via
// declareParam.
func (b *Base) ParamCount() int { return b.paramCount }

// BindParams stores the layer's sub-slice views into the model's flat
// theta/grad vectors; callers slice theta/grad to exactly ParamCount()
// scalars before calling this.
func (b *Base) BindParams(theta, grad []tensor.Scalar) {
	b.theta = theta
	b.grad = grad
}

// param returns a view of the bound parameter slice for idx, shaped
// per its declaration.
func (b *Base) param(idx nn.ParamIndex) tensor.Tensor {
	shape := b.paramShapes[idx]
	off := b.paramOffset[idx]
	return tensor.View(b.theta[off:off+shape.Size()], shape...)
}

// paramGrad returns a view of the bound gradient slice for idx; nil
// grad (inference-only binding) yields a nil-backed tensor that must
// not be written to.
func (b *Base) paramGrad(idx nn.ParamIndex) tensor.Tensor {
	if b.grad == nil {
		return tensor.Tensor{}
	}
	shape := b.paramShapes[idx]
	off := b.paramOffset[idx]
	return tensor.View(b.grad[off:off+shape.Size()], shape...)
}

func (b *Base) hasGrad() bool { return b.grad != nil }
