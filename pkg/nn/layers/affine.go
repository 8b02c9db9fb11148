package layers

import (
	"fmt"
	"math"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Affine implements out_flat = W*in_flat + b, matching the teacher's
// Dense layer generalized to an arbitrary-rank input flattened to a
// vector of size I (the original's affine_layer_t).
type Affine struct {
	Base
	in, out int

	// outBuf and gInBuf are preallocated at Resize and reused by every
	// Forward/Backward call, per §9's "no allocation on the hot path".
	outBuf []tensor.Scalar
	gInBuf []tensor.Scalar
}

// NewAffine constructs an affine layer mapping a flattened input of
// size in to a flattened output of size out.
func NewAffine(in, out int, opts ...Option) *Affine {
	a := &Affine{Base: NewBase("affine"), in: in, out: out}
	a.applyOptions(opts)
	return a
}

func (a *Affine) Resize(inputShape tensor.Shape) (tensor.Shape, error) {
	if inputShape.Size() != a.in {
		return nil, fmt.Errorf("layers.Affine.Resize: %s: input shape %v (size %d) does not match configured I=%d: %w",
			a.Name(), inputShape, inputShape.Size(), a.in, tensor.ErrDimensionMismatch)
	}
	a.declareParam(nn.ParamWeights, tensor.NewShape(a.out, a.in))
	a.declareParam(nn.ParamBiases, tensor.NewShape(a.out))
	a.outBuf = make([]tensor.Scalar, a.out)
	a.gInBuf = make([]tensor.Scalar, a.in)
	return tensor.NewShape(a.out), nil
}

func (a *Affine) InitParams(rng nn.Rng) {
	limit := tensor.Scalar(1) / tensor.Scalar(math.Sqrt(float64(a.in)))
	w := a.param(nn.ParamWeights)
	for i := range w.Data() {
		w.Data()[i] = (rng.Float32()*2 - 1) * limit
	}
	b := a.param(nn.ParamBiases)
	for i := range b.Data() {
		b.Data()[i] = 0
	}
}

// Clone returns a fresh Affine of the same configured dimensions,
// unresized and unbound.
func (a *Affine) Clone() nn.Layer {
	return NewAffine(a.in, a.out, WithName(a.Name()))
}

func (a *Affine) Forward(in tensor.Tensor) (tensor.Tensor, error) {
	flatIn := in.Reshape(a.in)
	w := a.param(nn.ParamWeights)
	b := a.param(nn.ParamBiases)
	out := tensor.View(a.outBuf, a.out)
	tensor.Gemm(out.Data(), w.Data(), flatIn.Data(), 1, a.in, 1, a.out, 1, a.in, 1, 0, false, false)
	tensor.Add(out, out, b)
	a.setIO(in, out)
	return out, nil
}

func (a *Affine) Backward(gOut tensor.Tensor) (tensor.Tensor, error) {
	in := a.Input()
	if in.IsNil() {
		return tensor.Tensor{}, fmt.Errorf("layers.Affine.Backward: %s: Forward was not called", a.Name())
	}
	flatIn := in.Reshape(a.in)
	w := a.param(nn.ParamWeights)
	flatGOut := gOut.Reshape(a.out)

	gIn := tensor.View(a.gInBuf, a.in)
	// g_in_flat = W^T * g_out_flat
	tensor.Gemm(gIn.Data(), w.Data(), flatGOut.Data(), 1, a.in, 1, a.in, 1, a.out, 1, 0, true, false)

	if a.hasGrad() {
		gW := a.paramGrad(nn.ParamWeights)
		// g_W += g_out_flat * in_flat^T  (outer product, O x I)
		tensor.Gemm(gW.Data(), flatGOut.Data(), flatIn.Data(), a.in, 1, 1, a.out, a.in, 1, 1, 1, false, true)
		gB := a.paramGrad(nn.ParamBiases)
		tensor.Add(gB, gB, flatGOut)
	}

	return gIn.Reshape(in.Shape()...), nil
}
