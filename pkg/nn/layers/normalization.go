package layers

import (
	"fmt"
	"math"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

const normEpsilon = tensor.Scalar(1e-5)

// Normalization implements the per-sample zero-mean/unit-variance
// affine transform of spec §4.2.4: statistics are computed over the
// whole input (no running batch statistics, unlike the teacher's
// normalization.go which tracks a batch running mean/var), followed by
// a learnable per-plane scale and shift.
type Normalization struct {
	Base
	planes, rows, cols int

	// cached from the last Forward, needed by Backward
	normed tensor.Tensor
	invStd tensor.Scalar
	mean   tensor.Scalar

	// outBuf, gYBuf and gInBuf are preallocated at Resize and reused by
	// every Forward/Backward call, per §9's "no allocation on the hot
	// path". normed is reused in place too (allocated here, written
	// fresh each Forward).
	outBuf tensor.Tensor
	gYBuf  tensor.Tensor
	gInBuf tensor.Tensor
}

func NewNormalization(opts ...Option) *Normalization {
	n := &Normalization{Base: NewBase("norm")}
	n.applyOptions(opts)
	return n
}

func (n *Normalization) Resize(inputShape tensor.Shape) (tensor.Shape, error) {
	if inputShape.Rank() != 3 {
		return nil, fmt.Errorf("layers.Normalization.Resize: %s: expected rank-3 input, got %v: %w",
			n.Name(), inputShape, tensor.ErrDimensionMismatch)
	}
	n.planes, n.rows, n.cols = inputShape[0], inputShape[1], inputShape[2]
	n.declareParam(nn.ParamScale, tensor.NewShape(n.planes))
	n.declareParam(nn.ParamShift, tensor.NewShape(n.planes))

	n.normed = tensor.New(n.planes, n.rows, n.cols)
	n.outBuf = tensor.New(n.planes, n.rows, n.cols)
	n.gYBuf = tensor.New(n.planes, n.rows, n.cols)
	n.gInBuf = tensor.New(n.planes, n.rows, n.cols)

	return inputShape.Clone(), nil
}

func (n *Normalization) InitParams(nn.Rng) {
	scale := n.param(nn.ParamScale)
	scale.Fill(1)
	shift := n.param(nn.ParamShift)
	shift.Fill(0)
}

func (n *Normalization) planeSize() int { return n.rows * n.cols }

// Clone returns a fresh Normalization layer, unresized and unbound.
func (n *Normalization) Clone() nn.Layer {
	return NewNormalization(WithName(n.Name()))
}

func (n *Normalization) Forward(in tensor.Tensor) (tensor.Tensor, error) {
	if in.Shape().Rank() != 3 || in.Shape()[0] != n.planes || in.Shape()[1] != n.rows || in.Shape()[2] != n.cols {
		return tensor.Tensor{}, fmt.Errorf("layers.Normalization.Forward: %s: input shape %v does not match configured (%d,%d,%d): %w",
			n.Name(), in.Shape(), n.planes, n.rows, n.cols, tensor.ErrDimensionMismatch)
	}
	data := in.Data()
	m := len(data)
	var sum, sumSq tensor.Scalar
	for _, v := range data {
		sum += v
		sumSq += v * v
	}
	mean := sum / tensor.Scalar(m)
	variance := sumSq/tensor.Scalar(m) - mean*mean
	if variance < 0 {
		variance = 0
	}
	invStd := 1 / tensor.Scalar(math.Sqrt(float64(variance)+float64(normEpsilon)))

	normed := n.normed
	for i, v := range data {
		normed.Data()[i] = (v - mean) * invStd
	}

	scale := n.param(nn.ParamScale)
	shift := n.param(nn.ParamShift)
	out := n.outBuf
	ps := n.planeSize()
	for p := 0; p < n.planes; p++ {
		sv, hv := scale.At(p), shift.At(p)
		src := normed.Data()[p*ps : (p+1)*ps]
		dst := out.Data()[p*ps : (p+1)*ps]
		for j := range src {
			dst[j] = src[j]*sv + hv
		}
	}

	n.mean, n.invStd = mean, invStd
	n.setIO(in, out)
	return out, nil
}

func (n *Normalization) Backward(gOut tensor.Tensor) (tensor.Tensor, error) {
	if n.Input().IsNil() {
		return tensor.Tensor{}, fmt.Errorf("layers.Normalization.Backward: %s: Forward was not called", n.Name())
	}
	ps := n.planeSize()
	scale := n.param(nn.ParamScale)

	gY := n.gYBuf
	if n.hasGrad() {
		gScale := n.paramGrad(nn.ParamScale)
		gShift := n.paramGrad(nn.ParamShift)
		for p := 0; p < n.planes; p++ {
			gOutP := gOut.Data()[p*ps : (p+1)*ps]
			normedP := n.normed.Data()[p*ps : (p+1)*ps]
			var gs, gh tensor.Scalar
			for j := range gOutP {
				gs += gOutP[j] * normedP[j]
				gh += gOutP[j]
			}
			gScale.Set(gScale.At(p)+gs, p)
			gShift.Set(gShift.At(p)+gh, p)
		}
	}
	for p := 0; p < n.planes; p++ {
		sv := scale.At(p)
		gOutP := gOut.Data()[p*ps : (p+1)*ps]
		gYP := gY.Data()[p*ps : (p+1)*ps]
		for j := range gOutP {
			gYP[j] = gOutP[j] * sv
		}
	}

	m := tensor.Scalar(len(gY.Data()))
	var sumGY, sumGYnormed tensor.Scalar
	for i, g := range gY.Data() {
		sumGY += g
		sumGYnormed += g * n.normed.Data()[i]
	}

	gIn := n.gInBuf
	for i, g := range gY.Data() {
		gIn.Data()[i] = (n.invStd / m) * (m*g - sumGY - n.normed.Data()[i]*sumGYnormed)
	}
	return gIn, nil
}
