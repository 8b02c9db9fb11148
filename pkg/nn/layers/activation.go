package layers

import (
	"fmt"
	"math"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// ActivationKind selects one of the palette's seven elementwise,
// parameterless nonlinearities.
type ActivationKind int

const (
	Identity ActivationKind = iota
	Tanh
	SoftPlus
	SNorm
	Logistic
	Sine
	PowerWave
)

func (k ActivationKind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Tanh:
		return "tanh"
	case SoftPlus:
		return "softplus"
	case SNorm:
		return "snorm"
	case Logistic:
		return "logistic"
	case Sine:
		return "sine"
	case PowerWave:
		return "power_wave"
	default:
		return "activation"
	}
}

func activationFuncs(k ActivationKind) (phi func(tensor.Scalar) tensor.Scalar, dphi func(tensor.Scalar) tensor.Scalar) {
	switch k {
	case Identity:
		return func(x tensor.Scalar) tensor.Scalar { return x },
			func(tensor.Scalar) tensor.Scalar { return 1 }
	case Tanh:
		return func(x tensor.Scalar) tensor.Scalar { return tensor.Scalar(math.Tanh(float64(x))) },
			func(x tensor.Scalar) tensor.Scalar {
				t := tensor.Scalar(math.Tanh(float64(x)))
				return 1 - t*t
			}
	case SoftPlus:
		return func(x tensor.Scalar) tensor.Scalar { return tensor.Scalar(math.Log1p(math.Exp(float64(x)))) },
			func(x tensor.Scalar) tensor.Scalar { return 1 / (1 + tensor.Scalar(math.Exp(float64(-x)))) }
	case SNorm:
		return func(x tensor.Scalar) tensor.Scalar { return x / tensor.Scalar(math.Sqrt(float64(1+x*x))) },
			func(x tensor.Scalar) tensor.Scalar {
				d := tensor.Scalar(math.Sqrt(float64(1 + x*x)))
				return 1 / (d * d * d)
			}
	case Logistic:
		return func(x tensor.Scalar) tensor.Scalar { return 1 / (1 + tensor.Scalar(math.Exp(float64(-x)))) },
			func(x tensor.Scalar) tensor.Scalar {
				s := 1 / (1 + tensor.Scalar(math.Exp(float64(-x))))
				return s * (1 - s)
			}
	case Sine:
		return func(x tensor.Scalar) tensor.Scalar { return tensor.Scalar(math.Sin(float64(x))) },
			func(x tensor.Scalar) tensor.Scalar { return tensor.Scalar(math.Cos(float64(x))) }
	case PowerWave:
		return func(x tensor.Scalar) tensor.Scalar { return x / (1 + x*x) },
			func(x tensor.Scalar) tensor.Scalar {
				d := 1 + x*x
				return (1 - x*x) / (d * d)
			}
	default:
		panic(fmt.Sprintf("layers: unknown activation kind %d", int(k)))
	}
}

// Activation applies one of the fixed elementwise nonlinearities over
// its input shape; it has no parameters and its output shape always
// equals its input shape. Forward and Backward allocate a fresh output
// and input-gradient tensor on every call; no buffer is set up at
// Resize and reused across calls.
type Activation struct {
	Base
	kind ActivationKind
	phi  func(tensor.Scalar) tensor.Scalar
	dphi func(tensor.Scalar) tensor.Scalar
}

// NewActivation constructs an activation layer of the given kind.
func NewActivation(kind ActivationKind, opts ...Option) *Activation {
	phi, dphi := activationFuncs(kind)
	a := &Activation{Base: NewBase(kind.String()), kind: kind, phi: phi, dphi: dphi}
	a.applyOptions(opts)
	return a
}

func (a *Activation) Resize(inputShape tensor.Shape) (tensor.Shape, error) {
	return inputShape.Clone(), nil
}

func (a *Activation) InitParams(nn.Rng) {}

func (a *Activation) Forward(in tensor.Tensor) (tensor.Tensor, error) {
	out := tensor.NewAs(in)
	inData, outData := in.Data(), out.Data()
	for i, x := range inData {
		outData[i] = a.phi(x)
	}
	a.setIO(in, out)
	return out, nil
}

// Clone returns a fresh Activation of the same kind, unresized and
// unbound.
func (a *Activation) Clone() nn.Layer {
	return NewActivation(a.kind, WithName(a.Name()))
}

func (a *Activation) Backward(gOut tensor.Tensor) (tensor.Tensor, error) {
	in := a.Input()
	if in.IsNil() {
		return tensor.Tensor{}, fmt.Errorf("layers.Activation.Backward: %s: Forward was not called", a.Name())
	}
	gIn := tensor.NewAs(in)
	inData, gOutData, gInData := in.Data(), gOut.Data(), gIn.Data()
	for i, x := range inData {
		gInData[i] = gOutData[i] * a.dphi(x)
	}
	return gIn, nil
}
