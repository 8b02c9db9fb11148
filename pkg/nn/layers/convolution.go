package layers

import (
	"fmt"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Convolution implements the 3-D-in/3-D-out lowered convolution of
// spec §4.2.3: forward and backward both go through an im2col/col2im
// matrix product rather than a direct sliding-window accumulation,
// matching the teacher's preference for expressing convolution as GEMM
// (primitive/fp32.Convolve1DAdd generalized to two spatial axes and
// wrapped in the lowering transform instead of a direct loop).
type Convolution struct {
	Base
	iPlanes, iRows, iCols int
	oPlanes, kr, kc       int
	dr, dc                int
	conn                  int
	oRows, oCols          int

	imCols       tensor.Tensor // (iPlanes*kr*kc) x (oRows*oCols), cached across forward/backward
	kernelMatrix tensor.Tensor // oPlanes x (iPlanes*kr*kc), rebuilt from theta each pass

	// outBuf, gInColsBuf, gInBuf and gradMatBuf are preallocated at
	// Resize and reused by every Forward/Backward call, per §9's "no
	// allocation on the hot path".
	outBuf     tensor.Tensor
	gInColsBuf tensor.Tensor
	gInBuf     tensor.Tensor
	gradMatBuf tensor.Tensor
}

// NewConvolution constructs a convolution layer. conn is the
// connectivity K_conn ≥ 1; inPlanes is validated against conn at
// Resize time (inPlanes must be a multiple of conn).
func NewConvolution(oPlanes, kr, kc, dr, dc, conn int, opts ...Option) *Convolution {
	if conn < 1 {
		panic("layers.NewConvolution: connectivity must be >= 1")
	}
	c := &Convolution{Base: NewBase("conv"), oPlanes: oPlanes, kr: kr, kc: kc, dr: dr, dc: dc, conn: conn}
	c.applyOptions(opts)
	return c
}

func (c *Convolution) Resize(inputShape tensor.Shape) (tensor.Shape, error) {
	if inputShape.Rank() != 3 {
		return nil, fmt.Errorf("layers.Convolution.Resize: %s: expected rank-3 input, got %v: %w",
			c.Name(), inputShape, tensor.ErrDimensionMismatch)
	}
	iPlanes, iRows, iCols := inputShape[0], inputShape[1], inputShape[2]
	if iPlanes%c.conn != 0 {
		return nil, fmt.Errorf("layers.Convolution.Resize: %s: input planes %d not a multiple of connectivity %d: %w",
			c.Name(), iPlanes, c.conn, tensor.ErrDimensionMismatch)
	}
	c.iPlanes, c.iRows, c.iCols = iPlanes, iRows, iCols
	c.oRows = tensor.ConvOutDim(iRows, c.kr, c.dr)
	c.oCols = tensor.ConvOutDim(iCols, c.kc, c.dc)

	c.declareParam(nn.ParamKernels, tensor.NewShape(c.oPlanes, iPlanes/c.conn, c.kr, c.kc))
	c.declareParam(nn.ParamBiases, tensor.NewShape(c.oPlanes))

	c.imCols = tensor.New(iPlanes*c.kr*c.kc, c.oRows*c.oCols)
	c.kernelMatrix = tensor.New(c.oPlanes, iPlanes*c.kr*c.kc)

	c.outBuf = tensor.New(c.oPlanes, c.oRows*c.oCols)
	c.gInColsBuf = tensor.New(iPlanes*c.kr*c.kc, c.oRows*c.oCols)
	c.gInBuf = tensor.New(iPlanes, iRows, iCols)
	c.gradMatBuf = tensor.New(c.oPlanes, iPlanes*c.kr*c.kc)

	return tensor.NewShape(c.oPlanes, c.oRows, c.oCols), nil
}

func (c *Convolution) InitParams(rng nn.Rng) {
	fanIn := (c.iPlanes / c.conn) * c.kr * c.kc
	limit := tensor.Scalar(1)
	if fanIn > 0 {
		limit = 1 / tensor.Scalar(fanIn)
	}
	k := c.param(nn.ParamKernels)
	for i := range k.Data() {
		k.Data()[i] = (rng.Float32()*2 - 1) * limit
	}
	b := c.param(nn.ParamBiases)
	for i := range b.Data() {
		b.Data()[i] = 0
	}
}

// connectedPlane returns the actual input plane index for output plane
// o's ic-th connected slot, per the {i : i ≡ o (mod K_conn)} rule.
func (c *Convolution) connectedPlane(o, ic int) int {
	return o%c.conn + ic*c.conn
}

// buildKernelMatrix materializes the oPlanes x (iPlanes*Kr*Kc) matrix
// from the bound kernel parameter, zero everywhere except the
// connected slots — identity expansion when conn == 1.
func (c *Convolution) buildKernelMatrix() {
	c.kernelMatrix.Zero()
	kernel := c.param(nn.ParamKernels)
	icCount := c.iPlanes / c.conn
	patch := c.kr * c.kc
	rowLen := c.iPlanes * patch
	for o := 0; o < c.oPlanes; o++ {
		dstRow := c.kernelMatrix.Data()[o*rowLen : (o+1)*rowLen]
		for ic := 0; ic < icCount; ic++ {
			i := c.connectedPlane(o, ic)
			for ki := 0; ki < c.kr; ki++ {
				for kj := 0; kj < c.kc; kj++ {
					dstRow[i*patch+ki*c.kc+kj] = kernel.At(o, ic, ki, kj)
				}
			}
		}
	}
}

// scatterKernelGrad is the inverse of buildKernelMatrix: it reads a
// gradient in the oPlanes x (iPlanes*Kr*Kc) layout and writes the
// corresponding connected slots into the bound kernel gradient.
func (c *Convolution) scatterKernelGrad(gradMatrix tensor.Tensor) {
	gKernel := c.paramGrad(nn.ParamKernels)
	icCount := c.iPlanes / c.conn
	patch := c.kr * c.kc
	rowLen := c.iPlanes * patch
	for o := 0; o < c.oPlanes; o++ {
		srcRow := gradMatrix.Data()[o*rowLen : (o+1)*rowLen]
		for ic := 0; ic < icCount; ic++ {
			i := c.connectedPlane(o, ic)
			for ki := 0; ki < c.kr; ki++ {
				for kj := 0; kj < c.kc; kj++ {
					gKernel.Set(gKernel.At(o, ic, ki, kj)+srcRow[i*patch+ki*c.kc+kj], o, ic, ki, kj)
				}
			}
		}
	}
}

// Clone returns a fresh Convolution of the same configuration,
// unresized and unbound.
func (c *Convolution) Clone() nn.Layer {
	return NewConvolution(c.oPlanes, c.kr, c.kc, c.dr, c.dc, c.conn, WithName(c.Name()))
}

func (c *Convolution) Forward(in tensor.Tensor) (tensor.Tensor, error) {
	if in.Shape().Rank() != 3 || in.Shape()[0] != c.iPlanes || in.Shape()[1] != c.iRows || in.Shape()[2] != c.iCols {
		return tensor.Tensor{}, fmt.Errorf("layers.Convolution.Forward: %s: input shape %v does not match configured (%d,%d,%d): %w",
			c.Name(), in.Shape(), c.iPlanes, c.iRows, c.iCols, tensor.ErrDimensionMismatch)
	}
	tensor.Im2Col(c.imCols, in, c.kr, c.kc, c.dr, c.dc)
	c.buildKernelMatrix()

	outCols := c.oRows * c.oCols
	out2D := c.outBuf
	tensor.MatMul(out2D, c.kernelMatrix, c.imCols)

	bias := c.param(nn.ParamBiases)
	for o := 0; o < c.oPlanes; o++ {
		row := out2D.Data()[o*outCols : (o+1)*outCols]
		bv := bias.At(o)
		for j := range row {
			row[j] += bv
		}
	}

	out := out2D.Reshape(c.oPlanes, c.oRows, c.oCols)
	c.setIO(in, out)
	return out, nil
}

func (c *Convolution) Backward(gOut tensor.Tensor) (tensor.Tensor, error) {
	in := c.Input()
	if in.IsNil() {
		return tensor.Tensor{}, fmt.Errorf("layers.Convolution.Backward: %s: Forward was not called", c.Name())
	}
	outCols := c.oRows * c.oCols
	gOut2D := gOut.Reshape(c.oPlanes, outCols)

	gInCols := c.gInColsBuf
	tensor.Gemm(gInCols.Data(), c.kernelMatrix.Data(), gOut2D.Data(),
		outCols, c.iPlanes*c.kr*c.kc, outCols,
		c.iPlanes*c.kr*c.kc, outCols, c.oPlanes, 1, 0, true, false)

	gIn := c.gInBuf
	gIn.Zero()
	tensor.Col2Im(gIn, gInCols, c.kr, c.kc, c.dr, c.dc)

	if c.hasGrad() {
		gradMatrix := c.gradMatBuf
		tensor.Gemm(gradMatrix.Data(), gOut2D.Data(), c.imCols.Data(),
			c.iPlanes*c.kr*c.kc, outCols, outCols,
			c.oPlanes, c.iPlanes*c.kr*c.kc, outCols, 1, 0, false, true)
		c.scatterKernelGrad(gradMatrix)

		gBias := c.paramGrad(nn.ParamBiases)
		for o := 0; o < c.oPlanes; o++ {
			row := gOut2D.Data()[o*outCols : (o+1)*outCols]
			var sum tensor.Scalar
			for _, v := range row {
				sum += v
			}
			gBias.Set(gBias.At(o)+sum, o)
		}
	}

	return gIn, nil
}
