package tensor

// ConvOutDim returns the output extent O = floor((I-K)/d) + 1 for a single
// axis, the fixed no-padding edge policy used by im2col/col2im and the
// convolution layer built on top of them.
func ConvOutDim(in, kernel, stride int) int {
	return (in-kernel)/stride + 1
}

// Im2Col rewrites a stack of input planes of shape (I, H, W) into a
// column matrix of shape (I*Kr*Kc, Or*Oc), where column (r*Oc+c) holds
// the flattened input patch that produces output pixel (r, c). dst must
// already be sized (I*Kr*Kc) x (Or*Oc); this mirrors the teacher's
// Convolve1DAdd sliding-window addressing, generalized to two spatial
// axes and stacked over planes instead of accumulating a dot product.
func Im2Col(dst Tensor, in Tensor, kr, kc, dr, dc int) {
	in.requireRank(3, "Im2Col")
	dst.requireRank(2, "Im2Col")
	I, H, W := in.shape[0], in.shape[1], in.shape[2]
	Or := ConvOutDim(H, kr, dr)
	Oc := ConvOutDim(W, kc, dc)
	rows := I * kr * kc
	cols := Or * Oc
	if dst.shape[0] != rows || dst.shape[1] != cols {
		panic("tensor.Im2Col: destination shape does not match (I*Kr*Kc) x (Or*Oc)")
	}
	inStridePlane := H * W
	dstLd := cols
	for i := 0; i < I; i++ {
		plane := in.data[i*inStridePlane : (i+1)*inStridePlane]
		for ki := 0; ki < kr; ki++ {
			for kj := 0; kj < kc; kj++ {
				row := (i*kr+ki)*kc + kj
				dstRow := dst.data[row*dstLd : row*dstLd+cols]
				for r := 0; r < Or; r++ {
					srcRow := plane[(r*dr+ki)*W:]
					dstOff := r * Oc
					for c := 0; c < Oc; c++ {
						dstRow[dstOff+c] = srcRow[c*dc+kj]
					}
				}
			}
		}
	}
}

// Col2Im is the transpose gather used to accumulate the input gradient
// of a convolution: it scatter-adds a column matrix of shape
// (I*Kr*Kc, Or*Oc) back into a (I, H, W) gradient tensor. dst is
// accumulated into, not overwritten, since overlapping receptive fields
// contribute to the same input element.
func Col2Im(dst Tensor, cols Tensor, kr, kc, dr, dc int) {
	dst.requireRank(3, "Col2Im")
	cols.requireRank(2, "Col2Im")
	I, H, W := dst.shape[0], dst.shape[1], dst.shape[2]
	Or := ConvOutDim(H, kr, dr)
	Oc := ConvOutDim(W, kc, dc)
	if cols.shape[0] != I*kr*kc || cols.shape[1] != Or*Oc {
		panic("tensor.Col2Im: column matrix shape does not match (I*Kr*Kc) x (Or*Oc)")
	}
	inStridePlane := H * W
	colsLd := Or * Oc
	for i := 0; i < I; i++ {
		plane := dst.data[i*inStridePlane : (i+1)*inStridePlane]
		for ki := 0; ki < kr; ki++ {
			for kj := 0; kj < kc; kj++ {
				row := (i*kr+ki)*kc + kj
				srcRow := cols.data[row*colsLd : row*colsLd+colsLd]
				for r := 0; r < Or; r++ {
					dstRow := plane[(r*dr+ki)*W:]
					srcOff := r * Oc
					for c := 0; c < Oc; c++ {
						dstRow[c*dc+kj] += srcRow[srcOff+c]
					}
				}
			}
		}
	}
}
