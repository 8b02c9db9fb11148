package tensor

// Gemm computes C = alpha*op(A)*op(B) + beta*C where op(X) is X or X^T
// depending on transA/transB, matching the BLAS GEMM convention the
// teacher's primitive/fp32 level3 routines implement (Gemm_NN/NT/TN/TT),
// collapsed here into one entry point selected by the transpose flags.
// A, B, C are row-major flat buffers viewed through leading dimensions
// ldA, ldB, ldC; M, N, K are the logical (post-transpose) GEMM
// dimensions.
func Gemm(c, a, b []Scalar, ldC, ldA, ldB, M, N, K int, alpha, beta Scalar, transA, transB bool) {
	if M == 0 || N == 0 {
		return
	}
	scaleC(c, ldC, M, N, beta)
	if alpha == 0 || K == 0 {
		return
	}
	switch {
	case !transA && !transB:
		gemmNN(c, a, b, ldC, ldA, ldB, M, N, K, alpha)
	case !transA && transB:
		gemmNT(c, a, b, ldC, ldA, ldB, M, N, K, alpha)
	case transA && !transB:
		gemmTN(c, a, b, ldC, ldA, ldB, M, N, K, alpha)
	default:
		gemmTT(c, a, b, ldC, ldA, ldB, M, N, K, alpha)
	}
}

func scaleC(c []Scalar, ldC, M, N int, beta Scalar) {
	if beta == 1 {
		return
	}
	if beta == 0 {
		for i := 0; i < M; i++ {
			row := c[i*ldC : i*ldC+N]
			for j := range row {
				row[j] = 0
			}
		}
		return
	}
	for i := 0; i < M; i++ {
		row := c[i*ldC : i*ldC+N]
		for j := range row {
			row[j] *= beta
		}
	}
}

func gemmNN(c, a, b []Scalar, ldC, ldA, ldB, M, N, K int, alpha Scalar) {
	for i := 0; i < M; i++ {
		pa := i * ldA
		pc := i * ldC
		for k := 0; k < K; k++ {
			av := alpha * a[pa+k]
			if av == 0 {
				continue
			}
			pb := k * ldB
			for j := 0; j < N; j++ {
				c[pc+j] += av * b[pb+j]
			}
		}
	}
}

func gemmNT(c, a, b []Scalar, ldC, ldA, ldB, M, N, K int, alpha Scalar) {
	for i := 0; i < M; i++ {
		pa := i * ldA
		pc := i * ldC
		for j := 0; j < N; j++ {
			pb := j * ldB
			var sum Scalar
			for k := 0; k < K; k++ {
				sum += a[pa+k] * b[pb+k]
			}
			c[pc+j] += alpha * sum
		}
	}
}

func gemmTN(c, a, b []Scalar, ldC, ldA, ldB, M, N, K int, alpha Scalar) {
	for i := 0; i < M; i++ {
		pc := i * ldC
		for k := 0; k < K; k++ {
			av := alpha * a[k*ldA+i]
			if av == 0 {
				continue
			}
			pb := k * ldB
			for j := 0; j < N; j++ {
				c[pc+j] += av * b[pb+j]
			}
		}
	}
}

func gemmTT(c, a, b []Scalar, ldC, ldA, ldB, M, N, K int, alpha Scalar) {
	for i := 0; i < M; i++ {
		pc := i * ldC
		for j := 0; j < N; j++ {
			var sum Scalar
			pb := j * ldB
			for k := 0; k < K; k++ {
				sum += a[k*ldA+i] * b[pb+k]
			}
			c[pc+j] += alpha * sum
		}
	}
}

// MatMul computes dst = a * b for rank-2 tensors using Gemm_NN.
func MatMul(dst, a, b Tensor) {
	a.requireRank(2, "MatMul")
	b.requireRank(2, "MatMul")
	dst.requireRank(2, "MatMul")
	M, K := a.shape[0], a.shape[1]
	K2, N := b.shape[0], b.shape[1]
	if K != K2 {
		panic("tensor.MatMul: inner dimensions do not match")
	}
	if dst.shape[0] != M || dst.shape[1] != N {
		panic("tensor.MatMul: destination shape does not match A*B")
	}
	Gemm(dst.data, a.data, b.data, N, K, N, M, N, K, 1, 0, false, false)
}
