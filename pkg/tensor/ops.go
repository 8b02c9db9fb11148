package tensor

import "math"

// Add computes dst = a + b elementwise. All three must have equal size.
func Add(dst, a, b Tensor) {
	requireSameSize(dst, a, "tensor.Add")
	requireSameSize(dst, b, "tensor.Add")
	for i := range dst.data {
		dst.data[i] = a.data[i] + b.data[i]
	}
}

// Sub computes dst = a - b elementwise.
func Sub(dst, a, b Tensor) {
	requireSameSize(dst, a, "tensor.Sub")
	requireSameSize(dst, b, "tensor.Sub")
	for i := range dst.data {
		dst.data[i] = a.data[i] - b.data[i]
	}
}

// Mul computes dst = a * b elementwise (Hadamard product).
func Mul(dst, a, b Tensor) {
	requireSameSize(dst, a, "tensor.Mul")
	requireSameSize(dst, b, "tensor.Mul")
	for i := range dst.data {
		dst.data[i] = a.data[i] * b.data[i]
	}
}

// Scale multiplies every element of t by alpha in place.
func Scale(t Tensor, alpha Scalar) {
	if alpha == 1 {
		return
	}
	for i := range t.data {
		t.data[i] *= alpha
	}
}

// AddScaled performs the axpy update dst += alpha*x, matching the
// teacher's primitive/fp32.Axpy convention.
func AddScaled(dst Tensor, alpha Scalar, x Tensor) {
	requireSameSize(dst, x, "tensor.AddScaled")
	if alpha == 0 {
		return
	}
	for i := range dst.data {
		dst.data[i] += alpha * x.data[i]
	}
}

// Dot returns the inner product of a and b, treated as flat vectors.
func Dot(a, b Tensor) Scalar {
	requireSameSize(a, b, "tensor.Dot")
	var sum Scalar
	for i := range a.data {
		sum += a.data[i] * b.data[i]
	}
	return sum
}

// Norm2 returns the Euclidean norm of t, treated as a flat vector.
func Norm2(t Tensor) Scalar {
	return Scalar(math.Sqrt(float64(Dot(t, t))))
}

// Sum returns the sum of all elements.
func Sum(t Tensor) Scalar {
	var sum Scalar
	for _, v := range t.data {
		sum += v
	}
	return sum
}

func requireSameSize(a, b Tensor, op string) {
	if len(a.data) != len(b.data) {
		panic(op + ": size mismatch")
	}
}
