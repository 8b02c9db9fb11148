package tensor

import "math/rand"

// RandomUniform fills t in place with samples drawn from U[lo, hi) using
// rng, matching the teacher's rng-threaded InitXavier convention of
// taking an explicit *rand.Rand rather than touching the global source
// so that worker accumulators can seed independent streams.
func RandomUniform(t Tensor, lo, hi Scalar, rng *rand.Rand) {
	span := hi - lo
	for i := range t.data {
		t.data[i] = lo + rng.Float32()*span
	}
}

// RandomNormal fills t in place with samples drawn from N(mean, stddev).
func RandomNormal(t Tensor, mean, stddev Scalar, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = mean + Scalar(rng.NormFloat64())*stddev
	}
}
