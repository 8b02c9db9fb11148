package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndAtSet(t *testing.T) {
	x := New(2, 3)
	assert.Equal(t, 6, x.Size())
	assert.Equal(t, 2, x.Rank())

	x.Set(5, 0, 1)
	x.Set(7, 1, 2)
	assert.Equal(t, Scalar(5), x.At(0, 1))
	assert.Equal(t, Scalar(7), x.At(1, 2))
	assert.Equal(t, Scalar(0), x.At(0, 0))
}

func TestViewRejectsSizeMismatch(t *testing.T) {
	assert.Panics(t, func() {
		View(make([]Scalar, 5), 2, 3)
	})
}

func TestCloneIsIndependent(t *testing.T) {
	x := New(3)
	x.Set(1, 0)
	y := x.Clone()
	y.Set(9, 0)
	assert.Equal(t, Scalar(1), x.At(0))
	assert.Equal(t, Scalar(9), y.At(0))
}

func TestReshapePreservesBacking(t *testing.T) {
	x := New(2, 3)
	x.Set(42, 1, 2)
	y := x.Reshape(6)
	assert.Equal(t, Scalar(42), y.At(5))

	assert.Panics(t, func() {
		x.Reshape(4)
	})
}

func TestSubReducesRankAndSharesStorage(t *testing.T) {
	x := New(2, 3)
	x.Set(1, 1, 0)
	x.Set(2, 1, 1)
	x.Set(3, 1, 2)

	sub := x.Sub(1)
	require.Equal(t, 1, sub.Rank())
	assert.Equal(t, Scalar(1), sub.At(0))
	assert.Equal(t, Scalar(2), sub.At(1))
	assert.Equal(t, Scalar(3), sub.At(2))

	sub.Set(99, 0)
	assert.Equal(t, Scalar(99), x.At(1, 0))
}

func TestFillAndZero(t *testing.T) {
	x := New(4)
	x.Fill(3)
	for _, v := range x.Data() {
		assert.Equal(t, Scalar(3), v)
	}
	x.Zero()
	for _, v := range x.Data() {
		assert.Equal(t, Scalar(0), v)
	}
}

func TestCopyFromRequiresEqualSize(t *testing.T) {
	dst := New(3)
	src := New(2)
	assert.Panics(t, func() {
		dst.CopyFrom(src)
	})
}

func TestShapeEqualAndStrides(t *testing.T) {
	a := NewShape(2, 3, 4)
	b := NewShape(2, 3, 4)
	c := NewShape(2, 3)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, []int{12, 4, 1}, a.Strides())
}
