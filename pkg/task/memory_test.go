package task

import (
	"math/rand"
	"testing"

	"github.com/nanocv-go/nanocv/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(v tensor.Scalar) Sample {
	in := tensor.New(1, 1, 1)
	in.Set(v, 0, 0, 0)
	out := tensor.New(1, 1, 1)
	out.Set(v, 0, 0, 0)
	return Sample{Input: in, Target: out}
}

func newFilledTask(t *testing.T, n int) *MemoryTask {
	tk := NewMemoryTask("t", Dims{1, 1, 1}, Dims{1, 1, 1}, rand.New(rand.NewSource(7)))
	f := Fold{Index: 0, Protocol: Train}
	for i := 0; i < n; i++ {
		require.NoError(t, tk.Push(f, sampleAt(tensor.Scalar(i))))
	}
	return tk
}

func TestPushRejectsDimensionMismatch(t *testing.T) {
	tk := NewMemoryTask("t", Dims{1, 1, 1}, Dims{1, 1, 1}, nil)
	bad := Sample{Input: tensor.New(2, 1, 1), Target: tensor.New(1, 1, 1)}
	err := tk.Push(Fold{Protocol: Train}, bad)
	require.Error(t, err)
}

func TestSizeAndFoldCount(t *testing.T) {
	tk := newFilledTask(t, 5)
	f := Fold{Index: 0, Protocol: Train}
	assert.Equal(t, 5, tk.Size(f))
	assert.Equal(t, 5, tk.SizeAll())
	assert.Equal(t, 1, tk.FoldCount())
}

func TestShuffleStableMembershipAndHash(t *testing.T) {
	tk := newFilledTask(t, 20)
	f := Fold{Index: 0, Protocol: Train}

	before := make(map[uint64]int)
	for i := 0; i < tk.Size(f); i++ {
		before[tk.InputHash(f, i)]++
	}

	tk.Shuffle(f)

	assert.Equal(t, 20, tk.Size(f), "shuffle must not change fold size")
	after := make(map[uint64]int)
	for i := 0; i < tk.Size(f); i++ {
		after[tk.InputHash(f, i)]++
	}
	assert.Equal(t, before, after, "shuffle must preserve the hash multiset")
}

func TestHashInvariantForSameContent(t *testing.T) {
	tk1 := NewMemoryTask("t", Dims{1, 1, 1}, Dims{1, 1, 1}, nil)
	tk2 := NewMemoryTask("t", Dims{1, 1, 1}, Dims{1, 1, 1}, nil)
	f := Fold{Protocol: Train}
	require.NoError(t, tk1.Push(f, sampleAt(3)))
	require.NoError(t, tk2.Push(f, sampleAt(3)))
	assert.Equal(t, tk1.InputHash(f, 0), tk2.InputHash(f, 0))
}

func TestGetOutOfRange(t *testing.T) {
	tk := newFilledTask(t, 2)
	_, err := tk.Get(Fold{Protocol: Train}, 5)
	assert.Error(t, err)
}
