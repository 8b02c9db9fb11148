package task

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// MemoryTask is a Task backed by samples held entirely in memory,
// grouped by fold. It is the in-memory analogue of the teacher-adjacent
// original's mem_task_t: construction populates folds via Push, after
// which the task is read-only except for Shuffle.
type MemoryTask struct {
	name       string
	inputDims  Dims
	outputDims Dims
	rng        *rand.Rand

	folds map[Fold][]Sample
	order map[Fold][]int
}

// NewMemoryTask constructs an empty in-memory task with the given
// declared input/output dimensions. Samples are added with Push before
// the task is handed to a trainer; dimensions are fixed for the task's
// lifetime per the data model's Task invariants.
func NewMemoryTask(name string, in, out Dims, rng *rand.Rand) *MemoryTask {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &MemoryTask{
		name:       name,
		inputDims:  in,
		outputDims: out,
		rng:        rng,
		folds:      make(map[Fold][]Sample),
		order:      make(map[Fold][]int),
	}
}

// Push appends a sample to the given fold, validating its dimensions
// against the task's declared input/output shape.
func (t *MemoryTask) Push(fold Fold, s Sample) error {
	if !s.Input.Shape().Equal(tensor.NewShape(t.inputDims.dims3()...)) {
		return fmt.Errorf("task.Push: sample input shape %v does not match declared %v: %w",
			s.Input.Shape(), t.inputDims.dims3(), tensor.ErrDimensionMismatch)
	}
	if !s.Target.Shape().Equal(tensor.NewShape(t.outputDims.dims3()...)) {
		return fmt.Errorf("task.Push: sample target shape %v does not match declared %v: %w",
			s.Target.Shape(), t.outputDims.dims3(), tensor.ErrDimensionMismatch)
	}
	if s.Weight == 0 {
		s.Weight = 1
	}
	idx := len(t.folds[fold])
	t.folds[fold] = append(t.folds[fold], s)
	t.order[fold] = append(t.order[fold], idx)
	return nil
}

func (t *MemoryTask) Name() string { return t.name }

func (t *MemoryTask) InputDims() Dims  { return t.inputDims }
func (t *MemoryTask) OutputDims() Dims { return t.outputDims }

func (t *MemoryTask) FoldCount() int {
	max := -1
	for f := range t.folds {
		if f.Index > max {
			max = f.Index
		}
	}
	return max + 1
}

func (t *MemoryTask) Size(fold Fold) int {
	return len(t.folds[fold])
}

func (t *MemoryTask) SizeAll() int {
	n := 0
	for _, s := range t.folds {
		n += len(s)
	}
	return n
}

func (t *MemoryTask) Get(fold Fold, index int) (Sample, error) {
	order, ok := t.order[fold]
	if !ok || index < 0 || index >= len(order) {
		return Sample{}, fmt.Errorf("task.Get: index %d out of range for %v", index, fold)
	}
	return t.folds[fold][order[index]], nil
}

func (t *MemoryTask) InputHash(fold Fold, index int) uint64 {
	s, err := t.Get(fold, index)
	if err != nil {
		return 0
	}
	return contentHash(s.Input.Data())
}

func (t *MemoryTask) OutputHash(fold Fold, index int) uint64 {
	s, err := t.Get(fold, index)
	if err != nil {
		return 0
	}
	return contentHash(s.Target.Data())
}

// Shuffle permutes the observable order within fold in place, without
// moving the underlying samples; InputHash/OutputHash continue to
// reflect sample content, so they are invariant under Shuffle.
func (t *MemoryTask) Shuffle(fold Fold) {
	order, ok := t.order[fold]
	if !ok {
		return
	}
	t.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}

// contentHash hashes the little-endian IEEE 754 bytes of a flat
// float32 slice with FNV-1a, giving a stable hash across process runs
// for identical content regardless of slice identity.
func contentHash(data []tensor.Scalar) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}
