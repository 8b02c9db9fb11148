// Package task defines the read-only sample provider the training core
// consumes: tasks are partitioned into folds, each fold serving one of
// the train/valid/test protocols, with stable content hashes and
// in-place shuffling of the observable order within a fold.
package task

import (
	"fmt"

	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Protocol identifies which stage of training a fold belongs to.
type Protocol uint8

const (
	Train Protocol = iota
	Valid
	Test
)

func (p Protocol) String() string {
	switch p {
	case Train:
		return "train"
	case Valid:
		return "valid"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

// Fold identifies a cross-validation partition by index and protocol.
// Folds are ordered lexicographically by (Index, Protocol).
type Fold struct {
	Index    int
	Protocol Protocol
}

// Less reports whether f sorts before o under the lexicographic order
// on (Index, Protocol).
func (f Fold) Less(o Fold) bool {
	if f.Index != o.Index {
		return f.Index < o.Index
	}
	return f.Protocol < o.Protocol
}

func (f Fold) String() string {
	return fmt.Sprintf("fold#%d/%s", f.Index, f.Protocol)
}

// Sample is a single labeled training example: input and target
// rank-3 tensors, an optional display label, and a per-sample weight
// (1 when unweighted). Samples are produced on demand by a Task and
// are short-lived: consumed by exactly one accumulator update.
type Sample struct {
	Input  tensor.Tensor
	Target tensor.Tensor
	Label  string
	Weight tensor.Scalar
}

// Dims describes the plane/row/col extents of samples a Task produces
// or expects, matching the rank-3 sample contract of §3.
type Dims struct {
	Planes int
	Rows   int
	Cols   int
}

func (d Dims) dims3() []int { return []int{d.Planes, d.Rows, d.Cols} }

// Task is the read-only interface the training core consumes: a
// collection of samples partitioned by fold, each with stable content
// hashes and an in-place shuffle of the observable order within a
// fold. Implementations must keep fold membership and size fixed
// across shuffles.
type Task interface {
	// Name identifies the task for logging and reports.
	Name() string

	InputDims() Dims
	OutputDims() Dims

	// FoldCount returns the number of cross-validation folds, not
	// considering protocol.
	FoldCount() int

	// Size returns the number of samples in the given fold, or the
	// total sample count across every fold when called with no
	// argument semantics handled by SizeAll.
	Size(fold Fold) int
	SizeAll() int

	// Get returns the sample at the given index within fold.
	Get(fold Fold, index int) (Sample, error)

	// InputHash and OutputHash return content hashes stable across
	// shuffles and process runs, used to detect accidental data
	// leakage between folds.
	InputHash(fold Fold, index int) uint64
	OutputHash(fold Fold, index int) uint64

	// Shuffle permutes the observable order within fold without
	// changing membership or count. Called only by the trainer's main
	// thread between epochs, while workers are quiescent.
	Shuffle(fold Fold)
}
