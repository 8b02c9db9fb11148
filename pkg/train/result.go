package train

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

// ErrDivergence is returned (wrapped) by Trainer.Run when no reporting
// point produced a finite measurement, so there is no best-so-far
// parameter vector to load back. A non-finite value met inside a batch
// optimizer's Minimize is returned by Run as that optimizer's error,
// without a Result and not wrapped in ErrDivergence.
var ErrDivergence = errors.New("train: optimizer diverged")

// Status reports what a Measurement did to the running best-so-far
// record.
type Status int

const (
	Updated Status = iota
	Worse
	Diverged
	Overfitting
)

func (s Status) String() string {
	switch s {
	case Updated:
		return "updated"
	case Worse:
		return "worse"
	case Diverged:
		return "diverged"
	case Overfitting:
		return "overfitting"
	default:
		return "unknown"
	}
}

// FoldStats is the loss/error summary for one fold at a reporting
// point.
type FoldStats struct {
	Loss     float32
	AvgError float32
	VarError float32
}

func isFiniteFoldStats(f FoldStats) bool {
	return isFinite32(f.Loss) && isFinite32(f.AvgError) && isFinite32(f.VarError)
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Measurement is everything observed at one reporting point (a batch
// iteration or a stochastic epoch): the three folds' statistics, the
// gradient norm, and the parameter vector that produced them.
type Measurement struct {
	Step     int
	Theta    []float32
	Train    FoldStats
	Valid    FoldStats
	Test     FoldStats
	GradNorm float32
}

// Result is the monotone best-so-far record a Trainer builds up:
// Update is called once per reporting point and returns the status of
// that point relative to the best validation loss seen so far.
type Result struct {
	RunID uuid.UUID

	BestTheta    []float32
	BestStep     int
	BestTrain    FoldStats
	BestValid    FoldStats
	BestTest     FoldStats
	ConfigYAML   string
	ElapsedMs    int64

	haveBest           bool
	sinceImprovement   int
	overfitWindow      int
	overfitStreak      int
	lastTrainLoss      float32
	haveLastTrainLoss  bool
}

// NewResult builds an empty Result with a freshly generated RunID. The
// overfitWindow parameter is the number of consecutive reporting
// points of (train loss falling, valid loss rising) required before
// Update reports Overfitting.
func NewResult(overfitWindow int) *Result {
	if overfitWindow <= 0 {
		overfitWindow = 3
	}
	return &Result{RunID: uuid.New(), overfitWindow: overfitWindow}
}

// SinceImprovement returns the number of reporting points since the
// validation loss last improved, used by the stop policy's patience
// window.
func (r *Result) SinceImprovement() int { return r.sinceImprovement }

// Update folds one Measurement into the running best-so-far record and
// reports its status.
func (r *Result) Update(m Measurement) Status {
	if !isFiniteFoldStats(m.Train) || !isFiniteFoldStats(m.Valid) || !isFiniteFoldStats(m.Test) || !isFinite32(m.GradNorm) {
		return Diverged
	}

	overfitting := false
	if r.haveLastTrainLoss && m.Train.Loss < r.lastTrainLoss && r.haveBest && m.Valid.Loss > r.BestValid.Loss {
		r.overfitStreak++
		if r.overfitStreak >= r.overfitWindow {
			overfitting = true
		}
	} else {
		r.overfitStreak = 0
	}
	r.lastTrainLoss = m.Train.Loss
	r.haveLastTrainLoss = true

	improved := !r.haveBest || m.Valid.Loss < r.BestValid.Loss
	if improved {
		r.BestTheta = append([]float32(nil), m.Theta...)
		r.BestStep = m.Step
		r.BestTrain = m.Train
		r.BestValid = m.Valid
		r.BestTest = m.Test
		r.haveBest = true
		r.sinceImprovement = 0
	} else {
		r.sinceImprovement++
	}

	switch {
	case overfitting:
		return Overfitting
	case improved:
		return Updated
	default:
		return Worse
	}
}
