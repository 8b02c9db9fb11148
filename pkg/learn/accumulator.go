// Package learn implements the per-thread Accumulator: given a model
// clone, a loss, and a sample range, it produces aggregated value,
// error, and optional parameter-gradient statistics, reducible across
// threads by summing running sums (spec §4.4).
package learn

import (
	"fmt"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/task"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Accumulator binds one model clone and one loss, tracking running
// sums over the samples it has been asked to evaluate. Two
// accumulators over non-overlapping ranges of the same fold can be
// combined with Add; the normalized statistics of the sum equal those
// of a single accumulator run over the concatenated range.
type Accumulator struct {
	model  *nn.Model
	loss   nn.Loss
	lambda tensor.Scalar // optional L2 regularization coefficient

	withGrad bool
	grad     []tensor.Scalar

	count      int
	valueSum   tensor.Scalar
	errorSum   tensor.Scalar
	errorSqSum tensor.Scalar
}

// New constructs an Accumulator around a model clone and a loss.
// lambda is the L2 regularization coefficient added to the gradient
// (0 disables regularization). withGrad selects whether Update also
// runs the backward pass and accumulates into the gradient sum.
func New(model *nn.Model, loss nn.Loss, lambda tensor.Scalar, withGrad bool) *Accumulator {
	a := &Accumulator{model: model, loss: loss, lambda: lambda, withGrad: withGrad}
	if withGrad {
		a.grad = make([]tensor.Scalar, model.ParamCount())
	}
	return a
}

// SetParams updates the accumulator's model clone parameters and
// resets the running sums, readying it for a fresh Update sequence.
func (a *Accumulator) SetParams(theta []tensor.Scalar) error {
	if err := a.model.SetParams(theta); err != nil {
		return fmt.Errorf("learn.Accumulator.SetParams: %w", err)
	}
	a.Reset()
	return nil
}

// Reset zeroes every running sum without touching the bound model
// parameters.
func (a *Accumulator) Reset() {
	a.count = 0
	a.valueSum = 0
	a.errorSum = 0
	a.errorSqSum = 0
	for i := range a.grad {
		a.grad[i] = 0
	}
}

// Update runs forward (and, if enabled, backward) over samples
// [begin, end) of fold in task, accumulating into the running sums.
func (a *Accumulator) Update(t task.Task, fold task.Fold, begin, end int) error {
	for i := begin; i < end; i++ {
		sample, err := t.Get(fold, i)
		if err != nil {
			return fmt.Errorf("learn.Accumulator.Update: %w", err)
		}
		out, err := a.model.Output(sample.Input)
		if err != nil {
			return fmt.Errorf("learn.Accumulator.Update: %w", err)
		}
		value, err := a.loss.Value(sample.Target, out)
		if err != nil {
			return fmt.Errorf("learn.Accumulator.Update: %w", err)
		}
		errv, err := a.loss.Error(sample.Target, out)
		if err != nil {
			return fmt.Errorf("learn.Accumulator.Update: %w", err)
		}

		w := sample.Weight
		a.count++
		a.valueSum += w * value
		a.errorSum += w * errv
		a.errorSqSum += w * errv * errv

		if a.withGrad {
			g, err := a.loss.Gradient(sample.Target, out)
			if err != nil {
				return fmt.Errorf("learn.Accumulator.Update: %w", err)
			}
			_, layerGrad, err := a.model.Grad(g)
			if err != nil {
				return fmt.Errorf("learn.Accumulator.Update: %w", err)
			}
			for j, v := range layerGrad {
				a.grad[j] += w * v
			}
		}
	}
	return nil
}

// Count returns the number of samples accumulated so far.
func (a *Accumulator) Count() int { return a.count }

// Value returns the mean loss value over accumulated samples.
func (a *Accumulator) Value() tensor.Scalar {
	if a.count == 0 {
		return 0
	}
	return a.valueSum / tensor.Scalar(a.count)
}

// AvgError returns the mean error over accumulated samples.
func (a *Accumulator) AvgError() tensor.Scalar {
	if a.count == 0 {
		return 0
	}
	return a.errorSum / tensor.Scalar(a.count)
}

// VarError returns the population-variance estimator of the error
// over accumulated samples.
func (a *Accumulator) VarError() tensor.Scalar {
	if a.count == 0 {
		return 0
	}
	n := tensor.Scalar(a.count)
	mean := a.errorSum / n
	meanSq := a.errorSqSum / n
	v := meanSq - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

// VGrad returns the mean parameter-gradient over accumulated samples,
// with the L2 regularization term lambda*theta added in. Returns nil
// when the accumulator was constructed without gradient tracking.
func (a *Accumulator) VGrad() []tensor.Scalar {
	if !a.withGrad || a.count == 0 {
		return nil
	}
	n := tensor.Scalar(a.count)
	theta := a.model.GetParams()
	out := make([]tensor.Scalar, len(a.grad))
	for i, v := range a.grad {
		out[i] = v/n + a.lambda*theta[i]
	}
	return out
}

// Add folds other's running sums into a, matching the reduction
// contract of spec §4.4: the two accumulators must share the same
// model configuration and loss. Add checks that both have the same
// gradient mode and, when gradients are tracked, the same gradient
// length; it does not check model or loss identity.
func (a *Accumulator) Add(other *Accumulator) error {
	if a.withGrad != other.withGrad {
		return fmt.Errorf("learn.Accumulator.Add: gradient-mode mismatch")
	}
	if a.withGrad && len(a.grad) != len(other.grad) {
		return fmt.Errorf("learn.Accumulator.Add: gradient length mismatch: %d vs %d", len(a.grad), len(other.grad))
	}
	a.count += other.count
	a.valueSum += other.valueSum
	a.errorSum += other.errorSum
	a.errorSqSum += other.errorSqSum
	for i := range a.grad {
		a.grad[i] += other.grad[i]
	}
	return nil
}
