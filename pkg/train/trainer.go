// Package train implements the Trainer state machine: it initializes a
// model, builds a worker-parallel problem over a task's folds, runs a
// configured batch or stochastic optimizer, and tracks a monotone
// best-so-far Result across reporting points, applying a stop policy
// and loading the best parameters back into the model before
// returning (spec §4.7).
package train

import (
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/nanocv-go/nanocv/pkg/config"
	"github.com/nanocv-go/nanocv/pkg/learn"
	"github.com/nanocv-go/nanocv/pkg/logger"
	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/nanocv-go/nanocv/pkg/report"
	"github.com/nanocv-go/nanocv/pkg/task"
)

// Trainer binds a task, a model, a loss, and a configuration together
// and runs the full training algorithm of spec §4.7.
type Trainer struct {
	Task    task.Task
	Fold    int
	Workers int
	Model   *nn.Model
	Loss    nn.Loss
	Lambda  float32
	RNG     *rand.Rand
	Config  config.Trainer

	// Batch builds the optimizer used when Config.Family == "batch".
	Batch func(config.LineSearch) (*optim.BatchOptimizer, error)
	// Stochastic builds the optimizer used when Config.Family ==
	// "stochastic".
	Stochastic func(config.Stochastic) (optim.StochasticOptimizer, error)
}

func (tr *Trainer) folds() (train, valid, test task.Fold) {
	return task.Fold{Index: tr.Fold, Protocol: task.Train},
		task.Fold{Index: tr.Fold, Protocol: task.Valid},
		task.Fold{Index: tr.Fold, Protocol: task.Test}
}

func (tr *Trainer) stopPolicy() StopPolicy {
	if tr.Config.StopPolicy == "stop_early" {
		return StopEarly{Patience: tr.Config.Patience}
	}
	return AllEpochs{}
}

// evaluateFold runs a single-threaded accumulator (no gradient) over
// the given fold's every sample and returns its FoldStats.
func (tr *Trainer) evaluateFold(model *nn.Model, fold task.Fold) (FoldStats, error) {
	acc := learn.New(model, tr.Loss, tr.Lambda, false)
	if err := acc.Update(tr.Task, fold, 0, tr.Task.Size(fold)); err != nil {
		return FoldStats{}, fmt.Errorf("train.Trainer.evaluateFold: %w", err)
	}
	return FoldStats{Loss: acc.Value(), AvgError: acc.AvgError(), VarError: acc.VarError()}, nil
}

func (tr *Trainer) evaluateAllFolds(step int, theta []float32, gradNorm float32) (Measurement, error) {
	evalModel, err := tr.Model.Clone()
	if err != nil {
		return Measurement{}, fmt.Errorf("train.Trainer.evaluateAllFolds: %w", err)
	}
	if err := evalModel.SetParams(theta); err != nil {
		return Measurement{}, fmt.Errorf("train.Trainer.evaluateAllFolds: %w", err)
	}
	trainFold, validFold, testFold := tr.folds()
	trainStats, err := tr.evaluateFold(evalModel, trainFold)
	if err != nil {
		return Measurement{}, err
	}
	validStats, err := tr.evaluateFold(evalModel, validFold)
	if err != nil {
		return Measurement{}, err
	}
	testStats, err := tr.evaluateFold(evalModel, testFold)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Step:     step,
		Theta:    theta,
		Train:    trainStats,
		Valid:    validStats,
		Test:     testStats,
		GradNorm: gradNorm,
	}, nil
}

// Run executes the full algorithm of spec §4.7 and returns the
// resulting Result, with the model's parameters set to the best theta
// found.
func (tr *Trainer) Run() (*Result, error) {
	if err := tr.Config.Validate(); err != nil {
		logger.Log.Error().Err(err).Msg("invalid trainer configuration")
		return nil, fmt.Errorf("train.Trainer.Run: %w", err)
	}

	start := time.Now()
	tr.Model.InitParams(tr.RNG)

	trainFold, _, _ := tr.folds()
	prob, err := newWorkerProblem(tr.Model, tr.Loss, tr.Lambda, tr.Task, trainFold, tr.Workers)
	if err != nil {
		return nil, fmt.Errorf("train.Trainer.Run: %w", err)
	}

	result := NewResult(tr.Config.Patience)
	policy := tr.stopPolicy()

	snapshot, err := tr.Config.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("train.Trainer.Run: %w", err)
	}
	result.ConfigYAML = snapshot

	switch tr.Config.Family {
	case "batch":
		if err := tr.runBatch(prob, result, policy, start); err != nil {
			return nil, err
		}
	case "stochastic":
		if err := tr.runStochastic(prob, result, policy, start); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("train.Trainer.Run: unknown family %q", tr.Config.Family)
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	if result.BestTheta == nil {
		return nil, fmt.Errorf("train.Trainer.Run: %w", ErrDivergence)
	}
	if err := tr.Model.SetParams(result.BestTheta); err != nil {
		return nil, fmt.Errorf("train.Trainer.Run: %w", err)
	}
	return result, nil
}

func (tr *Trainer) runBatch(prob *workerProblem, result *Result, policy StopPolicy, start time.Time) error {
	if tr.Config.LineSearch == nil {
		return fmt.Errorf("train.Trainer.runBatch: missing line search config")
	}
	opt, err := tr.Batch(*tr.Config.LineSearch)
	if err != nil {
		return fmt.Errorf("train.Trainer.runBatch: %w", err)
	}

	var stopErr error
	opt.OnIteration = func(iter int, x []float32, value float32, gradNorm float32) bool {
		m, err := tr.evaluateAllFolds(iter, x, gradNorm)
		if err != nil {
			stopErr = err
			return true
		}
		status := result.Update(m)
		report.Log(report.Line{
			Step:      iter,
			Train:     report.FoldMeasurement(m.Train),
			Valid:     report.FoldMeasurement(m.Valid),
			Test:      report.FoldMeasurement(m.Test),
			GradNorm:  gradNorm,
			Status:    status.String(),
			ElapsedMs: time.Since(start).Milliseconds(),
		})
		if status == Diverged {
			logger.Log.Warn().Int("iter", iter).Msg("training diverged")
		}
		return policy.ShouldStop(status, result.SinceImprovement())
	}

	theta := tr.Model.GetParams()
	if _, err := opt.Minimize(prob, theta); err != nil {
		return fmt.Errorf("train.Trainer.runBatch: %w", err)
	}
	return stopErr
}

// stochasticBatchSize resolves the configured mini-batch size,
// defaulting to 16 per logical CPU (matching the original
// 16*logical_cpus() default) and clamping to the fold size.
func stochasticBatchSize(cfg config.Stochastic, foldSize int) int {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16 * runtime.NumCPU()
	}
	if batchSize > foldSize {
		batchSize = foldSize
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return batchSize
}

// tuneStochastic implements the hyper-parameter tuning step of spec
// §4.6.2: a small grid of learning rates around the configured alpha0
// is each run for one epoch (epochSize mini-batches) from the same
// starting theta, the lowest loss on the epoch's last mini-batch wins, and its
// configuration is returned for the full schedule.
func (tr *Trainer) tuneStochastic(prob *workerProblem, theta0 []float32, batchSize, epochSize, foldSize int) (config.Stochastic, error) {
	base := *tr.Config.Stochastic
	scales := []float32{0.1, 1, 10}
	variants := make([]config.Stochastic, len(scales))
	candidates := make([]optim.Candidate, len(scales))
	for i, s := range scales {
		v := base
		v.Alpha0 = base.Alpha0 * float64(s)
		variants[i] = v
		o, err := tr.Stochastic(v)
		if err != nil {
			return config.Stochastic{}, fmt.Errorf("train.Trainer.tuneStochastic: %w", err)
		}
		opt := o
		candidates[i] = optim.Candidate{
			Label: fmt.Sprintf("%s@alpha0=%g", base.Kind, v.Alpha0),
			Build: func() optim.StochasticOptimizer { return opt },
		}
	}

	batchIdx := 0
	best, err := optim.GridSearch(candidates, theta0, epochSize, func(opt optim.StochasticOptimizer, theta []float32) (float32, error) {
		begin := batchIdx * batchSize
		end := begin + batchSize
		if end > foldSize {
			end = foldSize
		}
		batchIdx = (batchIdx + 1) % epochSize

		value, grad, err := prob.evaluateRange(theta, begin, end)
		if err != nil {
			return 0, err
		}
		if vs, ok := opt.(optim.ValueStepper); ok {
			vs.StepWithValue(theta, grad, value)
		} else {
			opt.Step(theta, grad)
		}
		after, _, err := prob.evaluateRange(theta, begin, end)
		return after, err
	})
	if err != nil {
		return config.Stochastic{}, fmt.Errorf("train.Trainer.tuneStochastic: %w", err)
	}
	for i, c := range candidates {
		if c.Label == best.Label {
			return variants[i], nil
		}
	}
	return base, nil
}

func (tr *Trainer) runStochastic(prob *workerProblem, result *Result, policy StopPolicy, start time.Time) error {
	if tr.Config.Stochastic == nil {
		return fmt.Errorf("train.Trainer.runStochastic: missing stochastic config")
	}

	trainFold, _, _ := tr.folds()
	foldSize := tr.Task.Size(trainFold)
	batchSize := stochasticBatchSize(*tr.Config.Stochastic, foldSize)
	epochSize := foldSize / batchSize
	if epochSize < 1 {
		epochSize = 1
	}

	theta := tr.Model.GetParams()
	winner, err := tr.tuneStochastic(prob, theta, batchSize, epochSize, foldSize)
	if err != nil {
		return fmt.Errorf("train.Trainer.runStochastic: %w", err)
	}
	opt, err := tr.Stochastic(winner)
	if err != nil {
		return fmt.Errorf("train.Trainer.runStochastic: %w", err)
	}

	for epoch := 0; epoch < tr.Config.Stochastic.Epochs; epoch++ {
		tr.Task.Shuffle(trainFold)

		var grad []float32
		for it := 0; it < epochSize; it++ {
			begin := it * batchSize
			end := begin + batchSize
			if end > foldSize {
				end = foldSize
			}
			value, g, err := prob.evaluateRange(theta, begin, end)
			if err != nil {
				return fmt.Errorf("train.Trainer.runStochastic: %w", err)
			}
			grad = g
			if vs, ok := opt.(optim.ValueStepper); ok {
				vs.StepWithValue(theta, grad, value)
			} else {
				opt.Step(theta, grad)
			}
		}

		snapshotTheta := theta
		if avg, ok := opt.(optim.Averager); ok {
			snapshotTheta = avg.Average()
		}

		m, err := tr.evaluateAllFolds(epoch, snapshotTheta, gradInfNormStochastic(grad))
		if err != nil {
			return fmt.Errorf("train.Trainer.runStochastic: %w", err)
		}
		status := result.Update(m)
		report.Log(report.Line{
			Step:      epoch,
			Train:     report.FoldMeasurement(m.Train),
			Valid:     report.FoldMeasurement(m.Valid),
			Test:      report.FoldMeasurement(m.Test),
			GradNorm:  m.GradNorm,
			Status:    status.String(),
			ElapsedMs: time.Since(start).Milliseconds(),
		})
		if status == Diverged {
			logger.Log.Warn().Int("epoch", epoch).Msg("training diverged")
		}
		if policy.ShouldStop(status, result.SinceImprovement()) {
			break
		}
	}
	return nil
}

func gradInfNormStochastic(grad []float32) float32 {
	var m float32
	for _, v := range grad {
		a := v
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}
