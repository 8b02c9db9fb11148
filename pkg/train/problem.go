package train

import (
	"fmt"
	"sync"

	"github.com/nanocv-go/nanocv/pkg/learn"
	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/task"
)

// workerProblem implements optim.Problem by dispatching contiguous
// sub-ranges of a fold to T accumulators (one per worker thread, each
// with its own model clone per spec §4.7 step 3), running them
// concurrently, and summing their partials via the reduction contract
// of spec §4.4.
type workerProblem struct {
	accs       []*learn.Accumulator
	task       task.Task
	fold       task.Fold
	ranges     [][2]int
	paramCount int
}

// newWorkerProblem clones model into workers accumulators and
// partitions [0, task.Size(fold)) into workers contiguous ranges.
func newWorkerProblem(model *nn.Model, loss nn.Loss, lambda float32, t task.Task, fold task.Fold, workers int) (*workerProblem, error) {
	if workers < 1 {
		workers = 1
	}
	n := t.Size(fold)
	accs := make([]*learn.Accumulator, workers)
	ranges := make([][2]int, workers)
	chunk := (n + workers - 1) / workers
	for i := 0; i < workers; i++ {
		clone, err := model.Clone()
		if err != nil {
			return nil, fmt.Errorf("train.newWorkerProblem: %w", err)
		}
		accs[i] = learn.New(clone, loss, lambda, true)
		begin := i * chunk
		end := begin + chunk
		if begin > n {
			begin = n
		}
		if end > n {
			end = n
		}
		ranges[i] = [2]int{begin, end}
	}
	return &workerProblem{accs: accs, task: t, fold: fold, ranges: ranges, paramCount: model.ParamCount()}, nil
}

func (p *workerProblem) Size() int { return p.paramCount }

func (p *workerProblem) Value(x []float32) (float32, error) {
	v, _, err := p.evaluate(x)
	return v, err
}

func (p *workerProblem) ValueAndGrad(x []float32) (float32, []float32, error) {
	return p.evaluate(x)
}

func (p *workerProblem) evaluate(x []float32) (float32, []float32, error) {
	return p.run(x, p.ranges)
}

// evaluateRange runs the worker pool over just [begin, end) of the
// fold (a mini-batch, per spec §4.6.2), splitting it into the same
// number of contiguous per-worker ranges evaluate uses for the whole
// fold.
func (p *workerProblem) evaluateRange(x []float32, begin, end int) (float32, []float32, error) {
	n := end - begin
	if n <= 0 {
		return 0, make([]float32, p.paramCount), nil
	}
	workers := len(p.accs)
	chunk := (n + workers - 1) / workers
	ranges := make([][2]int, workers)
	for i := 0; i < workers; i++ {
		b := begin + i*chunk
		e := b + chunk
		if b > end {
			b = end
		}
		if e > end {
			e = end
		}
		ranges[i] = [2]int{b, e}
	}
	return p.run(x, ranges)
}

// run dispatches one contiguous range per accumulator concurrently and
// reduces their partials via the Add contract of spec §4.4.
func (p *workerProblem) run(x []float32, ranges [][2]int) (float32, []float32, error) {
	errs := make([]error, len(p.accs))
	var wg sync.WaitGroup
	for i := range p.accs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc := p.accs[i]
			if err := acc.SetParams(x); err != nil {
				errs[i] = err
				return
			}
			r := ranges[i]
			errs[i] = acc.Update(p.task, p.fold, r[0], r[1])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return 0, nil, fmt.Errorf("train.workerProblem.run: %w", err)
		}
	}

	total := p.accs[0]
	for _, other := range p.accs[1:] {
		if err := total.Add(other); err != nil {
			return 0, nil, fmt.Errorf("train.workerProblem.run: %w", err)
		}
	}
	return total.Value(), total.VGrad(), nil
}
