package optim

import "fmt"

// Candidate is one point in a hyperparameter grid: a human-readable
// label (for reports) and a constructor producing a fresh optimizer
// configured with that point's values.
type Candidate struct {
	Label string
	Build func() StochasticOptimizer
}

// TuneResult is the outcome of a grid search: the winning candidate's
// label, its final theta, and the train-fold loss it achieved.
type TuneResult struct {
	Label     string
	Theta     []float32
	TrainLoss float32
}

// GridSearch evaluates every candidate by running it for steps
// iterations over the supplied (theta, grad) producer, picks the
// candidate with the lowest resulting train loss, and returns its
// result. evalStep must run one stochastic step, updating theta in
// place, and return the current train loss; it is called once per
// iteration per candidate, each starting from a fresh copy of theta0.
func GridSearch(candidates []Candidate, theta0 []float32, steps int, evalStep func(opt StochasticOptimizer, theta []float32) (loss float32, err error)) (TuneResult, error) {
	if len(candidates) == 0 {
		return TuneResult{}, fmt.Errorf("optim.GridSearch: no candidates")
	}
	var best TuneResult
	haveBest := false

	for _, c := range candidates {
		theta := append([]float32(nil), theta0...)
		opt := c.Build()
		var loss float32
		for i := 0; i < steps; i++ {
			var err error
			loss, err = evalStep(opt, theta)
			if err != nil {
				return TuneResult{}, fmt.Errorf("optim.GridSearch: candidate %q: %w", c.Label, err)
			}
		}
		if !haveBest || loss < best.TrainLoss {
			best = TuneResult{Label: c.Label, Theta: theta, TrainLoss: loss}
			haveBest = true
		}
	}
	return best, nil
}
