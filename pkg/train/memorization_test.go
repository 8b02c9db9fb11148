package train_test

import (
	"math/rand"
	"testing"

	"github.com/nanocv-go/nanocv/pkg/config"
	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/nn/layers"
	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/nanocv-go/nanocv/pkg/task"
	"github.com/nanocv-go/nanocv/pkg/tensor"
	"github.com/nanocv-go/nanocv/pkg/train"
	"github.com/stretchr/testify/require"
)

// memorizationTask builds a train fold of a handful of samples drawn
// from one random input/target distribution and a validation fold
// drawn from a disjoint, unrelated distribution, so a high-capacity
// model memorizes the train fold while validation loss eventually
// rises.
func memorizationTask() *task.MemoryTask {
	in := task.Dims{Planes: 1, Rows: 1, Cols: 3}
	out := task.Dims{Planes: 1, Rows: 1, Cols: 1}
	tk := task.NewMemoryTask("memorization", in, out, rand.New(rand.NewSource(7)))

	trainRNG := rand.New(rand.NewSource(1))
	for i := 0; i < 6; i++ {
		x := []float32{trainRNG.Float32(), trainRNG.Float32(), trainRNG.Float32()}
		y := []float32{trainRNG.Float32()*2 - 1}
		sample := task.Sample{
			Input:  tensor.View(x, 1, 1, 3),
			Target: tensor.View(y, 1, 1, 1),
			Weight: 1,
		}
		if err := tk.Push(task.Fold{Index: 0, Protocol: task.Train}, sample); err != nil {
			panic(err)
		}
	}

	validRNG := rand.New(rand.NewSource(2))
	for i := 0; i < 6; i++ {
		x := []float32{validRNG.Float32() + 5, validRNG.Float32() + 5, validRNG.Float32() + 5}
		y := []float32{validRNG.Float32()*2 - 1}
		sample := task.Sample{
			Input:  tensor.View(x, 1, 1, 3),
			Target: tensor.View(y, 1, 1, 1),
			Weight: 1,
		}
		if err := tk.Push(task.Fold{Index: 0, Protocol: task.Valid}, sample); err != nil {
			panic(err)
		}
		if err := tk.Push(task.Fold{Index: 0, Protocol: task.Test}, sample); err != nil {
			panic(err)
		}
	}
	return tk
}

func memorizationModel() *nn.Model {
	return nn.New(
		layers.NewAffine(3, 32, layers.WithName("affine1")),
		layers.NewActivation(layers.Tanh, layers.WithName("tanh")),
		layers.NewAffine(32, 1, layers.WithName("affine2")),
	)
}

// TestTrainerStopsEarlyOnMemorization exercises the scenario where a
// high-capacity model memorizes a small training fold while an
// unrelated validation fold's loss stops improving: under the stop_early
// policy the best validation step must fall strictly before the final
// configured iteration, and the returned best parameters should be the
// ones recorded at the best validation step, not the final iteration's.
func TestTrainerStopsEarlyOnMemorization(t *testing.T) {
	model := memorizationModel()
	require.NoError(t, model.Resize(tensor.NewShape(3), tensor.NewShape(1)))

	tk := memorizationTask()
	tr := &train.Trainer{
		Task:    tk,
		Fold:    0,
		Workers: 1,
		Model:   model,
		Loss:    nn.NewRegressionSquare(),
		Lambda:  0,
		RNG:     rand.New(rand.NewSource(3)),
		Config: config.Trainer{
			Family: "batch",
			LineSearch: &config.LineSearch{
				Direction:  "l-bfgs",
				LBFGSHist:  10,
				Search:     "interpolation",
				C1:         1e-4,
				InitPolicy: "unit",
				Epsilon:    1e-8,
				MaxIters:   200,
			},
			Workers:    1,
			Lambda:     0,
			StopPolicy: "stop_early",
			Patience:   3,
		},
		Batch: func(cfg config.LineSearch) (*optim.BatchOptimizer, error) {
			opt := optim.NewBatchOptimizer(optim.NewLBFGS(cfg.LBFGSHist), optim.NewInterpolation())
			opt.Eps = float32(cfg.Epsilon)
			opt.MaxIters = cfg.MaxIters
			return opt, nil
		},
	}

	result, err := tr.Run()
	require.NoError(t, err)

	require.Less(t, result.BestStep, tr.Config.LineSearch.MaxIters-1,
		"the best validation step should fall strictly before the final configured iteration")
	require.Equal(t, result.BestTheta, model.GetParams(),
		"the model loaded back should carry the best-validation-loss parameters, not the last iteration's")
}
