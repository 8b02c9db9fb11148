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

func xorTask() *task.MemoryTask {
	in := task.Dims{Planes: 1, Rows: 1, Cols: 2}
	out := task.Dims{Planes: 1, Rows: 1, Cols: 2}
	tk := task.NewMemoryTask("xor", in, out, rand.New(rand.NewSource(11)))

	type row struct{ a, b, ya, yb float32 }
	rows := []row{
		{0, 0, 1, -1},
		{0, 1, -1, 1},
		{1, 0, -1, 1},
		{1, 1, 1, -1},
	}
	for _, f := range []task.Fold{
		{Index: 0, Protocol: task.Train},
		{Index: 0, Protocol: task.Valid},
		{Index: 0, Protocol: task.Test},
	} {
		for _, r := range rows {
			sample := task.Sample{
				Input:  tensor.View([]float32{r.a, r.b}, 1, 1, 2),
				Target: tensor.View([]float32{r.ya, r.yb}, 1, 1, 2),
				Weight: 1,
			}
			if err := tk.Push(f, sample); err != nil {
				panic(err)
			}
		}
	}
	return tk
}

func xorModel() *nn.Model {
	m := nn.New(
		layers.NewAffine(2, 4, layers.WithName("affine1")),
		layers.NewActivation(layers.Tanh, layers.WithName("tanh")),
		layers.NewAffine(4, 2, layers.WithName("affine2")),
	)
	return m
}

func xorBatchBuilder(cfg config.LineSearch) (*optim.BatchOptimizer, error) {
	opt := optim.NewBatchOptimizer(optim.NewLBFGS(cfg.LBFGSHist), optim.NewInterpolation())
	opt.Eps = float32(cfg.Epsilon)
	opt.MaxIters = cfg.MaxIters
	return opt, nil
}

// TestXORLogisticClassificationConverges exercises the literal scenario
// of a batch L-BFGS run on the 4-sample XOR classification task.
func TestXORLogisticClassificationConverges(t *testing.T) {
	model := xorModel()
	require.NoError(t, model.Resize(tensor.NewShape(2), tensor.NewShape(2)))

	tr := &train.Trainer{
		Task:    xorTask(),
		Fold:    0,
		Workers: 1,
		Model:   model,
		Loss:    nn.NewMulticlassLogistic(),
		Lambda:  0,
		RNG:     rand.New(rand.NewSource(5)),
		Config: config.Trainer{
			Family: "batch",
			LineSearch: &config.LineSearch{
				Direction:  "l-bfgs",
				LBFGSHist:  10,
				Search:     "interpolation",
				C1:         1e-4,
				InitPolicy: "unit",
				Epsilon:    1e-6,
				MaxIters:   1000,
			},
			Workers:    1,
			Lambda:     0,
			StopPolicy: "all_epochs",
		},
		Batch: xorBatchBuilder,
	}

	result, err := tr.Run()
	require.NoError(t, err)
	require.Less(t, result.BestTrain.AvgError, tensor.Scalar(0.5))
}

// TestTrainerDeterministicWithFixedSeed checks that two stochastic runs
// from the same seed with a single worker produce bitwise-identical
// best parameters.
func TestTrainerDeterministicWithFixedSeed(t *testing.T) {
	run := func() []tensor.Scalar {
		model := xorModel()
		require.NoError(t, model.Resize(tensor.NewShape(2), tensor.NewShape(2)))
		tr := &train.Trainer{
			Task:    xorTask(),
			Fold:    0,
			Workers: 1,
			Model:   model,
			Loss:    nn.NewMulticlassLogistic(),
			Lambda:  1e-4,
			RNG:     rand.New(rand.NewSource(99)),
			Config: config.Trainer{
				Family: "stochastic",
				Stochastic: &config.Stochastic{
					Kind:    "adam",
					Alpha0:  1e-2,
					Tau:     50,
					Rho:     0.5,
					Beta1:   0.9,
					Beta2:   0.999,
					Epsilon: 1e-8,
					Epochs:  20,
				},
				Workers:    1,
				Lambda:     1e-4,
				StopPolicy: "all_epochs",
			},
			Stochastic: func(sc config.Stochastic) (optim.StochasticOptimizer, error) {
				return optim.NewAdam(float32(sc.Alpha0), float32(sc.Beta1), float32(sc.Beta2), float32(sc.Epsilon)), nil
			},
		}
		result, err := tr.Run()
		require.NoError(t, err)
		return result.BestTheta
	}

	thetaA := run()
	thetaB := run()
	require.Equal(t, thetaA, thetaB)
}
