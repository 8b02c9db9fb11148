// Command nanocv-train builds a small regression task, either synthetic
// or loaded from a CSV file, trains a feed-forward model against it
// using a configured batch or stochastic optimizer family, and reports
// the resulting best-fold statistics.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/nanocv-go/nanocv/pkg/config"
	"github.com/nanocv-go/nanocv/pkg/logger"
	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/nn/layers"
	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/nanocv-go/nanocv/pkg/task"
	"github.com/nanocv-go/nanocv/pkg/train"
)

var (
	dataPath   = flag.String("data", "", "CSV file to load training data from (gzip if name ends in .gz); synthetic data used when empty")
	family     = flag.String("family", "stochastic", "optimizer family: batch or stochastic")
	hidden     = flag.Int("hidden", 16, "hidden layer width")
	workers    = flag.Int("workers", 4, "worker goroutines for fold evaluation")
	epochs     = flag.Int("epochs", 200, "stochastic family: number of epochs")
	maxIters   = flag.Int("max-iters", 200, "batch family: max optimizer iterations")
	lambda     = flag.Float64("lambda", 1e-4, "L2 regularization coefficient")
	patience   = flag.Int("patience", 10, "reporting points without improvement before stopping early")
	seed       = flag.Int64("seed", 1, "RNG seed")
	inputSize  = flag.Int("inputs", 4, "synthetic data: number of input features")
	numSamples = flag.Int("samples", 600, "synthetic data: number of samples to generate (ignored with -data)")
)

func buildSyntheticTask(rng *rand.Rand) (*task.MemoryTask, error) {
	in := task.Dims{Planes: 1, Rows: 1, Cols: *inputSize}
	out := task.Dims{Planes: 1, Rows: 1, Cols: 1}
	t := task.NewMemoryTask("synthetic-regression", in, out, rng)

	weights := make([]float32, *inputSize)
	for i := range weights {
		weights[i] = rng.Float32()*2 - 1
	}

	folds := []task.Fold{
		{Index: 0, Protocol: task.Train},
		{Index: 0, Protocol: task.Valid},
		{Index: 0, Protocol: task.Test},
	}
	split := []int{8, 1, 1} // train/valid/test ratio out of 10

	total := 0
	for i, f := range folds {
		n := *numSamples * split[i] / 10
		for s := 0; s < n; s++ {
			x := make([]float32, *inputSize)
			var y float32
			for j := range x {
				x[j] = rng.Float32()*2 - 1
				y += weights[j] * x[j]
			}
			y += rng.Float32()*0.1 - 0.05
			sample := task.Sample{
				Input:  tensorFrom(x, in),
				Target: tensorFrom([]float32{y}, out),
				Weight: 1,
			}
			if err := t.Push(f, sample); err != nil {
				return nil, err
			}
		}
		total += n
	}
	logger.Log.Info().Int("samples", total).Msg("generated synthetic task")
	return t, nil
}

func buildModel(inSize, hiddenSize int) *nn.Model {
	m := nn.New(
		layers.NewAffine(inSize, hiddenSize),
		layers.NewActivation(layers.Tanh),
		layers.NewAffine(hiddenSize, 1),
	)
	return m
}

func trainerConfig() config.Trainer {
	if *family == "batch" {
		return config.Trainer{
			Family: "batch",
			LineSearch: &config.LineSearch{
				Direction:  "l-bfgs",
				LBFGSHist:  8,
				Search:     "interpolation",
				C1:         1e-4,
				InitPolicy: "unit",
				Epsilon:    1e-6,
				MaxIters:   *maxIters,
			},
			Workers:    *workers,
			Lambda:     *lambda,
			StopPolicy: "stop_early",
			Patience:   *patience,
		}
	}
	return config.Trainer{
		Family: "stochastic",
		Stochastic: &config.Stochastic{
			Kind:    "adam",
			Alpha0:  1e-2,
			Tau:     100,
			Rho:     0.5,
			Beta1:   0.9,
			Beta2:   0.999,
			Epsilon: 1e-8,
			Epochs:  *epochs,
		},
		Workers:    *workers,
		Lambda:     *lambda,
		StopPolicy: "stop_early",
		Patience:   *patience,
	}
}

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	var t *task.MemoryTask
	var err error
	if *dataPath != "" {
		in := task.Dims{Planes: 1, Rows: 1, Cols: *inputSize}
		out := task.Dims{Planes: 1, Rows: 1, Cols: 1}
		t = task.NewMemoryTask(*dataPath, in, out, rng)
		if err := task.LoadCSVInto(t, task.Fold{Index: 0, Protocol: task.Train}, *dataPath, 0); err != nil {
			logger.Log.Error().Err(err).Str("path", *dataPath).Msg("failed to load training data")
			os.Exit(1)
		}
	} else {
		t, err = buildSyntheticTask(rng)
		if err != nil {
			logger.Log.Error().Err(err).Msg("failed to build synthetic task")
			os.Exit(1)
		}
	}

	model := buildModel(*inputSize, *hidden)
	if err := model.Resize(
		tensorShapeFromDims(t.InputDims()),
		tensorShapeFromDims(t.OutputDims()),
	); err != nil {
		logger.Log.Error().Err(err).Msg("failed to resize model")
		os.Exit(1)
	}

	cfg := trainerConfig()
	tr := &train.Trainer{
		Task:    t,
		Fold:    0,
		Workers: *workers,
		Model:   model,
		Loss:    nnLoss(),
		Lambda:  float32(*lambda),
		RNG:     rng,
		Config:  cfg,
		Batch: func(ls config.LineSearch) (*optim.BatchOptimizer, error) {
			return buildBatchOptimizer(ls)
		},
		Stochastic: func(sc config.Stochastic) (optim.StochasticOptimizer, error) {
			return buildStochasticOptimizer(sc)
		},
	}

	result, err := tr.Run()
	if err != nil {
		logger.Log.Error().Err(err).Msg("training run failed")
		os.Exit(1)
	}

	fmt.Printf("run %s: best step %d, elapsed %dms\n", result.RunID, result.BestStep, result.ElapsedMs)
	fmt.Printf("  train: loss=%.6f avg_error=%.6f\n", result.BestTrain.Loss, result.BestTrain.AvgError)
	fmt.Printf("  valid: loss=%.6f avg_error=%.6f\n", result.BestValid.Loss, result.BestValid.AvgError)
	fmt.Printf("  test:  loss=%.6f avg_error=%.6f\n", result.BestTest.Loss, result.BestTest.AvgError)
}
