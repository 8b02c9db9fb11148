package main

import (
	"fmt"

	"github.com/nanocv-go/nanocv/pkg/nn"
	"github.com/nanocv-go/nanocv/pkg/optim"
	"github.com/nanocv-go/nanocv/pkg/task"
	"github.com/nanocv-go/nanocv/pkg/tensor"
	"github.com/nanocv-go/nanocv/pkg/config"
)

func tensorFrom(data []float32, dims task.Dims) tensor.Tensor {
	return tensor.View(data, dims.Planes, dims.Rows, dims.Cols)
}

func tensorShapeFromDims(d task.Dims) tensor.Shape {
	return tensor.NewShape(d.Planes, d.Rows, d.Cols)
}

func nnLoss() nn.Loss {
	return nn.NewRegressionSquare()
}

func buildDirection(cfg config.LineSearch) (optim.Direction, error) {
	switch cfg.Direction {
	case "steepest-descent", "":
		return &optim.SteepestDescent{}, nil
	case "l-bfgs":
		hist := cfg.LBFGSHist
		if hist == 0 {
			hist = 8
		}
		return optim.NewLBFGS(hist), nil
	case "nonlinear-cg":
		variant, err := cgVariantFromString(cfg.CGVariant)
		if err != nil {
			return nil, err
		}
		return optim.NewNonlinearCG(variant), nil
	default:
		return nil, fmt.Errorf("nanocv-train: unknown direction %q", cfg.Direction)
	}
}

func cgVariantFromString(name string) (optim.CGVariant, error) {
	switch name {
	case "", "hestenes-stiefel":
		return optim.CGHestenesStiefel, nil
	case "fletcher-reeves":
		return optim.CGFletcherReeves, nil
	case "polak-ribiere-plus":
		return optim.CGPolakRibierePlus, nil
	case "dai-yuan":
		return optim.CGDaiYuan, nil
	case "hybrid-hs-dy":
		return optim.CGHybridHSDY, nil
	case "hybrid-fr-pr":
		return optim.CGHybridFRPR, nil
	case "hybrid-pr-dy":
		return optim.CGHybridPRDY, nil
	case "hybrid-hs-fr":
		return optim.CGHybridHSFR, nil
	case "hybrid-max":
		return optim.CGHybridMax, nil
	default:
		return 0, fmt.Errorf("nanocv-train: unknown cg variant %q", name)
	}
}

func buildLineSearch(cfg config.LineSearch) (optim.LineSearch, error) {
	switch cfg.Search {
	case "backtracking", "":
		ls := optim.NewBacktracking()
		if cfg.C1 != 0 {
			ls.C1 = float32(cfg.C1)
		}
		if cfg.Shrink != 0 {
			ls.Shrink = float32(cfg.Shrink)
		}
		return ls, nil
	case "interpolation":
		ls := optim.NewInterpolation()
		if cfg.C1 != 0 {
			ls.C1 = float32(cfg.C1)
		}
		return ls, nil
	case "cg-descent":
		ls := optim.NewCGDescent()
		if cfg.C1 != 0 {
			ls.C1 = float32(cfg.C1)
		}
		if cfg.C2 != 0 {
			ls.C2 = float32(cfg.C2)
		}
		return ls, nil
	default:
		return nil, fmt.Errorf("nanocv-train: unknown line search %q", cfg.Search)
	}
}

func initStepPolicyFromString(name string) optim.InitialStepPolicy {
	switch name {
	case "consistent":
		return optim.InitStepConsistent
	case "quadratic":
		return optim.InitStepQuadratic
	default:
		return optim.InitStepUnit
	}
}

func buildBatchOptimizer(cfg config.LineSearch) (*optim.BatchOptimizer, error) {
	direction, err := buildDirection(cfg)
	if err != nil {
		return nil, err
	}
	lineSearch, err := buildLineSearch(cfg)
	if err != nil {
		return nil, err
	}
	opt := optim.NewBatchOptimizer(direction, lineSearch)
	opt.InitPolicy = initStepPolicyFromString(cfg.InitPolicy)
	if cfg.Epsilon != 0 {
		opt.Eps = float32(cfg.Epsilon)
	}
	if cfg.MaxIters != 0 {
		opt.MaxIters = cfg.MaxIters
	}
	return opt, nil
}

func buildStochasticOptimizer(cfg config.Stochastic) (optim.StochasticOptimizer, error) {
	alpha0, tau, rho := float32(cfg.Alpha0), float32(cfg.Tau), float32(cfg.Rho)
	switch cfg.Kind {
	case "sg", "":
		return optim.NewSG(alpha0, tau, rho), nil
	case "asgd":
		return optim.NewASGD(alpha0, tau, rho), nil
	case "ngd":
		return optim.NewNGD(alpha0, tau, rho), nil
	case "sgm":
		return optim.NewSGM(alpha0, tau, rho, float32(cfg.Momentum)), nil
	case "ag":
		return optim.NewAG(alpha0, tau, rho, optim.AGNoRestart), nil
	case "agfr":
		return optim.NewAG(alpha0, tau, rho, optim.AGFunctionRestart), nil
	case "aggr":
		return optim.NewAG(alpha0, tau, rho, optim.AGGradientRestart), nil
	case "adagrad":
		return optim.NewAdaGrad(alpha0, float32(cfg.Epsilon)), nil
	case "adadelta":
		return optim.NewAdaDelta(float32(cfg.Rho), float32(cfg.Epsilon)), nil
	case "adam":
		return optim.NewAdam(alpha0, float32(cfg.Beta1), float32(cfg.Beta2), float32(cfg.Epsilon)), nil
	default:
		return nil, fmt.Errorf("nanocv-train: unknown stochastic kind %q", cfg.Kind)
	}
}
