// Package config holds the plain, YAML-tagged configuration structs
// used to snapshot a trainer run for reports and logs. Nothing in this
// package parses a config file; that remains an external concern, the
// way the teacher keeps its own config types free of I/O.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidParameter is returned when a configuration value falls
// outside its documented valid range.
var ErrInvalidParameter = errors.New("config: invalid parameter")

// LineSearch configures a batch optimizer's line search and direction
// choice.
type LineSearch struct {
	Direction  string  `yaml:"direction"`   // steepest-descent, l-bfgs, nonlinear-cg
	CGVariant  string  `yaml:"cg_variant,omitempty"`
	LBFGSHist  int     `yaml:"lbfgs_history,omitempty"`
	Search     string  `yaml:"search"` // backtracking, interpolation, cg-descent
	C1         float64 `yaml:"c1"`
	C2         float64 `yaml:"c2,omitempty"`
	Shrink     float64 `yaml:"shrink,omitempty"`
	InitPolicy string  `yaml:"init_policy"` // unit, consistent, quadratic
	Epsilon    float64 `yaml:"epsilon"`
	MaxIters   int     `yaml:"max_iters"`
}

// Validate checks LineSearch fields are within their documented
// ranges, returning a wrapped ErrInvalidParameter describing the first
// violation found.
func (c LineSearch) Validate() error {
	if c.LBFGSHist != 0 && (c.LBFGSHist < 3 || c.LBFGSHist > 20) {
		return fmt.Errorf("config.LineSearch: lbfgs_history %d out of [3,20]: %w", c.LBFGSHist, ErrInvalidParameter)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("config.LineSearch: epsilon must be positive: %w", ErrInvalidParameter)
	}
	if c.MaxIters <= 0 {
		return fmt.Errorf("config.LineSearch: max_iters must be positive: %w", ErrInvalidParameter)
	}
	return nil
}

// Stochastic configures a stochastic (per-epoch) optimizer. Each
// optimizer processes Epochs epochs of BatchSize-sized mini-batches
// per spec §4.6.2; BatchSize 0 defers to the trainer's own default
// (16 per logical CPU, matching the original implementation's
// 16*logical_cpus()), and a negative BatchSize is rejected by Validate.
type Stochastic struct {
	Kind      string  `yaml:"kind"` // sg, asgd, ngd, sgm, ag, agfr, aggr, adagrad, adadelta, adam
	Alpha0    float64 `yaml:"alpha0"`
	Tau       float64 `yaml:"tau"`
	Rho       float64 `yaml:"rho"`
	Momentum  float64 `yaml:"momentum,omitempty"`
	Beta1     float64 `yaml:"beta1,omitempty"`
	Beta2     float64 `yaml:"beta2,omitempty"`
	Epsilon   float64 `yaml:"epsilon,omitempty"`
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size,omitempty"`
}

func (c Stochastic) Validate() error {
	if c.Alpha0 <= 0 {
		return fmt.Errorf("config.Stochastic: alpha0 must be positive: %w", ErrInvalidParameter)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("config.Stochastic: epochs must be positive: %w", ErrInvalidParameter)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("config.Stochastic: batch_size must not be negative: %w", ErrInvalidParameter)
	}
	return nil
}

// Trainer is the top-level snapshot embedded in a train.Result: which
// family (batch or stochastic) was run, its configuration, worker
// count, regularization, and the stop policy.
type Trainer struct {
	Family     string      `yaml:"family"` // batch, stochastic
	LineSearch *LineSearch `yaml:"line_search,omitempty"`
	Stochastic *Stochastic `yaml:"stochastic,omitempty"`
	Workers    int         `yaml:"workers"`
	Lambda     float64     `yaml:"lambda"`
	StopPolicy string      `yaml:"stop_policy"` // stop_early, all_epochs
	Patience   int         `yaml:"patience"`
}

func (c Trainer) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("config.Trainer: workers must be positive: %w", ErrInvalidParameter)
	}
	if c.StopPolicy != "stop_early" && c.StopPolicy != "all_epochs" {
		return fmt.Errorf("config.Trainer: unknown stop_policy %q: %w", c.StopPolicy, ErrInvalidParameter)
	}
	if c.StopPolicy == "stop_early" && c.Patience <= 0 {
		return fmt.Errorf("config.Trainer: patience must be positive under stop_early: %w", ErrInvalidParameter)
	}
	switch c.Family {
	case "batch":
		if c.LineSearch == nil {
			return fmt.Errorf("config.Trainer: batch family requires line_search config: %w", ErrInvalidParameter)
		}
		if err := c.LineSearch.Validate(); err != nil {
			return err
		}
	case "stochastic":
		if c.Stochastic == nil {
			return fmt.Errorf("config.Trainer: stochastic family requires stochastic config: %w", ErrInvalidParameter)
		}
		if err := c.Stochastic.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config.Trainer: unknown family %q: %w", c.Family, ErrInvalidParameter)
	}
	return nil
}

// Snapshot marshals c to a YAML document for embedding in a result or
// report.
func (c Trainer) Snapshot() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config.Trainer.Snapshot: %w", err)
	}
	return string(b), nil
}
