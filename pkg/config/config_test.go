package config_test

import (
	"testing"

	"github.com/nanocv-go/nanocv/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTrainer() config.Trainer {
	return config.Trainer{
		Family:     "stochastic",
		Stochastic: &config.Stochastic{Kind: "adam", Alpha0: 0.001, Tau: 50, Rho: 0.5, Epochs: 100},
		Workers:    4,
		StopPolicy: "stop_early",
		Patience:   10,
	}
}

func TestTrainerValidateAccepts(t *testing.T) {
	assert.NoError(t, validTrainer().Validate())
}

func TestTrainerValidateRejectsMissingStochasticConfig(t *testing.T) {
	c := validTrainer()
	c.Stochastic = nil
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidParameter)
}

func TestTrainerValidateRejectsZeroPatienceUnderStopEarly(t *testing.T) {
	c := validTrainer()
	c.Patience = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidParameter)
}

func TestTrainerSnapshotRoundTrips(t *testing.T) {
	c := validTrainer()
	s, err := c.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, s, "family: stochastic")
	assert.Contains(t, s, "kind: adam")
}

func TestLineSearchValidateRejectsOutOfRangeHistory(t *testing.T) {
	ls := config.LineSearch{Direction: "l-bfgs", LBFGSHist: 50, Search: "interpolation", C1: 1e-4, Epsilon: 1e-6, MaxIters: 100}
	assert.ErrorIs(t, ls.Validate(), config.ErrInvalidParameter)
}
