package train_test

import (
	"testing"

	"github.com/nanocv-go/nanocv/pkg/train"
	"github.com/stretchr/testify/assert"
)

func TestAllEpochsOnlyStopsOnDivergence(t *testing.T) {
	p := train.AllEpochs{}
	assert.False(t, p.ShouldStop(train.Worse, 1000))
	assert.False(t, p.ShouldStop(train.Updated, 0))
	assert.True(t, p.ShouldStop(train.Diverged, 0))
}

func TestStopEarlyHonorsPatience(t *testing.T) {
	p := train.StopEarly{Patience: 3}
	assert.False(t, p.ShouldStop(train.Worse, 2))
	assert.True(t, p.ShouldStop(train.Worse, 3))
	assert.True(t, p.ShouldStop(train.Diverged, 0))
}
