package train

// StopPolicy selects, for instance, a patience-window selected by
// config.Trainer.StopPolicy: "stop_early" or "all_epochs" (spec §4.7
// step 6).
type StopPolicy interface {
	// ShouldStop is called after Result.Update and decides whether the
	// trainer should halt.
	ShouldStop(status Status, sinceImprovement int) bool
}

// AllEpochs never stops early: the trainer always runs its full
// configured schedule (iteration/epoch budget), only halting on
// Diverged.
type AllEpochs struct{}

func (AllEpochs) ShouldStop(status Status, sinceImprovement int) bool {
	return status == Diverged
}

// StopEarly halts once validation loss has not improved for Patience
// consecutive reporting points, or immediately on divergence.
type StopEarly struct {
	Patience int
}

func (s StopEarly) ShouldStop(status Status, sinceImprovement int) bool {
	if status == Diverged {
		return true
	}
	return sinceImprovement >= s.Patience
}
