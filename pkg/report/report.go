// Package report formats one structured log line per trainer reporting
// point (an iteration for a batch optimizer, an epoch for a stochastic
// one). It has no downstream consumer beyond the log stream itself:
// free-form text, not a wire format.
package report

import (
	"github.com/nanocv-go/nanocv/pkg/logger"
)

// FoldMeasurement holds the loss/error statistics for one fold at a
// reporting point.
type FoldMeasurement struct {
	Loss     float32
	AvgError float32
	VarError float32
}

// Line is everything logged at a single reporting point.
type Line struct {
	Step       int // epoch index or iteration index
	Train      FoldMeasurement
	Valid      FoldMeasurement
	Test       FoldMeasurement
	GradNorm   float32
	Status     string // updated, worse, diverged, overfitting
	ElapsedMs  int64
	ConfigName string
}

// Log emits one zerolog Info event for l, with one field per
// measurement the way the teacher logs per-step training diagnostics.
func Log(l Line) {
	logger.Log.Info().
		Int("step", l.Step).
		Float("train_loss", float64(l.Train.Loss)).
		Float("train_avg_error", float64(l.Train.AvgError)).
		Float("valid_loss", float64(l.Valid.Loss)).
		Float("valid_avg_error", float64(l.Valid.AvgError)).
		Float("test_loss", float64(l.Test.Loss)).
		Float("test_avg_error", float64(l.Test.AvgError)).
		Float("grad_norm", float64(l.GradNorm)).
		Str("status", l.Status).
		Str("config", l.ConfigName).
		Int("elapsed_ms", int(l.ElapsedMs)).
		Msg("training step")
}
