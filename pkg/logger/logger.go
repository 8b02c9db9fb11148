//go:build !logless

// Package logger provides the package-level structured logger used by the
// trainer, optimizers, and accumulator to report progress and failures.
// Build with the "logless" tag to swap in a zero-overhead no-op logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Log is the package-wide logger used throughout pkg/train, pkg/optim and
// pkg/learn for per-reporting-point diagnostics.
var Log = zlog.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
