// Package driverlog provides the driver's structured logger.
//
// Lifecycle messages are a wire protocol written directly to the chosen
// output stream and never pass
// through this logger; driverlog is for everything else — job spawn/exit
// tracing, scanner-oracle cache hits, MDG reintegration summaries.
package driverlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing human-readable console lines to stderr at Info
// level, or at Debug level when verbose is set.
func New(verbose bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "" // job timing is carried by lifecycle messages, not logs
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core)
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want driver log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
