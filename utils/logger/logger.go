package logger

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

// New builds the application logger: a zap core behind the slog API.
// Production uses the JSON encoder, everything else the console encoder.
func New(goEnv string) (*slog.Logger, func()) {
	var (
		zl  *zap.Logger
		err error
	)
	if goEnv == "production" {
		zl, err = zap.NewProduction()
	} else {
		zl, err = zap.NewDevelopment()
	}
	if err != nil {
		zl = zap.NewExample()
	}

	logger := slog.New(zapslog.NewHandler(zl.Core(), zapslog.WithCaller(goEnv != "production")))
	return logger, func() { _ = zl.Sync() }
}

// Nop returns a logger that discards everything. Used by tests and tools.
func Nop() *slog.Logger {
	return slog.New(zapslog.NewHandler(zap.NewNop().Core()))
}
