// Package logger wires up the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Init builds a logger at the given level and installs it globally, so the
// rest of the code can just use zap.L().
func Init(level string) {
	cfg := zap.NewDevelopmentConfig()

	switch level {
	case "debug":
		cfg.Level.SetLevel(zap.DebugLevel)
	case "info":
		cfg.Level.SetLevel(zap.InfoLevel)
	case "warn":
		cfg.Level.SetLevel(zap.WarnLevel)
	case "error":
		cfg.Level.SetLevel(zap.ErrorLevel)
	default:
		cfg.Level.SetLevel(zap.InfoLevel)
	}

	lgr, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("building logger: %w", err))
	}

	zap.ReplaceGlobals(lgr)
}
