// Package monitoring holds the process-wide logging hooks and metrics.
//
// Libraries log through Logf and Warnf so they never own a logger; the
// command wires both to a zap logger with InitLogger.
package monitoring

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// is replaced by InitLogger or SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf logs recoverable failures that degrade a result.
var Warnf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetWarnLogger replaces Warnf. Passing nil installs a no-op.
func SetWarnLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Warnf = func(string, ...interface{}) {}
		return
	}
	Warnf = f
}

// InitLogger builds a zap logger and routes Logf and Warnf through it.
// Debug selects the development config; otherwise a production config with
// console encoding is used. The caller owns Sync.
func InitLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	UseLogger(logger)
	return logger, nil
}

// UseLogger routes Logf and Warnf through an existing zap logger.
func UseLogger(logger *zap.Logger) {
	sugar := logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
	Logf = sugar.Infof
	Warnf = sugar.Warnf
}
