package core

import (
	"go.uber.org/zap"
)

// NewLogger returns a console logger at debug level when debug is set and a
// JSON production logger otherwise.
func NewLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
