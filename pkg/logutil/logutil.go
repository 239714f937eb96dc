package logutil

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// InitLogger builds the process-wide production logger. Safe to call more
// than once; only the first call takes effect.
func InitLogger() {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	})
}

// GetLogger returns the process-wide logger, initializing it through
// InitLogger if InitLogger was never called (e.g. in a host process that loaded the
// layer without going through the harness binary).
func GetLogger() *zap.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}
