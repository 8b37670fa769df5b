package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process-wide logger. Init must be called first;
// before that it falls back to a default console logger so that early
// startup code (flag parsing, config loading) can still log.
func GetLogger() Logger {
	if logger == nil {
		return defaultLogger()
	}
	return logger
}

// Init configures the process-wide logger from cfg. Safe to call once;
// subsequent calls are no-ops.
func Init(cfg *Config) {
	once.Do(func() {
		l, err := initByConfig(cfg)
		if err != nil {
			panic(err)
		}
		logger = l
	})
}
