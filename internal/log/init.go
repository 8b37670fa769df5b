package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func defaultLogger() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func initByConfig(cfg *Config) (Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	out := NewMultiWriter()
	if len(cfg.Outputs) == 0 {
		out.Add(os.Stdout)
	}
	for _, o := range cfg.Outputs {
		switch o.Type {
		case "console", "":
			out.Add(os.Stdout)
		case "file":
			out.AddFileAppender(FileAppenderOpt{
				Filename:   o.Path,
				MaxSize:    o.MaxSizeMB,
				MaxBackups: o.MaxBackups,
				MaxAge:     o.MaxAgeDays,
				Compress:   o.Compress,
			})
		default:
			return nil, fmt.Errorf("log: unknown output type %q", o.Type)
		}
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetReportCaller(true)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.Time})
	case "pattern", "":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = "%time [%level] %field %msg\n"
		}
		timeLayout := cfg.Time
		if timeLayout == "" {
			timeLayout = "2006-01-02 15:04:05.000"
		}
		l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	return &logrusLogger{entry: logrus.NewEntry(l)}, nil
}

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusLogger) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusLogger) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusLogger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusLogger) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusLogger) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusLogger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusLogger) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusLogger) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusLogger) WithField(field string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(field, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}

func (l *logrusLogger) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}

func (l *logrusLogger) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

func (l *logrusLogger) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
