package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/volcengine/apminsight-pprof-go/logger"
)

// NewLogger adapts a logrus logger (or entry) to logger.Logger.
// A nil FieldLogger falls back to the logrus standard logger.
func NewLogger(l logrus.FieldLogger) logger.Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logger{l: l}
}

// NewLoggerWithComponent tags every entry with a "component" field.
func NewLoggerWithComponent(l logrus.FieldLogger, component string) logger.Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logger{l: l.WithField("component", component)}
}

type Logger struct {
	l logrus.FieldLogger
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.l.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.l.Infof(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.l.Errorf(format, args...)
}
