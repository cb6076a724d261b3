package logrus

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	lg := NewLoggerWithComponent(l, "pprof")
	lg.Debug("hidden %d", 1)
	lg.Info("[Service.Handle] collected %s", "heap")
	lg.Error("[Service.Handle] failed: %v", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "collected heap")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "component=pprof")
}

func TestNilFallsBackToStandardLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewLogger(nil).Debug("ok")
	})
}
