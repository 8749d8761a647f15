package util

import (
	"fmt"

	"github.com/pion/logging"
)

// LoggerFactory routes pion leveled logs to the pterm logger so that pion
// internals and the session core share one output.
type LoggerFactory struct{}

// NewLogger implements logging.LoggerFactory.
func (LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return scopedLogger{scope: scope}
}

type scopedLogger struct {
	scope string
}

func (l scopedLogger) prefix(msg string) string {
	return fmt.Sprintf("[%s] %s", l.scope, msg)
}

// pion's trace level is far too chatty for a terminal; it is folded into debug.
func (l scopedLogger) Trace(msg string) { LogDebug("%s", l.prefix(msg)) }
func (l scopedLogger) Tracef(format string, args ...interface{}) {
	LogDebug("%s", l.prefix(fmt.Sprintf(format, args...)))
}

func (l scopedLogger) Debug(msg string) { LogDebug("%s", l.prefix(msg)) }
func (l scopedLogger) Debugf(format string, args ...interface{}) {
	LogDebug("%s", l.prefix(fmt.Sprintf(format, args...)))
}

func (l scopedLogger) Info(msg string) { LogInfo("%s", l.prefix(msg)) }
func (l scopedLogger) Infof(format string, args ...interface{}) {
	LogInfo("%s", l.prefix(fmt.Sprintf(format, args...)))
}

func (l scopedLogger) Warn(msg string) { LogWarning("%s", l.prefix(msg)) }
func (l scopedLogger) Warnf(format string, args ...interface{}) {
	LogWarning("%s", l.prefix(fmt.Sprintf(format, args...)))
}

func (l scopedLogger) Error(msg string) { LogError("%s", l.prefix(msg)) }
func (l scopedLogger) Errorf(format string, args ...interface{}) {
	LogError("%s", l.prefix(fmt.Sprintf(format, args...)))
}
