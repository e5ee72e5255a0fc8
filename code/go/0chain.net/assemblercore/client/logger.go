package client

import "go.uber.org/zap"

// leveledLogger routes retryablehttp logs to zap.
type leveledLogger struct {
	l *zap.SugaredLogger
}

func (z *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	z.l.Errorw(msg, keysAndValues...)
}

func (z *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Infow(msg, keysAndValues...)
}

func (z *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.l.Warnw(msg, keysAndValues...)
}
